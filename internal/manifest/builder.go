package manifest

import (
	"fmt"

	"github.com/born-ml/splatexport/internal/model"
)

// Builder merges exporter sub-manifests and scalar metadata into a Manifest.
//
// The first error recorded by a step is returned from Build; later steps are
// still accepted so that call chains stay linear.
type Builder struct {
	m   Manifest
	err error
}

// NewBuilder returns a builder with empty sections and an empty bounding box.
func NewBuilder() *Builder {
	return &Builder{m: Manifest{AABB: [][]float64{}}}
}

// Points records the Gaussian count and SH degree.
func (b *Builder) Points(numGaussians, shDegree int) *Builder {
	if numGaussians < 0 || shDegree < 0 {
		b.fail(fmt.Errorf("%w: num_gaussians=%d sh_degree=%d", ErrManifestValue, numGaussians, shDegree))
	}
	b.m.NumGaussians = numGaussians
	b.m.SHDegree = shDegree
	return b
}

// AABB normalizes and records the grid bounding box (see NormalizeAABB).
func (b *Builder) AABB(v any) *Builder {
	rows, err := NormalizeAABB(v)
	if err != nil {
		b.fail(err)
		return b
	}
	b.m.AABB = rows
	return b
}

// Gaussians records the canonical attribute section.
func (b *Builder) Gaussians(s Section[Descriptor]) *Builder {
	b.m.Gaussians = s
	return b
}

// HexPlane records the feature grid section.
func (b *Builder) HexPlane(s Section[Descriptor]) *Builder {
	b.m.HexPlane = s
	return b
}

// MLP records the decoder section.
func (b *Builder) MLP(s MLPSection) *Builder {
	b.m.MLP = s
	return b
}

// Network records the network shape descriptor.
func (b *Builder) Network(s model.NetworkShape) *Builder {
	b.m.Network = s
	return b
}

// Build returns the manifest after checking it serializes to JSON.
func (b *Builder) Build() (*Manifest, error) {
	if b.err != nil {
		return nil, b.err
	}
	m := b.m
	if _, err := m.Marshal(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}
