// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package splat

import (
	"log/slog"

	"github.com/born-ml/splatexport/internal/bundle"
	"github.com/born-ml/splatexport/internal/export"
	"github.com/born-ml/splatexport/internal/manifest"
	"github.com/born-ml/splatexport/internal/model"
	"github.com/born-ml/splatexport/internal/parallel"
)

// Scene types.
type (
	Model        = model.Model
	PointSet     = model.PointSet
	FeatureGrid  = model.FeatureGrid
	Deformation  = model.Deformation
	Head         = model.Head
	Layer        = model.Layer
	NetworkShape = model.NetworkShape
	Plane        = model.Plane
	HeadKind     = model.HeadKind
)

// Feature planes in export order.
const (
	PlaneXY = model.PlaneXY
	PlaneXZ = model.PlaneXZ
	PlaneYZ = model.PlaneYZ
	PlaneXT = model.PlaneXT
	PlaneYT = model.PlaneYT
	PlaneZT = model.PlaneZT
)

// Decoder heads in export order.
const (
	HeadPosition = model.HeadPosition
	HeadScale    = model.HeadScale
	HeadRotation = model.HeadRotation
	HeadOpacity  = model.HeadOpacity
	HeadSH       = model.HeadSH
)

// Bundle types.
type (
	Manifest        = manifest.Manifest
	Descriptor      = manifest.Descriptor
	LayerDescriptor = manifest.LayerDescriptor
	HeadDescriptor  = manifest.HeadDescriptor
	Report          = bundle.Report
	Exporter        = export.Exporter
	Option          = export.Option
	ParallelConfig  = parallel.Config
	SyntheticConfig = model.SyntheticConfig
)

// ManifestFile is the manifest's file name inside a bundle.
const ManifestFile = manifest.FileName

// Errors.
var (
	ErrMandatoryTensorMissing = export.ErrMandatoryTensorMissing
	ErrPointCountMismatch     = export.ErrPointCountMismatch
	ErrLayerShape             = export.ErrLayerShape
	ErrNetworkShape           = export.ErrNetworkShape
	ErrManifestValue          = manifest.ErrManifestValue
)

// MissingTensorError names a missing canonical attribute.
type MissingTensorError = export.MissingTensorError

// Linear returns a weight-bearing decoder layer; bias may be nil.
var Linear = model.Linear

// Activation returns a parameter-free decoder stage.
var Activation = model.Activation

// WithLogger sets the exporter's logger.
func WithLogger(l *slog.Logger) Option {
	return export.WithLogger(l)
}

// WithParallel sets the worker configuration for blob writes.
func WithParallel(cfg ParallelConfig) Option {
	return export.WithParallel(cfg)
}

// WithClean removes stale bundle files before writing.
func WithClean(clean bool) Option {
	return export.WithClean(clean)
}

// NewExporter creates an exporter writing into dir.
func NewExporter(dir string, opts ...Option) *Exporter {
	return export.New(dir, opts...)
}

// Export writes m into dir and returns the manifest.
func Export(m *Model, dir string, opts ...Option) (*Manifest, error) {
	return export.New(dir, opts...).Export(m)
}

// Verify checks a bundle directory against its manifest.
func Verify(dir string) (*Report, error) {
	return bundle.Verify(dir)
}

// OpenManifest reads the manifest of a bundle.
func OpenManifest(dir string) (*Manifest, error) {
	return manifest.Open(dir)
}

// LoadFloat32 reads one bundle tensor file.
func LoadFloat32(dir, file string, shape []int) ([]float32, error) {
	return bundle.LoadFloat32(dir, file, shape)
}

// DefaultSyntheticConfig returns a small random scene configuration.
func DefaultSyntheticConfig() SyntheticConfig {
	return model.DefaultSyntheticConfig()
}

// Synthetic builds a deterministic random model.
func Synthetic(cfg SyntheticConfig) (*Model, error) {
	return model.Synthetic(cfg)
}
