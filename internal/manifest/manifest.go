package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/born-ml/splatexport/internal/model"
	"github.com/born-ml/splatexport/internal/serialization"
)

// FileName is the fixed name of the manifest inside a bundle directory.
const FileName = "deformation_network.json"

// Descriptor describes one exported tensor file.
type Descriptor = serialization.Descriptor

// Manifest is the top-level bundle document.
type Manifest struct {
	NumGaussians int                 `json:"num_gaussians"`
	SHDegree     int                 `json:"sh_degree"`
	AABB         [][]float64         `json:"aabb"`
	Gaussians    Section[Descriptor] `json:"gaussians"`
	HexPlane     Section[Descriptor] `json:"hexplane"`
	MLP          MLPSection          `json:"mlp"`
	Network      model.NetworkShape  `json:"network_config"`
}

// TensorRef is one tensor file referenced by the manifest.
type TensorRef struct {
	Key   string // Dotted manifest path, e.g. "mlp.pos_deform.layers.1.weight"
	File  string
	Shape []int
}

// Tensors returns every tensor file referenced by the manifest in document order.
func (m *Manifest) Tensors() []TensorRef {
	var refs []TensorRef
	for _, k := range m.Gaussians.Keys() {
		d, _ := m.Gaussians.Get(k)
		refs = append(refs, TensorRef{Key: "gaussians." + k, File: d.File, Shape: d.Shape})
	}
	for _, k := range m.HexPlane.Keys() {
		d, _ := m.HexPlane.Get(k)
		refs = append(refs, TensorRef{Key: "hexplane." + k, File: d.File, Shape: d.Shape})
	}
	layerRefs := func(prefix string, l LayerDescriptor) {
		refs = append(refs, TensorRef{Key: prefix + ".weight", File: l.WeightFile, Shape: l.WeightShape})
		if l.HasBias() {
			refs = append(refs, TensorRef{Key: prefix + ".bias", File: l.BiasFile, Shape: l.BiasShape})
		}
	}
	for i, l := range m.MLP.Trunk {
		layerRefs("mlp."+TrunkKey(i), l)
	}
	for _, k := range m.MLP.Heads.Keys() {
		h, _ := m.MLP.Heads.Get(k)
		for i, l := range h.Layers {
			layerRefs(fmt.Sprintf("mlp.%s.layers.%d", k, i), l)
		}
	}
	return refs
}

// Marshal encodes the manifest as indented JSON followed by a newline.
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifestValue, err)
	}
	return append(data, '\n'), nil
}

// Encode writes the indented JSON document to w.
func (m *Manifest) Encode(w io.Writer) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteFile writes the manifest into dir as FileName.
//
// The document is written to a temporary file in the same directory and renamed
// into place, so a reader never observes a partially written manifest.
func (m *Manifest) WriteFile(dir string) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".deformation_network-*.json")
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName) // Best effort, the original error wins
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close manifest: %w", err)
	}
	//nolint:gosec // G302: The manifest is a world-readable asset
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("failed to set manifest permissions: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, FileName)); err != nil {
		cleanup()
		return fmt.Errorf("failed to move manifest into place: %w", err)
	}
	return nil
}

// Decode reads a manifest document from r.
func Decode(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// Open reads the manifest of the bundle in dir.
func Open(dir string) (*Manifest, error) {
	//nolint:gosec // G304: Bundle paths come from user input by design
	f, err := os.Open(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer func() {
		_ = f.Close() // Read-only, close error is irrelevant
	}()
	return Decode(f)
}
