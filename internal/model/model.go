package model

import (
	"errors"
	"fmt"
	"slices"

	"github.com/born-ml/splatexport/internal/tensor"
)

// ErrNetworkShape reports a network shape descriptor that is missing or invalid.
var ErrNetworkShape = errors.New("invalid network shape")

// Attribute identifies one of the canonical per-point Gaussian attributes.
type Attribute int

// Canonical attributes in export order.
const (
	AttrPositions Attribute = iota
	AttrScales
	AttrRotations
	AttrOpacities
	AttrSHDC
	AttrSHRest
)

var attributeNames = [...]string{"positions", "scales", "rotations", "opacities", "sh_dc", "sh_rest"}

// Attributes returns the canonical attributes in export order.
func Attributes() []Attribute {
	return []Attribute{AttrPositions, AttrScales, AttrRotations, AttrOpacities, AttrSHDC, AttrSHRest}
}

// Name returns the wire name used for manifest keys and file names.
func (a Attribute) Name() string {
	if a < 0 || int(a) >= len(attributeNames) {
		return "unknown"
	}
	return attributeNames[a]
}

// String implements fmt.Stringer.
func (a Attribute) String() string {
	return a.Name()
}

// PointSet holds the canonical (time-independent) Gaussian attributes.
//
// Values are stored raw: scales are log-space, opacities are logits and
// rotations are unnormalized quaternions. All tensors share the leading
// dimension N.
type PointSet struct {
	Positions *tensor.RawTensor // (N, 3)
	Scales    *tensor.RawTensor // (N, 3), log-space
	Rotations *tensor.RawTensor // (N, 4), unnormalized quaternion
	Opacities *tensor.RawTensor // (N, 1), logit
	SHDC      *tensor.RawTensor // (N, 1, 3)
	SHRest    *tensor.RawTensor // (N, K, 3), K depends on the SH degree
}

// Get returns the tensor for an attribute (nil when absent).
func (p *PointSet) Get(a Attribute) *tensor.RawTensor {
	switch a {
	case AttrPositions:
		return p.Positions
	case AttrScales:
		return p.Scales
	case AttrRotations:
		return p.Rotations
	case AttrOpacities:
		return p.Opacities
	case AttrSHDC:
		return p.SHDC
	case AttrSHRest:
		return p.SHRest
	default:
		return nil
	}
}

// Set stores the tensor for an attribute.
func (p *PointSet) Set(a Attribute, t *tensor.RawTensor) {
	switch a {
	case AttrPositions:
		p.Positions = t
	case AttrScales:
		p.Scales = t
	case AttrRotations:
		p.Rotations = t
	case AttrOpacities:
		p.Opacities = t
	case AttrSHDC:
		p.SHDC = t
	case AttrSHRest:
		p.SHRest = t
	}
}

// Count returns N, the leading dimension of the positions tensor.
func (p *PointSet) Count() int {
	if p.Positions == nil {
		return 0
	}
	return p.Positions.Dim(0)
}

// FeatureGrid is the multi-plane feature encoding of the deformation field.
type FeatureGrid struct {
	// Planes indexed by Plane; nil entries are absent and mean "no coupling
	// between that axis pair".
	Planes [NumPlanes]*tensor.RawTensor

	// AABB is the grid domain as a (min, max) pair. Accepted forms are plain
	// nested slices or arrays of float64/float32, a 2xD *tensor.RawTensor or a
	// 2xD gonum mat.Matrix.
	AABB any
}

// Plane returns the tensor for p, or nil when the plane is absent.
func (g *FeatureGrid) Plane(p Plane) *tensor.RawTensor {
	if g == nil || p < 0 || int(p) >= NumPlanes {
		return nil
	}
	return g.Planes[p]
}

// Present returns the planes that carry a tensor, in vocabulary order.
func (g *FeatureGrid) Present() []Plane {
	var out []Plane
	for _, p := range Planes() {
		if g.Plane(p) != nil {
			out = append(out, p)
		}
	}
	return out
}

// Layer is one stage of an MLP. Linear stages carry a weight (out x in) and an
// optional bias (out); activation stages carry neither.
type Layer struct {
	Weight *tensor.RawTensor
	Bias   *tensor.RawTensor
}

// Linear returns a weight-bearing layer. bias may be nil.
func Linear(weight, bias *tensor.RawTensor) Layer {
	return Layer{Weight: weight, Bias: bias}
}

// Activation returns a parameter-free layer.
func Activation() Layer {
	return Layer{}
}

// HasWeight reports whether the layer is weight-bearing.
func (l Layer) HasWeight() bool {
	return l.Weight != nil
}

// Head is one decoder head of the deformation network.
type Head struct {
	Kind   HeadKind
	Layers []Layer
}

// Deformation is the time-conditioned deformation network.
type Deformation struct {
	Grid  *FeatureGrid
	Trunk []Layer
	Heads [NumHeads]*Head // indexed by HeadKind; nil entries are absent
}

// Head returns the head of the given kind, or nil when absent.
func (d *Deformation) Head(k HeadKind) *Head {
	if d == nil || k < 0 || int(k) >= NumHeads {
		return nil
	}
	return d.Heads[k]
}

// NetworkShape describes the decoder dimensions a runtime needs to rebuild
// activation placement.
type NetworkShape struct {
	FeatureDim int `json:"feature_dim" yaml:"feature_dim"`
	MLPWidth   int `json:"mlp_width" yaml:"mlp_width"`
	MLPDepth   int `json:"mlp_depth" yaml:"mlp_depth"`
}

// Validate checks that all dimensions are positive.
func (s NetworkShape) Validate() error {
	if s.FeatureDim <= 0 || s.MLPWidth <= 0 || s.MLPDepth <= 0 {
		return fmt.Errorf("%w: feature_dim=%d mlp_width=%d mlp_depth=%d (all must be > 0)",
			ErrNetworkShape, s.FeatureDim, s.MLPWidth, s.MLPDepth)
	}
	return nil
}

// InferNetworkShape derives the shape from trunk layers: the first weight gives
// the feature (input) and hidden (output) widths, the weight count gives depth.
func InferNetworkShape(trunk []Layer) (NetworkShape, error) {
	var shape NetworkShape
	for _, l := range trunk {
		if !l.HasWeight() {
			continue
		}
		if shape.MLPDepth == 0 {
			if l.Weight.Shape().Rank() != 2 {
				return NetworkShape{}, fmt.Errorf("%w: first trunk weight has shape %v, want rank 2",
					ErrNetworkShape, l.Weight.Shape())
			}
			shape.MLPWidth = l.Weight.Dim(0)
			shape.FeatureDim = l.Weight.Dim(1)
		}
		shape.MLPDepth++
	}
	if shape.MLPDepth == 0 {
		return NetworkShape{}, fmt.Errorf("%w: trunk has no weight-bearing layers", ErrNetworkShape)
	}
	return shape, shape.Validate()
}

// Model is a frozen snapshot of a trained dynamic scene.
type Model struct {
	Points      PointSet
	SHDegree    int
	Deformation *Deformation  // nil for a static scene
	Network     *NetworkShape // nil to infer from the trunk
}

// ResolveNetwork returns the explicit network shape when set, otherwise the
// shape inferred from the trunk. A model without trunk weights has a zero shape.
func (m *Model) ResolveNetwork() (NetworkShape, error) {
	if m.Network != nil {
		return *m.Network, m.Network.Validate()
	}
	if m.Deformation == nil || !slices.ContainsFunc(m.Deformation.Trunk, Layer.HasWeight) {
		return NetworkShape{}, nil
	}
	return InferNetworkShape(m.Deformation.Trunk)
}

// InferSHDegree derives the SH degree from the higher-order coefficient tensor.
// Shapes (N, K, 3) and (N, 3K) are accepted, where K = (d+1)^2 - 1.
func InferSHDegree(rest *tensor.RawTensor) (int, error) {
	if rest == nil {
		return 0, fmt.Errorf("sh_rest is missing")
	}

	var k int
	switch s := rest.Shape(); {
	case s.Rank() == 3:
		k = s[1]
	case s.Rank() == 2 && s[1]%3 == 0:
		k = s[1] / 3
	default:
		return 0, fmt.Errorf("cannot infer SH degree from sh_rest shape %v", rest.Shape())
	}

	for d := 0; (d+1)*(d+1)-1 <= k; d++ {
		if (d+1)*(d+1)-1 == k {
			return d, nil
		}
	}
	return 0, fmt.Errorf("sh_rest has %d coefficients per channel, not (d+1)^2-1 for any degree", k)
}
