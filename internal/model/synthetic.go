package model

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/splatexport/internal/tensor"
)

// SyntheticConfig controls the shape of a generated model.
type SyntheticConfig struct {
	Points      int    // Number of Gaussians
	SHDegree    int    // Spherical harmonics degree
	Planes      int    // Number of grid planes present (0-6, vocabulary order)
	GridShape   []int  // Shape of each plane
	FeatureDim  int    // Trunk input width
	Width       int    // Hidden width
	TrunkLayers int    // Weight-bearing trunk layers
	HeadLayers  int    // Weight-bearing layers per head
	Temporal    bool   // Emit a 2x4 (space+time) AABB instead of 2x3
	Seed        uint64 // PRNG seed
}

// DefaultSyntheticConfig returns a small but complete configuration.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Points:      10,
		SHDegree:    1,
		Planes:      NumPlanes,
		GridShape:   []int{32, 8, 8},
		FeatureDim:  32,
		Width:       16,
		TrunkLayers: 2,
		HeadLayers:  2,
		Seed:        1,
	}
}

// Synthetic builds a deterministic random model, useful for fixtures and for
// exercising a runtime without a trained scene.
//
// Trunk and heads interleave activation stages with linear layers the way a
// trained decoder does: trunk = Linear, (ReLU, Linear)*; head = (ReLU, Linear)*.
// MLP weights are float64 so that exports exercise the precision cast.
func Synthetic(cfg SyntheticConfig) (*Model, error) {
	if cfg.Points < 0 || cfg.SHDegree < 0 {
		return nil, fmt.Errorf("points and SH degree must be >= 0")
	}
	if cfg.Planes < 0 || cfg.Planes > NumPlanes {
		return nil, fmt.Errorf("planes must be in [0, %d], got %d", NumPlanes, cfg.Planes)
	}
	if cfg.FeatureDim <= 0 || cfg.Width <= 0 || cfg.TrunkLayers <= 0 || cfg.HeadLayers <= 0 {
		return nil, fmt.Errorf("network dimensions must be > 0")
	}
	if err := tensor.Shape(cfg.GridShape).Validate(); err != nil {
		return nil, fmt.Errorf("invalid grid shape: %w", err)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	n := cfg.Points
	rest := (cfg.SHDegree+1)*(cfg.SHDegree+1) - 1

	m := &Model{SHDegree: cfg.SHDegree}
	m.Points = PointSet{
		Positions: randomFloat32(rng, tensor.Shape{n, 3}),
		Scales:    randomFloat32(rng, tensor.Shape{n, 3}),
		Rotations: randomFloat32(rng, tensor.Shape{n, 4}),
		Opacities: randomFloat32(rng, tensor.Shape{n, 1}),
		SHDC:      randomFloat32(rng, tensor.Shape{n, 1, 3}),
		SHRest:    randomFloat32(rng, tensor.Shape{n, rest, 3}),
	}

	grid := &FeatureGrid{AABB: [][]float64{{-1, -1, -1}, {1, 1, 1}}}
	if cfg.Temporal {
		grid.AABB = [][]float64{{-1, -1, -1, 0}, {1, 1, 1, 1}}
	}
	for i := 0; i < cfg.Planes; i++ {
		grid.Planes[i] = randomFloat32(rng, tensor.Shape(cfg.GridShape))
	}

	def := &Deformation{Grid: grid}
	def.Trunk = append(def.Trunk, randomLinear(rng, cfg.Width, cfg.FeatureDim))
	for i := 1; i < cfg.TrunkLayers; i++ {
		def.Trunk = append(def.Trunk, Activation(), randomLinear(rng, cfg.Width, cfg.Width))
	}
	for _, k := range HeadKinds() {
		head := &Head{Kind: k}
		for i := 0; i < cfg.HeadLayers; i++ {
			out := cfg.Width
			if i == cfg.HeadLayers-1 {
				out = k.OutputDim()
			}
			head.Layers = append(head.Layers, Activation(), randomLinear(rng, out, cfg.Width))
		}
		def.Heads[k] = head
	}
	m.Deformation = def

	m.Network = &NetworkShape{
		FeatureDim: cfg.FeatureDim,
		MLPWidth:   cfg.Width,
		MLPDepth:   cfg.TrunkLayers,
	}
	return m, nil
}

func randomFloat32(rng *rand.Rand, shape tensor.Shape) *tensor.RawTensor {
	values := make([]float32, shape.NumElements())
	for i := range values {
		values[i] = float32(rng.NormFloat64())
	}
	t, err := tensor.FromFloat32(shape, values)
	if err != nil {
		panic(err) // Element count is derived from shape
	}
	return t
}

func randomLinear(rng *rand.Rand, out, in int) Layer {
	w := mat.NewDense(out, in, nil)
	w.Apply(func(_, _ int, _ float64) float64 {
		return rng.NormFloat64() * 0.1
	}, w)

	b := make([]float64, out)
	for i := range b {
		b[i] = rng.NormFloat64() * 0.01
	}
	bias, err := tensor.FromFloat64(tensor.Shape{out}, b)
	if err != nil {
		panic(err)
	}
	return Linear(tensor.FromDense(w), bias)
}
