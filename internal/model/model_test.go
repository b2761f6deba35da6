package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/splatexport/internal/tensor"
)

func mustTensor(t *testing.T, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float32)
	require.NoError(t, err)
	return raw
}

func TestPlaneVocabulary(t *testing.T) {
	names := make([]string, 0, NumPlanes)
	for _, p := range Planes() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"plane_xy", "plane_xz", "plane_yz", "plane_xt", "plane_yt", "plane_zt"}, names)

	assert.False(t, PlaneYZ.IsTemporal())
	assert.True(t, PlaneXT.IsTemporal())

	p, err := ParsePlane("zt")
	require.NoError(t, err)
	assert.Equal(t, PlaneZT, p)

	p, err = ParsePlane("plane_xz")
	require.NoError(t, err)
	assert.Equal(t, PlaneXZ, p)

	_, err = ParsePlane("plane_tt")
	assert.Error(t, err)
}

func TestHeadOutputDims(t *testing.T) {
	dims := make([]int, 0, NumHeads)
	for _, k := range HeadKinds() {
		dims = append(dims, k.OutputDim())
	}
	assert.Equal(t, []int{3, 3, 4, 1, 48}, dims)

	k, err := ParseHeadKind("rotations_deform")
	require.NoError(t, err)
	assert.Equal(t, HeadRotation, k)

	_, err = ParseHeadKind("color_deform")
	assert.Error(t, err)
}

func TestPointSetGetSet(t *testing.T) {
	var ps PointSet
	for _, a := range Attributes() {
		assert.Nil(t, ps.Get(a), a.Name())
		ps.Set(a, mustTensor(t, tensor.Shape{7, 3}))
		assert.NotNil(t, ps.Get(a), a.Name())
	}
	assert.Equal(t, 7, ps.Count())
}

func TestFeatureGridPresent(t *testing.T) {
	g := &FeatureGrid{}
	g.Planes[PlaneXY] = mustTensor(t, tensor.Shape{1, 4, 4})
	g.Planes[PlaneZT] = mustTensor(t, tensor.Shape{1, 4, 4})

	assert.Equal(t, []Plane{PlaneXY, PlaneZT}, g.Present())

	var nilGrid *FeatureGrid
	assert.Empty(t, nilGrid.Present())
}

func TestInferNetworkShape(t *testing.T) {
	trunk := []Layer{
		Linear(mustTensor(t, tensor.Shape{256, 64}), nil),
		Activation(),
		Linear(mustTensor(t, tensor.Shape{256, 256}), nil),
		Activation(),
		Linear(mustTensor(t, tensor.Shape{256, 256}), nil),
	}

	shape, err := InferNetworkShape(trunk)
	require.NoError(t, err)
	assert.Equal(t, NetworkShape{FeatureDim: 64, MLPWidth: 256, MLPDepth: 3}, shape)
}

func TestInferNetworkShapeErrors(t *testing.T) {
	_, err := InferNetworkShape([]Layer{Activation()})
	assert.True(t, errors.Is(err, ErrNetworkShape))

	_, err = InferNetworkShape([]Layer{Linear(mustTensor(t, tensor.Shape{8}), nil)})
	assert.True(t, errors.Is(err, ErrNetworkShape))
}

func TestResolveNetwork(t *testing.T) {
	m := &Model{}
	shape, err := m.ResolveNetwork()
	require.NoError(t, err)
	assert.Equal(t, NetworkShape{}, shape)

	m.Network = &NetworkShape{FeatureDim: 64, MLPWidth: 0, MLPDepth: 8}
	_, err = m.ResolveNetwork()
	assert.ErrorIs(t, err, ErrNetworkShape)

	m.Network = &NetworkShape{FeatureDim: 64, MLPWidth: 256, MLPDepth: 8}
	shape, err = m.ResolveNetwork()
	require.NoError(t, err)
	assert.Equal(t, 256, shape.MLPWidth)
}

func TestInferSHDegree(t *testing.T) {
	tests := []struct {
		shape tensor.Shape
		want  int
	}{
		{tensor.Shape{10, 0, 3}, 0},
		{tensor.Shape{10, 3, 3}, 1},
		{tensor.Shape{10, 8, 3}, 2},
		{tensor.Shape{10, 15, 3}, 3},
		{tensor.Shape{10, 45}, 3},
	}
	for _, tt := range tests {
		got, err := InferSHDegree(mustTensor(t, tt.shape))
		require.NoError(t, err, tt.shape)
		assert.Equal(t, tt.want, got, tt.shape)
	}

	_, err := InferSHDegree(mustTensor(t, tensor.Shape{10, 5, 3}))
	assert.Error(t, err)
	_, err = InferSHDegree(nil)
	assert.Error(t, err)
}

func TestSynthetic(t *testing.T) {
	cfg := DefaultSyntheticConfig()
	cfg.Planes = 3

	m, err := Synthetic(cfg)
	require.NoError(t, err)

	assert.Equal(t, 10, m.Points.Count())
	assert.Equal(t, tensor.Shape{10, 3, 3}, m.Points.SHRest.Shape())
	assert.Equal(t, []Plane{PlaneXY, PlaneXZ, PlaneYZ}, m.Deformation.Grid.Present())

	inferred, err := InferNetworkShape(m.Deformation.Trunk)
	require.NoError(t, err)
	assert.Equal(t, *m.Network, inferred)

	for _, k := range HeadKinds() {
		head := m.Deformation.Head(k)
		require.NotNil(t, head, k.Name())
		last := head.Layers[len(head.Layers)-1]
		assert.Equal(t, k.OutputDim(), last.Weight.Dim(0), k.Name())
	}
}

func TestSyntheticDeterministic(t *testing.T) {
	a, err := Synthetic(DefaultSyntheticConfig())
	require.NoError(t, err)
	b, err := Synthetic(DefaultSyntheticConfig())
	require.NoError(t, err)
	assert.Equal(t, a.Points.Positions.Data(), b.Points.Positions.Data())
}

func TestSyntheticRejectsBadConfig(t *testing.T) {
	cfg := DefaultSyntheticConfig()
	cfg.Planes = 7
	_, err := Synthetic(cfg)
	assert.Error(t, err)

	cfg = DefaultSyntheticConfig()
	cfg.Width = 0
	_, err = Synthetic(cfg)
	assert.Error(t, err)
}
