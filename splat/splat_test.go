// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package splat_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/splatexport/splat"
	"github.com/born-ml/splatexport/tensor"
)

func TestExportHandBuiltModel(t *testing.T) {
	const n = 2
	f32 := func(shape ...int) *tensor.RawTensor {
		raw, err := tensor.NewRaw(tensor.Shape(shape), tensor.Float32)
		require.NoError(t, err)
		return raw
	}

	m := &splat.Model{SHDegree: 0}
	m.Points.Positions = f32(n, 3)
	m.Points.Scales = f32(n, 3)
	m.Points.Rotations = f32(n, 4)
	m.Points.Opacities = f32(n, 1)
	m.Points.SHDC = f32(n, 1, 3)
	m.Points.SHRest = f32(n, 0, 3)

	grid := &splat.FeatureGrid{AABB: [2][3]float32{{-2, -2, -2}, {2, 2, 2}}}
	grid.Planes[splat.PlaneXY] = f32(4, 8, 8)
	m.Deformation = &splat.Deformation{
		Grid:  grid,
		Trunk: []splat.Layer{splat.Linear(f32(8, 4), f32(8))},
	}
	m.Deformation.Heads[splat.HeadOpacity] = &splat.Head{
		Kind:   splat.HeadOpacity,
		Layers: []splat.Layer{splat.Activation(), splat.Linear(f32(1, 8), nil)},
	}

	dir := t.TempDir()
	doc, err := splat.Export(m, dir)
	require.NoError(t, err)
	assert.Equal(t, splat.NetworkShape{FeatureDim: 4, MLPWidth: 8, MLPDepth: 1}, doc.Network)
	assert.Equal(t, [][]float64{{-2, -2, -2}, {2, 2, 2}}, doc.AABB)

	report, err := splat.Verify(dir)
	require.NoError(t, err)
	assert.True(t, report.OK())

	values, err := splat.LoadFloat32(dir, "opacity_deform_0_weight.raw", []int{1, 8})
	require.NoError(t, err)
	assert.Len(t, values, 8)
}

func TestExportErrorsAreExposed(t *testing.T) {
	m, err := splat.Synthetic(splat.DefaultSyntheticConfig())
	require.NoError(t, err)
	m.Points.Rotations = nil

	_, err = splat.Export(m, t.TempDir())
	var missing *splat.MissingTensorError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "rotations", missing.Attribute)
	assert.ErrorIs(t, err, splat.ErrMandatoryTensorMissing)
}
