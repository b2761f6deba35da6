package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/splatexport/internal/manifest"
	"github.com/born-ml/splatexport/internal/model"
	"github.com/born-ml/splatexport/internal/parallel"
	"github.com/born-ml/splatexport/internal/serialization"
	"github.com/born-ml/splatexport/internal/tensor"
)

func syntheticModel(t *testing.T, mutate func(*model.SyntheticConfig)) *model.Model {
	t.Helper()
	cfg := model.DefaultSyntheticConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := model.Synthetic(cfg)
	require.NoError(t, err)
	return m
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func readManifestJSON(t *testing.T, dir string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, manifest.FileName))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func float32Tensor(t *testing.T, shape tensor.Shape, values []float32) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.FromFloat32(shape, values)
	require.NoError(t, err)
	return raw
}

func zeros(t *testing.T, shape ...int) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(tensor.Shape(shape), tensor.Float32)
	require.NoError(t, err)
	return raw
}

func TestExportSyntheticBundle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bundle")
	m := syntheticModel(t, nil)

	doc, err := New(dir).Export(m)
	require.NoError(t, err)

	// 6 attributes + 6 planes + 12 weights + 12 biases + manifest.
	files := listDir(t, dir)
	assert.Len(t, files, 37)
	assert.Contains(t, files, manifest.FileName)
	for _, ref := range doc.Tensors() {
		assert.Contains(t, files, ref.File, ref.Key)
	}

	assert.Equal(t, 10, doc.NumGaussians)
	assert.Equal(t, 1, doc.SHDegree)
	assert.Equal(t, [][]float64{{-1, -1, -1}, {1, 1, 1}}, doc.AABB)
	assert.Equal(t, []string{"positions", "scales", "rotations", "opacities", "sh_dc", "sh_rest"}, doc.Gaussians.Keys())
	assert.Equal(t, model.NetworkShape{FeatureDim: 32, MLPWidth: 16, MLPDepth: 2}, doc.Network)

	pos, ok := doc.Gaussians.Get("positions")
	require.True(t, ok)
	assert.Equal(t, []int{10, 3}, pos.Shape)
	assert.Equal(t, "float32", pos.DType)
	assert.Equal(t, "positions.raw", pos.File)

	info, err := os.Stat(filepath.Join(dir, "positions.raw"))
	require.NoError(t, err)
	assert.EqualValues(t, 120, info.Size())

	values, err := serialization.ReadRaw(filepath.Join(dir, "positions.raw"), pos.Shape)
	require.NoError(t, err)
	assert.Equal(t, m.Points.Positions.ToFloat32(), values)

	rest, _ := doc.Gaussians.Get("sh_rest")
	assert.Equal(t, []int{10, 3, 3}, rest.Shape)
}

func TestExportManifestMatchesDisk(t *testing.T) {
	dir := t.TempDir()
	doc, err := New(dir).Export(syntheticModel(t, nil))
	require.NoError(t, err)

	onDisk, err := manifest.Open(dir)
	require.NoError(t, err)
	assert.Equal(t, doc.Tensors(), onDisk.Tensors())

	raw := readManifestJSON(t, dir)
	mlp := raw["mlp"].(map[string]any)
	assert.Contains(t, mlp, "feature_out_0")
	assert.Contains(t, mlp, "feature_out_1")
	assert.NotContains(t, mlp, "feature_out_2")
}

func TestExportThreePlanes(t *testing.T) {
	dir := t.TempDir()
	doc, err := New(dir).Export(syntheticModel(t, func(c *model.SyntheticConfig) { c.Planes = 3 }))
	require.NoError(t, err)

	assert.Equal(t, []string{"plane_xy", "plane_xz", "plane_yz"}, doc.HexPlane.Keys())
	assert.FileExists(t, filepath.Join(dir, "plane_yz.raw"))
	assert.NoFileExists(t, filepath.Join(dir, "plane_xt.raw"))

	xy, _ := doc.HexPlane.Get("plane_xy")
	assert.Equal(t, []int{32, 8, 8}, xy.Shape)
}

func TestExportHeadOrderAndOutputDims(t *testing.T) {
	dir := t.TempDir()
	doc, err := New(dir).Export(syntheticModel(t, nil))
	require.NoError(t, err)

	want := []struct {
		name string
		dim  int
	}{
		{"pos_deform", 3},
		{"scales_deform", 3},
		{"rotations_deform", 4},
		{"opacity_deform", 1},
		{"shs_deform", 48},
	}
	require.Equal(t, len(want), doc.MLP.Heads.Len())
	for i, key := range doc.MLP.Heads.Keys() {
		assert.Equal(t, want[i].name, key)
		h, _ := doc.MLP.Heads.Get(key)
		assert.Equal(t, want[i].dim, h.OutputDim, key)
		require.Len(t, h.Layers, 2, key)
		assert.Equal(t, key+"_1_weight.raw", h.Layers[1].WeightFile)
		assert.Equal(t, []int{want[i].dim, 16}, h.Layers[1].WeightShape)
		assert.Equal(t, key+"_1_bias.raw", h.Layers[1].BiasFile)
	}

	data, err := os.ReadFile(filepath.Join(dir, manifest.FileName))
	require.NoError(t, err)
	s := string(data)
	last := -1
	for _, w := range want {
		idx := strings.Index(s, `"`+w.name+`"`)
		assert.Greater(t, idx, last, w.name)
		last = idx
	}
}

func TestExportMissingPositionsAborts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bundle")
	m := syntheticModel(t, nil)
	m.Points.Positions = nil

	_, err := New(dir).Export(m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMandatoryTensorMissing))

	var missing *MissingTensorError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "positions", missing.Attribute)

	assert.NoFileExists(t, filepath.Join(dir, manifest.FileName))
	assert.NoDirExists(t, dir)
}

func TestExportPointCountMismatch(t *testing.T) {
	m := syntheticModel(t, nil)
	m.Points.Opacities = zeros(t, 9, 1)

	_, err := New(t.TempDir()).Export(m)
	assert.ErrorIs(t, err, ErrPointCountMismatch)
}

func TestExportReusesDirectoryAndKeepsStaleFiles(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "old_tensor.raw")
	require.NoError(t, os.WriteFile(stale, []byte{1, 2, 3, 4}, 0o600))

	_, err := New(dir).Export(syntheticModel(t, nil))
	require.NoError(t, err)
	assert.FileExists(t, stale)

	// A second export with fewer planes overwrites shared files and leaves the rest.
	doc, err := New(dir).Export(syntheticModel(t, func(c *model.SyntheticConfig) { c.Planes = 2 }))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.HexPlane.Len())
	assert.FileExists(t, filepath.Join(dir, "plane_zt.raw"))

	onDisk, err := manifest.Open(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"plane_xy", "plane_xz"}, onDisk.HexPlane.Keys())

	// A different point count rewrites the point files and num_gaussians.
	doc, err = New(dir).Export(syntheticModel(t, func(c *model.SyntheticConfig) { c.Points = 4 }))
	require.NoError(t, err)
	assert.Equal(t, 4, doc.NumGaussians)
	assert.EqualValues(t, 4, readManifestJSON(t, dir)["num_gaussians"])

	info, err := os.Stat(filepath.Join(dir, "positions.raw"))
	require.NoError(t, err)
	assert.EqualValues(t, 4*3*4, info.Size())
	assert.FileExists(t, stale)
}

func TestExportCleanRemovesStaleFiles(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "old_tensor.raw")
	keep := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(stale, []byte{1, 2, 3, 4}, 0o600))
	require.NoError(t, os.WriteFile(keep, []byte("hi"), 0o600))

	_, err := New(dir, WithClean(true)).Export(syntheticModel(t, func(c *model.SyntheticConfig) { c.Planes = 1 }))
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, keep)
	assert.FileExists(t, filepath.Join(dir, "plane_xy.raw"))
	assert.NoFileExists(t, filepath.Join(dir, "plane_xz.raw"))
}

func TestExportCleanWithGlobCharactersInPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run[1]*?")
	require.NoError(t, os.Mkdir(dir, 0o755))
	stale := filepath.Join(dir, "old_tensor.raw")
	require.NoError(t, os.WriteFile(stale, []byte{1, 2, 3, 4}, 0o600))

	_, err := New(dir, WithClean(true)).Export(syntheticModel(t, nil))
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(dir, manifest.FileName))
}

func TestExportFailureRemovesPreviousManifest(t *testing.T) {
	dir := t.TempDir()
	_, err := New(dir).Export(syntheticModel(t, nil))
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, manifest.FileName))

	// A directory in place of a blob makes the second run fail after it started writing.
	require.NoError(t, os.Remove(filepath.Join(dir, "sh_rest.raw")))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sh_rest.raw"), 0o755))

	_, err = New(dir).Export(syntheticModel(t, func(c *model.SyntheticConfig) { c.Points = 4 }))
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, manifest.FileName))
}

func TestExportParallelMatchesSequential(t *testing.T) {
	m := syntheticModel(t, func(c *model.SyntheticConfig) { c.Points = 257 })

	seqDir, parDir := t.TempDir(), t.TempDir()
	_, err := New(seqDir, WithParallel(parallel.Sequential())).Export(m)
	require.NoError(t, err)
	_, err = New(parDir, WithParallel(parallel.Config{Enabled: true, NumWorkers: 4})).Export(m)
	require.NoError(t, err)

	files := listDir(t, seqDir)
	require.Equal(t, files, listDir(t, parDir))
	for _, f := range files {
		a, err := os.ReadFile(filepath.Join(seqDir, f))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(parDir, f))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(a, b), f)
	}
}

func TestExportStaticScene(t *testing.T) {
	m := syntheticModel(t, nil)
	m.Deformation = nil
	m.Network = nil

	dir := t.TempDir()
	doc, err := New(dir).Export(m)
	require.NoError(t, err)

	assert.Equal(t, [][]float64{}, doc.AABB)
	assert.Zero(t, doc.HexPlane.Len())
	assert.Empty(t, doc.MLP.Trunk)
	assert.Zero(t, doc.MLP.Heads.Len())
	assert.Equal(t, model.NetworkShape{}, doc.Network)

	raw := readManifestJSON(t, dir)
	assert.Equal(t, []any{}, raw["aabb"])
	assert.Equal(t, map[string]any{}, raw["hexplane"])
	assert.Equal(t, map[string]any{}, raw["mlp"])
	assert.Len(t, listDir(t, dir), 7)
}

func TestExportActivationGapsAreCompacted(t *testing.T) {
	m := syntheticModel(t, nil)
	m.Network = nil
	m.Deformation.Trunk = []model.Layer{
		model.Linear(zeros(t, 16, 32), zeros(t, 16)),
		model.Activation(),
		model.Activation(),
		model.Linear(zeros(t, 16, 16), nil),
	}
	m.Deformation.Heads[model.HeadOpacity] = &model.Head{Kind: model.HeadOpacity}
	m.Deformation.Heads[model.HeadSH] = nil

	dir := t.TempDir()
	doc, err := New(dir).Export(m)
	require.NoError(t, err)

	require.Len(t, doc.MLP.Trunk, 2)
	assert.Equal(t, "feature_out_1_weight.raw", doc.MLP.Trunk[1].WeightFile)
	assert.False(t, doc.MLP.Trunk[1].HasBias())
	assert.NoFileExists(t, filepath.Join(dir, "feature_out_1_bias.raw"))
	assert.Equal(t, model.NetworkShape{FeatureDim: 32, MLPWidth: 16, MLPDepth: 2}, doc.Network)

	opacity, ok := doc.MLP.Heads.Get("opacity_deform")
	require.True(t, ok)
	assert.Equal(t, 1, opacity.OutputDim)
	assert.Empty(t, opacity.Layers)
	_, ok = doc.MLP.Heads.Get("shs_deform")
	assert.False(t, ok)

	raw := readManifestJSON(t, dir)
	mlp := raw["mlp"].(map[string]any)
	assert.Equal(t, []any{}, mlp["opacity_deform"].(map[string]any)["layers"])
	assert.NotContains(t, mlp, "shs_deform")
}

func TestExportLayerShapeErrors(t *testing.T) {
	tests := []struct {
		name  string
		layer model.Layer
	}{
		{"rank 1 weight", model.Linear(zeros(t, 16), nil)},
		{"rank 3 weight", model.Linear(zeros(t, 3, 16, 1), nil)},
		{"bias length", model.Linear(zeros(t, 3, 16), zeros(t, 4))},
		{"bias rank", model.Linear(zeros(t, 3, 16), zeros(t, 3, 1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := syntheticModel(t, nil)
			m.Deformation.Heads[model.HeadPosition].Layers = []model.Layer{model.Activation(), tt.layer}

			dir := t.TempDir()
			_, err := New(dir).Export(m)
			assert.ErrorIs(t, err, ErrLayerShape)
			assert.Empty(t, listDir(t, dir))
		})
	}
}

func TestExportNetworkShape(t *testing.T) {
	m := syntheticModel(t, nil)
	m.Network = &model.NetworkShape{FeatureDim: 32, MLPWidth: 0, MLPDepth: 2}
	_, err := New(t.TempDir()).Export(m)
	assert.ErrorIs(t, err, ErrNetworkShape)

	m.Network = &model.NetworkShape{FeatureDim: 64, MLPWidth: 256, MLPDepth: 8}
	doc, err := New(t.TempDir()).Export(m)
	require.NoError(t, err)
	assert.Equal(t, *m.Network, doc.Network)
}

func TestExportCastsPrecision(t *testing.T) {
	m := syntheticModel(t, nil)
	dir := t.TempDir()
	doc, err := New(dir).Export(m)
	require.NoError(t, err)

	// Trunk weights are generated as float64.
	w := m.Deformation.Trunk[0].Weight
	require.Equal(t, tensor.Float64, w.DType())

	got, err := serialization.ReadRaw(filepath.Join(dir, doc.MLP.Trunk[0].WeightFile), doc.MLP.Trunk[0].WeightShape)
	require.NoError(t, err)
	want := w.ToFloat64()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, float32(want[i]), got[i])
	}
}

func TestExportTemporalAABB(t *testing.T) {
	doc, err := New(t.TempDir()).Export(syntheticModel(t, func(c *model.SyntheticConfig) { c.Temporal = true }))
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{-1, -1, -1, 0}, {1, 1, 1, 1}}, doc.AABB)
}

func TestExportNonFiniteAABBWritesNoManifest(t *testing.T) {
	m := syntheticModel(t, nil)
	m.Deformation.Grid.AABB = [][]float64{{-1, math.Inf(-1), -1}, {1, 1, 1}}

	dir := t.TempDir()
	_, err := New(dir).Export(m)
	assert.ErrorIs(t, err, manifest.ErrManifestValue)
	assert.NoFileExists(t, filepath.Join(dir, manifest.FileName))
}

func TestExportNaNValuesAreWrittenAsIs(t *testing.T) {
	m := syntheticModel(t, func(c *model.SyntheticConfig) { c.Points = 1 })
	nan := float32(math.NaN())
	m.Points.Opacities = float32Tensor(t, tensor.Shape{1, 1}, []float32{nan})

	dir := t.TempDir()
	_, err := New(dir).Export(m)
	require.NoError(t, err)

	got, err := serialization.ReadRaw(filepath.Join(dir, "opacities.raw"), []int{1, 1})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(float64(got[0])))
}

func TestExportLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	m := syntheticModel(t, func(c *model.SyntheticConfig) { c.Planes = 3 })
	m.Deformation.Grid.AABB = nil
	_, err := New(t.TempDir(), WithLogger(logger)).Export(m)
	require.NoError(t, err)

	var gaussians, missingAABB, skipped int
	runIDs := map[string]bool{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		runIDs[rec["run_id"].(string)] = true
		switch rec["msg"] {
		case "exported canonical gaussians":
			gaussians++
			assert.EqualValues(t, 10, rec["count"])
		case "grid bounding box missing, writing empty aabb":
			missingAABB++
			assert.Equal(t, "WARN", rec["level"])
		case "feature plane absent, skipping":
			skipped++
		}
	}
	assert.Equal(t, 1, gaussians)
	assert.Equal(t, 1, missingAABB)
	assert.Equal(t, 3, skipped)
	assert.Len(t, runIDs, 1)
}

func TestExportNilModel(t *testing.T) {
	_, err := New(t.TempDir()).Export(nil)
	assert.Error(t, err)
}
