package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/splatexport/internal/bundle"
	"github.com/born-ml/splatexport/internal/config"
	"github.com/born-ml/splatexport/internal/export"
	"github.com/born-ml/splatexport/internal/model"
)

func TestExportFlagsOverrideEnvironment(t *testing.T) {
	env := config.Config{Out: "out", Network: "env.yaml", Workers: 2, LogLevel: "info", LogFormat: "text"}

	got := (&exportConfig{}).merge(env)
	assert.Equal(t, env, got)

	got = (&exportConfig{Out: "bundle", Workers: 8, Clean: true}).merge(env)
	assert.Equal(t, "bundle", got.Out)
	assert.Equal(t, "env.yaml", got.Network)
	assert.Equal(t, 8, got.Workers)
	assert.True(t, got.Clean)
}

func TestInspectReport(t *testing.T) {
	cfg := model.DefaultSyntheticConfig()
	cfg.Planes = 3
	m, err := model.Synthetic(cfg)
	require.NoError(t, err)

	dir := t.TempDir()
	_, err = export.New(dir).Export(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plane_zt.raw"), make([]byte, 4), 0o600))

	r, err := bundle.Verify(dir)
	require.NoError(t, err)

	var buf bytes.Buffer
	newPalette(false).print(&buf, r, true)
	out := buf.String()

	assert.Contains(t, out, "gaussians: 10")
	assert.Contains(t, out, "planes: plane_xy plane_xz plane_yz (static)")
	assert.Contains(t, out, "shs_deform: 2 layers, output_dim 48")
	assert.Contains(t, out, "stale: unreferenced file plane_zt.raw")
	assert.Contains(t, out, "valid: 33 files")
	assert.NotContains(t, out, "\x1b[", "colour disabled")
}

func TestInspectTemporalPlanes(t *testing.T) {
	m, err := model.Synthetic(model.DefaultSyntheticConfig())
	require.NoError(t, err)
	dir := t.TempDir()
	_, err = export.New(dir).Export(m)
	require.NoError(t, err)

	r, err := bundle.Verify(dir)
	require.NoError(t, err)

	var buf bytes.Buffer
	newPalette(false).print(&buf, r, false)
	assert.Contains(t, buf.String(), "plane_zt (3 temporal)")
}

func TestInspectNetworkRoundTripsThroughExportFlag(t *testing.T) {
	m, err := model.Synthetic(model.DefaultSyntheticConfig())
	require.NoError(t, err)
	dir := t.TempDir()
	_, err = export.New(dir).Export(m)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeNetwork(&buf, dir))

	shape, err := config.ParseNetworkShape(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, *m.Network, shape)

	assert.Error(t, writeNetwork(&buf, t.TempDir()))
}

func TestInspectColor(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, (&inspectConfig{}).useColor(&buf))
	assert.True(t, (&inspectConfig{Color: true}).useColor(&buf))
	assert.False(t, (&inspectConfig{NoColor: true}).useColor(os.Stdout))

	newPalette(true).bad.Fprint(&buf, "x")
	assert.Contains(t, buf.String(), "\x1b[")
}
