// Package loader reads trained scene checkpoints.
//
// This package wraps the internal loader and exports a small public API for
// reading SafeTensors checkpoints into a splat.Model.
//
// Example usage:
//
//	import (
//	    "github.com/born-ml/splatexport/loader"
//	    "github.com/born-ml/splatexport/splat"
//	)
//
//	m, err := loader.Load([]string{"point_cloud.safetensors"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := splat.Export(m, "out"); err != nil {
//	    log.Fatal(err)
//	}
package loader

import (
	"log/slog"

	"github.com/born-ml/splatexport/internal/loader"
	"github.com/born-ml/splatexport/internal/model"
)

// Checkpoint is a merged view over one or more SafeTensors files.
type Checkpoint = loader.Checkpoint

// SafeTensorsReader reads a single SafeTensors file.
type SafeTensorsReader = loader.SafeTensorsReader

// TensorSource is a named tensor table with string metadata.
type TensorSource = loader.TensorSource

// Option configures Load.
type Option = loader.Option

// WithLogger sets the logger used while mapping checkpoint keys.
func WithLogger(l *slog.Logger) Option {
	return loader.WithLogger(l)
}

// Load opens the checkpoint files and builds a model from them.
func Load(paths []string, opts ...Option) (*model.Model, error) {
	return loader.Load(paths, opts...)
}

// Build maps an already opened tensor table onto a model.
func Build(src TensorSource, opts ...Option) (*model.Model, error) {
	return loader.Build(src, opts...)
}

// OpenCheckpoint opens and merges SafeTensors files.
func OpenCheckpoint(paths ...string) (*Checkpoint, error) {
	return loader.OpenCheckpoint(paths...)
}

// NewSafeTensorsReader opens a single SafeTensors file.
func NewSafeTensorsReader(path string) (*SafeTensorsReader, error) {
	return loader.NewSafeTensorsReader(path)
}

// Save writes a model as a SafeTensors checkpoint readable by Load.
func Save(path string, m *model.Model) error {
	return loader.Save(path, m)
}
