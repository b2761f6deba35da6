package serialization

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/born-ml/splatexport/internal/parallel"
	"github.com/born-ml/splatexport/internal/tensor"
)

// RawWriter writes tensors as headerless float32 files into one directory.
//
// Writes are independent of each other; WriteAll may run them concurrently
// without changing the produced bytes.
type RawWriter struct {
	dir      string
	parallel parallel.Config
}

// WriterOption configures a RawWriter.
type WriterOption func(*RawWriter)

// WithParallel sets the worker configuration used by WriteAll.
func WithParallel(cfg parallel.Config) WriterOption {
	return func(w *RawWriter) {
		w.parallel = cfg
	}
}

// Job is one named tensor to be written by WriteAll.
type Job struct {
	Name   string
	Tensor *tensor.RawTensor
}

// NewRawWriter creates a writer for an existing directory.
func NewRawWriter(dir string, opts ...WriterOption) (*RawWriter, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat output directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("output path %s is not a directory", dir)
	}

	w := &RawWriter{
		dir:      dir,
		parallel: parallel.Sequential(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Dir returns the output directory.
func (w *RawWriter) Dir() string {
	return w.dir
}

// Write casts t to float32 and writes it to <dir>/<name>.raw, replacing any
// existing file.
func (w *RawWriter) Write(name string, t *tensor.RawTensor) (Descriptor, error) {
	if err := ValidateTensorName(name); err != nil {
		return Descriptor{}, err
	}
	if t == nil {
		return Descriptor{}, fmt.Errorf("tensor %s is nil", name)
	}

	file := FileName(name)
	data := EncodeFloat32(t.ToFloat32())

	//nolint:gosec // G306: Bundle files are meant to be world-readable assets
	if err := os.WriteFile(filepath.Join(w.dir, file), data, 0o644); err != nil {
		return Descriptor{}, fmt.Errorf("failed to write %s: %w", file, err)
	}

	return Descriptor{
		Shape: shapeOf(t.Shape()),
		DType: DTypeFloat32,
		File:  file,
	}, nil
}

// WriteAll writes every job and returns descriptors in job order.
// The first failing write aborts the batch.
func (w *RawWriter) WriteAll(jobs []Job) ([]Descriptor, error) {
	descs := make([]Descriptor, len(jobs))
	err := parallel.Run(len(jobs), func(i int) error {
		d, err := w.Write(jobs[i].Name, jobs[i].Tensor)
		if err != nil {
			return err
		}
		descs[i] = d
		return nil
	}, w.parallel)
	if err != nil {
		return nil, err
	}
	return descs, nil
}

// EncodeFloat32 encodes values as little-endian IEEE754 float32 bytes.
func EncodeFloat32(values []float32) []byte {
	out := make([]byte, len(values)*ElementSize)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*ElementSize:], math.Float32bits(v))
	}
	return out
}
