// Package bundle checks an exported asset bundle against its manifest.
package bundle

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/born-ml/splatexport/internal/manifest"
	"github.com/born-ml/splatexport/internal/model"
	"github.com/born-ml/splatexport/internal/serialization"
)

// ErrUnknownPlane marks a hexplane key outside the plane vocabulary.
var ErrUnknownPlane = errors.New("unknown plane")

// FileStatus is the verification result of one manifest tensor.
type FileStatus struct {
	Key       string // Dotted manifest path
	File      string
	Shape     []int
	WantBytes int64
	GotBytes  int64  // -1 when the file is missing
	NonFinite int    // NaN or Inf elements, only counted when the size matches
	SHA256    string // Hex checksum of the file, set when the size matches
	Err       error
}

// OK reports whether the file exists and matches its shape.
func (s FileStatus) OK() bool {
	return s.Err == nil
}

// Report summarizes a bundle.
type Report struct {
	Dir      string
	Manifest *manifest.Manifest
	Files    []FileStatus
	Planes   []model.Plane // Recognized hexplane keys in document order
	Orphans  []string      // .raw files not referenced by the manifest, sorted
	Invalid  []error       // Manifest-level problems, such as unknown plane keys
}

// OK reports whether every referenced file exists with the expected size and
// every hexplane key is a known plane. Orphans and non-finite values do not
// make a bundle invalid.
func (r *Report) OK() bool {
	if len(r.Invalid) > 0 {
		return false
	}
	for _, f := range r.Files {
		if !f.OK() {
			return false
		}
	}
	return true
}

// Problems returns the manifest-level problems followed by the errors of all
// failing files.
func (r *Report) Problems() []error {
	errs := append([]error(nil), r.Invalid...)
	for _, f := range r.Files {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// TemporalPlanes returns the recognized planes that couple an axis with time.
func (r *Report) TemporalPlanes() []model.Plane {
	var out []model.Plane
	for _, p := range r.Planes {
		if p.IsTemporal() {
			out = append(out, p)
		}
	}
	return out
}

// Err joins all file problems, or returns nil for a valid bundle.
func (r *Report) Err() error {
	return errors.Join(r.Problems()...)
}

// NonFinite returns the total count of NaN and Inf elements.
func (r *Report) NonFinite() int {
	n := 0
	for _, f := range r.Files {
		n += f.NonFinite
	}
	return n
}

// TotalBytes returns the summed size of all present files.
func (r *Report) TotalBytes() int64 {
	var n int64
	for _, f := range r.Files {
		if f.GotBytes > 0 {
			n += f.GotBytes
		}
	}
	return n
}

// Verify reads the manifest in dir and checks every referenced file.
//
// The returned error is only about the manifest itself; per-file problems are
// recorded in the report.
func Verify(dir string) (*Report, error) {
	m, err := manifest.Open(dir)
	if err != nil {
		return nil, err
	}

	r := &Report{Dir: dir, Manifest: m}
	for _, key := range m.HexPlane.Keys() {
		p, err := model.ParsePlane(key)
		if err != nil || p.Name() != key {
			r.Invalid = append(r.Invalid, fmt.Errorf("hexplane.%s: %w", key, ErrUnknownPlane))
			continue
		}
		r.Planes = append(r.Planes, p)
	}
	referenced := make(map[string]bool)
	for _, ref := range m.Tensors() {
		referenced[ref.File] = true
		r.Files = append(r.Files, checkFile(dir, ref))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundle: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), serialization.RawExt) {
			continue
		}
		if !referenced[e.Name()] {
			r.Orphans = append(r.Orphans, e.Name())
		}
	}
	sort.Strings(r.Orphans)
	return r, nil
}

func checkFile(dir string, ref manifest.TensorRef) FileStatus {
	d := serialization.Descriptor{Shape: ref.Shape, DType: serialization.DTypeFloat32, File: ref.File}
	s := FileStatus{
		Key:       ref.Key,
		File:      ref.File,
		Shape:     ref.Shape,
		WantBytes: d.ByteSize(),
		GotBytes:  -1,
	}

	name, ok := strings.CutSuffix(ref.File, serialization.RawExt)
	if !ok {
		s.Err = fmt.Errorf("%s: %w: %q lacks the %s extension", ref.Key, serialization.ErrInvalidName, ref.File, serialization.RawExt)
		return s
	}
	if err := serialization.ValidateTensorName(name); err != nil {
		s.Err = fmt.Errorf("%s: %w", ref.Key, err)
		return s
	}

	//nolint:gosec // G304: Bundle paths come from user input by design
	data, err := os.ReadFile(filepath.Join(dir, ref.File))
	if err != nil {
		s.Err = fmt.Errorf("%s: %w", ref.Key, err)
		return s
	}
	s.GotBytes = int64(len(data))
	if s.GotBytes != s.WantBytes {
		s.Err = fmt.Errorf("%s: %w: %s has %d bytes, shape %v needs %d",
			ref.Key, serialization.ErrSizeMismatch, ref.File, s.GotBytes, ref.Shape, s.WantBytes)
		return s
	}

	s.SHA256 = serialization.ChecksumHex(data)
	for _, v := range serialization.DecodeFloat32(data) {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			s.NonFinite++
		}
	}
	return s
}

// LoadFloat32 reads one bundle file, checking its length against shape.
func LoadFloat32(dir, file string, shape []int) ([]float32, error) {
	return serialization.ReadRaw(filepath.Join(dir, file), shape)
}
