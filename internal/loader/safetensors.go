package loader

import (
	"cmp"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/born-ml/splatexport/internal/tensor"
)

// SafeTensors layout:
// [8 bytes: header_size (uint64 LE)]
// [header_size bytes: JSON header]
// [tensor data: raw bytes, offsets relative to the end of the header]

const (
	metadataKey   = "__metadata__"
	maxHeaderSize = 100 * 1024 * 1024
)

// ErrCorruptCheckpoint marks a SafeTensors header that does not describe its own
// data section.
var ErrCorruptCheckpoint = errors.New("corrupt checkpoint")

// TensorError reports a failure for one checkpoint key.
type TensorError struct {
	File string
	Key  string
	Err  error
}

// Error implements the error interface.
func (e *TensorError) Error() string {
	return fmt.Sprintf("%s: tensor %q: %v", e.File, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *TensorError) Unwrap() error {
	return e.Err
}

// safeTensorsDTypes maps header dtype strings onto tensor dtypes.
var safeTensorsDTypes = map[string]tensor.DataType{
	"F16":  tensor.Float16,
	"BF16": tensor.BFloat16,
	"F32":  tensor.Float32,
	"F64":  tensor.Float64,
	"I32":  tensor.Int32,
	"I64":  tensor.Int64,
	"U8":   tensor.Uint8,
	"BOOL": tensor.Bool,
}

type headerEntry struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// entry is a header record checked against the data section. err is set for
// dtypes this package cannot decode; such tensors fail only when loaded.
type entry struct {
	key        string
	dtype      tensor.DataType
	shape      tensor.Shape
	start, end int64
	err        error
}

// SafeTensorsReader reads tensors from one SafeTensors file.
//
// The header is validated when the file is opened: every extent must match its
// shape and dtype, lie inside the file and not overlap another tensor.
type SafeTensorsReader struct {
	path     string
	file     *os.File
	base     int64 // Start of the data section
	entries  map[string]entry
	metadata map[string]string
}

// NewSafeTensorsReader opens path and validates its header.
func NewSafeTensorsReader(path string) (*SafeTensorsReader, error) {
	//nolint:gosec // G304: Checkpoint paths come from user input by design
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	r := &SafeTensorsReader{path: path, file: file}
	if err := r.readHeader(); err != nil {
		_ = file.Close() // Best effort, the header error wins
		return nil, err
	}
	return r, nil
}

func (r *SafeTensorsReader) readHeader() error {
	stat, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat checkpoint: %w", err)
	}
	fileSize := stat.Size()

	var headerSize uint64
	if err := binary.Read(r.file, binary.LittleEndian, &headerSize); err != nil {
		return fmt.Errorf("%w: %s: failed to read header size: %w", ErrCorruptCheckpoint, r.path, err)
	}
	if headerSize > maxHeaderSize || int64(headerSize) > fileSize-8 { //nolint:gosec // G115: Bounded by maxHeaderSize
		return fmt.Errorf("%w: %s: header size %d exceeds file size %d", ErrCorruptCheckpoint, r.path, headerSize, fileSize)
	}

	data := make([]byte, headerSize)
	if _, err := io.ReadFull(r.file, data); err != nil {
		return fmt.Errorf("%w: %s: failed to read header: %w", ErrCorruptCheckpoint, r.path, err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %s: failed to parse header: %w", ErrCorruptCheckpoint, r.path, err)
	}

	r.base = 8 + int64(headerSize) //nolint:gosec // G115: Bounded by maxHeaderSize
	r.entries = make(map[string]entry, len(raw))
	if meta, ok := raw[metadataKey]; ok {
		if err := json.Unmarshal(meta, &r.metadata); err != nil {
			return fmt.Errorf("%w: %s: failed to parse metadata: %w", ErrCorruptCheckpoint, r.path, err)
		}
	}

	dataSize := fileSize - r.base
	for key, msg := range raw {
		if key == metadataKey {
			continue
		}
		e, err := parseEntry(key, msg, dataSize)
		if err != nil {
			return &TensorError{File: r.path, Key: key, Err: err}
		}
		r.entries[key] = e
	}
	return r.checkOverlap()
}

func parseEntry(key string, msg json.RawMessage, dataSize int64) (entry, error) {
	var h headerEntry
	if err := json.Unmarshal(msg, &h); err != nil {
		return entry{}, fmt.Errorf("%w: %w", ErrCorruptCheckpoint, err)
	}

	e := entry{key: key, shape: tensor.Shape(h.Shape), start: h.DataOffsets[0], end: h.DataOffsets[1]}
	if err := e.shape.Validate(); err != nil {
		return entry{}, fmt.Errorf("%w: %w", ErrCorruptCheckpoint, err)
	}
	if e.start < 0 || e.end < e.start {
		return entry{}, fmt.Errorf("%w: data offsets [%d, %d] are out of order", ErrCorruptCheckpoint, e.start, e.end)
	}
	if e.end > dataSize {
		return entry{}, fmt.Errorf("%w: data offsets [%d, %d] exceed data section of %d bytes",
			ErrCorruptCheckpoint, e.start, e.end, dataSize)
	}

	dtype, ok := safeTensorsDTypes[h.DType]
	if !ok {
		e.err = fmt.Errorf("unsupported dtype %s", h.DType)
		return e, nil
	}
	e.dtype = dtype
	if want := int64(e.shape.NumElements() * dtype.Size()); e.end-e.start != want {
		return entry{}, fmt.Errorf("%w: extent of %d bytes, shape %v as %s needs %d",
			ErrCorruptCheckpoint, e.end-e.start, e.shape, h.DType, want)
	}
	return e, nil
}

// checkOverlap rejects tensors whose extents share bytes. Zero-length tensors
// occupy no bytes and never overlap.
func (r *SafeTensorsReader) checkOverlap() error {
	byStart := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.end > e.start {
			byStart = append(byStart, e)
		}
	}
	slices.SortFunc(byStart, func(a, b entry) int {
		return cmp.Or(cmp.Compare(a.start, b.start), strings.Compare(a.key, b.key))
	})
	for i := 1; i < len(byStart); i++ {
		prev, cur := byStart[i-1], byStart[i]
		if cur.start < prev.end {
			return &TensorError{File: r.path, Key: cur.key, Err: fmt.Errorf(
				"%w: data offsets [%d, %d] overlap %s [%d, %d]",
				ErrCorruptCheckpoint, cur.start, cur.end, prev.key, prev.start, prev.end)}
		}
	}
	return nil
}

// Close closes the file.
func (r *SafeTensorsReader) Close() error {
	return r.file.Close()
}

// Metadata returns the string metadata stored under __metadata__.
func (r *SafeTensorsReader) Metadata() map[string]string {
	return r.metadata
}

// TensorNames returns the names of all tensors in the file, sorted.
func (r *SafeTensorsReader) TensorNames() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LoadTensor reads a tensor in its source dtype. Half precision tensors are
// kept as-is and widened when they are written.
func (r *SafeTensorsReader) LoadTensor(name string) (*tensor.RawTensor, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, &TensorError{File: r.path, Key: name, Err: errors.New("not found")}
	}
	if e.err != nil {
		return nil, &TensorError{File: r.path, Key: name, Err: e.err}
	}

	data := make([]byte, e.end-e.start)
	if _, err := r.file.ReadAt(data, r.base+e.start); err != nil {
		return nil, &TensorError{File: r.path, Key: name, Err: fmt.Errorf("failed to read data: %w", err)}
	}
	t, err := tensor.FromBytes(e.shape, e.dtype, data)
	if err != nil {
		return nil, &TensorError{File: r.path, Key: name, Err: err}
	}
	return t, nil
}
