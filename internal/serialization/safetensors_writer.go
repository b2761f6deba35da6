package serialization

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/born-ml/splatexport/internal/tensor"
)

// safeTensorsMetadataKey is reserved in the header for string metadata.
const safeTensorsMetadataKey = "__metadata__"

type safeTensorsEntry struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// WriteSafeTensors writes tensors and string metadata as one SafeTensors file.
//
// Layout:
// [8 bytes: header_size (uint64 LE)]
// [header_size bytes: JSON header, space padded to a multiple of 8]
// [tensor data: raw bytes in key order]
//
// Tensors keep their source dtype. The file is written next to path and
// renamed into place, so an interrupted save never leaves a truncated
// checkpoint behind.
func WriteSafeTensors(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	keys := slices.Sorted(maps.Keys(tensors))

	header, err := safeTensorsHeader(keys, tensors, metadata)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName) // Best effort, the original error wins
		return err
	}

	w := bufio.NewWriter(tmp)
	if err := binary.Write(w, binary.LittleEndian, uint64(len(header))); err != nil {
		return fail(fmt.Errorf("failed to write header size: %w", err))
	}
	if _, err := w.Write(header); err != nil {
		return fail(fmt.Errorf("failed to write header: %w", err))
	}
	for _, k := range keys {
		if _, err := w.Write(tensors[k].Data()); err != nil {
			return fail(fmt.Errorf("failed to write tensor %s: %w", k, err))
		}
	}
	if err := w.Flush(); err != nil {
		return fail(fmt.Errorf("failed to write checkpoint: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return fail(fmt.Errorf("failed to close checkpoint: %w", err))
	}
	//nolint:gosec // G302: Checkpoints are shared between tools
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fail(fmt.Errorf("failed to set checkpoint permissions: %w", err))
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fail(fmt.Errorf("failed to move checkpoint into place: %w", err))
	}
	return nil
}

// safeTensorsHeader lays out tensors back to back in key order and encodes the
// header JSON.
func safeTensorsHeader(keys []string, tensors map[string]*tensor.RawTensor, metadata map[string]string) ([]byte, error) {
	header := make(map[string]any, len(keys)+1)
	if len(metadata) > 0 {
		header[safeTensorsMetadataKey] = metadata
	}

	var offset int64
	for _, k := range keys {
		t := tensors[k]
		switch {
		case k == "" || k == safeTensorsMetadataKey:
			return nil, &ValidationError{Type: "invalid_name", Tensor: k, Details: "reserved or empty checkpoint key", err: ErrInvalidName}
		case t == nil:
			return nil, fmt.Errorf("tensor %s is nil", k)
		}
		dtype, err := safeTensorsDTypeName(t.DType())
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", k, err)
		}
		size := int64(t.ByteSize())
		header[k] = safeTensorsEntry{
			DType:       dtype,
			Shape:       append([]int{}, t.Shape()...),
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	data, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal header: %w", err)
	}
	if pad := (8 - len(data)%8) % 8; pad > 0 {
		data = append(data, bytes.Repeat([]byte{' '}, pad)...)
	}
	return data, nil
}

func safeTensorsDTypeName(dt tensor.DataType) (string, error) {
	switch dt {
	case tensor.Float32:
		return "F32", nil
	case tensor.Float64:
		return "F64", nil
	case tensor.Float16:
		return "F16", nil
	case tensor.BFloat16:
		return "BF16", nil
	case tensor.Int32:
		return "I32", nil
	case tensor.Int64:
		return "I64", nil
	case tensor.Uint8:
		return "U8", nil
	case tensor.Bool:
		return "BOOL", nil
	default:
		return "", fmt.Errorf("unsupported dtype %s", dt)
	}
}
