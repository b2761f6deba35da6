package serialization

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/born-ml/splatexport/internal/tensor"
)

// ReadRaw reads a float32 tensor file written by RawWriter.
//
// The file length must equal product(shape) * 4 bytes; anything else means the
// file and its descriptor disagree (for example a stale file from an earlier
// export with a different shape).
func ReadRaw(path string, shape []int) ([]float32, error) {
	//nolint:gosec // G304: Bundle paths come from user input by design
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	want := tensor.Shape(shape).NumElements() * ElementSize
	if len(data) != want {
		return nil, &ValidationError{
			Type:    "size_mismatch",
			Tensor:  path,
			Details: fmt.Sprintf("got %d bytes, shape %v needs %d", len(data), shape, want),
			err:     ErrSizeMismatch,
		}
	}

	return DecodeFloat32(data), nil
}

// DecodeFloat32 decodes little-endian IEEE754 float32 bytes.
// Trailing bytes that do not form a whole element are ignored.
func DecodeFloat32(data []byte) []float32 {
	out := make([]float32, len(data)/ElementSize)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*ElementSize:]))
	}
	return out
}
