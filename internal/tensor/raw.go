package tensor

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
	"gonum.org/v1/gonum/mat"
)

// RawTensor is the low-level tensor representation.
//
// Data is stored little-endian in row-major (C) order. A RawTensor is treated as
// an immutable snapshot: exporters only read from it.
type RawTensor struct {
	data  []byte   // Little-endian element bytes
	shape Shape    // Tensor dimensions
	dtype DataType // Runtime type information
}

// NewRaw creates a new RawTensor with the given shape and type.
// Memory is allocated and zero-initialized.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		data:  make([]byte, shape.NumElements()*dtype.Size()),
		shape: shape.Clone(),
		dtype: dtype,
	}, nil
}

// FromBytes wraps little-endian element bytes as a RawTensor.
// The byte slice is copied; its length must match shape and dtype exactly.
func FromBytes(shape Shape, dtype DataType, data []byte) (*RawTensor, error) {
	raw, err := NewRaw(shape, dtype)
	if err != nil {
		return nil, err
	}
	if len(data) != len(raw.data) {
		return nil, fmt.Errorf("shape %v of %s requires %d bytes, got %d", shape, dtype, len(raw.data), len(data))
	}
	copy(raw.data, data)
	return raw, nil
}

// FromFloat32 creates a float32 tensor from a Go slice.
func FromFloat32(shape Shape, values []float32) (*RawTensor, error) {
	raw, err := newChecked(shape, Float32, len(values))
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw.data[i*4:], math.Float32bits(v))
	}
	return raw, nil
}

// FromFloat64 creates a float64 tensor from a Go slice.
func FromFloat64(shape Shape, values []float64) (*RawTensor, error) {
	raw, err := newChecked(shape, Float64, len(values))
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw.data[i*8:], math.Float64bits(v))
	}
	return raw, nil
}

// FromFloat16 creates a half precision tensor from a Go slice.
func FromFloat16(shape Shape, values []float16.Float16) (*RawTensor, error) {
	raw, err := newChecked(shape, Float16, len(values))
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		binary.LittleEndian.PutUint16(raw.data[i*2:], v.Bits())
	}
	return raw, nil
}

// FromDense creates a rank-2 float64 tensor from a gonum matrix.
func FromDense(m mat.Matrix) *RawTensor {
	r, c := m.Dims()
	raw := &RawTensor{
		data:  make([]byte, r*c*8),
		shape: Shape{r, c},
		dtype: Float64,
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			binary.LittleEndian.PutUint64(raw.data[(i*c+j)*8:], math.Float64bits(m.At(i, j)))
		}
	}
	return raw
}

func newChecked(shape Shape, dtype DataType, n int) (*RawTensor, error) {
	if shape.NumElements() != n {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), n)
	}
	return NewRaw(shape, dtype)
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// Dim returns the size of dimension i, or 0 when the tensor has fewer dimensions.
func (r *RawTensor) Dim(i int) int {
	if i < 0 || i >= len(r.shape) {
		return 0
	}
	return r.shape[i]
}

// Data returns the raw little-endian byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.data
}

// ToFloat32 casts every element to float32 in row-major order.
//
// The conversion is numeric, never a reinterpretation of the source bits:
// float64 values are rounded to the nearest float32, half precision values are
// widened exactly, integers are converted by value and bools become 0 or 1.
func (r *RawTensor) ToFloat32() []float32 {
	n := r.NumElements()
	out := make([]float32, n)
	d := r.data

	switch r.dtype {
	case Float32:
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(d[i*4:]))
		}
	case Float64:
		for i := range out {
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(d[i*8:])))
		}
	case Float16:
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(d[i*2:])).Float32()
		}
	case BFloat16:
		// bfloat16 is the upper half of an IEEE754 float32.
		for i := range out {
			out[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(d[i*2:])) << 16)
		}
	case Int32:
		for i := range out {
			out[i] = float32(int32(binary.LittleEndian.Uint32(d[i*4:]))) //nolint:gosec // G115: two's complement reinterpretation is intended.
		}
	case Int64:
		for i := range out {
			out[i] = float32(int64(binary.LittleEndian.Uint64(d[i*8:]))) //nolint:gosec // G115: two's complement reinterpretation is intended.
		}
	case Uint8:
		for i := range out {
			out[i] = float32(d[i])
		}
	case Bool:
		for i := range out {
			if d[i] != 0 {
				out[i] = 1
			}
		}
	default:
		panic(fmt.Sprintf("unsupported data type %s", r.dtype))
	}

	return out
}

// ToFloat64 casts every element to float64 in row-major order.
func (r *RawTensor) ToFloat64() []float64 {
	if r.dtype == Float64 {
		out := make([]float64, r.NumElements())
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(r.data[i*8:]))
		}
		return out
	}
	f32 := r.ToFloat32()
	out := make([]float64, len(f32))
	for i, v := range f32 {
		out[i] = float64(v)
	}
	return out
}
