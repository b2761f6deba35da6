// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/x448/float16"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/splatexport/internal/tensor"
)

// RawTensor is a shaped, typed byte buffer.
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32)
//	values := raw.ToFloat32()
type RawTensor = tensor.RawTensor

// Shape is a tensor shape, outermost dimension first.
type Shape = tensor.Shape

// DataType identifies the element type of a RawTensor.
type DataType = tensor.DataType

// Supported data types.
const (
	Float32  = tensor.Float32
	Float64  = tensor.Float64
	Float16  = tensor.Float16
	BFloat16 = tensor.BFloat16
	Int32    = tensor.Int32
	Int64    = tensor.Int64
	Uint8    = tensor.Uint8
	Bool     = tensor.Bool
)

// NewRaw allocates a zero-filled tensor.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype)
}

// FromBytes copies little-endian element bytes into a tensor.
func FromBytes(shape Shape, dtype DataType, data []byte) (*RawTensor, error) {
	return tensor.FromBytes(shape, dtype, data)
}

// FromFloat32 creates a float32 tensor.
func FromFloat32(shape Shape, values []float32) (*RawTensor, error) {
	return tensor.FromFloat32(shape, values)
}

// FromFloat64 creates a float64 tensor.
func FromFloat64(shape Shape, values []float64) (*RawTensor, error) {
	return tensor.FromFloat64(shape, values)
}

// FromFloat16 creates a half precision tensor.
func FromFloat16(shape Shape, values []float16.Float16) (*RawTensor, error) {
	return tensor.FromFloat16(shape, values)
}

// FromDense copies a gonum matrix into a float64 tensor of shape (rows, cols).
func FromDense(m mat.Matrix) *RawTensor {
	return tensor.FromDense(m)
}

// ParseDataType parses a data type name such as "float32".
func ParseDataType(s string) (DataType, error) {
	return tensor.ParseDataType(s)
}
