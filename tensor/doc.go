// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense tensor container used to hand scene data to
// the exporter.
//
// # Overview
//
// A RawTensor is a row-major little-endian byte buffer with a shape and a data
// type. Any supported data type may be stored; bundles always receive float32
// values, cast numerically on write.
//
// # Basic Usage
//
//	positions, err := tensor.FromFloat32(tensor.Shape{n, 3}, xyz)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Weights coming from gonum keep float64 precision until export.
//	w := tensor.FromDense(mat.NewDense(256, 64, weights))
//
// # Supported Data Types
//
//   - float32, float64 (floating-point)
//   - float16, bfloat16 (half precision, widened exactly)
//   - int32, int64, uint8 (integers, converted by value)
//   - bool (0 or 1)
package tensor
