package serialization

import "github.com/born-ml/splatexport/internal/tensor"

// Format constants.
const (
	RawExt       = ".raw"    // Extension of every tensor file in a bundle
	DTypeFloat32 = "float32" // The only dtype written to bundles
	ElementSize  = 4         // Bytes per stored element
)

// Descriptor describes one exported tensor file.
type Descriptor struct {
	Shape []int  `json:"shape"` // Tensor shape, row-major
	DType string `json:"dtype"` // Always "float32"
	File  string `json:"file"`  // File name relative to the bundle directory
}

// ByteSize returns the expected file length in bytes.
func (d Descriptor) ByteSize() int64 {
	return int64(tensor.Shape(d.Shape).NumElements()) * ElementSize
}

// FileName returns the deterministic file name for a logical tensor name.
func FileName(name string) string {
	return name + RawExt
}

// shapeOf copies a tensor shape into a plain slice, never nil so that JSON
// encodes scalars as [].
func shapeOf(s tensor.Shape) []int {
	out := make([]int, len(s))
	copy(out, s)
	return out
}
