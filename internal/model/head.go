package model

import "fmt"

// HeadKind identifies one of the five decoder heads.
type HeadKind int

// Decoder heads in their fixed export order.
const (
	HeadPosition HeadKind = iota
	HeadScale
	HeadRotation
	HeadOpacity
	HeadSH
)

// NumHeads is the number of decoder heads.
const NumHeads = 5

var headInfo = [NumHeads]struct {
	name      string
	outputDim int
}{
	{"pos_deform", 3},
	{"scales_deform", 3},
	{"rotations_deform", 4},
	{"opacity_deform", 1},
	{"shs_deform", 48},
}

// HeadKinds returns the decoder heads in export order.
func HeadKinds() []HeadKind {
	return []HeadKind{HeadPosition, HeadScale, HeadRotation, HeadOpacity, HeadSH}
}

// Name returns the wire name used for manifest keys and file names.
func (k HeadKind) Name() string {
	if k < 0 || int(k) >= NumHeads {
		return "unknown"
	}
	return headInfo[k].name
}

// OutputDim returns the fixed output dimensionality of the head.
// It does not depend on the head's layers.
func (k HeadKind) OutputDim() int {
	if k < 0 || int(k) >= NumHeads {
		return 0
	}
	return headInfo[k].outputDim
}

// String implements fmt.Stringer.
func (k HeadKind) String() string {
	return k.Name()
}

// ParseHeadKind resolves a wire name to a HeadKind.
func ParseHeadKind(s string) (HeadKind, error) {
	for _, k := range HeadKinds() {
		if k.Name() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown decoder head %q", s)
}
