package model

import "fmt"

// Plane identifies one axis pair of the multi-plane feature grid.
type Plane int

// Planes in vocabulary order. The first three couple spatial axes only, the
// last three couple a spatial axis with time.
const (
	PlaneXY Plane = iota
	PlaneXZ
	PlaneYZ
	PlaneXT
	PlaneYT
	PlaneZT
)

// NumPlanes is the size of the plane vocabulary.
const NumPlanes = 6

var planeAxes = [NumPlanes]string{"xy", "xz", "yz", "xt", "yt", "zt"}

// Planes returns the plane vocabulary in order.
func Planes() []Plane {
	return []Plane{PlaneXY, PlaneXZ, PlaneYZ, PlaneXT, PlaneYT, PlaneZT}
}

// Axes returns the short axis-pair label ("xy", "xt", ...).
func (p Plane) Axes() string {
	if p < 0 || int(p) >= NumPlanes {
		return "unknown"
	}
	return planeAxes[p]
}

// Name returns the wire name used for manifest keys and file names.
func (p Plane) Name() string {
	return "plane_" + p.Axes()
}

// String implements fmt.Stringer.
func (p Plane) String() string {
	return p.Name()
}

// IsTemporal reports whether the plane couples a spatial axis with time.
func (p Plane) IsTemporal() bool {
	return p >= PlaneXT && p <= PlaneZT
}

// ParsePlane resolves a wire name or axis label to a Plane.
func ParsePlane(s string) (Plane, error) {
	for _, p := range Planes() {
		if s == p.Name() || s == p.Axes() {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown plane %q", s)
}
