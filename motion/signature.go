// Package motion holds the data model and the computational kernels of the
// real-time motion engine: trajectory discretization into sub-movements,
// pulse signatures and the kinematic constraints that time them.
package motion

import "math/bits"

// NAxes is the number of actuated axes handled by the engine
const NAxes = 4

// Signature is a per-axis bitmask, bit n for axis n. It is used both as a
// direction mask (set = negative direction) and as a pulse mask (set = the
// axis steps on this elementary tick).
type Signature uint32

// AllAxes has one bit per configured axis
const AllAxes Signature = 1<<NAxes - 1

// Has reports whether the axis bit is set
func (s Signature) Has(axis int) bool {
	return s&(1<<uint(axis)) != 0
}

// With returns s with the axis bit set
func (s Signature) With(axis int) Signature {
	return s | 1<<uint(axis)
}

// Count returns the number of set axes
func (s Signature) Count() int {
	return bits.OnesCount32(uint32(s))
}

// Distances holds signed per-axis step distances
type Distances [NAxes]int32

// MaxAbs returns the largest absolute distance and its axis
func (d *Distances) MaxAbs() (int32, int) {
	var max int32
	axis := 0
	for i, v := range d {
		if v < 0 {
			v = -v
		}
		if v > max {
			max = v
			axis = i
		}
	}
	return max, axis
}

// IsZero reports whether no axis moves
func (d *Distances) IsZero() bool {
	for _, v := range d {
		if v != 0 {
			return false
		}
	}
	return true
}

// Direction returns the direction signature of d
func (d *Distances) Direction() Signature {
	var s Signature
	for i, v := range d {
		if v < 0 {
			s = s.With(i)
		}
	}
	return s
}

// Moving returns the signature of axes with a non-zero distance
func (d *Distances) Moving() Signature {
	var s Signature
	for i, v := range d {
		if v != 0 {
			s = s.With(i)
		}
	}
	return s
}
