package motion

import "math"

// IncrementalSqrt tracks a distance together with its integer square root.
//
// With r = isqrt(value), value lies in [r², (r+1)²-1], a bracket of odd width
// 2r+1. offset is value - r², in [0, 2r]. A unit increment or decrement only
// moves offset until it leaves the bracket, which rolls r by one and resets
// the bracket; no square root is computed per tick.
type IncrementalSqrt struct {
	value  uint32
	root   uint32
	offset uint32
}

// Set loads an arbitrary value, computing the root once
func (s *IncrementalSqrt) Set(value uint32) {
	r := uint32(math.Sqrt(float64(value)))
	// Float rounding guard
	for r*r > value {
		r--
	}
	for (r+1)*(r+1) <= value {
		r++
	}
	s.value = value
	s.root = r
	s.offset = value - r*r
}

// Value returns the tracked distance
func (s *IncrementalSqrt) Value() uint32 {
	return s.value
}

// Root returns floor(sqrt(Value()))
func (s *IncrementalSqrt) Root() uint32 {
	return s.root
}

// Inc adds one
func (s *IncrementalSqrt) Inc() {
	s.value++
	if s.offset < 2*s.root {
		s.offset++
		return
	}
	// Reached (r+1)²
	s.root++
	s.offset = 0
}

// Dec subtracts one, saturating at zero
func (s *IncrementalSqrt) Dec() {
	if s.value == 0 {
		return
	}
	s.value--
	if s.offset > 0 {
		s.offset--
		return
	}
	// Left r², fall to the top of the previous bracket
	s.root--
	s.offset = 2 * s.root
}

// Add adds n unit steps
func (s *IncrementalSqrt) Add(n uint32) {
	for ; n > 0; n-- {
		s.Inc()
	}
}

// Sub subtracts n unit steps, saturating at zero
func (s *IncrementalSqrt) Sub(n uint32) {
	for ; n > 0 && s.value > 0; n-- {
		s.Dec()
	}
}
