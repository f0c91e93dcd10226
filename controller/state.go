// Package controller is the pluggable machine controller: a double-buffered
// machine state, a swappable distances computer and ordered lists of builder
// hooks, kinematic constraints and state hooks run for every sub-movement.
package controller

import (
	"motionrt/core"
	"motionrt/motion"
)

// States is a two-slot machine state arena. One slot is current, the other is
// the candidate being computed. Accept is the only operation that changes
// which slot is current.
type States struct {
	slots   [2]motion.MachineState
	current uint8
	dirty   bool
}

// Current returns a copy of the current state
func (s *States) Current() motion.MachineState {
	return s.slots[s.current]
}

// CurrentRef returns the current state for reading. It stays valid until the
// next Accept.
func (s *States) CurrentRef() *motion.MachineState {
	return &s.slots[s.current]
}

// Candidate returns the candidate slot for writing. The first call after an
// Accept seeds it from the current state.
func (s *States) Candidate() *motion.MachineState {
	next := &s.slots[s.current^1]
	if !s.dirty {
		*next = s.slots[s.current]
		s.dirty = true
	}
	return next
}

// Accept makes the candidate current. Without a candidate write since the
// last Accept it does nothing.
func (s *States) Accept() bool {
	if !s.dirty {
		return false
	}
	state := core.DisableInterrupts()
	s.current ^= 1
	s.dirty = false
	core.RestoreInterrupts(state)
	return true
}

// Discard drops the candidate
func (s *States) Discard() {
	s.dirty = false
}

// Reset forces both slots to st
func (s *States) Reset(st motion.MachineState) {
	state := core.DisableInterrupts()
	s.slots[0] = st
	s.slots[1] = st
	s.current = 0
	s.dirty = false
	core.RestoreInterrupts(state)
}
