// Package stepgen is the real-time step scheduler: a timer interrupt drains
// timed sub-movements from a ring queue and emits their pulse signatures,
// while a staged background planner prepares the next ones.
package stepgen

import (
	"sync/atomic"

	"motionrt/core"
	"motionrt/motion"
)

// State of the scheduler
type State uint32

const (
	StateIdle     State = iota // timer off, nothing armed
	StateArming                // timer armed to load the first sub-movement
	StateStepping              // emitting elementary ticks
	StateDraining              // finished on a planned stop, waiting for the background
	StateStalled               // queue ran dry mid-motion (underrun)
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArming:
		return "arming"
	case StateStepping:
		return "stepping"
	case StateDraining:
		return "draining"
	case StateStalled:
		return "stalled"
	}
	return "unknown"
}

// Scheduler is the interrupt side of the engine. Tick is its only entry point
// from the timer interrupt; every other method is called from the background
// with interrupts masked where it touches interrupt-owned fields.
type Scheduler struct {
	driver core.MotionDriver
	tool   core.ToolOutput
	queue  *core.Ring[motion.SubMovement]

	state atomic.Uint32

	// Interrupt-owned
	armed     motion.SubMovement
	index     uint32
	positions [motion.NAxes]int32
	direction motion.Signature
	toolPower float32

	// Written by the interrupt, read by the background
	ticks     atomic.Uint32 // elementary ticks emitted
	subsDone  atomic.Uint32
	movesDone atomic.Uint32
	underruns atomic.Uint32

	consumed uint32 // background copy of ticks already waited for
	minDelay uint32
}

// NewScheduler creates a scheduler draining queue into driver
func NewScheduler(driver core.MotionDriver, tool core.ToolOutput, queue *core.Ring[motion.SubMovement], minDelay uint32) *Scheduler {
	if minDelay == 0 {
		minDelay = 1
	}
	return &Scheduler{
		driver:   driver,
		tool:     tool,
		queue:    queue,
		minDelay: minDelay,
	}
}

// State returns the current state
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Tick handles one timer interrupt
func (s *Scheduler) Tick() {
	switch State(s.state.Load()) {
	case StateArming:
		s.driver.EnableAxes(uint32(motion.AllAxes))
		s.advance(true)
	case StateStepping:
		s.step()
	}
}

func (s *Scheduler) step() {
	sig := s.armed.SignatureAt(s.index)
	if sig != 0 {
		s.driver.Pulse(uint32(sig))
		for axis := 0; axis < motion.NAxes; axis++ {
			if !sig.Has(axis) {
				continue
			}
			if s.direction.Has(axis) {
				s.positions[axis]--
			} else {
				s.positions[axis]++
			}
		}
	}
	s.index--
	s.ticks.Add(1)
	if s.index > 0 {
		s.driver.ArmTimer(s.armed.Delay)
		return
	}

	s.finish()
	s.advance(s.armed.Stop)
}

// finish accounts for the exhausted armed sub-movement
func (s *Scheduler) finish() {
	s.subsDone.Add(1)
	if s.armed.Last {
		s.movesDone.Add(1)
		core.RecordTiming(core.EvtMoveDone, core.NoAxis, s.movesDone.Load(), 0)
	}
}

// advance loads the next sub-movement, or leaves stepping when the queue is
// empty: a planned stop drains, anything else is an underrun
func (s *Scheduler) advance(stopped bool) {
	for {
		slot, ok := s.queue.ReadingSlot()
		if !ok {
			s.driver.DisarmTimer()
			if stopped {
				s.state.Store(uint32(StateDraining))
				core.RecordTiming(core.EvtDrain, core.NoAxis, s.subsDone.Load(), 0)
			} else {
				s.state.Store(uint32(StateStalled))
				s.underruns.Add(1)
				core.RecordTiming(core.EvtUnderrun, core.NoAxis, s.subsDone.Load(), s.ticks.Load())
			}
			return
		}
		s.armed = *slot
		s.queue.CommitRemoval()

		// Movement boundary without pulses
		if s.armed.IsEmpty() {
			s.finish()
			stopped = s.armed.Stop
			continue
		}

		if s.armed.Direction != s.direction {
			s.direction = s.armed.Direction
			s.driver.SetDirections(uint32(s.direction))
		}
		if s.tool != nil && s.armed.Tool != s.toolPower {
			s.toolPower = s.armed.Tool
			s.tool.SetPower(s.toolPower)
		}
		s.index = s.armed.Ticks
		s.state.Store(uint32(StateStepping))
		core.RecordTiming(core.EvtArm, core.NoAxis, s.armed.Ticks, s.armed.Delay)
		s.driver.ArmTimer(s.armed.Delay)
		return
	}
}

// Start moves an idle scheduler to arming
func (s *Scheduler) Start() bool {
	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)

	if State(s.state.Load()) != StateIdle {
		return false
	}
	s.driver.SetDirections(uint32(s.direction))
	s.state.Store(uint32(StateArming))
	s.driver.ArmTimer(s.minDelay)
	return true
}

// Halt disarms the timer and flushes the queue. The position reached so far
// is kept.
func (s *Scheduler) Halt() {
	state := core.DisableInterrupts()
	s.driver.DisarmTimer()
	s.queue.Reset()
	s.armed = motion.SubMovement{}
	s.index = 0
	s.state.Store(uint32(StateIdle))
	if s.tool != nil {
		s.toolPower = 0
		s.tool.SetPower(0)
	}
	core.RestoreInterrupts(state)
}

// Settle returns a draining or stalled scheduler to idle
func (s *Scheduler) Settle() {
	state := core.DisableInterrupts()
	switch State(s.state.Load()) {
	case StateDraining, StateStalled:
		s.state.Store(uint32(StateIdle))
		if s.tool != nil {
			s.toolPower = 0
			s.tool.SetPower(0)
		}
	}
	core.RestoreInterrupts(state)
}

// TakeTick consumes one pending elementary tick. The background calls it
// between planning stages so that no stage runs more than one tick ahead of
// the interrupt.
func (s *Scheduler) TakeTick() bool {
	if s.ticks.Load() == s.consumed {
		return false
	}
	s.consumed++
	return true
}

// Positions returns the per-axis position emitted so far, in steps
func (s *Scheduler) Positions() [motion.NAxes]int32 {
	state := core.DisableInterrupts()
	p := s.positions
	core.RestoreInterrupts(state)
	return p
}

// SetPositions overrides the emitted position of an idle scheduler
func (s *Scheduler) SetPositions(p [motion.NAxes]int32) {
	state := core.DisableInterrupts()
	s.positions = p
	core.RestoreInterrupts(state)
}

// MovesDone returns the number of movements whose last pulse was emitted
func (s *Scheduler) MovesDone() uint32 {
	return s.movesDone.Load()
}

// SubMovementsDone returns the number of exhausted sub-movements
func (s *Scheduler) SubMovementsDone() uint32 {
	return s.subsDone.Load()
}

// Underruns returns the number of underruns since start
func (s *Scheduler) Underruns() uint32 {
	return s.underruns.Load()
}
