package stepgen

import (
	"errors"

	"motionrt/core"
	"motionrt/motion"
)

var (
	ErrQueueFull      = errors.New("movement queue full")
	ErrDegenerateMove = motion.ErrDegenerateMovement
	ErrUnderrun       = errors.New("step queue underrun")
	ErrStopped        = errors.New("motion stopped")
)

const (
	DefaultQueueSize     = 16
	DefaultMoveQueueSize = 8
)

// Config sizes the engine queues
type Config struct {
	Constants     motion.Constants
	QueueSize     int // timed sub-movements
	MoveQueueSize int // pending movements
}

// Stats are engine counters since creation
type Stats struct {
	Movements    uint32 // movements started by the planner
	SubMovements uint32 // sub-movements queued
	Underruns    uint32
	Conflicts    uint32 // kinematic conflicts resolved by the tie-break
	Corrections  uint32 // sub-movements shortened to fit a limit
	BandMisses   uint32 // sub-movements accepted outside the distance band
	Rejected     uint32 // movements refused at enqueue or failed in planning
}

// Engine is the real-time motion engine: movement queue, background planner
// and interrupt scheduler.
//
// EnqueueMovement, Poll and Stop are background calls; Tick is the timer
// interrupt handler.
type Engine struct {
	constants motion.Constants

	moves    *core.Ring[motion.Movement]
	inflight *core.Ring[flight]
	queue    *core.Ring[motion.SubMovement]

	planner   *Planner
	scheduler *Scheduler

	finalized uint32 // movements finalized, compared with scheduler.MovesDone
	rejected  uint32
}

// New creates an engine driving driver. tool may be nil.
func New(cfg Config, driver core.MotionDriver, tool core.ToolOutput) *Engine {
	if cfg.QueueSize < 2 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.MoveQueueSize < 1 {
		cfg.MoveQueueSize = DefaultMoveQueueSize
	}

	// The timer never runs faster than the driver can step
	info := driver.Info()
	if info.MaxStepRate > 0 && cfg.Constants.TimerFreq > 0 {
		if floor := cfg.Constants.TimerFreq / info.MaxStepRate; cfg.Constants.MinDelay < floor {
			core.DebugPrintln("[STEPGEN] " + info.Name + ": minimum delay raised to the driver step rate")
			cfg.Constants.MinDelay = floor
		}
	}

	e := &Engine{constants: cfg.Constants}
	e.moves = core.NewRing[motion.Movement](cfg.MoveQueueSize)
	e.queue = core.NewRing[motion.SubMovement](cfg.QueueSize)
	// Every queued sub-movement may close a different movement
	e.inflight = core.NewRing[flight](cfg.QueueSize + 2)
	e.planner = newPlanner(&e.constants, e.moves, e.queue, e.inflight)
	e.scheduler = NewScheduler(driver, tool, e.queue, cfg.Constants.MinDelay)
	return e
}

// EnqueueMovement queues a movement. The movement is accepted when the error
// is nil and then receives exactly one Finalize call.
func (e *Engine) EnqueueMovement(m motion.Movement) error {
	if err := m.Validate(); err != nil {
		e.reject()
		return ErrDegenerateMove
	}
	if !e.moves.Push(m) {
		e.reject()
		return ErrQueueFull
	}
	return nil
}

func (e *Engine) reject() {
	e.rejected++
	core.RecordTiming(core.EvtReject, core.NoAxis, e.rejected, 0)
}

// Tick is the timer interrupt handler
func (e *Engine) Tick() {
	e.scheduler.Tick()
}

// Poll runs one pass of the background loop: scheduler transitions,
// movement finalization, at most one planning stage, then stepping start.
// While stepping, a planning stage only runs after one elementary tick.
//
// Only an underrun aborts motion. A movement the planner cannot discretize is
// finalized with its error in queue order and the others carry on.
func (e *Engine) Poll() {
	switch e.scheduler.State() {
	case StateStalled:
		core.DebugPrintln("[STEPGEN] underrun, aborting motion")
		e.abort(ErrUnderrun)
		return
	case StateDraining:
		e.finalizeDone()
		e.scheduler.Settle()
	}

	e.finalizeDone()

	if e.scheduler.State() == StateStepping {
		if e.scheduler.TakeTick() {
			e.planner.Step()
		}
	} else {
		e.planner.Step()
	}

	if e.scheduler.State() == StateIdle && e.readyToStart() {
		e.scheduler.Start()
	}
}

// readyToStart reports whether enough is queued to start stepping
func (e *Engine) readyToStart() bool {
	n := e.queue.Len()
	if n == 0 {
		return false
	}
	return n >= e.queue.Cap()/2 || e.planner.Idle() || e.planner.Blocked()
}

// finalizeDone completes the movements whose last pulse was emitted
func (e *Engine) finalizeDone() {
	done := e.scheduler.MovesDone()
	for e.finalized != done {
		f, ok := e.inflight.Pop()
		if !ok {
			break
		}
		e.finalized++
		f.move.Complete(f.err)
	}
}

// abort stops the machine and finalizes every unfinished movement with err.
// A movement the planner already failed keeps its own error.
func (e *Engine) abort(err error) {
	e.scheduler.Halt()
	e.finalizeDone()
	e.finalized = e.scheduler.MovesDone()

	for {
		f, ok := e.inflight.Pop()
		if !ok {
			break
		}
		if f.err != nil {
			f.move.Complete(f.err)
		} else {
			f.move.Complete(err)
		}
	}
	for {
		m, ok := e.moves.Pop()
		if !ok {
			break
		}
		m.Complete(err)
	}

	e.planner.Reset(e.scheduler.Positions())
	core.RecordTiming(core.EvtStop, core.NoAxis, e.scheduler.SubMovementsDone(), 0)
}

// Stop halts the machine: the timer is disabled, the queues are flushed, the
// tool is switched off and unfinished movements are finalized with
// ErrStopped. A later movement starts a fresh arming cycle from the exact
// position reached.
func (e *Engine) Stop() {
	e.abort(ErrStopped)
}

// State returns the scheduler state
func (e *Engine) State() State {
	return e.scheduler.State()
}

// Position returns the exact emitted position in steps
func (e *Engine) Position() [motion.NAxes]int32 {
	return e.scheduler.Positions()
}

// SetPosition re-seeds an idle engine at p (homing)
func (e *Engine) SetPosition(p [motion.NAxes]int32) {
	if e.scheduler.State() != StateIdle {
		return
	}
	e.scheduler.SetPositions(p)
	e.planner.Reset(p)
}

// Space returns how many movements EnqueueMovement can still accept
func (e *Engine) Space() int {
	return e.moves.Free()
}

// Busy reports whether movements are queued, planned or executing
func (e *Engine) Busy() bool {
	return !e.moves.IsEmpty() || !e.inflight.IsEmpty() || e.scheduler.State() != StateIdle
}

// Stats returns the engine counters
func (e *Engine) Stats() Stats {
	s := e.planner.stats
	s.Underruns = e.scheduler.Underruns()
	s.Rejected += e.rejected
	return s
}

// Planner exposes the background planner, mainly for its controller
func (e *Engine) Planner() *Planner {
	return e.planner
}
