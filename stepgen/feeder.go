package stepgen

import (
	"motionrt/motion"
)

// Feeder keeps an engine supplied from a fixed list of movements. It only
// enqueues while the movement queue has room, so a full queue is never
// counted as a rejection.
type Feeder struct {
	engine *Engine
	moves  []motion.Movement
	next   int
}

// NewFeeder creates a feeder for moves
func NewFeeder(e *Engine, moves []motion.Movement) *Feeder {
	return &Feeder{engine: e, moves: moves}
}

// Poll enqueues as many pending movements as fit. It returns the error of a
// movement the engine refused; that movement is skipped.
func (f *Feeder) Poll() error {
	for f.next < len(f.moves) && f.engine.Space() > 0 {
		m := f.moves[f.next]
		f.next++
		if err := f.engine.EnqueueMovement(m); err != nil {
			return err
		}
	}
	return nil
}

// Pending returns the number of movements not yet enqueued
func (f *Feeder) Pending() int {
	return len(f.moves) - f.next
}

// Done reports whether every movement was enqueued and the engine is idle
func (f *Feeder) Done() bool {
	return f.Pending() == 0 && !f.engine.Busy()
}
