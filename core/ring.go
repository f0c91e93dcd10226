package core

import "sync/atomic"

// Ring is a fixed-capacity single-producer/single-consumer queue used to hand
// data across the interrupt/background boundary without locks.
//
// The producer owns the insertion index and the consumer owns the reading
// index. A per-slot occupied flag tells a full ring from an empty one when both
// indices meet, so all N slots are usable. A slot's content is only valid
// between CommitInsertion and the matching CommitRemoval.
type Ring[T any] struct {
	slots    []T
	occupied []atomic.Bool
	insert   int // producer side
	read     int // consumer side
}

// NewRing creates a ring holding up to capacity elements
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		slots:    make([]T, capacity),
		occupied: make([]atomic.Bool, capacity),
	}
}

// Cap returns the fixed capacity
func (r *Ring[T]) Cap() int {
	return len(r.slots)
}

// InsertionSlot returns the slot the producer may fill next, or false if the
// ring is full. The slot is not visible to the consumer until CommitInsertion.
func (r *Ring[T]) InsertionSlot() (*T, bool) {
	if r.occupied[r.insert].Load() {
		return nil, false
	}
	return &r.slots[r.insert], true
}

// CommitInsertion publishes the slot returned by InsertionSlot
func (r *Ring[T]) CommitInsertion() {
	r.occupied[r.insert].Store(true)
	r.insert = r.next(r.insert)
}

// ReadingSlot returns the oldest published slot, or false if the ring is empty
func (r *Ring[T]) ReadingSlot() (*T, bool) {
	if !r.occupied[r.read].Load() {
		return nil, false
	}
	return &r.slots[r.read], true
}

// CommitRemoval hands the slot returned by ReadingSlot back to the producer
func (r *Ring[T]) CommitRemoval() {
	var zero T
	r.slots[r.read] = zero
	r.occupied[r.read].Store(false)
	r.read = r.next(r.read)
}

// Peek returns the n-th oldest published element without removing it.
// Only the consumer may call it.
func (r *Ring[T]) Peek(n int) (*T, bool) {
	if n < 0 || n >= len(r.slots) {
		return nil, false
	}
	idx := (r.read + n) % len(r.slots)
	if !r.occupied[idx].Load() {
		return nil, false
	}
	return &r.slots[idx], true
}

// Push copies v into the ring. Returns false if the ring is full.
func (r *Ring[T]) Push(v T) bool {
	slot, ok := r.InsertionSlot()
	if !ok {
		return false
	}
	*slot = v
	r.CommitInsertion()
	return true
}

// Pop removes and returns the oldest element
func (r *Ring[T]) Pop() (T, bool) {
	slot, ok := r.ReadingSlot()
	if !ok {
		var zero T
		return zero, false
	}
	v := *slot
	r.CommitRemoval()
	return v, true
}

// Len returns the number of occupied slots
func (r *Ring[T]) Len() int {
	n := len(r.slots)
	if r.insert == r.read {
		if r.occupied[r.read].Load() {
			return n
		}
		return 0
	}
	return (r.insert - r.read + n) % n
}

// Free returns the number of slots available to the producer
func (r *Ring[T]) Free() int {
	return len(r.slots) - r.Len()
}

// IsEmpty returns true if nothing is published
func (r *Ring[T]) IsEmpty() bool {
	return r.Len() == 0
}

// Reset drops all content. Both sides must be quiescent (interrupts masked).
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.slots {
		r.slots[i] = zero
		r.occupied[i].Store(false)
	}
	r.insert = 0
	r.read = 0
}

func (r *Ring[T]) next(i int) int {
	i++
	if i == len(r.slots) {
		return 0
	}
	return i
}
