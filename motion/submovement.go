package motion

import "math/bits"

// MaxPlanes bounds the number of pulse planes of a sub-movement: per-axis
// counts are 16-bit, so at most 16 binary planes.
const MaxPlanes = 16

// SubMovement is the unit of real-time execution: per-axis pulse counts, a
// direction signature, a duration and the elementary firing order derived
// from the counts.
type SubMovement struct {
	Counts    [NAxes]uint16
	Direction Signature

	// Duration is the solved duration in seconds; Delay the timer ticks
	// between two elementary ticks (Duration / Ticks).
	Duration float32
	Delay    uint32

	// Ticks is the number of elementary ticks, 2^planes - 1
	Ticks uint32

	// order[n] is fired on every tick index with n trailing zeros
	order  [MaxPlanes]Signature
	planes uint8

	// Tool is the tool output level applied when the sub-movement is armed
	Tool float32

	// Last marks the final sub-movement of a movement, Stop a sub-movement
	// planned to end at rest
	Last bool
	Stop bool
}

// SetDistances loads signed per-axis distances and derives the direction
// signature and the elementary firing order.
//
// Pulse planes are extracted low bit first: plane n has the bit of an axis
// set when bit n of its count is set. The reversed plane sequence is the
// firing order: counting the tick index down from 2^k-1 to 1, a tick with c
// trailing zeros fires order[c], i.e. plane k-1-c. Plane p is therefore fired
// 2^p times and every axis emits exactly its count, spread evenly over the
// sub-movement.
func (sm *SubMovement) SetDistances(d Distances) {
	var remaining [NAxes]uint32
	sm.Direction = 0
	for i, v := range d {
		if v < 0 {
			sm.Direction = sm.Direction.With(i)
			v = -v
		}
		if v > 0xFFFF {
			v = 0xFFFF
		}
		sm.Counts[i] = uint16(v)
		remaining[i] = uint32(v)
	}

	var planes [MaxPlanes]Signature
	k := 0
	for {
		var sig Signature
		more := false
		for i := range remaining {
			if remaining[i] != 0 {
				more = true
			}
			if remaining[i]&1 != 0 {
				sig = sig.With(i)
			}
			remaining[i] >>= 1
		}
		if !more {
			break
		}
		planes[k] = sig
		k++
	}

	sm.planes = uint8(k)
	for n := 0; n < k; n++ {
		sm.order[n] = planes[k-1-n]
	}
	for n := k; n < MaxPlanes; n++ {
		sm.order[n] = 0
	}
	sm.Ticks = uint32(1)<<uint(k) - 1
}

// Distances returns the signed per-axis distances
func (sm *SubMovement) Distances() Distances {
	var d Distances
	for i, c := range sm.Counts {
		d[i] = int32(c)
		if sm.Direction.Has(i) {
			d[i] = -d[i]
		}
	}
	return d
}

// Planes returns the number of pulse planes
func (sm *SubMovement) Planes() int {
	return int(sm.planes)
}

// SignatureAt returns the pulse signature fired on tick index i, 1 <= i <= Ticks.
// The scheduler walks i down from Ticks to 1.
func (sm *SubMovement) SignatureAt(i uint32) Signature {
	if i == 0 || i > sm.Ticks {
		return 0
	}
	return sm.order[bits.TrailingZeros32(i)]
}

// IsEmpty reports whether the sub-movement emits nothing
func (sm *SubMovement) IsEmpty() bool {
	return sm.Ticks == 0
}

// SetDuration stores the solved duration and the per-tick delay for a timer
// running at timerFreq Hz, never below minDelay.
func (sm *SubMovement) SetDuration(seconds float32, timerFreq uint32, minDelay uint32) {
	sm.Duration = seconds
	if sm.Ticks == 0 {
		sm.Delay = 0
		return
	}
	delay := float64(seconds) * float64(timerFreq) / float64(sm.Ticks)
	switch {
	case delay < float64(minDelay):
		sm.Delay = minDelay
	case delay > 4294967295:
		sm.Delay = 4294967295
	default:
		sm.Delay = uint32(delay + 0.5)
	}
}
