package motion

import (
	"math"

	"motionrt/core"
)

// PhysicalLimit is one kinematic constraint, evaluated per axis
type PhysicalLimit interface {
	Name() string

	// DurationInterval returns the admissible durations for moving distance
	// steps on axis from state st. An invalid interval means the limit has
	// nothing to say about this axis.
	DurationInterval(axis int, distance int32, st *MachineState) TimeInterval

	// MinimalDistance returns the largest distance, not beyond distance and
	// with the same sign, that the limit admits within duration
	MinimalDistance(axis int, duration float32, distance int32, st *MachineState) int32
}

// SharedKinematicState holds the distance-to-stop and distance-to-jerk-point
// accumulators, in steps per axis.
//
// The background planner previews the accumulators for a candidate
// sub-movement, the constraints read the preview, and Commit publishes it
// with interrupts masked.
type SharedKinematicState struct {
	End       [NAxes]IncrementalSqrt
	Jerk      [NAxes]IncrementalSqrt
	JerkSpeed [NAxes]float32 // steps/s allowed when crossing the jerk point
	JerkArmed Signature

	pendingEnd  [NAxes]IncrementalSqrt
	pendingJerk [NAxes]IncrementalSqrt
	previewed   bool
}

// Reset clears every accumulator: the machine is planned to stop now
func (s *SharedKinematicState) Reset() {
	state := core.DisableInterrupts()
	*s = SharedKinematicState{}
	core.RestoreInterrupts(state)
}

// PlanStop sets the distance to the planned stop
func (s *SharedKinematicState) PlanStop(travel [NAxes]uint32) {
	state := core.DisableInterrupts()
	for i := range travel {
		s.End[i].Set(travel[i])
	}
	s.previewed = false
	core.RestoreInterrupts(state)
}

// SetJerkPoint registers a deferred jerk point dist steps ahead, crossed at
// no more than speed steps/s on each axis
func (s *SharedKinematicState) SetJerkPoint(dist [NAxes]uint32, speed [NAxes]float32) {
	state := core.DisableInterrupts()
	s.JerkArmed = 0
	for i := range dist {
		s.Jerk[i].Set(dist[i])
		s.JerkSpeed[i] = speed[i]
		s.JerkArmed = s.JerkArmed.With(i)
	}
	s.previewed = false
	core.RestoreInterrupts(state)
}

// ClearJerkPoint disarms the jerk point once it has been crossed
func (s *SharedKinematicState) ClearJerkPoint() {
	state := core.DisableInterrupts()
	s.JerkArmed = 0
	for i := range s.Jerk {
		s.Jerk[i].Set(0)
	}
	s.previewed = false
	core.RestoreInterrupts(state)
}

// Preview computes the accumulators as they will be after moving d. Only the
// background side calls it, so no masking.
func (s *SharedKinematicState) Preview(d Distances) {
	s.pendingEnd = s.End
	s.pendingJerk = s.Jerk
	for i, v := range d {
		n := uint32(v)
		if v < 0 {
			n = uint32(-v)
		}
		s.pendingEnd[i].Sub(n)
		if s.JerkArmed.Has(i) {
			s.pendingJerk[i].Sub(n)
		}
	}
	s.previewed = true
}

// Commit publishes the last preview
func (s *SharedKinematicState) Commit() {
	if !s.previewed {
		return
	}
	state := core.DisableInterrupts()
	s.End = s.pendingEnd
	s.Jerk = s.pendingJerk
	s.previewed = false
	core.RestoreInterrupts(state)
}

// EndAfter returns the distance to stop remaining after the previewed
// sub-movement
func (s *SharedKinematicState) EndAfter(axis int) *IncrementalSqrt {
	if s.previewed {
		return &s.pendingEnd[axis]
	}
	return &s.End[axis]
}

// JerkAfter returns the distance to the jerk point remaining after the
// previewed sub-movement
func (s *SharedKinematicState) JerkAfter(axis int) *IncrementalSqrt {
	if s.previewed {
		return &s.pendingJerk[axis]
	}
	return &s.Jerk[axis]
}

// StopDistanceLimit keeps every axis slow enough to stop within the distance
// left to the planned stop: v <= sqrt(2a) * max(1, isqrt(remaining)).
type StopDistanceLimit struct {
	Constants *Constants
	Shared    *SharedKinematicState
}

func (l *StopDistanceLimit) Name() string { return "stop" }

func (l *StopDistanceLimit) maxSpeed(axis int) float32 {
	a := l.Constants.Axes[axis].MaxAccel
	if a <= 0 {
		return 0
	}
	root := l.Shared.EndAfter(axis).Root()
	if root < 1 {
		root = 1
	}
	return sqrtf(2*a) * float32(root)
}

func (l *StopDistanceLimit) DurationInterval(axis int, distance int32, st *MachineState) TimeInterval {
	return speedBound(distance, l.maxSpeed(axis))
}

func (l *StopDistanceLimit) MinimalDistance(axis int, duration float32, distance int32, st *MachineState) int32 {
	return LargestDistance(l, axis, duration, distance, st)
}

// JerkPointLimit slows the machine down ahead of a registered jerk point:
// v <= max(vJerk, sqrt(2a) * isqrt(remainingToJerk)).
type JerkPointLimit struct {
	Constants *Constants
	Shared    *SharedKinematicState
}

func (l *JerkPointLimit) Name() string { return "jerk" }

func (l *JerkPointLimit) DurationInterval(axis int, distance int32, st *MachineState) TimeInterval {
	if !l.Shared.JerkArmed.Has(axis) {
		return TimeInterval{}
	}
	a := l.Constants.Axes[axis].MaxAccel
	if a <= 0 {
		return TimeInterval{}
	}
	v := sqrtf(2*a) * float32(l.Shared.JerkAfter(axis).Root())
	if js := l.Shared.JerkSpeed[axis]; js > v {
		v = js
	}
	return speedBound(distance, v)
}

func (l *JerkPointLimit) MinimalDistance(axis int, duration float32, distance int32, st *MachineState) int32 {
	return LargestDistance(l, axis, duration, distance, st)
}

// SpeedLimit is the hard per-axis speed bound
type SpeedLimit struct {
	Constants *Constants
}

func (l *SpeedLimit) Name() string { return "speed" }

func (l *SpeedLimit) DurationInterval(axis int, distance int32, st *MachineState) TimeInterval {
	v := l.Constants.Axes[axis].MaxSpeed
	if v <= 0 {
		return TimeInterval{}
	}
	return speedBound(distance, v)
}

func (l *SpeedLimit) MinimalDistance(axis int, duration float32, distance int32, st *MachineState) int32 {
	v := l.Constants.Axes[axis].MaxSpeed
	if v <= 0 {
		return distance
	}
	n := int32(duration * v)
	if distance < 0 {
		if -n > distance {
			return -n
		}
		return distance
	}
	if n < distance {
		return n
	}
	return distance
}

// AccelerationLimit bounds the change of average speed between consecutive
// sub-movements: |d/t - v0| <= a*t, keeping the branch on which the speed
// stays continuous.
type AccelerationLimit struct {
	Constants *Constants
}

func (l *AccelerationLimit) Name() string { return "accel" }

func (l *AccelerationLimit) DurationInterval(axis int, distance int32, st *MachineState) TimeInterval {
	a := l.Constants.Axes[axis].MaxAccel
	if a <= 0 {
		return TimeInterval{}
	}
	v0 := st.Speeds[axis]
	if distance == 0 {
		return AtLeast(absf(v0) / a)
	}

	d := float32(distance)
	w := v0
	if d < 0 {
		d, w = -d, -w
	}

	if w < 0 {
		// Reversal: decelerate through zero then accelerate the other way
		u := -w
		return AtLeast((u + sqrtf(u*u+4*a*d)) / (2 * a))
	}

	min := 2 * d / (w + sqrtf(w*w+4*a*d))
	disc := w*w - 4*a*d
	if disc < 0 {
		return AtLeast(min)
	}
	return Between(min, 2*d/(w+sqrtf(disc)))
}

func (l *AccelerationLimit) MinimalDistance(axis int, duration float32, distance int32, st *MachineState) int32 {
	return LargestDistance(l, axis, duration, distance, st)
}

// DefaultLimits returns the limits in priority order: stop distance, jerk
// point, max speed, acceleration. Earlier limits win a conflict.
func DefaultLimits(c *Constants, shared *SharedKinematicState) []PhysicalLimit {
	return []PhysicalLimit{
		&StopDistanceLimit{Constants: c, Shared: shared},
		&JerkPointLimit{Constants: c, Shared: shared},
		&SpeedLimit{Constants: c},
		&AccelerationLimit{Constants: c},
	}
}

// speedBound turns a speed ceiling into a minimum duration
func speedBound(distance int32, v float32) TimeInterval {
	if v <= 0 || math.IsInf(float64(v), 1) {
		return TimeInterval{}
	}
	if distance < 0 {
		distance = -distance
	}
	return AtLeast(float32(distance) / v)
}

// LargestDistance binary searches the largest magnitude n <= |distance| whose
// minimum duration under limit fits in duration. The minimum duration of every
// limit grows with distance, which makes the search valid.
func LargestDistance(limit PhysicalLimit, axis int, duration float32, distance int32, st *MachineState) int32 {
	sign := int32(1)
	hi := distance
	if distance < 0 {
		sign, hi = -1, -distance
	}
	fits := func(n int32) bool {
		iv := limit.DurationInterval(axis, sign*n, st)
		return !iv.Valid || iv.Min <= duration
	}
	if fits(hi) {
		return distance
	}
	lo := int32(0)
	for lo < hi-1 {
		mid := lo + (hi-lo)/2
		if fits(mid) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return sign * lo
}
