package motion

import (
	"errors"
	"math"
)

var (
	// ErrInfeasibleGeometry means no parameter increment keeps the largest
	// axis distance under the hard ceiling; the movement must be subdivided
	// upstream.
	ErrInfeasibleGeometry = errors.New("sub-movement exceeds distance limit")

	// ErrNoConvergence means the rescale budget ran out without producing
	// any motion (discontinuous or stalled trajectory).
	ErrNoConvergence = errors.New("discretization did not converge")
)

// travelSamples is the number of chords used by EstimateTravel
const travelSamples = 16

// Discretizer cuts a trajectory into sub-movements whose largest per-axis
// pulse count stays within the distance band.
//
// The parameter increment adapts: every sub-movement starts from the last
// accepted increment, which is rescaled toward the middle of the band until
// the distance fits. The number of rescales is bounded.
type Discretizer struct {
	band Band
	spu  [NAxes]float32

	src      TrajectorySource
	t, end   float32
	dir      float32
	dt       float32
	origin   [NAxes]int32 // committed position, steps
	endSteps [NAxes]int32

	// Candidate, valid while pending
	next     float32
	target   [NAxes]int32
	final    bool
	pending  bool
	bandMiss bool

	active bool
	done   bool
}

// NewDiscretizer creates a discretizer for the machine constants
func NewDiscretizer(c *Constants) *Discretizer {
	return &Discretizer{
		band: c.Band,
		spu:  c.StepsPerUnit(),
	}
}

// Start begins discretizing src from parameter from to parameter to, with the
// machine at origin (steps)
func (d *Discretizer) Start(src TrajectorySource, from, to float32, origin [NAxes]int32) {
	d.src = src
	d.t = from
	d.end = to
	d.dir = 1
	if to < from {
		d.dir = -1
	}
	d.origin = origin
	d.pending = false
	d.bandMiss = false
	d.active = true
	d.done = false

	d.endSteps, _ = d.evaluate(to)
	span := (to - from) * d.dir
	d.dt = span
	// Closed curves end where they start, so size the first increment
	// from the travel rather than the end point
	if travel := d.travelMax(from, to); travel > 0 {
		d.dt = span * d.midBand() / float32(travel)
	}
	if d.dt > span {
		d.dt = span
	}
}

// Reset abandons the current trajectory
func (d *Discretizer) Reset() {
	d.src = nil
	d.active = false
	d.pending = false
	d.done = false
}

// Active reports whether a trajectory is loaded and not finished
func (d *Discretizer) Active() bool {
	return d.active && !d.done
}

// Done reports whether the final sub-movement was committed
func (d *Discretizer) Done() bool {
	return d.done
}

// Final reports whether the pending candidate reaches the end of the trajectory
func (d *Discretizer) Final() bool {
	return d.pending && d.final
}

// BandMissed reports whether the pending candidate was accepted outside the
// band after the rescale budget ran out
func (d *Discretizer) BandMissed() bool {
	return d.pending && d.bandMiss
}

// Origin returns the committed position in steps
func (d *Discretizer) Origin() [NAxes]int32 {
	return d.origin
}

// Param returns the committed trajectory parameter
func (d *Discretizer) Param() float32 {
	return d.t
}

// Next computes the next candidate sub-movement into dist. It returns false
// with a nil error when the trajectory is exhausted (zero remaining
// distance).
func (d *Discretizer) Next(dist *Distances) (bool, error) {
	if !d.Active() {
		return false, nil
	}
	d.pending = false
	d.bandMiss = false

	mid := d.midBand()
	var max int32
	for retry := 0; ; retry++ {
		next, final := d.advance(d.dt)
		target, candidate := d.evaluate(next)
		max, _ = candidate.MaxAbs()

		// Snap to the end when nothing is left after this candidate
		if !final && target == d.endSteps && (d.end-next)*d.dir <= d.dt {
			next, final = d.end, true
		}

		inBand := max <= int32(d.band.MaxDistance) && (max >= int32(d.band.MinDistance) || final)
		var travel uint32
		switch {
		case max > 0 && inBand:
			d.setCandidate(next, target, final, candidate, dist)
			return true, nil
		case max == 0 && final:
			// Back at the end point, which may still be a loop away
			if d.staysAt(d.t, d.end) {
				d.done = true
				return false, nil
			}
			travel = d.travelMax(d.t, d.end)
			if travel == 0 {
				travel = 1
			}
		}

		if retry >= d.band.MaxRetries {
			switch {
			case max > int32(d.band.DistanceLimit):
				return false, ErrInfeasibleGeometry
			case max == 0:
				return false, ErrNoConvergence
			}
			d.setCandidate(next, target, final, candidate, dist)
			d.bandMiss = true
			return true, nil
		}

		switch {
		case travel > 0:
			ratio := mid / float32(travel)
			if ratio > 0.5 {
				ratio = 0.5
			}
			d.dt = (d.end - d.t) * d.dir * ratio
		case max == 0:
			d.dt *= mid
		default:
			d.dt *= mid / float32(max)
		}
	}
}

// Resize recomputes the pending candidate with the parameter increment scaled
// by ratio. The candidate is left unchanged and false returned when the
// resized one would not move or would break the hard ceiling.
func (d *Discretizer) Resize(ratio float32, dist *Distances) bool {
	if !d.pending || ratio <= 0 {
		return false
	}
	dt := d.dt * ratio
	next, final := d.advance(dt)
	target, candidate := d.evaluate(next)
	max, _ := candidate.MaxAbs()
	if max == 0 || max > int32(d.band.DistanceLimit) {
		return false
	}
	d.dt = dt
	d.setCandidate(next, target, final, candidate, dist)
	return true
}

// Commit accepts the pending candidate
func (d *Discretizer) Commit() {
	if !d.pending {
		return
	}
	d.t = d.next
	d.origin = d.target
	d.pending = false
	if d.final {
		d.done = true
	}
}

func (d *Discretizer) setCandidate(next float32, target [NAxes]int32, final bool, candidate Distances, dist *Distances) {
	d.next = next
	d.target = target
	d.final = final
	d.pending = true
	*dist = candidate
}

// advance returns the parameter dt ahead of the committed one, clipped to the end
func (d *Discretizer) advance(dt float32) (float32, bool) {
	next := d.t + d.dir*dt
	if (next-d.end)*d.dir >= 0 {
		return d.end, true
	}
	return next, false
}

// evaluate returns the step position at t and its distance from the origin
func (d *Discretizer) evaluate(t float32) ([NAxes]int32, Distances) {
	var pos [NAxes]float32
	d.src.Position(t, &pos)

	var target [NAxes]int32
	var dist Distances
	for i := range pos {
		target[i] = toSteps(pos[i], d.spu[i])
		dist[i] = target[i] - d.origin[i]
	}
	return target, dist
}

// staysAt reports whether every sample between two parameters rounds to the
// committed step position
func (d *Discretizer) staysAt(from, to float32) bool {
	for n := 0; n <= travelSamples; n++ {
		t := from + (to-from)*float32(n)/travelSamples
		target, _ := d.evaluate(t)
		if target != d.origin {
			return false
		}
	}
	return true
}

// travelMax returns the largest per-axis travel estimate between two parameters
func (d *Discretizer) travelMax(from, to float32) uint32 {
	var max uint32
	for _, v := range EstimateTravel(d.src, from, to, d.spu) {
		if v > max {
			max = v
		}
	}
	return max
}

func (d *Discretizer) midBand() float32 {
	return float32(d.band.MinDistance+d.band.MaxDistance) / 2
}

// ToSteps converts a position in units to the nearest step
func toSteps(pos, spu float32) int32 {
	return int32(math.Floor(float64(pos)*float64(spu) + 0.5))
}

// StepPosition converts a position in units to steps
func StepPosition(pos [NAxes]float32, spu [NAxes]float32) [NAxes]int32 {
	var out [NAxes]int32
	for i := range pos {
		out[i] = toSteps(pos[i], spu[i])
	}
	return out
}

// EstimateTravel returns a per-axis estimate of the steps travelled along
// src between from and to, summing chords over a fixed number of samples.
// It seeds the distance-to-stop accumulators.
func EstimateTravel(src TrajectorySource, from, to float32, spu [NAxes]float32) [NAxes]uint32 {
	var prev, pos [NAxes]float32
	var sum [NAxes]float64
	src.Position(from, &prev)
	for n := 1; n <= travelSamples; n++ {
		t := from + (to-from)*float32(n)/travelSamples
		src.Position(t, &pos)
		for i := range pos {
			sum[i] += math.Abs(float64(pos[i]-prev[i]) * float64(spu[i]))
		}
		prev = pos
	}

	var out [NAxes]uint32
	for i := range sum {
		out[i] = uint32(sum[i] + 0.5)
	}
	return out
}
