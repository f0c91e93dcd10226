package motion

import "math"

// UnitVector returns the direction of a sub-movement in units space. d is in
// steps and spu converts it back to units. ok is false for a null vector.
func UnitVector(d Distances, spu [NAxes]float32) (u [NAxes]float32, ok bool) {
	var norm float64
	for i, v := range d {
		if spu[i] == 0 {
			continue
		}
		u[i] = float32(v) / spu[i]
		norm += float64(u[i]) * float64(u[i])
	}
	if norm == 0 {
		return u, false
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range u {
		u[i] *= inv
	}
	return u, true
}

// Direction returns the unit vector from a to b, both in units
func Direction(a, b [NAxes]float32) (u [NAxes]float32, ok bool) {
	var norm float64
	for i := range a {
		u[i] = b[i] - a[i]
		norm += float64(u[i]) * float64(u[i])
	}
	if norm == 0 {
		return u, false
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range u {
		u[i] *= inv
	}
	return u, true
}

// PathLength returns the euclidean length in units of the axes of group
func PathLength(d Distances, spu [NAxes]float32, group Signature) float32 {
	var sum float64
	for i, v := range d {
		if !group.Has(i) || spu[i] == 0 {
			continue
		}
		x := float64(v) / float64(spu[i])
		sum += x * x
	}
	return float32(math.Sqrt(sum))
}

// JerkLimitedSpeed returns the largest path speed V with
// |prev[i] - next[i]| * V <= jerk[i] on every axis, prev and next being unit
// direction vectors and jerk the per-axis instantaneous speed change allowed
// (same units as V). Axes with no direction change or no limit do not
// constrain; with no constraint at all the result is +Inf.
func JerkLimitedSpeed(prev, next [NAxes]float32, jerk [NAxes]float32) float32 {
	limit := float32(math.Inf(1))
	for i := range prev {
		if jerk[i] <= 0 {
			continue
		}
		delta := prev[i] - next[i]
		if delta < 0 {
			delta = -delta
		}
		if delta < 1e-6 {
			continue
		}
		if v := jerk[i] / delta; v < limit {
			limit = v
		}
	}
	return limit
}

// JerkUnits converts per-axis jerk limits from steps/s to units/s
func (c *Constants) JerkUnits() [NAxes]float32 {
	var out [NAxes]float32
	for i, a := range c.Axes {
		if a.StepsPerUnit > 0 {
			out[i] = a.MaxJerk / a.StepsPerUnit
		}
	}
	return out
}

func sqrtf(x float32) float32 {
	if x <= 0 {
		return 0
	}
	return float32(math.Sqrt(float64(x)))
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

// MaxCornerSamples bounds the chords walked by one FindCorner call
const MaxCornerSamples = 32

// Corner is a direction change along a trajectory that limits the path speed
type Corner struct {
	Param  float32        // parameter where the turn starts
	Travel [NAxes]uint32  // per-axis steps from the scan start to Param
	Speed  float32        // jerk-limited path speed across the turn, units/s
	Exit   [NAxes]float32 // unit direction before the turn
}

// FindCorner walks src from from toward to in parameter increments of step
// and returns the first turn whose jerk-limited speed is below speed. in is
// the direction the machine arrives with; hasIn is false when at rest.
//
// Chords are compared pairwise, the same way consecutive sub-movements are, so
// step should cover about one sub-movement of travel.
func FindCorner(src TrajectorySource, from, to, step float32, spu, jerk [NAxes]float32, in [NAxes]float32, hasIn bool, speed float32) (Corner, bool) {
	var c Corner
	if step <= 0 || from == to {
		return c, false
	}
	dir := float32(1)
	if to < from {
		dir = -1
	}

	prevDir, havePrev := in, hasIn
	var prev, pos [NAxes]float32
	var travel [NAxes]float64
	src.Position(from, &prev)
	t := from
	for n := 0; t != to && n < MaxCornerSamples; n++ {
		next := t + dir*step
		if (next-to)*dir >= 0 || next == t {
			next = to
		}
		src.Position(next, &pos)

		if u, ok := Direction(prev, pos); ok {
			if havePrev {
				if v := JerkLimitedSpeed(prevDir, u, jerk); v < speed {
					c.Param = t
					c.Speed = v
					c.Exit = prevDir
					for i := range travel {
						c.Travel[i] = uint32(travel[i] + 0.5)
					}
					return c, true
				}
			}
			prevDir, havePrev = u, true
		}
		for i := range pos {
			travel[i] += math.Abs(float64(pos[i]-prev[i]) * float64(spu[i]))
		}
		prev = pos
		t = next
	}
	return c, false
}
