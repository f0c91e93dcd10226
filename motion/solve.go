package motion

// Solution is the outcome of merging the duration windows of a candidate
// sub-movement
type Solution struct {
	Duration float32
	Interval TimeInterval

	// Violations has the bit of every axis whose own window excludes
	// Duration; those axes need a distance correction
	Violations Signature

	// Conflict is set when a limit could not be merged without emptying the
	// accumulated interval
	Conflict bool
}

// Solve merges the windows of limits over every axis, left to right, and
// picks the admissible duration nearest to requested.
//
// limits is in priority order. A window that would empty the accumulated
// interval is not merged: its axis is flagged and the earlier (higher
// priority) bounds are kept. A singleton interval ends the merge early.
func Solve(limits []PhysicalLimit, d Distances, st *MachineState, requested float32) Solution {
	var sol Solution
	var perAxis [NAxes]TimeInterval
	merged := Unbounded()

merge:
	for _, limit := range limits {
		for axis := 0; axis < NAxes; axis++ {
			iv := limit.DurationInterval(axis, d[axis], st)
			if !iv.Valid {
				continue
			}
			perAxis[axis] = perAxis[axis].Intersect(iv)

			next := merged.Intersect(iv)
			if next.Empty {
				sol.Conflict = true
				sol.Violations = sol.Violations.With(axis)
				continue
			}
			merged = next
			if merged.Singleton() {
				break merge
			}
		}
	}

	sol.Interval = merged
	sol.Duration = merged.Clamp(requested)
	for axis := range perAxis {
		if !perAxis[axis].Contains(sol.Duration) {
			sol.Violations = sol.Violations.With(axis)
		}
	}
	return sol
}

// Corrections returns, for every violated axis, the ratio between the largest
// distance the limits admit within duration and the candidate distance. The
// smallest ratio is returned; 1 means no correction is possible or needed.
func Corrections(limits []PhysicalLimit, d Distances, st *MachineState, sol Solution) float32 {
	ratio := float32(1)
	for axis := 0; axis < NAxes; axis++ {
		if !sol.Violations.Has(axis) || d[axis] == 0 {
			continue
		}
		best := d[axis]
		for _, limit := range limits {
			n := limit.MinimalDistance(axis, sol.Duration, d[axis], st)
			if absInt32(n) < absInt32(best) {
				best = n
			}
		}
		if r := float32(best) / float32(d[axis]); r < ratio {
			ratio = r
		}
	}
	return ratio
}

func absInt32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
