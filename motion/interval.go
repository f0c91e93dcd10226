package motion

// TimeInterval is an admissible duration range (seconds) for a sub-movement,
// for one axis or merged across axes.
//
// An invalid interval carries no information and is ignored by Intersect.
// Empty means no duration satisfies the constraint; Min and Max are kept so
// the caller can still see how the bounds crossed.
type TimeInterval struct {
	Min    float32
	Max    float32
	HasMax bool
	Empty  bool
	Valid  bool
}

// Unbounded admits every non-negative duration
func Unbounded() TimeInterval {
	return TimeInterval{Valid: true}
}

// AtLeast admits durations >= min
func AtLeast(min float32) TimeInterval {
	return TimeInterval{Min: min, Valid: true}
}

// Between admits durations in [min, max]
func Between(min, max float32) TimeInterval {
	return TimeInterval{Min: min, Max: max, HasMax: true, Empty: min > max, Valid: true}
}

// Exactly admits a single duration
func Exactly(d float32) TimeInterval {
	return Between(d, d)
}

// Infeasible admits nothing
func Infeasible() TimeInterval {
	return TimeInterval{Empty: true, Valid: true}
}

// Intersect merges two intervals: the result's min is the larger min and its
// max the smaller max, so the tighter bound always wins. Intersection is
// commutative and associative.
func (a TimeInterval) Intersect(b TimeInterval) TimeInterval {
	if !a.Valid {
		return b
	}
	if !b.Valid {
		return a
	}

	r := TimeInterval{Valid: true, Empty: a.Empty || b.Empty}
	r.Min = a.Min
	if b.Min > r.Min {
		r.Min = b.Min
	}
	switch {
	case a.HasMax && b.HasMax:
		r.Max, r.HasMax = a.Max, true
		if b.Max < r.Max {
			r.Max = b.Max
		}
	case a.HasMax:
		r.Max, r.HasMax = a.Max, true
	case b.HasMax:
		r.Max, r.HasMax = b.Max, true
	}
	if r.HasMax && r.Min > r.Max {
		r.Empty = true
	}
	return r
}

// Contains reports whether duration d is admissible
func (a TimeInterval) Contains(d float32) bool {
	if !a.Valid {
		return true
	}
	if a.Empty {
		return false
	}
	if d < a.Min {
		return false
	}
	return !a.HasMax || d <= a.Max
}

// Singleton reports whether exactly one duration is admissible
func (a TimeInterval) Singleton() bool {
	return a.Valid && !a.Empty && a.HasMax && a.Min == a.Max
}

// Clamp returns the admissible duration nearest to d. For an empty interval
// the lower bound is returned.
func (a TimeInterval) Clamp(d float32) float32 {
	if !a.Valid {
		return d
	}
	if d < a.Min || a.Empty {
		return a.Min
	}
	if a.HasMax && d > a.Max {
		return a.Max
	}
	return d
}
