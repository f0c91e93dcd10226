// Package trajectory provides parametric trajectories for the motion engine.
// Positions are in machine units; the parameter runs from 0 to 1.
package trajectory

import (
	"errors"
	"math"

	"motionrt/motion"
)

var ErrZeroRadius = errors.New("arc radius is zero")

// Line is a straight segment from From to To
type Line struct {
	From, To [motion.NAxes]float32
}

// Position returns the point at parameter t
func (l *Line) Position(t float32, out *[motion.NAxes]float32) {
	for i := range out {
		out[i] = l.From[i] + (l.To[i]-l.From[i])*t
	}
}

// Length returns the euclidean length of the segment
func (l *Line) Length() float32 {
	var sum float64
	for i := range l.From {
		d := float64(l.To[i] - l.From[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}

// Arc is a circular arc in the plane of axes A and B, swept by Sweep radians
// from the start angle (positive is counter-clockwise). The other axes move
// linearly from From to To, which makes a helix when one of them is Z.
type Arc struct {
	A, B       int
	CenterA    float32
	CenterB    float32
	Radius     float32
	StartAngle float32
	Sweep      float32
	From, To   [motion.NAxes]float32
}

// NewArc builds an arc from from to to around center (given on axes a, b).
// ccw selects the direction; an arc whose end equals its start is a full turn.
func NewArc(a, b int, from, to [motion.NAxes]float32, centerA, centerB float32, ccw bool) (*Arc, error) {
	ra := float64(from[a] - centerA)
	rb := float64(from[b] - centerB)
	radius := math.Hypot(ra, rb)
	if radius < 1e-6 {
		return nil, ErrZeroRadius
	}

	start := math.Atan2(rb, ra)
	end := math.Atan2(float64(to[b]-centerB), float64(to[a]-centerA))
	sweep := end - start
	if ccw {
		if sweep <= 1e-9 {
			sweep += 2 * math.Pi
		}
	} else if sweep >= -1e-9 {
		sweep -= 2 * math.Pi
	}

	return &Arc{
		A:          a,
		B:          b,
		CenterA:    centerA,
		CenterB:    centerB,
		Radius:     float32(radius),
		StartAngle: float32(start),
		Sweep:      float32(sweep),
		From:       from,
		To:         to,
	}, nil
}

// Position returns the point at parameter t
func (c *Arc) Position(t float32, out *[motion.NAxes]float32) {
	for i := range out {
		out[i] = c.From[i] + (c.To[i]-c.From[i])*t
	}
	angle := float64(c.StartAngle) + float64(c.Sweep)*float64(t)
	out[c.A] = c.CenterA + c.Radius*float32(math.Cos(angle))
	out[c.B] = c.CenterB + c.Radius*float32(math.Sin(angle))
	// Land exactly on the requested end point
	if t == 1 {
		out[c.A] = c.To[c.A]
		out[c.B] = c.To[c.B]
	}
}

// Length returns the length of the arc in the plane, ignoring linear axes
func (c *Arc) Length() float32 {
	return absf(c.Sweep) * c.Radius
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

// End returns the point reached at parameter 1
func (l *Line) End() [motion.NAxes]float32 {
	return l.To
}

// End returns the point reached at parameter 1
func (c *Arc) End() [motion.NAxes]float32 {
	return c.To
}
