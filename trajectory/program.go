package trajectory

import (
	"motionrt/motion"
)

// Path is a trajectory swept over the parameter range 0..1 with a known end
type Path interface {
	motion.TrajectorySource
	Length() float32
	End() [motion.NAxes]float32
}

// Move wraps a path into a movement regulated at speed (units/s) over the
// axes of group
func Move(p Path, speed float32, group motion.Signature) motion.Movement {
	return motion.Movement{
		Min:        0,
		Max:        1,
		Trajectory: p,
		Speed:      motion.ConstantSpeed{Speed: speed, Axes: group},
	}
}

// Program chains paths, each one starting where the previous one ended.
// The first error is kept and returned by Paths.
type Program struct {
	pos   [motion.NAxes]float32
	paths []Path
	err   error
}

// NewProgram starts a program at start
func NewProgram(start [motion.NAxes]float32) *Program {
	return &Program{pos: start}
}

// LineTo appends a straight segment
func (p *Program) LineTo(to [motion.NAxes]float32) *Program {
	if p.err != nil || to == p.pos {
		return p
	}
	p.paths = append(p.paths, &Line{From: p.pos, To: to})
	p.pos = to
	return p
}

// ArcTo appends an arc in the plane of axes a and b around the given center
func (p *Program) ArcTo(a, b int, to [motion.NAxes]float32, centerA, centerB float32, ccw bool) *Program {
	if p.err != nil {
		return p
	}
	arc, err := NewArc(a, b, p.pos, to, centerA, centerB, ccw)
	if err != nil {
		p.err = err
		return p
	}
	p.paths = append(p.paths, arc)
	p.pos = to
	return p
}

// Position returns the end of the program so far
func (p *Program) Position() [motion.NAxes]float32 {
	return p.pos
}

// Paths returns the chained paths
func (p *Program) Paths() ([]Path, error) {
	return p.paths, p.err
}

// Check calls accept with the end of every path and stops at the first
// error, returning the index of the offending path
func (p *Program) Check(accept func(end [motion.NAxes]float32) error) (int, error) {
	if p.err != nil {
		return len(p.paths), p.err
	}
	for i, path := range p.paths {
		if err := accept(path.End()); err != nil {
			return i, err
		}
	}
	return -1, nil
}

// Movements converts every path to a movement at speed over group
func (p *Program) Movements(speed float32, group motion.Signature) ([]motion.Movement, error) {
	if p.err != nil {
		return nil, p.err
	}
	moves := make([]motion.Movement, 0, len(p.paths))
	for _, path := range p.paths {
		moves = append(moves, Move(path, speed, group))
	}
	return moves, nil
}

// TestPattern is the exercise run by the firmware self test and the host
// simulator: a square of side size from origin, the circle inscribed in it,
// then one helical turn of the same circle rising by size/10 on axis 2.
func TestPattern(origin [motion.NAxes]float32, size float32) *Program {
	p := NewProgram(origin)

	corner := func(dx, dy float32) [motion.NAxes]float32 {
		c := origin
		c[0] += dx
		c[1] += dy
		return c
	}
	p.LineTo(corner(size, 0)).
		LineTo(corner(size, size)).
		LineTo(corner(0, size)).
		LineTo(origin)

	half := size / 2
	cx, cy := origin[0]+half, origin[1]+half
	start := corner(half, 0)
	p.LineTo(start).ArcTo(0, 1, start, cx, cy, true)

	top := start
	top[2] += size / 10
	p.ArcTo(0, 1, top, cx, cy, false)

	return p
}
