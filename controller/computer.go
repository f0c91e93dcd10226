package controller

import "motionrt/motion"

// DistancesComputer is the position-target policy: it proposes the distances
// of the next sub-movement from the current state.
type DistancesComputer interface {
	// Compute writes the candidate distances into out. It returns false with
	// a nil error when there is nothing left to move.
	Compute(st *motion.MachineState, c *motion.Constants, out *motion.Distances) (bool, error)

	// Accept commits the last candidate
	Accept()

	// Reset drops any progress
	Reset()
}

// Resizer is implemented by computers able to shrink their candidate for a
// distance correction
type Resizer interface {
	Resize(ratio float32, out *motion.Distances) bool
}

// TrajectoryComputer is the default policy: it follows a trajectory through a
// discretizer
type TrajectoryComputer struct {
	disc *motion.Discretizer
}

// NewTrajectoryComputer creates a trajectory-following policy
func NewTrajectoryComputer(c *motion.Constants) *TrajectoryComputer {
	return &TrajectoryComputer{disc: motion.NewDiscretizer(c)}
}

// Load starts following src from parameter from to to, the machine being at
// origin (steps)
func (tc *TrajectoryComputer) Load(src motion.TrajectorySource, from, to float32, origin [motion.NAxes]int32) {
	tc.disc.Start(src, from, to, origin)
}

// Compute returns the next discretized sub-movement
func (tc *TrajectoryComputer) Compute(st *motion.MachineState, c *motion.Constants, out *motion.Distances) (bool, error) {
	return tc.disc.Next(out)
}

// Resize shrinks the pending candidate
func (tc *TrajectoryComputer) Resize(ratio float32, out *motion.Distances) bool {
	return tc.disc.Resize(ratio, out)
}

func (tc *TrajectoryComputer) Accept() {
	tc.disc.Commit()
}

func (tc *TrajectoryComputer) Reset() {
	tc.disc.Reset()
}

// Active reports whether a trajectory is loaded and unfinished
func (tc *TrajectoryComputer) Active() bool {
	return tc.disc.Active()
}

// Param returns the committed trajectory parameter
func (tc *TrajectoryComputer) Param() float32 {
	return tc.disc.Param()
}

// Final reports whether the pending candidate ends the trajectory
func (tc *TrajectoryComputer) Final() bool {
	return tc.disc.Final()
}

// BandMissed reports whether the pending candidate is outside the band
func (tc *TrajectoryComputer) BandMissed() bool {
	return tc.disc.BandMissed()
}
