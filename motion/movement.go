package motion

import (
	"errors"
	"math"
)

var (
	ErrDegenerateMovement = errors.New("degenerate movement")
)

// TrajectorySource maps the trajectory parameter to a position in machine
// units (not steps), one value per axis
type TrajectorySource interface {
	Position(t float32, out *[NAxes]float32)
}

// TrajectoryFunc adapts a plain function to TrajectorySource
type TrajectoryFunc func(t float32, out *[NAxes]float32)

// Position calls f
func (f TrajectoryFunc) Position(t float32, out *[NAxes]float32) {
	f(t, out)
}

// SpeedProcessor supplies the regulation speed of a movement
type SpeedProcessor interface {
	// SpeedAt returns the requested speed (units/s) at parameter t
	SpeedAt(t float32) float32

	// Group returns the axes whose combined distance the speed applies to
	Group() Signature
}

// ConstantSpeed requests the same speed over the whole movement
type ConstantSpeed struct {
	Speed float32
	Axes  Signature
}

// SpeedAt returns the constant speed
func (c ConstantSpeed) SpeedAt(t float32) float32 {
	return c.Speed
}

// Group returns the speed group
func (c ConstantSpeed) Group() Signature {
	return c.Axes
}

// Movement is a motion request: a trajectory swept from Min to Max (either
// order), with hooks run around its execution.
type Movement struct {
	Min, Max   float32
	Trajectory TrajectorySource
	Speed      SpeedProcessor

	// Init runs in the background when the planner starts the movement
	Init func()

	// Finalize runs exactly once per accepted movement, after its last pulse
	// (err == nil) or when it is dropped (err says why)
	Finalize func(err error)

	// ToolPower is applied to the tool output while the movement runs
	ToolPower float32
}

// Validate rejects movements that cannot produce motion
func (m *Movement) Validate() error {
	if m.Trajectory == nil || m.Speed == nil {
		return ErrDegenerateMovement
	}
	if m.Min == m.Max || isNaN(m.Min) || isNaN(m.Max) {
		return ErrDegenerateMovement
	}
	if m.Speed.Group()&AllAxes == 0 {
		return ErrDegenerateMovement
	}
	return nil
}

// Complete runs the finalize hook with err
func (m *Movement) Complete(err error) {
	if m.Finalize != nil {
		m.Finalize(err)
	}
}

// Extension is a controller-owned scratch area carried with a MachineState
type Extension [2 * NAxes]float32

// MachineState is the actuation state of the machine after a sub-movement
type MachineState struct {
	Positions [NAxes]int32   // steps
	Speeds    [NAxes]float32 // signed steps/s, average over the last sub-movement
	Ext       Extension
}

// AxisLimits are the physical limits of one axis, in steps
type AxisLimits struct {
	StepsPerUnit float32
	MaxSpeed     float32 // steps/s
	MaxAccel     float32 // steps/s²
	MaxJerk      float32 // steps/s, largest instantaneous speed change
}

// Band is the per-sub-movement pulse count band of the discretizer
type Band struct {
	MinDistance   uint16
	MaxDistance   uint16
	DistanceLimit uint16 // hard ceiling, never exceeded
	MaxRetries    int
}

// Constants are the read-only machine inputs of the motion kernels
type Constants struct {
	Axes      [NAxes]AxisLimits
	Band      Band
	TimerFreq uint32 // Hz
	MinDelay  uint32 // smallest timer delay between elementary ticks
}

// StepsPerUnit returns the per-axis steps per unit vector
func (c *Constants) StepsPerUnit() [NAxes]float32 {
	var spu [NAxes]float32
	for i := range c.Axes {
		spu[i] = c.Axes[i].StepsPerUnit
	}
	return spu
}

func isNaN(f float32) bool {
	return math.IsNaN(float64(f))
}
