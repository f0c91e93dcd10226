package controller

import (
	"errors"

	"motionrt/motion"
)

var ErrUnknownHook = errors.New("unknown controller hook")

// Extension slots of motion.MachineState used by the default hooks
const (
	ExtDirection = 0                // unit direction of the last sub-movement, NAxes slots
	ExtHasDir    = motion.NAxes     // 1 when ExtDirection is valid
	ExtJerkSpeed = motion.NAxes + 1 // jerk-limited path speed at the junction, 0 if none
)

// BuilderHook prepares the candidate state from the current one before the
// duration is solved
type BuilderHook func(cur, next *motion.MachineState, d motion.Distances)

// StateHook completes the candidate state once the duration is known
type StateHook func(cur, next *motion.MachineState, d motion.Distances, duration float32)

type hook[F any] struct {
	name    string
	fn      F
	enabled bool
}

type constraint struct {
	limit   motion.PhysicalLimit
	enabled bool
}

// Controller runs the per sub-movement pipeline: compute distances, update
// builders, determine duration, compute state, accept.
type Controller struct {
	Constants *motion.Constants
	Shared    *motion.SharedKinematicState

	states   States
	computer DistancesComputer

	builders    []hook[BuilderHook]
	constraints []constraint
	stateHooks  []hook[StateHook]

	active []motion.PhysicalLimit // enabled constraints, in order
	spu    [motion.NAxes]float32
	jerk   [motion.NAxes]float32

	// junction is the per-axis speed cap (steps/s) of the candidate across
	// its junction with the last sub-movement, 0 when free
	junction [motion.NAxes]float32
}

// New creates a controller with the default constraints and hooks
func New(c *motion.Constants, shared *motion.SharedKinematicState, computer DistancesComputer) *Controller {
	ctl := &Controller{
		Constants: c,
		Shared:    shared,
		computer:  computer,
		spu:       c.StepsPerUnit(),
		jerk:      c.JerkUnits(),
	}
	for _, l := range motion.DefaultLimits(c, shared) {
		ctl.AddConstraint(l)
		if l.Name() == "jerk" {
			ctl.AddConstraint(&junctionLimit{ctl: ctl})
		}
	}
	ctl.AddBuilder("kinematics", ctl.previewKinematics)
	ctl.AddBuilder("junction", ctl.junctionSpeed)
	ctl.AddStateHook("positions", updatePositions)
	ctl.AddStateHook("speeds", updateSpeeds)
	ctl.AddStateHook("direction", ctl.updateDirection)
	return ctl
}

// States returns the state arena
func (ctl *Controller) States() *States {
	return &ctl.states
}

// SetDistancesComputer swaps the position-target policy
func (ctl *Controller) SetDistancesComputer(dc DistancesComputer) {
	if ctl.computer != nil {
		ctl.computer.Reset()
	}
	ctl.computer = dc
}

// DistancesComputer returns the current position-target policy
func (ctl *Controller) DistancesComputer() DistancesComputer {
	return ctl.computer
}

// AddBuilder appends an enabled builder hook
func (ctl *Controller) AddBuilder(name string, fn BuilderHook) {
	ctl.builders = append(ctl.builders, hook[BuilderHook]{name: name, fn: fn, enabled: true})
}

// AddStateHook appends an enabled state hook
func (ctl *Controller) AddStateHook(name string, fn StateHook) {
	ctl.stateHooks = append(ctl.stateHooks, hook[StateHook]{name: name, fn: fn, enabled: true})
}

// AddConstraint appends an enabled constraint with the lowest priority
func (ctl *Controller) AddConstraint(l motion.PhysicalLimit) {
	ctl.constraints = append(ctl.constraints, constraint{limit: l, enabled: true})
	ctl.rebuild()
}

// Enable switches a builder hook, constraint or state hook on by name
func (ctl *Controller) Enable(name string) error {
	return ctl.setEnabled(name, true)
}

// Disable switches a builder hook, constraint or state hook off by name
func (ctl *Controller) Disable(name string) error {
	return ctl.setEnabled(name, false)
}

func (ctl *Controller) setEnabled(name string, on bool) error {
	found := false
	for i := range ctl.builders {
		if ctl.builders[i].name == name {
			ctl.builders[i].enabled = on
			found = true
		}
	}
	for i := range ctl.stateHooks {
		if ctl.stateHooks[i].name == name {
			ctl.stateHooks[i].enabled = on
			found = true
		}
	}
	for i := range ctl.constraints {
		if ctl.constraints[i].limit.Name() == name {
			ctl.constraints[i].enabled = on
			found = true
		}
	}
	if !found {
		return ErrUnknownHook
	}
	ctl.rebuild()
	return nil
}

// Constraints returns the enabled constraints in priority order
func (ctl *Controller) Constraints() []motion.PhysicalLimit {
	return ctl.active
}

func (ctl *Controller) rebuild() {
	ctl.active = ctl.active[:0]
	for _, c := range ctl.constraints {
		if c.enabled {
			ctl.active = append(ctl.active, c.limit)
		}
	}
}

// ComputeDistances asks the distances computer for the next candidate
func (ctl *Controller) ComputeDistances(out *motion.Distances) (bool, error) {
	if ctl.computer == nil {
		return false, nil
	}
	return ctl.computer.Compute(ctl.states.CurrentRef(), ctl.Constants, out)
}

// UpdateBuilder runs the enabled builder hooks on (current, candidate)
func (ctl *Controller) UpdateBuilder(d motion.Distances) {
	cur := ctl.states.CurrentRef()
	next := ctl.states.Candidate()
	ctl.junction = [motion.NAxes]float32{}
	for _, h := range ctl.builders {
		if h.enabled {
			h.fn(cur, next, d)
		}
	}
}

// RequestedDuration converts a regulation speed (units/s over group) into a
// duration for d, after clamping the speed to the junction jerk limit
func (ctl *Controller) RequestedDuration(d motion.Distances, speed float32, group motion.Signature) float32 {
	if js := ctl.states.Candidate().Ext[ExtJerkSpeed]; js > 0 && js < speed {
		speed = js
	}
	if speed <= 0 {
		return 0
	}
	return motion.PathLength(d, ctl.spu, group) / speed
}

// DetermineDuration merges the enabled constraints left to right and picks
// the admissible duration nearest to requested
func (ctl *Controller) DetermineDuration(d motion.Distances, requested float32) motion.Solution {
	return motion.Solve(ctl.active, d, ctl.states.CurrentRef(), requested)
}

// Correct shrinks the candidate so that the violated axes fit the solved
// duration. It returns false when no correction applies.
func (ctl *Controller) Correct(d *motion.Distances, sol motion.Solution) bool {
	if sol.Violations == 0 {
		return false
	}
	r, ok := ctl.computer.(Resizer)
	if !ok {
		return false
	}
	ratio := motion.Corrections(ctl.active, *d, ctl.states.CurrentRef(), sol)
	if ratio >= 1 {
		return false
	}
	return r.Resize(ratio, d)
}

// ComputeState runs the enabled state hooks on (current, candidate)
func (ctl *Controller) ComputeState(d motion.Distances, duration float32) {
	cur := ctl.states.CurrentRef()
	next := ctl.states.Candidate()
	for _, h := range ctl.stateHooks {
		if h.enabled {
			h.fn(cur, next, d, duration)
		}
	}
}

// Accept commits the candidate state, the distances computer and the
// kinematic accumulators
func (ctl *Controller) Accept() {
	ctl.states.Accept()
	if ctl.computer != nil {
		ctl.computer.Accept()
	}
	if ctl.Shared != nil {
		ctl.Shared.Commit()
	}
}

// Reset re-seeds the controller at positions, at rest
func (ctl *Controller) Reset(positions [motion.NAxes]int32) {
	ctl.states.Reset(motion.MachineState{Positions: positions})
	if ctl.computer != nil {
		ctl.computer.Reset()
	}
	if ctl.Shared != nil {
		ctl.Shared.Reset()
	}
}

func (ctl *Controller) previewKinematics(cur, next *motion.MachineState, d motion.Distances) {
	if ctl.Shared != nil {
		ctl.Shared.Preview(d)
	}
}

func (ctl *Controller) junctionSpeed(cur, next *motion.MachineState, d motion.Distances) {
	next.Ext[ExtJerkSpeed] = 0
	if cur.Ext[ExtHasDir] == 0 {
		return
	}
	u, ok := motion.UnitVector(d, ctl.spu)
	if !ok {
		return
	}
	var prev [motion.NAxes]float32
	copy(prev[:], cur.Ext[ExtDirection:ExtDirection+motion.NAxes])
	v := motion.JerkLimitedSpeed(prev, u, ctl.jerk)
	if v >= 1e30 {
		return
	}
	next.Ext[ExtJerkSpeed] = v
	for i := range u {
		ctl.junction[i] = v * absf(u[i]) * ctl.spu[i]
	}
}

// junctionLimit keeps the candidate at or below the jerk-limited speed of its
// junction with the last sub-movement. It ranks above the acceleration limit:
// when both cannot hold, the turn is taken slowly and the speed change is
// reported as a violation.
type junctionLimit struct {
	ctl *Controller
}

func (l *junctionLimit) Name() string { return "junction" }

func (l *junctionLimit) DurationInterval(axis int, distance int32, st *motion.MachineState) motion.TimeInterval {
	v := l.ctl.junction[axis]
	if v <= 0 || distance == 0 {
		return motion.TimeInterval{}
	}
	if distance < 0 {
		distance = -distance
	}
	return motion.AtLeast(float32(distance) / v)
}

func (l *junctionLimit) MinimalDistance(axis int, duration float32, distance int32, st *motion.MachineState) int32 {
	return motion.LargestDistance(l, axis, duration, distance, st)
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func (ctl *Controller) updateDirection(cur, next *motion.MachineState, d motion.Distances, duration float32) {
	u, ok := motion.UnitVector(d, ctl.spu)
	if !ok {
		return
	}
	copy(next.Ext[ExtDirection:ExtDirection+motion.NAxes], u[:])
	next.Ext[ExtHasDir] = 1
}

func updatePositions(cur, next *motion.MachineState, d motion.Distances, duration float32) {
	for i := range d {
		next.Positions[i] = cur.Positions[i] + d[i]
	}
}

func updateSpeeds(cur, next *motion.MachineState, d motion.Distances, duration float32) {
	for i := range d {
		if duration > 0 {
			next.Speeds[i] = float32(d[i]) / duration
		} else {
			next.Speeds[i] = 0
		}
	}
}
