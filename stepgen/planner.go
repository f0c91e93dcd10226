package stepgen

import (
	"motionrt/controller"
	"motionrt/core"
	"motionrt/motion"
)

// stage is the resume point of the background planner
type stage uint8

const (
	stageFetch       stage = iota // take the next movement
	stageDiscretize               // next candidate distances
	stageSignature                // pulse planes and firing order
	stageBookkeeping              // end/jerk accumulators and junction speed
	stageSolve                    // duration, with at most one correction
	stageCommit                   // speeds and tool, then enqueue
)

// maxCorrections bounds the distance corrections per sub-movement
const maxCorrections = 1

// flight is a movement fetched by the planner. It is finalized with err once
// the scheduler has consumed its last sub-movement.
type flight struct {
	move motion.Movement
	err  error
}

// Planner prepares timed sub-movements one stage at a time
type Planner struct {
	ctl   *controller.Controller
	traj  *controller.TrajectoryComputer
	c     *motion.Constants
	spu   [motion.NAxes]float32
	jerk  [motion.NAxes]float32
	moves *core.Ring[motion.Movement]
	queue *core.Ring[motion.SubMovement]

	// inflight holds fetched movements until their last pulse
	inflight *core.Ring[flight]

	// successor checks that the next movement can start before planning a
	// junction into it
	successor *motion.Discretizer

	stage       stage
	current     motion.Movement
	active      bool
	planStop    bool
	dist        motion.Distances
	sub         motion.SubMovement
	sol         motion.Solution
	corrections int
	final       bool

	// Jerk point look-ahead over the current movement
	dir         float32               // sign of the parameter sweep
	scanStep    float32               // parameter per sampled chord
	rate        float32               // steps of the leading axis per unit of parameter
	rescanAt    float32               // parameter at which to look ahead again
	scanDone    bool                  // the look-ahead reached the end of the movement
	hasJunction bool                  // a successor continues without stopping
	junction    [motion.NAxes]float32 // per-axis speed allowed into the successor

	stats Stats
}

func newPlanner(c *motion.Constants, moves *core.Ring[motion.Movement], queue *core.Ring[motion.SubMovement], inflight *core.Ring[flight]) *Planner {
	shared := &motion.SharedKinematicState{}
	traj := controller.NewTrajectoryComputer(c)
	return &Planner{
		ctl:       controller.New(c, shared, traj),
		traj:      traj,
		c:         c,
		spu:       c.StepsPerUnit(),
		jerk:      c.JerkUnits(),
		moves:     moves,
		queue:     queue,
		inflight:  inflight,
		successor: motion.NewDiscretizer(c),
	}
}

// Idle reports whether there is nothing to plan
func (p *Planner) Idle() bool {
	return !p.active && p.moves.IsEmpty()
}

// Blocked reports whether the planner waits for queue space
func (p *Planner) Blocked() bool {
	return p.stage == stageCommit && p.queue.Free() == 0
}

// Controller returns the machine controller driven by the planner
func (p *Planner) Controller() *controller.Controller {
	return p.ctl
}

// Reset abandons the current movement and re-seeds the machine state at
// positions
func (p *Planner) Reset(positions [motion.NAxes]int32) {
	p.ctl.Reset(positions)
	p.stage = stageFetch
	p.active = false
	p.current = motion.Movement{}
}

// Step runs one planning stage. It returns false when there was nothing to do.
func (p *Planner) Step() bool {
	switch p.stage {
	case stageFetch:
		return p.fetch()
	case stageDiscretize:
		p.discretize()
	case stageSignature:
		p.sub = motion.SubMovement{}
		p.sub.SetDistances(p.dist)
		p.stage = stageBookkeeping
	case stageBookkeeping:
		if !p.scanDone && (p.traj.Param()-p.rescanAt)*p.dir >= 0 {
			p.lookAhead(p.traj.Param())
		}
		p.ctl.UpdateBuilder(p.dist)
		p.stage = stageSolve
	case stageSolve:
		p.solve()
	case stageCommit:
		return p.commit()
	}
	return true
}

func (p *Planner) fetch() bool {
	if p.inflight.Free() == 0 {
		return false
	}
	m, ok := p.moves.Pop()
	if !ok {
		return false
	}
	p.inflight.Push(flight{move: m})
	p.current = m
	p.active = true
	p.corrections = 0
	if m.Init != nil {
		m.Init()
	}

	travel := motion.EstimateTravel(m.Trajectory, m.Min, m.Max, p.spu)
	shared := p.ctl.Shared
	p.hasJunction = false
	if next, ok := p.moves.Peek(0); ok && p.canStart(&m, next) {
		// Junction with the next movement: slow down for it, stop after it
		nextTravel := motion.EstimateTravel(next.Trajectory, next.Min, next.Max, p.spu)
		var end [motion.NAxes]uint32
		for i := range end {
			end[i] = travel[i] + nextTravel[i]
		}
		shared.PlanStop(end)
		p.junction = p.junctionSpeeds(&m, next)
		p.hasJunction = true
		p.planStop = false
	} else {
		shared.PlanStop(travel)
		p.planStop = true
	}

	p.dir = 1
	if m.Max < m.Min {
		p.dir = -1
	}
	var lead uint32
	for _, v := range travel {
		if v > lead {
			lead = v
		}
	}
	p.rate = float32(lead) / ((m.Max - m.Min) * p.dir)
	p.scanStep = 0
	if p.rate > 0 {
		p.scanStep = float32(p.c.Band.MinDistance+p.c.Band.MaxDistance) / 2 / p.rate
	}
	p.scanDone = false
	p.lookAhead(m.Min)

	p.traj.Load(m.Trajectory, m.Min, m.Max, p.ctl.States().Current().Positions)
	p.stats.Movements++
	core.RecordTiming(core.EvtMoveStart, core.NoAxis, p.stats.Movements, 0)
	p.stage = stageDiscretize
	return true
}

// canStart reports whether the first sub-movement of next can be planned from
// the end of m. A successor that cannot start is not worth a junction: m is
// planned to stop instead.
func (p *Planner) canStart(m, next *motion.Movement) bool {
	var end [motion.NAxes]float32
	m.Trajectory.Position(m.Max, &end)
	p.successor.Start(next.Trajectory, next.Min, next.Max, motion.StepPosition(end, p.spu))
	var d motion.Distances
	_, err := p.successor.Next(&d)
	p.successor.Reset()
	return err == nil
}

// lookAhead registers the next jerk point of the current movement seen from
// parameter t: the first corner within twice the stopping distance, else the
// junction with the successor once the end is in sight.
func (p *Planner) lookAhead(t float32) {
	m := &p.current
	shared := p.ctl.Shared
	if p.scanStep <= 0 {
		shared.ClearJerkPoint()
		p.scanDone = true
		return
	}

	speed := m.Speed.SpeedAt(t)
	to := t + p.dir*p.scanSpan(speed)
	if (to-m.Max)*p.dir >= 0 {
		to = m.Max
	}
	step := p.scanStep
	if span := (to - t) * p.dir; span > step*motion.MaxCornerSamples {
		step = span / motion.MaxCornerSamples
	}

	cur := p.ctl.States().CurrentRef()
	var in [motion.NAxes]float32
	copy(in[:], cur.Ext[controller.ExtDirection:controller.ExtDirection+motion.NAxes])
	hasIn := cur.Ext[controller.ExtHasDir] != 0

	if c, ok := motion.FindCorner(m.Trajectory, t, to, step, p.spu, p.jerk, in, hasIn, speed); ok {
		var caps [motion.NAxes]float32
		for i := range caps {
			caps[i] = c.Speed * absf(c.Exit[i]) * p.spu[i]
		}
		shared.SetJerkPoint(c.Travel, caps)
		p.rescanAt = c.Param
		core.RecordTiming(core.EvtJerkPoint, core.NoAxis, uint32(c.Speed), 0)
		return
	}

	if to != m.Max {
		shared.ClearJerkPoint()
		p.rescanAt = t + (to-t)/2
		return
	}
	p.scanDone = true
	if p.hasJunction {
		shared.SetJerkPoint(motion.EstimateTravel(m.Trajectory, t, m.Max, p.spu), p.junction)
	} else {
		shared.ClearJerkPoint()
	}
}

// scanSpan returns the parameter span worth looking ahead at speed: twice the
// distance the slowest-braking axis needs to stop, plus one sub-movement
func (p *Planner) scanSpan(speed float32) float32 {
	var stop float32
	for i, a := range p.c.Axes {
		if a.MaxAccel <= 0 {
			continue
		}
		v := speed * p.spu[i]
		if a.MaxSpeed > 0 && v > a.MaxSpeed {
			v = a.MaxSpeed
		}
		if d := v * v / (2 * a.MaxAccel); d > stop {
			stop = d
		}
	}
	mid := float32(p.c.Band.MinDistance+p.c.Band.MaxDistance) / 2
	return (2*stop + mid) / p.rate
}

// junctionSpeeds returns the per-axis speed (steps/s) allowed when crossing
// from a to b, from the jerk clamp on their end and start tangents
func (p *Planner) junctionSpeeds(a, b *motion.Movement) [motion.NAxes]float32 {
	exit, ok1 := tangent(a.Trajectory, a.Max-(a.Max-a.Min)/64, a.Max)
	entry, ok2 := tangent(b.Trajectory, b.Min, b.Min+(b.Max-b.Min)/64)
	var out [motion.NAxes]float32
	if !ok1 || !ok2 {
		return out
	}
	v := motion.JerkLimitedSpeed(exit, entry, p.jerk)
	if requested := a.Speed.SpeedAt(a.Max); requested < v {
		v = requested
	}
	for i := range out {
		out[i] = v * absf(exit[i]) * p.spu[i]
	}
	return out
}

// tangent returns the unit direction of src between two close parameters
func tangent(src motion.TrajectorySource, from, to float32) ([motion.NAxes]float32, bool) {
	var a, b [motion.NAxes]float32
	src.Position(from, &a)
	src.Position(to, &b)
	return motion.Direction(a, b)
}

func (p *Planner) discretize() {
	ok, err := p.ctl.ComputeDistances(&p.dist)
	if err != nil {
		p.fail(err)
		return
	}
	if !ok {
		// Nothing left: close the movement with a pulse-free marker
		p.dist = motion.Distances{}
		p.sub = motion.SubMovement{}
		p.final = true
		p.stage = stageCommit
		return
	}
	p.final = p.traj.Final()
	if p.traj.BandMissed() {
		p.stats.BandMisses++
		max, axis := p.dist.MaxAbs()
		core.RecordTiming(core.EvtBandMiss, uint8(axis), uint32(max), 0)
	}
	p.corrections = 0
	p.stage = stageSignature
}

func (p *Planner) solve() {
	speed := p.current.Speed.SpeedAt(p.traj.Param())
	requested := p.ctl.RequestedDuration(p.dist, speed, p.current.Speed.Group())
	p.sol = p.ctl.DetermineDuration(p.dist, requested)

	if p.sol.Violations != 0 && p.corrections < maxCorrections {
		p.corrections++
		if p.ctl.Correct(&p.dist, p.sol) {
			p.stats.Corrections++
			core.RecordTiming(core.EvtCorrection, core.NoAxis, uint32(p.sol.Violations), 0)
			p.final = p.traj.Final()
			p.stage = stageSignature
			return
		}
	}
	if p.sol.Conflict || p.sol.Violations != 0 {
		p.stats.Conflicts++
		core.RecordTiming(core.EvtConflict, core.NoAxis, uint32(p.sol.Violations), core.SecondsToTicks(p.sol.Duration))
	}
	p.stage = stageCommit
}

func (p *Planner) commit() bool {
	slot, ok := p.queue.InsertionSlot()
	if !ok {
		return false
	}

	if !p.sub.IsEmpty() {
		p.ctl.ComputeState(p.dist, p.sol.Duration)
		p.sub.SetDuration(p.sol.Duration, p.c.TimerFreq, p.c.MinDelay)
	}
	p.sub.Tool = p.current.ToolPower
	p.sub.Last = p.final
	p.sub.Stop = p.final && p.planStop
	*slot = p.sub
	p.queue.CommitInsertion()

	if !p.sub.IsEmpty() {
		p.ctl.Accept()
		p.stats.SubMovements++
	}

	if p.final {
		p.active = false
		p.current = motion.Movement{}
		p.ctl.Shared.ClearJerkPoint()
		p.stage = stageFetch
		return true
	}
	p.stage = stageDiscretize
	return true
}

// fail drops the rest of the current movement. The movement is finalized
// with err after the sub-movements already queued, which end on a planned
// stop; the following movements start from rest.
func (p *Planner) fail(err error) {
	p.stats.Rejected++
	core.RecordTiming(core.EvtReject, core.NoAxis, p.stats.Movements, 0)
	core.DebugPrintln("[STEPGEN] movement rejected by planner: " + err.Error())

	if f, ok := p.inflight.Peek(p.inflight.Len() - 1); ok {
		f.err = err
	}
	p.ctl.Reset(p.ctl.States().Current().Positions)
	p.hasJunction = false
	p.planStop = true

	// Close the movement with a pulse-free stop marker
	p.dist = motion.Distances{}
	p.sub = motion.SubMovement{}
	p.final = true
	p.stage = stageCommit
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
