package controller

import (
	"testing"

	"motionrt/motion"
)

func testConstants() *motion.Constants {
	c := &motion.Constants{
		Band:      motion.Band{MinDistance: 10, MaxDistance: 15, DistanceLimit: 64, MaxRetries: 8},
		TimerFreq: 1000000,
		MinDelay:  5,
	}
	for i := range c.Axes {
		c.Axes[i] = motion.AxisLimits{StepsPerUnit: 1, MaxSpeed: 2000, MaxAccel: 20000, MaxJerk: 50}
	}
	return c
}

func lineTo(x, y float32) motion.TrajectoryFunc {
	return func(t float32, out *[motion.NAxes]float32) {
		*out = [motion.NAxes]float32{x * t, y * t, 0, 0}
	}
}

func TestStatesAcceptIsIdempotent(t *testing.T) {
	var s States
	s.Reset(motion.MachineState{Positions: [motion.NAxes]int32{1, 2, 3, 4}})

	cand := s.Candidate()
	if cand.Positions[0] != 1 {
		t.Errorf("Expected candidate seeded from current, got %v", cand.Positions)
	}
	cand.Positions[0] = 10
	if s.Current().Positions[0] != 1 {
		t.Error("Candidate write leaked into current")
	}

	if !s.Accept() {
		t.Fatal("First Accept should switch slots")
	}
	if s.Current().Positions[0] != 10 {
		t.Errorf("Expected current position 10, got %d", s.Current().Positions[0])
	}

	before := s.Current()
	if s.Accept() {
		t.Error("Second Accept without a candidate write should be a no-op")
	}
	if s.Current() != before {
		t.Errorf("Expected current unchanged, got %+v", s.Current())
	}
}

func TestStatesDiscard(t *testing.T) {
	var s States
	s.Candidate().Speeds[1] = 5
	s.Discard()
	s.Accept()
	if s.Current().Speeds[1] != 0 {
		t.Error("Discarded candidate became current")
	}
}

func TestEnableDisable(t *testing.T) {
	c := testConstants()
	ctl := New(c, &motion.SharedKinematicState{}, nil)

	if len(ctl.Constraints()) != 5 {
		t.Fatalf("Expected 5 default constraints, got %d", len(ctl.Constraints()))
	}
	if err := ctl.Disable("jerk"); err != nil {
		t.Fatalf("Disable(jerk) failed: %v", err)
	}
	names := ""
	for _, l := range ctl.Constraints() {
		names += l.Name() + " "
	}
	if names != "stop junction speed accel " {
		t.Errorf("Expected stop junction speed accel, got %q", names)
	}
	if err := ctl.Enable("jerk"); err != nil {
		t.Fatalf("Enable(jerk) failed: %v", err)
	}
	if ctl.Constraints()[1].Name() != "jerk" {
		t.Error("Re-enabled constraint should keep its priority")
	}
	if err := ctl.Disable("nope"); err != ErrUnknownHook {
		t.Errorf("Expected ErrUnknownHook, got %v", err)
	}
}

func TestPipelineFollowsLine(t *testing.T) {
	c := testConstants()
	shared := &motion.SharedKinematicState{}
	tc := NewTrajectoryComputer(c)
	ctl := New(c, shared, tc)

	ctl.Reset([motion.NAxes]int32{})
	shared.PlanStop(motion.EstimateTravel(lineTo(100, 50), 0, 1, c.StepsPerUnit()))
	tc.Load(lineTo(100, 50), 0, 1, [motion.NAxes]int32{})

	var prevSpeed float32
	for n := 0; n < 100; n++ {
		var d motion.Distances
		ok, err := ctl.ComputeDistances(&d)
		if err != nil {
			t.Fatalf("ComputeDistances failed: %v", err)
		}
		if !ok {
			break
		}
		final := tc.Final()

		ctl.UpdateBuilder(d)
		requested := ctl.RequestedDuration(d, 1000, motion.AllAxes)
		sol := ctl.DetermineDuration(d, requested)
		if sol.Duration <= 0 {
			t.Fatalf("Expected a positive duration, got %v", sol.Duration)
		}

		ctl.ComputeState(d, sol.Duration)
		ctl.Accept()

		v := ctl.States().Current().Speeds[0]
		if dv := v - prevSpeed; dv > c.Axes[0].MaxAccel*sol.Duration*1.01 && !sol.Conflict {
			t.Errorf("Sub-movement %d: speed jump %v above acceleration bound", n, dv)
		}
		prevSpeed = v
		if final {
			break
		}
	}

	st := ctl.States().Current()
	if st.Positions[0] != 100 || st.Positions[1] != 50 {
		t.Errorf("Expected final position (100, 50), got %v", st.Positions)
	}
}

func TestJunctionClampsRequestedSpeed(t *testing.T) {
	c := testConstants()
	ctl := New(c, &motion.SharedKinematicState{}, nil)

	// Last sub-movement went along +X
	d1 := motion.Distances{10, 0, 0, 0}
	ctl.UpdateBuilder(d1)
	ctl.ComputeState(d1, 0.01)
	ctl.Accept()

	// Next one turns to +Y: axis speed change limited to 50 units/s
	d2 := motion.Distances{0, 10, 0, 0}
	ctl.UpdateBuilder(d2)
	got := ctl.RequestedDuration(d2, 1000, motion.AllAxes)
	if got < 10.0/50-1e-4 {
		t.Errorf("Expected at least %v s at the jerk-limited speed, got %v", 10.0/50, got)
	}
}

func TestJunctionLimitsSolvedDuration(t *testing.T) {
	c := testConstants()
	ctl := New(c, &motion.SharedKinematicState{}, nil)

	d1 := motion.Distances{10, 0, 0, 0}
	ctl.UpdateBuilder(d1)
	ctl.ComputeState(d1, 0.01)
	ctl.Accept()

	// A short requested duration does not get past the turn
	d2 := motion.Distances{0, 10, 0, 0}
	ctl.UpdateBuilder(d2)
	sol := ctl.DetermineDuration(d2, 0.01)
	if sol.Duration < 10.0/50-1e-4 {
		t.Errorf("Expected at least %v s across the turn, got %v", 10.0/50, sol.Duration)
	}

	// Straight on, nothing to slow down for
	d3 := motion.Distances{10, 0, 0, 0}
	ctl.UpdateBuilder(d3)
	if sol := ctl.DetermineDuration(d3, 0.01); sol.Duration >= 10.0/50 {
		t.Errorf("Expected no turn penalty on a straight junction, got %v", sol.Duration)
	}
}

// countingComputer is a DistancesComputer that only counts calls
type countingComputer struct {
	computes, accepts, resets int
}

func (cc *countingComputer) Compute(st *motion.MachineState, c *motion.Constants, out *motion.Distances) (bool, error) {
	cc.computes++
	*out = motion.Distances{1, 0, 0, 0}
	return true, nil
}

func (cc *countingComputer) Accept() { cc.accepts++ }
func (cc *countingComputer) Reset()  { cc.resets++ }

func TestSetDistancesComputerResetsPrevious(t *testing.T) {
	c := testConstants()
	first := &countingComputer{}
	ctl := New(c, &motion.SharedKinematicState{}, first)

	var d motion.Distances
	ctl.ComputeDistances(&d)
	ctl.Accept()

	second := &countingComputer{}
	ctl.SetDistancesComputer(second)
	if first.resets != 1 {
		t.Errorf("Expected the replaced computer reset once, got %d", first.resets)
	}
	if second.resets != 0 {
		t.Errorf("Expected the new computer untouched, got %d resets", second.resets)
	}
	if ctl.DistancesComputer() != second {
		t.Fatal("Expected the new computer installed")
	}

	if ok, err := ctl.ComputeDistances(&d); !ok || err != nil {
		t.Fatalf("ComputeDistances failed: ok=%v err=%v", ok, err)
	}
	ctl.Accept()
	if first.computes != 1 || first.accepts != 1 {
		t.Errorf("Expected the old computer left alone, got %+v", *first)
	}
	if second.computes != 1 || second.accepts != 1 {
		t.Errorf("Expected the new computer to plan, got %+v", *second)
	}
}

func TestCorrectShrinksCandidate(t *testing.T) {
	c := testConstants()
	c.Axes[0].MaxSpeed = 100
	c.Axes[0].MaxAccel = 0
	tc := NewTrajectoryComputer(c)
	ctl := New(c, &motion.SharedKinematicState{}, tc)
	ctl.Disable("stop")

	tc.Load(lineTo(100, 0), 0, 1, [motion.NAxes]int32{})
	var d motion.Distances
	if ok, err := ctl.ComputeDistances(&d); !ok || err != nil {
		t.Fatalf("ComputeDistances failed: ok=%v err=%v", ok, err)
	}
	before := d[0]

	// Force a duration too short for the speed limit
	sol := motion.Solution{Duration: 0.05, Violations: motion.Signature(0).With(0)}
	if !ctl.Correct(&d, sol) {
		t.Fatal("Expected a correction")
	}
	if d[0] >= before || float32(d[0]) > 100*0.05+1 {
		t.Errorf("Expected about 5 steps after correction, got %d (was %d)", d[0], before)
	}
}
