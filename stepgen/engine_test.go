package stepgen

import (
	"testing"

	"motionrt/core"
	"motionrt/motion"
)

// recorder is a MotionDriver that keeps what the scheduler asked for
type recorder struct {
	armed     bool
	delay     uint32
	elapsed   uint64
	direction uint32
	enabled   uint32
	pulses    [motion.NAxes]int
	pos       [motion.NAxes]int32
	maxRate   uint32
}

func (r *recorder) SetDirections(signature uint32) { r.direction = signature }

func (r *recorder) Pulse(signature uint32) {
	for axis := 0; axis < motion.NAxes; axis++ {
		if signature&(1<<uint(axis)) == 0 {
			continue
		}
		r.pulses[axis]++
		if r.direction&(1<<uint(axis)) != 0 {
			r.pos[axis]--
		} else {
			r.pos[axis]++
		}
	}
}

func (r *recorder) ArmTimer(delay uint32) {
	r.armed = true
	r.delay = delay
	r.elapsed += uint64(delay)
}

func (r *recorder) DisarmTimer()           { r.armed = false }
func (r *recorder) EnableAxes(mask uint32) { r.enabled = mask }

func (r *recorder) Info() core.MotionDriverInfo {
	return core.MotionDriverInfo{Name: "recorder", MaxStepRate: r.maxRate}
}

type toolLog struct {
	levels []float32
}

func (t *toolLog) SetPower(power float32) { t.levels = append(t.levels, power) }

func testConfig() Config {
	c := motion.Constants{
		Band:      motion.Band{MinDistance: 10, MaxDistance: 15, DistanceLimit: 64, MaxRetries: 8},
		TimerFreq: 1000000,
		MinDelay:  5,
	}
	for i := range c.Axes {
		c.Axes[i] = motion.AxisLimits{StepsPerUnit: 1, MaxSpeed: 4000, MaxAccel: 40000, MaxJerk: 200}
	}
	return Config{Constants: c, QueueSize: 16, MoveQueueSize: 4}
}

func line(from, to [2]float32) motion.TrajectoryFunc {
	return func(t float32, out *[motion.NAxes]float32) {
		*out = [motion.NAxes]float32{
			from[0] + (to[0]-from[0])*t,
			from[1] + (to[1]-from[1])*t,
			0, 0,
		}
	}
}

// outcome records the Finalize calls of a movement
type outcome struct {
	calls int
	err   error
	order *[]string
	name  string
}

func (o *outcome) finalize(err error) {
	o.calls++
	o.err = err
	if o.order != nil {
		*o.order = append(*o.order, o.name)
	}
}

func movement(from, to [2]float32, o *outcome) motion.Movement {
	return motion.Movement{
		Min:        0,
		Max:        1,
		Trajectory: line(from, to),
		Speed:      motion.ConstantSpeed{Speed: 500, Axes: motion.AllAxes},
		Finalize:   o.finalize,
	}
}

// run interleaves background passes with timer interrupts until the engine
// is idle. It returns the number of passes.
func run(t *testing.T, e *Engine, r *recorder, maxPasses int) int {
	t.Helper()
	for i := 0; i < maxPasses; i++ {
		e.Poll()
		if r.armed {
			r.armed = false
			e.Tick()
		}
		if !e.Busy() {
			return i
		}
	}
	t.Fatalf("Engine still busy after %d passes (state %s)", maxPasses, e.State())
	return 0
}

func TestEngineLine(t *testing.T) {
	r := &recorder{}
	e := New(testConfig(), r, nil)

	o := &outcome{}
	if err := e.EnqueueMovement(movement([2]float32{0, 0}, [2]float32{100, 50}, o)); err != nil {
		t.Fatalf("EnqueueMovement failed: %v", err)
	}
	run(t, e, r, 100000)

	if o.calls != 1 || o.err != nil {
		t.Errorf("Expected one Finalize(nil), got %d calls, err=%v", o.calls, o.err)
	}
	if r.pos[0] != 100 || r.pos[1] != 50 {
		t.Errorf("Expected driver at (100, 50), got (%d, %d)", r.pos[0], r.pos[1])
	}
	if e.Position() != [motion.NAxes]int32{100, 50, 0, 0} {
		t.Errorf("Expected engine position (100, 50), got %v", e.Position())
	}
	if r.pulses[0] != 100 || r.pulses[1] != 50 {
		t.Errorf("Expected 100 and 50 pulses, got %v", r.pulses)
	}

	st := e.Stats()
	if st.Underruns != 0 {
		t.Errorf("Expected no underrun, got %d", st.Underruns)
	}
	if st.Movements != 1 || st.SubMovements == 0 {
		t.Errorf("Unexpected stats %+v", st)
	}
	if e.State() != StateIdle {
		t.Errorf("Expected idle, got %s", e.State())
	}
	if r.enabled != uint32(motion.AllAxes) {
		t.Errorf("Expected all axes enabled, got %b", r.enabled)
	}
}

func TestEngineFinalizeOrder(t *testing.T) {
	r := &recorder{}
	e := New(testConfig(), r, nil)

	var order []string
	a := &outcome{order: &order, name: "a"}
	b := &outcome{order: &order, name: "b"}
	z := &outcome{order: &order, name: "zero"}
	c := &outcome{order: &order, name: "c"}

	moves := []motion.Movement{
		movement([2]float32{0, 0}, [2]float32{60, 0}, a),
		movement([2]float32{60, 0}, [2]float32{60, 40}, b),
		// Rounds to no motion at all
		movement([2]float32{60, 40}, [2]float32{60.2, 40}, z),
		movement([2]float32{60, 40}, [2]float32{0, 0}, c),
	}
	for i, m := range moves {
		if err := e.EnqueueMovement(m); err != nil {
			t.Fatalf("EnqueueMovement(%d) failed: %v", i, err)
		}
	}
	run(t, e, r, 200000)

	want := []string{"a", "b", "zero", "c"}
	if len(order) != len(want) {
		t.Fatalf("Expected finalize order %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("Expected finalize order %v, got %v", want, order)
			break
		}
	}
	for _, o := range []*outcome{a, b, z, c} {
		if o.calls != 1 || o.err != nil {
			t.Errorf("Movement %s: expected one Finalize(nil), got %d calls, err=%v", o.name, o.calls, o.err)
		}
	}
	if r.pos != [motion.NAxes]int32{} {
		t.Errorf("Expected to be back at origin, got %v", r.pos)
	}
}

func TestEngineRejects(t *testing.T) {
	r := &recorder{}
	cfg := testConfig()
	cfg.MoveQueueSize = 2
	e := New(cfg, r, nil)

	if err := e.EnqueueMovement(motion.Movement{Min: 0, Max: 0}); err != ErrDegenerateMove {
		t.Errorf("Expected ErrDegenerateMove, got %v", err)
	}

	outcomes := make([]*outcome, 3)
	for i := range outcomes {
		outcomes[i] = &outcome{}
	}
	for i := 0; i < 2; i++ {
		if err := e.EnqueueMovement(movement([2]float32{0, 0}, [2]float32{10, 0}, outcomes[i])); err != nil {
			t.Fatalf("EnqueueMovement(%d) failed: %v", i, err)
		}
	}
	if err := e.EnqueueMovement(movement([2]float32{0, 0}, [2]float32{10, 0}, outcomes[2])); err != ErrQueueFull {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}

	e.Stop()
	if outcomes[2].calls != 0 {
		t.Error("Rejected movement must not be finalized")
	}
	for i := 0; i < 2; i++ {
		if outcomes[i].calls != 1 || outcomes[i].err != ErrStopped {
			t.Errorf("Movement %d: expected Finalize(ErrStopped), got %d calls, err=%v", i, outcomes[i].calls, outcomes[i].err)
		}
	}
	if e.Stats().Rejected != 2 {
		t.Errorf("Expected 2 rejected movements, got %d", e.Stats().Rejected)
	}
}

func TestEngineUnderrunStalls(t *testing.T) {
	r := &recorder{}
	e := New(testConfig(), r, nil)

	o := &outcome{}
	e.EnqueueMovement(movement([2]float32{0, 0}, [2]float32{1000, 0}, o))

	for i := 0; i < 10000 && e.State() != StateStepping; i++ {
		e.Poll()
		if r.armed {
			r.armed = false
			e.Tick()
		}
	}
	if e.State() != StateStepping {
		t.Fatalf("Expected stepping, got %s", e.State())
	}

	// Starve the background: only the interrupt runs
	for i := 0; i < 100000 && r.armed; i++ {
		r.armed = false
		e.Tick()
	}
	if e.State() != StateStalled {
		t.Fatalf("Expected stalled after the queue ran dry, got %s", e.State())
	}
	stalledAt := r.pos

	// No pulse once stalled
	e.Tick()
	if r.pos != stalledAt {
		t.Error("Pulses emitted after an underrun")
	}

	e.Poll()
	if o.calls != 1 || o.err != ErrUnderrun {
		t.Errorf("Expected Finalize(ErrUnderrun), got %d calls, err=%v", o.calls, o.err)
	}
	if e.State() != StateIdle {
		t.Errorf("Expected idle after abort, got %s", e.State())
	}
	if e.Position() != stalledAt {
		t.Errorf("Expected exact position %v, got %v", stalledAt, e.Position())
	}
	if e.Stats().Underruns != 1 {
		t.Errorf("Expected 1 underrun, got %d", e.Stats().Underruns)
	}
}

func TestEngineStopAndRestart(t *testing.T) {
	r := &recorder{}
	tool := &toolLog{}
	e := New(testConfig(), r, tool)

	a := &outcome{}
	b := &outcome{}
	m := movement([2]float32{0, 0}, [2]float32{500, 0}, a)
	m.ToolPower = 0.5
	e.EnqueueMovement(m)
	e.EnqueueMovement(movement([2]float32{500, 0}, [2]float32{500, 500}, b))

	for i := 0; i < 300; i++ {
		e.Poll()
		if r.armed {
			r.armed = false
			e.Tick()
		}
	}
	if r.pos[0] == 0 {
		t.Fatal("Expected some motion before stopping")
	}

	e.Stop()
	if a.err != ErrStopped || b.err != ErrStopped || a.calls != 1 || b.calls != 1 {
		t.Errorf("Expected both movements stopped once, got a=%v/%d b=%v/%d", a.err, a.calls, b.err, b.calls)
	}
	if e.State() != StateIdle {
		t.Errorf("Expected idle, got %s", e.State())
	}
	if len(tool.levels) < 2 || tool.levels[0] != 0.5 || tool.levels[len(tool.levels)-1] != 0 {
		t.Errorf("Expected tool at 0.5 then off, got %v", tool.levels)
	}
	if e.Position() != r.pos {
		t.Errorf("Expected engine position %v to match the driver %v", e.Position(), r.pos)
	}

	// Resume from where the stop left the machine
	here := e.Position()
	c := &outcome{}
	from := [2]float32{float32(here[0]), float32(here[1])}
	e.EnqueueMovement(movement(from, [2]float32{0, 0}, c))
	run(t, e, r, 200000)

	if c.calls != 1 || c.err != nil {
		t.Errorf("Expected Finalize(nil) after restart, got %d calls, err=%v", c.calls, c.err)
	}
	if r.pos != [motion.NAxes]int32{} {
		t.Errorf("Expected back at origin, got %v", r.pos)
	}
}

func TestEngineInfeasibleGeometry(t *testing.T) {
	r := &recorder{}
	e := New(testConfig(), r, nil)

	o := &outcome{}
	jump := motion.TrajectoryFunc(func(t float32, out *[motion.NAxes]float32) {
		*out = [motion.NAxes]float32{}
		if t >= 0.5 {
			out[0] = 5000
		}
	})
	e.EnqueueMovement(motion.Movement{
		Min:        0,
		Max:        1,
		Trajectory: jump,
		Speed:      motion.ConstantSpeed{Speed: 100, Axes: motion.AllAxes},
		Finalize:   o.finalize,
	})
	run(t, e, r, 10000)

	if o.calls != 1 {
		t.Fatalf("Expected one Finalize call, got %d", o.calls)
	}
	if o.err != motion.ErrInfeasibleGeometry && o.err != motion.ErrNoConvergence {
		t.Errorf("Expected a discretization error, got %v", o.err)
	}
	if e.Stats().Rejected != 1 {
		t.Errorf("Expected 1 rejected movement, got %d", e.Stats().Rejected)
	}
}

func TestEngineFailedMovementKeepsOthers(t *testing.T) {
	r := &recorder{}
	e := New(testConfig(), r, nil)

	var order []string
	a := &outcome{order: &order, name: "a"}
	b := &outcome{order: &order, name: "b"}
	c := &outcome{order: &order, name: "c"}

	jump := motion.TrajectoryFunc(func(t float32, out *[motion.NAxes]float32) {
		*out = [motion.NAxes]float32{2000}
		if t >= 0.5 {
			out[0] = 7000
		}
	})
	moves := []motion.Movement{
		movement([2]float32{0, 0}, [2]float32{2000, 0}, a),
		{
			Min:        0,
			Max:        1,
			Trajectory: jump,
			Speed:      motion.ConstantSpeed{Speed: 500, Axes: motion.AllAxes},
			Finalize:   b.finalize,
		},
		movement([2]float32{2000, 0}, [2]float32{0, 0}, c),
	}
	for i, m := range moves {
		if err := e.EnqueueMovement(m); err != nil {
			t.Fatalf("EnqueueMovement(%d) failed: %v", i, err)
		}
	}

	var reached int32
	for i := 0; i < 1000000 && e.Busy(); i++ {
		e.Poll()
		if a.calls == 1 && reached == 0 {
			reached = e.Position()[0]
		}
		if r.armed {
			r.armed = false
			e.Tick()
		}
	}
	if e.Busy() {
		t.Fatalf("Engine still busy (state %s)", e.State())
	}

	if a.calls != 1 || a.err != nil {
		t.Errorf("Movement a: expected one Finalize(nil), got %d calls, err=%v", a.calls, a.err)
	}
	if reached != 2000 {
		t.Errorf("Expected movement a to end at 2000, got %d", reached)
	}
	if b.calls != 1 || (b.err != motion.ErrInfeasibleGeometry && b.err != motion.ErrNoConvergence) {
		t.Errorf("Movement b: expected one Finalize with a discretization error, got %d calls, err=%v", b.calls, b.err)
	}
	if c.calls != 1 || c.err != nil {
		t.Errorf("Movement c: expected one Finalize(nil), got %d calls, err=%v", c.calls, c.err)
	}
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("Expected finalize order [a b c], got %v", order)
	}

	st := e.Stats()
	if st.Underruns != 0 {
		t.Errorf("Expected the failed movement to end on a planned stop, got %d underruns", st.Underruns)
	}
	if st.Rejected != 1 {
		t.Errorf("Expected 1 rejected movement, got %d", st.Rejected)
	}
	if r.pos != [motion.NAxes]int32{} || e.Position() != r.pos {
		t.Errorf("Expected back at origin, got driver %v engine %v", r.pos, e.Position())
	}
}

func TestEngineHonoursDriverStepRate(t *testing.T) {
	r := &recorder{maxRate: 50000}
	e := New(testConfig(), r, nil)
	// 1 MHz timer, 50 kHz driver
	if e.constants.MinDelay != 20 {
		t.Errorf("Expected minimum delay 20, got %d", e.constants.MinDelay)
	}

	e = New(testConfig(), &recorder{}, nil)
	if e.constants.MinDelay != 5 {
		t.Errorf("Expected configured minimum delay 5, got %d", e.constants.MinDelay)
	}
}

func TestSchedulerStateNames(t *testing.T) {
	names := map[State]string{
		StateIdle:     "idle",
		StateArming:   "arming",
		StateStepping: "stepping",
		StateDraining: "draining",
		StateStalled:  "stalled",
	}
	for s, want := range names {
		if s.String() != want {
			t.Errorf("Expected %q, got %q", want, s.String())
		}
	}
}
