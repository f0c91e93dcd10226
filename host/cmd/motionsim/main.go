package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"motionrt/config"
	"motionrt/core"
	"motionrt/motion"
	"motionrt/stepgen"
	"motionrt/trajectory"
)

var (
	machineFile = flag.String("config", "", "Machine description (.json or .yaml); built-in machine when empty")
	size        = flag.Float64("size", 40, "Test pattern size (mm)")
	speed       = flag.Float64("speed", 0, "Path speed (mm/s); machine default when 0")
	tool        = flag.Float64("tool", 0, "Tool power during the pattern (0..1)")
	maxPasses   = flag.Int("passes", 50000000, "Background pass limit")
	debug       = flag.Bool("debug", false, "Print engine debug output and the timing ring")
)

// simDriver stands in for the hardware: it counts pulses and keeps time
type simDriver struct {
	armed     bool
	clock     uint64
	direction uint32
	enabled   uint32
	pulses    [motion.NAxes]uint32
	pos       [motion.NAxes]int32
}

func (d *simDriver) SetDirections(signature uint32) { d.direction = signature }

func (d *simDriver) Pulse(signature uint32) {
	for axis := 0; axis < motion.NAxes; axis++ {
		if signature&(1<<uint(axis)) == 0 {
			continue
		}
		d.pulses[axis]++
		if d.direction&(1<<uint(axis)) != 0 {
			d.pos[axis]--
		} else {
			d.pos[axis]++
		}
	}
}

func (d *simDriver) ArmTimer(delay uint32) {
	d.armed = true
	d.clock += uint64(delay)
	core.SetTime(uint32(d.clock))
}

func (d *simDriver) DisarmTimer()           { d.armed = false }
func (d *simDriver) EnableAxes(mask uint32) { d.enabled = mask }
func (d *simDriver) Info() core.MotionDriverInfo {
	return core.MotionDriverInfo{Name: "sim"}
}

type toolMeter struct {
	changes int
	level   float32
}

func (t *toolMeter) SetPower(power float32) {
	t.changes++
	t.level = power
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	m := config.Default()
	if *machineFile != "" {
		var err error
		if m, err = config.LoadFile(*machineFile); err != nil {
			return err
		}
	}
	if *debug {
		core.SetDebugWriter(func(s string) { fmt.Println(s) })
		core.SetDebugEnabled(true)
	}
	core.SetTimerFrequency(m.TimerFreq)

	v := float32(*speed)
	if v == 0 {
		v = m.DefaultSpeed
	}

	driver := &simDriver{}
	meter := &toolMeter{}
	engine := stepgen.New(stepgen.Config{
		Constants:     m.Constants(),
		QueueSize:     m.QueueSize,
		MoveQueueSize: m.MoveQueueSize,
	}, driver, meter)

	var origin [motion.NAxes]float32
	origin[0], origin[1] = 10, 10
	group, err := m.Group("x", "y", "z")
	if err != nil {
		return errors.Wrap(err, "test pattern axes")
	}
	pattern := trajectory.TestPattern(origin, float32(*size))
	if i, err := pattern.Check(m.CheckLimits); err != nil {
		return errors.Wrapf(err, "test pattern path %d", i+1)
	}
	moves, err := pattern.Movements(v, group)
	if err != nil {
		return errors.Wrap(err, "failed to build test pattern")
	}

	var failures int
	for i := range moves {
		moves[i].ToolPower = float32(*tool)
		moves[i].Finalize = func(err error) {
			if err != nil {
				failures++
				fmt.Printf("movement %d: %v\n", i+1, err)
			}
		}
	}

	// The pattern starts at origin: position the engine there
	c := m.Constants()
	engine.SetPosition(motion.StepPosition(origin, c.StepsPerUnit()))
	feeder := stepgen.NewFeeder(engine, moves)

	passes := 0
	for ; passes < *maxPasses && !feeder.Done(); passes++ {
		if err := feeder.Poll(); err != nil {
			return errors.Wrap(err, "movement refused")
		}
		engine.Poll()
		if driver.armed {
			driver.armed = false
			engine.Tick()
		}
	}
	if !feeder.Done() {
		engine.Stop()
		return errors.Errorf("pattern not finished after %d passes", passes)
	}
	if *debug {
		core.DumpTimingRing()
	}

	report(m, engine, driver, meter, passes, failures)
	return nil
}

func report(m *config.Machine, engine *stepgen.Engine, driver *simDriver, meter *toolMeter, passes, failures int) {
	st := engine.Stats()
	fmt.Println("=== Simulation ===")
	fmt.Printf("Machine time:   %.3f s\n", float64(driver.clock)/float64(m.TimerFreq))
	fmt.Printf("Passes:         %d\n", passes)
	fmt.Printf("Movements:      %d (%d failed)\n", st.Movements, failures)
	fmt.Printf("Sub-movements:  %d\n", st.SubMovements)
	fmt.Printf("Underruns:      %d\n", st.Underruns)
	fmt.Printf("Conflicts:      %d\n", st.Conflicts)
	fmt.Printf("Corrections:    %d\n", st.Corrections)
	fmt.Printf("Band misses:    %d\n", st.BandMisses)
	fmt.Printf("Tool changes:   %d (last %.2f)\n", meter.changes, meter.level)

	pos := engine.Position()
	fmt.Println("Axes:")
	for i, axis := range m.Axes {
		if i >= motion.NAxes {
			break
		}
		fmt.Printf("  %-2s pulses=%-8d steps=%-8d position=%.3f mm\n",
			axis.Name, driver.pulses[i], driver.pos[i], float32(pos[i])/axis.StepsPerMM)
	}
}
