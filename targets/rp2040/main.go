//go:build rp2040

package main

import (
	"machine"
	"time"

	"motionrt/config"
	"motionrt/core"
	"motionrt/motion"
	"motionrt/stepgen"
	"motionrt/trajectory"
)

// Self test run at boot: the pattern size (mm) and the tool power while it
// runs. The movement front-end is not part of this firmware.
const (
	selfTestSize  = 40
	selfTestPower = 0.25
)

var engine *stepgen.Engine

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitDebugUART()
	InitClock()

	m := config.Default()
	driver, err := NewDriver(m)
	if err != nil {
		fail("driver: " + err.Error())
	}
	info := driver.Info()
	core.DebugPrintln("[BOOT] driver " + info.Name)

	var tool core.ToolOutput
	if m.Tool.Enabled {
		servoTool, err := NewServoTool(m.Tool)
		if err != nil {
			fail("tool: " + err.Error())
		}
		tool = servoTool
	}

	engine = stepgen.New(stepgen.Config{
		Constants:     m.Constants(),
		QueueSize:     m.QueueSize,
		MoveQueueSize: m.MoveQueueSize,
	}, driver, tool)
	InitStepAlarm(engine.Tick)

	feeder, err := selfTest(m)
	if err != nil {
		fail("self test: " + err.Error())
	}

	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})

	for {
		if err := feeder.Poll(); err != nil {
			core.DebugPrintln("[BOOT] movement refused: " + err.Error())
		}
		engine.Poll()
		led.Set(engine.State() == stepgen.StateStepping)

		if feeder.Done() {
			st := engine.Stats()
			core.DebugPrintln("[BOOT] self test done, sub-movements " + core.Utoa(st.SubMovements) +
				" underruns " + core.Utoa(st.Underruns))
			pos := engine.Position()
			for i, axis := range m.Axes {
				if i < motion.NAxes {
					core.DebugPrintln("[BOOT] " + axis.Name + "=" + core.Ftoa(float32(pos[i])/axis.StepsPerMM))
				}
			}
			core.DumpTimingRing()
			break
		}
	}

	for {
		time.Sleep(time.Second)
	}
}

// selfTest prepares the boot pattern from the origin of the machine
func selfTest(m *config.Machine) (*stepgen.Feeder, error) {
	group, err := m.Group("x", "y")
	if err != nil {
		return nil, err
	}
	var origin [motion.NAxes]float32
	pattern := trajectory.TestPattern(origin, selfTestSize)
	if i, err := pattern.Check(m.CheckLimits); err != nil {
		core.DebugPrintln("[BOOT] self test path " + core.Utoa(uint32(i+1)) + " out of travel")
		return nil, err
	}
	moves, err := pattern.Movements(m.DefaultSpeed, group)
	if err != nil {
		return nil, err
	}
	for i := range moves {
		n := uint32(i + 1)
		moves[i].ToolPower = selfTestPower
		moves[i].Finalize = func(err error) {
			if err != nil {
				core.DebugPrintln("[BOOT] movement " + core.Utoa(n) + ": " + err.Error())
				core.DumpTimingRing()
			}
		}
	}
	return stepgen.NewFeeder(engine, moves), nil
}

// fail reports a fatal setup error and blinks the LED forever
func fail(msg string) {
	core.DebugPrintln("[BOOT] " + msg)
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(100 * time.Millisecond)
	}
}
