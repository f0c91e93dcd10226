//go:build rp2040

package main

import (
	"errors"
	"machine"

	"motionrt/config"
	"motionrt/core"
	"motionrt/motion"
)

var ErrStepPins = errors.New("step pins must be consecutive gpios, first axis lowest")

// enableLine is one enable pin shared by the axes in mask
type enableLine struct {
	pin    machine.Pin
	mask   uint32
	invert bool
}

// Driver is the RP2040 motion driver: direction and enable lines on SIO,
// step pulses from PIO and the tick timer on a hardware alarm.
type Driver struct {
	dir       [motion.NAxes]machine.Pin
	dirInvert uint32 // axes whose direction line is inverted
	dirUsed   uint32
	enables   []enableLine
	pulses    *PulseEmitter
}

// NewDriver configures the pins of every axis in m
func NewDriver(m *config.Machine) (*Driver, error) {
	base, ok := m.StepPinsConsecutive()
	if !ok {
		return nil, ErrStepPins
	}

	d := &Driver{pulses: NewPulseEmitter()}
	if err := d.pulses.Init(base); err != nil {
		return nil, err
	}

	for i, axis := range m.Axes {
		if i >= motion.NAxes {
			break
		}
		if axis.DirPin != "" {
			pin, err := config.ParsePin(axis.DirPin)
			if err != nil {
				return nil, err
			}
			d.dir[i] = machine.Pin(pin)
			d.dir[i].Configure(machine.PinConfig{Mode: machine.PinOutput})
			d.dir[i].Set(axis.InvertDir)
			d.dirUsed |= 1 << uint(i)
			if axis.InvertDir {
				d.dirInvert |= 1 << uint(i)
			}
		}
		if axis.EnablePin != "" {
			if err := d.addEnable(i, axis); err != nil {
				return nil, err
			}
		}
	}

	d.EnableAxes(0)
	return d, nil
}

func (d *Driver) addEnable(axis int, cfg config.AxisConfig) error {
	pin, err := config.ParsePin(cfg.EnablePin)
	if err != nil {
		return err
	}
	for i := range d.enables {
		if d.enables[i].pin == machine.Pin(pin) {
			d.enables[i].mask |= 1 << uint(axis)
			return nil
		}
	}
	p := machine.Pin(pin)
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	d.enables = append(d.enables, enableLine{pin: p, mask: 1 << uint(axis), invert: cfg.InvertEnable})
	return nil
}

// SetDirections drives the direction lines; a set bit is the negative
// direction. The scheduler leaves at least one tick before the next pulse.
func (d *Driver) SetDirections(signature uint32) {
	levels := signature ^ d.dirInvert
	for i := 0; i < motion.NAxes; i++ {
		if d.dirUsed&(1<<uint(i)) != 0 {
			d.dir[i].Set(levels&(1<<uint(i)) != 0)
		}
	}
}

// Pulse emits one step pulse on every axis of signature
func (d *Driver) Pulse(signature uint32) {
	d.pulses.Emit(signature)
}

// ArmTimer schedules the next tick
func (d *Driver) ArmTimer(delay uint32) {
	ArmStepAlarm(delay)
}

// DisarmTimer cancels the next tick. A pulse already in the PIO FIFO still
// completes: it was emitted a full tick earlier.
func (d *Driver) DisarmTimer() {
	DisarmStepAlarm()
}

// EnableAxes powers the drivers of mask. Enable lines are active low unless
// inverted; a shared line is on when any of its axes is.
func (d *Driver) EnableAxes(mask uint32) {
	for _, e := range d.enables {
		on := e.mask&mask != 0
		e.pin.Set(on == e.invert)
	}
}

// Info describes the driver
func (d *Driver) Info() core.MotionDriverInfo {
	return core.MotionDriverInfo{
		Name:          "rp2040-pio",
		MaxStepRate:   250000, // 4 us minimum tick
		MinPulseNs:    1600,
		TypicalJitter: 10,
	}
}
