//go:build rp2040

package main

import (
	"machine"

	"tinygo.org/x/drivers/servo"

	"motionrt/config"
)

// ServoTool drives a servo-signal actuator (ESC, laser driver) from the
// motion engine's tool power
type ServoTool struct {
	servo servo.Servo
	minUS int16
	maxUS int16
}

// NewServoTool configures the PWM slice of the tool pin and switches it off
func NewServoTool(cfg config.ToolConfig) (*ServoTool, error) {
	pin, err := config.ParsePin(cfg.Pin)
	if err != nil {
		return nil, err
	}

	s, err := servo.New(pwmForPin(pin), machine.Pin(pin))
	if err != nil {
		return nil, err
	}

	t := &ServoTool{servo: s, minUS: int16(cfg.MinUS), maxUS: int16(cfg.MaxUS)}
	t.SetPower(0)
	return t, nil
}

// SetPower maps 0..1 to the configured pulse width range. Called from the
// step interrupt; it only writes a PWM compare register.
func (t *ServoTool) SetPower(power float32) {
	if power < 0 {
		power = 0
	} else if power > 1 {
		power = 1
	}
	us := t.minUS + int16(power*float32(t.maxUS-t.minUS))
	t.servo.SetMicroseconds(us)
}

// pwmForPin returns the PWM slice driving a gpio: slice (pin/2) mod 8
func pwmForPin(pin uint8) servo.PWM {
	switch (pin >> 1) & 7 {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}
