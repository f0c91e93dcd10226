//go:build rp2040

package main

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"motionrt/motion"
)

// The pulse emitter raises the step lines of a whole signature at once and
// drops them after a hardware-timed width. Step pins must be consecutive,
// axis 0 on the lowest pin.
//
// FIFO word: bits 0..NAxes-1 are the signature, the next NAxes bits are zero
// and clear the lines.
//
// buildPulseProgram creates the program using AssemblerV0
func buildPulseProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),                              // 0: pull block
		asm.Out(rp2pio.OutDestPins, motion.NAxes).Delay(7).Encode(), // 1: out pins, n [7] (lines high)
		asm.Out(rp2pio.OutDestPins, motion.NAxes).Encode(),          // 2: out pins, n (lines low)
		// .wrap
	}
}

const (
	pulseOrigin = 0
	// 125 MHz / 25 = 5 MHz: 8 cycles high is 1.6 us
	pulseClkDiv = 25
)

// PulseEmitter drives the step lines from one PIO state machine
type PulseEmitter struct {
	pio     *rp2pio.PIO
	sm      rp2pio.StateMachine
	basePin machine.Pin
}

// NewPulseEmitter creates an emitter on PIO0, state machine 0
func NewPulseEmitter() *PulseEmitter {
	return &PulseEmitter{
		pio: rp2pio.PIO0,
		sm:  rp2pio.PIO0.StateMachine(0),
	}
}

// Init loads the program and claims the step pins starting at basePin
func (e *PulseEmitter) Init(basePin uint8) error {
	e.basePin = machine.Pin(basePin)

	e.sm.TryClaim()

	program := buildPulseProgram()
	offset, err := e.pio.AddProgram(program, pulseOrigin)
	if err != nil {
		return err
	}

	for i := 0; i < motion.NAxes; i++ {
		(e.basePin + machine.Pin(i)).Configure(machine.PinConfig{Mode: e.pio.PinMode()})
	}

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetOutPins(e.basePin, motion.NAxes)
	// Shift right, explicit PULL, 32-bit threshold
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(pulseClkDiv, 0)

	// Pin directions must be set after Init
	e.sm.Init(offset, cfg)
	e.sm.SetPindirsConsecutive(e.basePin, motion.NAxes, true)
	e.sm.SetPinsConsecutive(e.basePin, motion.NAxes, false)
	e.sm.SetEnabled(true)
	return nil
}

// Emit queues one pulse on every axis of signature. Called from the timer
// interrupt; the FIFO only fills up if the tick period is shorter than the
// pulse width.
func (e *PulseEmitter) Emit(signature uint32) {
	for e.sm.IsTxFIFOFull() {
	}
	e.sm.TxPut(signature & uint32(motion.AllAxes))
}
