//go:build rp2040

package main

import (
	"device/rp"
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"

	"motionrt/core"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWL = timerBase + 0x28 // Raw timer low word
)

// The runtime sleeps on ALARM0; the step timer uses ALARM1
const stepAlarm = 1

var (
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

	alarmHandler func()
)

// InitClock installs the 1 MHz hardware timer as the core time base
func InitClock() {
	core.SetTimerFrequency(1000000)
	core.SetClockSource(GetHardwareTime)
}

// GetHardwareTime returns the low 32 bits of the microsecond counter
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// InitStepAlarm routes the step alarm interrupt to handler. The alarm stays
// disarmed until ArmStepAlarm.
func InitStepAlarm(handler func()) {
	alarmHandler = handler
	rp.TIMER.INTE.SetBits(1 << stepAlarm)
	intr := interrupt.New(rp.IRQ_TIMER_IRQ_1, stepAlarmIRQ)
	intr.SetPriority(0x00)
	intr.Enable()
}

func stepAlarmIRQ(interrupt.Interrupt) {
	rp.TIMER.INTR.Set(1 << stepAlarm)
	if alarmHandler != nil {
		alarmHandler()
	}
}

// ArmStepAlarm fires the step interrupt delay microseconds from now
func ArmStepAlarm(delay uint32) {
	rp.TIMER.ALARM1.Set(GetHardwareTime() + delay)
}

// DisarmStepAlarm cancels a pending step interrupt
func DisarmStepAlarm() {
	rp.TIMER.ARMED.Set(1 << stepAlarm)
	rp.TIMER.INTR.Set(1 << stepAlarm)
}
