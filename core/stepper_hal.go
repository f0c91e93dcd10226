package core

// MotionDriver is the hardware contract of the step scheduler.
// Signatures are per-axis bitmasks (bit n = axis n).
// Implementations can use GPIO, PIO, or a recording fake on the host.
type MotionDriver interface {
	// SetDirections drives the direction lines. A set bit means the axis
	// moves in the negative direction. Must honour dir-to-step setup time.
	SetDirections(signature uint32)

	// Pulse emits one step pulse on every axis whose bit is set.
	// Called from the timer interrupt; must be fast.
	Pulse(signature uint32)

	// ArmTimer schedules the next timer interrupt delay ticks from now
	ArmTimer(delay uint32)

	// DisarmTimer cancels any pending timer interrupt
	DisarmTimer()

	// EnableAxes powers the drivers of the axes in mask and disables the rest
	EnableAxes(mask uint32)

	// Info describes the implementation. A zero MaxStepRate means unbounded.
	Info() MotionDriverInfo
}

// ToolOutput is an actuator driven alongside motion (spindle, laser, ESC)
type ToolOutput interface {
	// SetPower sets the output level, 0 (off) to 1 (full)
	SetPower(power float32)
}

// MotionDriverInfo provides information about a driver implementation
type MotionDriverInfo struct {
	Name          string
	MaxStepRate   uint32 // Maximum elementary ticks/second
	MinPulseNs    uint32 // Minimum step pulse width (ns)
	TypicalJitter uint32 // Typical timing jitter (ns)
}
