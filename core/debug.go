package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures a timing-critical event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	Axis      uint8  // Axis index, or 0xFF when not axis specific
	Clock     uint32 // System clock at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtArm        = 1 // Sub-movement armed (v1=ticks, v2=delay)
	EvtMoveStart  = 2 // Movement fetched by the planner (v1=movement seq)
	EvtMoveDone   = 3 // Last pulse of a movement emitted (v1=movement seq)
	EvtUnderrun   = 4 // Sub-movement queue ran dry mid-movement
	EvtConflict   = 5 // Empty merged duration interval (v1=violated axes)
	EvtBandMiss   = 6 // Sub-movement accepted outside the distance band (v1=distance)
	EvtReject     = 7 // Movement rejected (v1=reason)
	EvtStop       = 8 // Explicit stop
	EvtDrain      = 9 // Scheduler drained to idle
	EvtCorrection = 10
	EvtJerkPoint  = 11 // Jerk point registered ahead of a corner (v1=path speed)
)

// NoAxis marks a timing event that is not tied to an axis
const NoAxis = 0xFF

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Timing capture ring buffer (non-blocking, for post-mortem)
	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8        // Next write position
	timingEnabled  bool  = true // Always capture timing events
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
// Useful for benchmarks where debug output would affect timing
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordTiming captures a timing event in the ring buffer.
// Safe to call from the timer interrupt: no allocation, no blocking.
func RecordTiming(eventType, axis uint8, value1, value2 uint32) {
	if !timingEnabled {
		return
	}
	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		Axis:      axis,
		Clock:     GetTime(),
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
}

// TimingEvents returns the captured events from oldest to newest
func TimingEvents() []TimingEvent {
	events := make([]TimingEvent, 0, TimingRingSize)
	start := timingRingHead
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(start+i)%TimingRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		events = append(events, evt)
	}
	return events
}

// EventName returns the dump label of an event type
func EventName(eventType uint8) string {
	switch eventType {
	case EvtArm:
		return "ARM"
	case EvtMoveStart:
		return "MOVE_START"
	case EvtMoveDone:
		return "MOVE_DONE"
	case EvtUnderrun:
		return "UNDERRUN!"
	case EvtConflict:
		return "CONFLICT"
	case EvtBandMiss:
		return "BAND_MISS"
	case EvtReject:
		return "REJECT"
	case EvtStop:
		return "STOP"
	case EvtDrain:
		return "DRAIN"
	case EvtCorrection:
		return "CORRECTION"
	case EvtJerkPoint:
		return "JERK_POINT"
	default:
		return "UNKNOWN"
	}
}

// DumpTimingRing outputs the timing ring buffer (call on shutdown/error).
// The line format is parsed by host/cmd/steptrace.
func DumpTimingRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TIMING] === Timing Ring Dump ===")
	for _, evt := range TimingEvents() {
		axis := "-"
		if evt.Axis != NoAxis {
			axis = itoa(int(evt.Axis))
		}
		debugPrintln("[TIMING] " + EventName(evt.EventType) +
			" axis=" + axis +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing clears the timing buffer
func ClearTimingRing() {
	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	timingRingHead = 0
}
