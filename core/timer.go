package core

// Default step timer frequency. The RP2040 hardware timer counts microseconds.
const (
	DefaultTimerFreq = 1000000
)

var (
	systemTicks uint32
	timerFreq   uint32 = DefaultTimerFreq
)

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// SetTimerFrequency registers the frequency of the step timer in Hz.
// Called once by the target before the engine is built.
func SetTimerFrequency(hz uint32) {
	if hz == 0 {
		hz = DefaultTimerFreq
	}
	timerFreq = hz
}

// GetTimerFrequency returns the step timer frequency in Hz
func GetTimerFrequency() uint32 {
	return timerFreq
}

// SecondsToTicks converts a duration in seconds to timer ticks, saturating at
// the 32-bit range
func SecondsToTicks(seconds float32) uint32 {
	if seconds <= 0 {
		return 0
	}
	ticks := float64(seconds) * float64(timerFreq)
	if ticks >= 4294967295 {
		return 4294967295
	}
	return uint32(ticks)
}
