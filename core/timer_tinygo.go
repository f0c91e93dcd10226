//go:build tinygo

package core

import "sync/atomic"

var (
	systemTicksValue uint32

	// clockSource reads the hardware timer when a target installs one
	clockSource func() uint32
)

// SetClockSource installs the hardware time base read by GetTime
func SetClockSource(read func() uint32) {
	clockSource = read
}

// getSystemTicks returns the current system ticks
func getSystemTicks() uint32 {
	if clockSource != nil {
		return clockSource()
	}
	return atomic.LoadUint32(&systemTicksValue)
}

// setSystemTicks sets the system ticks
func setSystemTicks(ticks uint32) {
	atomic.StoreUint32(&systemTicksValue, ticks)
}
