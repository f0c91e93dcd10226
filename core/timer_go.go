//go:build !tinygo

package core

// getSystemTicks returns the simulated clock (host builds and tests)
func getSystemTicks() uint32 {
	return systemTicks
}

// setSystemTicks sets the simulated clock
func setSystemTicks(ticks uint32) {
	systemTicks = ticks
}
