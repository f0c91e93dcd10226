//go:build tinygo

package core

import "runtime/interrupt"

// State is the saved interrupt mask
type State = interrupt.State

// DisableInterrupts masks interrupts and returns the previous state.
// Keep the masked window as short as possible: the step timer IRQ is held off
// for its whole duration.
func DisableInterrupts() State {
	return interrupt.Disable()
}

// RestoreInterrupts restores the interrupt state
func RestoreInterrupts(state State) {
	interrupt.Restore(state)
}
