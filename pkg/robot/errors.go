package robot

import "errors"

// Error taxonomy for the joint bus. Wrapped with %w by SerialBus so callers
// can classify failures with errors.Is.
var (
	// ErrPortUnavailable means a hardware connection could not be opened.
	// Fatal at startup: the system cannot run without both arms.
	ErrPortUnavailable = errors.New("serial port unavailable")

	// ErrReadFault means a position read transaction failed or timed out.
	// Recoverable: the caller skips the tick and holds position.
	ErrReadFault = errors.New("position read fault")

	// ErrWriteFault means a position write transaction failed or timed out.
	ErrWriteFault = errors.New("position write fault")
)
