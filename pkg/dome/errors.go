package dome

import "errors"

var (
	// ErrAlreadyTurning is returned when a rotation is started while one
	// is underway.
	ErrAlreadyTurning = errors.New("rotation already in progress")
	// ErrShutterBusy is returned when a shutter operation is started while
	// one is underway.
	ErrShutterBusy = errors.New("shutter operation already in progress")
	// ErrNotAtHome is returned when the shutter is operated away from the
	// home position.
	ErrNotAtHome = errors.New("dome is not at home position")
	// ErrTimeout is returned when a bounded wait runs out before its
	// completion condition holds.
	ErrTimeout = errors.New("operation timed out")
)
