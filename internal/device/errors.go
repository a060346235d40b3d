package device

import "errors"

// Sentinel errors for registry operations. Check with errors.Is().
var (
	// ErrDeviceNotFound is returned when a command or read targets an
	// unknown device ID.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidStatus is returned for LED statuses other than "0" or "1".
	ErrInvalidStatus = errors.New("device: invalid status")

	// ErrInvalidAction is returned for fan actions that are neither a
	// known verb nor an integer between 0 and 100.
	ErrInvalidAction = errors.New("device: invalid action")

	// ErrRebuildInProgress is returned when a rebuild is requested while
	// another one is still running.
	ErrRebuildInProgress = errors.New("device: rebuild in progress")
)
