package feeding

import "errors"

// Admission policy violations. All user-correctable; the caller surface maps
// each to a message naming the limit that was hit.
var (
	ErrPastTime         = errors.New("scheduled time is in the past")
	ErrTooSoon          = errors.New("scheduled time is too soon")
	ErrTooFar           = errors.New("scheduled time is too far ahead")
	ErrCapacityExceeded = errors.New("too many active reminders")
)

var (
	// ErrNotFound is returned by CancelStrict for an unknown id.
	ErrNotFound = errors.New("reminder not found")
	// ErrAlreadyInactive is returned by CancelStrict when the target has
	// already fired or been cancelled.
	ErrAlreadyInactive = errors.New("reminder is already inactive")
	// ErrNotInitialized guards Schedule before startup recovery has run.
	ErrNotInitialized = errors.New("scheduler is not initialized")
)
