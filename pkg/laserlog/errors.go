package laserlog

import "errors"

// Error types.
var (
	// ErrBadTimestamp marks a line that matches the log shape but whose
	// timestamp is not a valid calendar time. This is fatal for the run:
	// it points at a corrupted file, and scanning past it would produce
	// silently wrong totals.
	ErrBadTimestamp = errors.New("malformed timestamp")

	// ErrNegativeDuration marks a shutdown paired with a start that comes
	// after it, which means the input is not in chronological order.
	ErrNegativeDuration = errors.New("session ends before it starts")
)
