package submission

import "errors"

// Sentinel kinds for submission errors.
var (
	// ErrNotComplete reports a submit attempt on a session that has not
	// finished its test battery.
	ErrNotComplete = errors.New("session not complete")

	// ErrInvalidState reports a review operation from the wrong workflow state.
	ErrInvalidState = errors.New("invalid state")
)
