package lifecycle

import "errors"

// Sentinel kinds for lifecycle errors.
var (
	// ErrInvalidState reports an operation that the recording's or
	// session's current status does not permit.
	ErrInvalidState = errors.New("invalid state")

	// ErrRetryExhausted reports a retry request past the retry cap.
	ErrRetryExhausted = errors.New("retry exhausted")

	// ErrQueueFull reports analysis queue backpressure.
	ErrQueueFull = errors.New("analysis queue full")
)
