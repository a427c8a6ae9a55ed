package grading

import "errors"

// Sentinel kinds for grading errors.
var (
	// ErrNoBenchmark means no benchmark row matches the athlete; the
	// recording still completes, just ungraded.
	ErrNoBenchmark = errors.New("no matching benchmark")

	ErrInvalidBenchmark = errors.New("invalid benchmark data")
)
