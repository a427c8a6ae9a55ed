package analysis

import "errors"

// Sentinel kinds for analyzer errors.
var (
	ErrAnalyzerUnavailable = errors.New("analyzer unavailable")
)
