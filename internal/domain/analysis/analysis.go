// Package analysis defines the contracts for the external video analyzer
// and cheat detector collaborators.
//
// The real system runs pose estimation on uploaded videos; this package
// consumes it as an opaque service returning a raw score, a confidence and
// an analysis blob, or a failure reason. Simulated implementations model
// the service latency for local runs and tests.
package analysis

import "context"

// Request identifies the video and test type to analyze.
type Request struct {
	RecordingID string
	VideoRef    string
	TestName    string
}

// Result is the raw analyzer output for a successful analysis.
type Result struct {
	RawScore     float64
	Confidence   float64 // in [0,1]
	AnalysisData map[string]any
}

// Analyzer computes a raw score from a video. Implementations may simulate
// latency to model the external ML service.
type Analyzer interface {
	// Analyze runs the analysis, honoring ctx for cancellation.
	Analyze(ctx context.Context, req Request) (Result, error)
}

// Suspicion is the cheat-detection verdict for a scored recording.
type Suspicion struct {
	Score float64 // in [0,1]
	Flags []string
}

// CheatDetector inspects a scored recording for manipulation signals.
type CheatDetector interface {
	Inspect(ctx context.Context, req Request, res Result) (Suspicion, error)
}
