package model

import "time"

// RecordingStatus tracks the per-recording lifecycle state machine:
//
//	uploaded -> analyzing -> cheat_checking -> {completed | flagged}
//	completed -> manually_verified
//	analyzing | cheat_checking -> failed
//	failed -> uploaded (manual retry, while retry_count < cap)
type RecordingStatus string

const (
	RecordingUploaded      RecordingStatus = "uploaded"
	RecordingAnalyzing     RecordingStatus = "analyzing"
	RecordingCheatChecking RecordingStatus = "cheat_checking"
	RecordingCompleted     RecordingStatus = "completed"
	RecordingFlagged       RecordingStatus = "flagged"
	RecordingVerified      RecordingStatus = "manually_verified"
	RecordingFailed        RecordingStatus = "failed"
)

// Terminal reports whether the status counts as a finished attempt for
// session aggregation purposes.
func (s RecordingStatus) Terminal() bool {
	return s == RecordingCompleted || s == RecordingFlagged || s == RecordingVerified
}

// PerformanceCategory is the four-way benchmark grading outcome.
// The zero value means the recording is ungraded.
type PerformanceCategory string

const (
	CategoryExcellent    PerformanceCategory = "excellent"
	CategoryGood         PerformanceCategory = "good"
	CategoryAverage      PerformanceCategory = "average"
	CategoryBelowAverage PerformanceCategory = "below_average"
)

// TestRecording is one athlete's single-test attempt within a session.
// Unique per (session, test): re-upload before completion replaces the
// prior attempt in place.
type TestRecording struct {
	ID        string
	SessionID string
	AthleteID string
	TestID    string

	VideoRef    string
	DeviceHints map[string]string

	Status RecordingStatus

	// Raw analyzer output.
	RawScore     float64
	Confidence   float64
	AnalysisData map[string]any

	// Cheat detection output.
	SuspicionScore float64
	CheatFlags     []string
	FlagReason     string

	// Manual override by a reviewing official.
	ManualScore       float64
	VerifiedBy        string
	VerificationNotes string

	// Final derived fields. Graded is false for ungraded completions
	// (no matching benchmark row: no category, no points, no percentile).
	FinalScore float64
	Category   PerformanceCategory
	Points     int
	Percentile float64
	Graded     bool

	// Counted guards session aggregation: set the first time this
	// (session, test) pair reaches a terminal status.
	Counted bool

	RetryCount int
	LastError  string

	CreatedAt   time.Time
	ProcessedAt time.Time
}

// AnalysisJob is the unit of work dispatched to the analysis worker pool.
type AnalysisJob struct {
	RecordingID string
	VideoRef    string
	TestName    string
	EnqueuedAt  time.Time
}

// OutcomeKind discriminates the analysis outcome variant.
type OutcomeKind int

const (
	OutcomeScored OutcomeKind = iota
	OutcomeFailed
)

// AnalysisOutcome is the tagged result reported back by the analyzer,
// keyed by recording id. Exactly one of the scored fields or Reason is
// meaningful depending on Kind.
type AnalysisOutcome struct {
	RecordingID  string
	Kind         OutcomeKind
	RawScore     float64
	Confidence   float64
	AnalysisData map[string]any
	Reason       string
}

// ScoredOutcome builds a successful analysis outcome.
func ScoredOutcome(recordingID string, rawScore, confidence float64, data map[string]any) AnalysisOutcome {
	return AnalysisOutcome{
		RecordingID:  recordingID,
		Kind:         OutcomeScored,
		RawScore:     rawScore,
		Confidence:   confidence,
		AnalysisData: data,
	}
}

// FailedOutcome builds a failed analysis outcome with the analyzer's reason.
func FailedOutcome(recordingID, reason string) AnalysisOutcome {
	return AnalysisOutcome{
		RecordingID: recordingID,
		Kind:        OutcomeFailed,
		Reason:      reason,
	}
}
