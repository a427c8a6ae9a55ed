package model

import (
	"encoding/json"
	"time"
)

// SubmissionStatus tracks the reviewer-facing workflow:
// pending -> submitted -> under_review -> {approved | rejected | requires_retest}.
type SubmissionStatus string

const (
	SubmissionPending      SubmissionStatus = "pending"
	SubmissionSubmitted    SubmissionStatus = "submitted"
	SubmissionUnderReview  SubmissionStatus = "under_review"
	SubmissionApproved     SubmissionStatus = "approved"
	SubmissionRejected     SubmissionStatus = "rejected"
	SubmissionRetestNeeded SubmissionStatus = "requires_retest"
)

// ReviewDecision is a terminal reviewer verdict.
type ReviewDecision string

const (
	DecisionApproved      ReviewDecision = "approved"
	DecisionRejected      ReviewDecision = "rejected"
	DecisionRequireRetest ReviewDecision = "requires_retest"
)

// Status maps a decision to its terminal submission status.
func (d ReviewDecision) Status() (SubmissionStatus, bool) {
	switch d {
	case DecisionApproved:
		return SubmissionApproved, true
	case DecisionRejected:
		return SubmissionRejected, true
	case DecisionRequireRetest:
		return SubmissionRetestNeeded, true
	default:
		return "", false
	}
}

// Submission is an immutable snapshot of a completed session plus an
// independent reviewer state machine. At most one exists per session.
type Submission struct {
	ID        string
	Reference string // human-readable, e.g. SAI-20250901-4F2A1C
	SessionID string
	AthleteID string

	Status SubmissionStatus

	// Snapshot captures athlete info, session summary and every completed
	// recording's scored fields at submit time. Later entity changes do
	// not alter it.
	Snapshot json.RawMessage

	ReviewerID     string
	ReviewComments string

	SubmittedAt time.Time
	ReviewedAt  time.Time
}
