package model

import "time"

// SessionStatus tracks the session state machine:
// created -> in_progress -> completed.
type SessionStatus string

const (
	SessionCreated    SessionStatus = "created"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

// AssessmentSession is one athlete's attempt at a full test battery.
//
// Invariants: CompletedTests never exceeds TotalTests and never decreases;
// OverallScore is set exactly once, when CompletedTests == TotalTests.
type AssessmentSession struct {
	ID        string
	AthleteID string
	Name      string
	Status    SessionStatus

	TotalTests     int
	CompletedTests int

	OverallScore   float64
	OverallGrade   string
	PercentileRank float64

	CreatedAt   time.Time
	CompletedAt time.Time
}
