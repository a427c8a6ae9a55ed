// Package model contains domain entities passed between layers.
package model

import "time"

// Gender values used for benchmark lookup and ranking scopes.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Age group boundaries for ranking scopes.
const (
	ageGroupU14Max = 14
	ageGroupU17Max = 17
	ageGroupU19Max = 19
)

// PointsPerLevel controls how gamification points map to levels.
const PointsPerLevel = 500

// AthleteProfile is the aggregation root for sessions, recordings,
// leaderboard rows and submissions.
type AthleteProfile struct {
	ID       string
	FullName string
	Age      int
	Gender   Gender
	State    string
	District string

	// Derived aggregates, refreshed on session completion.
	OverallTalentScore float64
	TalentGrade        string

	// Gamification counters.
	TotalPoints int
	Level       int

	// Verified flips to true when a reviewing official approves a submission.
	Verified bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AgeGroup derives the ranking age group from the athlete's age.
func (a *AthleteProfile) AgeGroup() string {
	switch {
	case a.Age < ageGroupU14Max:
		return "U14"
	case a.Age < ageGroupU17Max:
		return "U17"
	case a.Age < ageGroupU19Max:
		return "U19"
	default:
		return "open"
	}
}

// LevelForPoints derives the gamification level from total points.
func LevelForPoints(points int) int {
	if points < 0 {
		return 1
	}
	return points/PointsPerLevel + 1
}
