package model

// ScopeKind partitions leaderboards geographically or demographically.
type ScopeKind string

const (
	ScopeNational ScopeKind = "national"
	ScopeState    ScopeKind = "state"
	ScopeDistrict ScopeKind = "district"
	ScopeAgeGroup ScopeKind = "age_group"
)

// Scope is a leaderboard partition key. Region holds the state, district
// or age-group value depending on Kind (empty for national). TestID narrows
// the scope to a single fitness test; empty means overall.
type Scope struct {
	Kind   ScopeKind
	Region string
	TestID string
}

// Key returns a stable string form usable as a map key.
func (s Scope) Key() string {
	k := string(s.Kind)
	if s.Region != "" {
		k += ":" + s.Region
	}
	if s.TestID != "" {
		k += "/test:" + s.TestID
	}
	return k
}

// LeaderboardRow is one athlete's standing within a scope. Rows are
// rebuilt wholesale whenever the scope's ranking is recomputed;
// PreviousRank is the rank evicted by the rebuild.
type LeaderboardRow struct {
	AthleteID    string
	Scope        Scope
	Rank         int
	PreviousRank int // 0 when the athlete is new to the scope
	BestScore    float64
	TotalPoints  int
}

// RankDelta reports rank movement since the previous rebuild
// (positive = improved). Zero for athletes new to the scope.
func (r LeaderboardRow) RankDelta() int {
	if r.PreviousRank == 0 {
		return 0
	}
	return r.PreviousRank - r.Rank
}
