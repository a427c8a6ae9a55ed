// Package ranking recomputes leaderboard standings.
//
// A rebuild is a pure ranking computation over a consistent snapshot of
// qualifying scores followed by an atomic swap of the scope's row set.
// Rebuilds of the same scope serialize on a per-scope mutex; disjoint
// scopes run in parallel. A failed rebuild leaves the prior rows untouched.
package ranking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/khelo/talenttrack/internal/domain/model"
	"github.com/khelo/talenttrack/pkg/logger"
	"github.com/khelo/talenttrack/pkg/metrics"
)

// Store is the persistence surface the engine needs.
type Store interface {
	ListTerminalRecordings(ctx context.Context) ([]model.TestRecording, error)
	ListAthletes(ctx context.Context) ([]model.AthleteProfile, error)
	ScopeRows(ctx context.Context, scope model.Scope) ([]model.LeaderboardRow, error)
	ReplaceScope(ctx context.Context, scope model.Scope, rows []model.LeaderboardRow) error
	UpdateRecording(ctx context.Context, id string, fn func(*model.TestRecording) error) error
}

// Engine owns leaderboard recomputation.
type Engine struct {
	store  Store
	logger logger.Logger

	// Per-scope rebuild serialization.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New constructs an Engine.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		logger: logger.Get().Named("ranking"),
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AffectedScopes lists every scope a recording completion touches: overall
// and per-test variants of national, state, district and age group.
func AffectedScopes(athlete model.AthleteProfile, testID string) []model.Scope {
	base := []model.Scope{
		{Kind: model.ScopeNational},
		{Kind: model.ScopeState, Region: athlete.State},
		{Kind: model.ScopeDistrict, Region: athlete.District},
		{Kind: model.ScopeAgeGroup, Region: athlete.AgeGroup()},
	}
	scopes := make([]model.Scope, 0, 2*len(base))
	for _, s := range base {
		scopes = append(scopes, s)
		s.TestID = testID
		scopes = append(scopes, s)
	}
	return scopes
}

// RebuildAffected rebuilds every scope touched by a score change for the
// given athlete and test. Scope failures are collected, not short-circuited:
// one unavailable scope must not block the rest.
func (e *Engine) RebuildAffected(ctx context.Context, athlete model.AthleteProfile, testID string) error {
	var errs []error
	for _, scope := range AffectedScopes(athlete, testID) {
		if err := e.Rebuild(ctx, scope); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Rebuild recomputes a single scope's ranking from scratch and atomically
// replaces its rows. Prior current ranks are carried into previous_rank.
// For per-test scopes the qualifying recordings' percentile fields are
// refreshed from the new standing.
func (e *Engine) Rebuild(ctx context.Context, scope model.Scope) error {
	lock := e.scopeLock(scope)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	defer func() {
		metrics.RecordLeaderboardRebuildDuration(float64(time.Since(start).Milliseconds()))
	}()
	metrics.RecordLeaderboardRebuild()

	recs, err := e.store.ListTerminalRecordings(ctx)
	if err != nil {
		metrics.RecordLeaderboardError()
		return err
	}
	athletes, err := e.store.ListAthletes(ctx)
	if err != nil {
		metrics.RecordLeaderboardError()
		return err
	}
	profiles := make(map[string]model.AthleteProfile, len(athletes))
	for _, a := range athletes {
		profiles[a.ID] = a
	}

	// One row per athlete, keyed by the best qualifying score. Flagged
	// recordings never qualify.
	best := make(map[string]float64)
	inScope := make(map[string][]string) // athlete -> qualifying recording ids
	for _, r := range recs {
		if !qualifies(r) {
			continue
		}
		if scope.TestID != "" && r.TestID != scope.TestID {
			continue
		}
		a, ok := profiles[r.AthleteID]
		if !ok || !scopeMatches(scope, a) {
			continue
		}
		if cur, seen := best[r.AthleteID]; !seen || r.FinalScore > cur {
			best[r.AthleteID] = r.FinalScore
		}
		inScope[r.AthleteID] = append(inScope[r.AthleteID], r.ID)
	}

	rows := make([]model.LeaderboardRow, 0, len(best))
	for athleteID, score := range best {
		rows = append(rows, model.LeaderboardRow{
			AthleteID:   athleteID,
			Scope:       scope,
			BestScore:   score,
			TotalPoints: profiles[athleteID].TotalPoints,
		})
	}
	rows = Compute(rows)

	prior, err := e.store.ScopeRows(ctx, scope)
	if err != nil {
		metrics.RecordLeaderboardError()
		return err
	}
	priorRank := make(map[string]int, len(prior))
	for _, row := range prior {
		priorRank[row.AthleteID] = row.Rank
	}
	for i := range rows {
		rows[i].PreviousRank = priorRank[rows[i].AthleteID]
	}

	if err := e.store.ReplaceScope(ctx, scope, rows); err != nil {
		metrics.RecordLeaderboardError()
		return err
	}

	if scope.TestID != "" {
		if err := e.writePercentiles(ctx, rows, inScope); err != nil {
			return err
		}
	}

	e.logger.Debug(ctx, "scope rebuilt",
		logger.String("scope", scope.Key()),
		logger.Int("rows", len(rows)),
	)
	return nil
}

// Compute sorts rows by best score descending and assigns standard
// competition ranks: tied scores share a rank and the next distinct score
// resumes below all of the tied block.
func Compute(rows []model.LeaderboardRow) []model.LeaderboardRow {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].BestScore != rows[j].BestScore {
			return rows[i].BestScore > rows[j].BestScore
		}
		if rows[i].TotalPoints != rows[j].TotalPoints {
			return rows[i].TotalPoints > rows[j].TotalPoints
		}
		return rows[i].AthleteID < rows[j].AthleteID
	})
	for i := range rows {
		if i > 0 && rows[i].BestScore == rows[i-1].BestScore {
			rows[i].Rank = rows[i-1].Rank
			continue
		}
		rows[i].Rank = i + 1
	}
	return rows
}

// Percentile reports the share of the population strictly below the row at
// index i of a ranked row set, in percent.
func Percentile(rows []model.LeaderboardRow, i int) float64 {
	n := len(rows)
	if n == 0 {
		return 0
	}
	below := 0
	for _, other := range rows {
		if other.BestScore < rows[i].BestScore {
			below++
		}
	}
	return float64(below) / float64(n) * 100
}

// writePercentiles pushes per-test percentiles back onto the qualifying
// recordings so session and athlete aggregates can pick them up.
func (e *Engine) writePercentiles(ctx context.Context, rows []model.LeaderboardRow, inScope map[string][]string) error {
	var errs []error
	for i, row := range rows {
		p := Percentile(rows, i)
		for _, recID := range inScope[row.AthleteID] {
			err := e.store.UpdateRecording(ctx, recID, func(r *model.TestRecording) error {
				r.Percentile = p
				return nil
			})
			if err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func qualifies(r model.TestRecording) bool {
	return r.Status == model.RecordingCompleted || r.Status == model.RecordingVerified
}

func scopeMatches(scope model.Scope, a model.AthleteProfile) bool {
	switch scope.Kind {
	case model.ScopeNational:
		return true
	case model.ScopeState:
		return a.State == scope.Region
	case model.ScopeDistrict:
		return a.District == scope.Region
	case model.ScopeAgeGroup:
		return a.AgeGroup() == scope.Region
	default:
		return false
	}
}

func (e *Engine) scopeLock(scope model.Scope) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	key := scope.Key()
	if l, ok := e.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	e.locks[key] = l
	return l
}
