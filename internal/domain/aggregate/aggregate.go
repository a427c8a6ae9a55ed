// Package aggregate rolls terminal recordings up into session results and
// session results up into the athlete profile.
//
// Both steps are idempotent. Completion counting keys off the Counted flag
// so a recording is counted at most once even when a manual verification
// re-terminates it, and the athlete refresh recomputes its aggregates from
// scratch instead of applying deltas.
package aggregate

import (
	"context"
	"time"

	"github.com/khelo/talenttrack/internal/domain/grading"
	"github.com/khelo/talenttrack/internal/domain/model"
	"github.com/khelo/talenttrack/pkg/logger"
	"github.com/khelo/talenttrack/pkg/metrics"
)

// Store is the persistence surface the aggregator needs.
type Store interface {
	UpdateSessionWithRecordings(ctx context.Context, id string, fn func(*model.AssessmentSession, []*model.TestRecording) error) error
	ListAthleteSessions(ctx context.Context, athleteID string) ([]model.AssessmentSession, error)
	ListSessionRecordings(ctx context.Context, sessionID string) ([]model.TestRecording, error)
	UpdateAthlete(ctx context.Context, id string, fn func(*model.AthleteProfile) error) error
	GetAthlete(ctx context.Context, id string) (model.AthleteProfile, error)
}

// Aggregator derives session and athlete aggregates.
type Aggregator struct {
	store  Store
	logger logger.Logger
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithLogger sets a custom logger for the aggregator.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// New constructs an Aggregator.
func New(store Store, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:  store,
		logger: logger.Get().Named("aggregate"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RecordCompletion counts newly terminal recordings toward the session's
// progress and, once every test in the battery is done, completes the
// session and derives its overall score. The second return reports whether
// the session is completed after the call.
//
// The whole step runs as one atomic read-modify-write over the session and
// its recordings, so two recordings terminating concurrently can never
// produce a lost or doubled count.
func (a *Aggregator) RecordCompletion(ctx context.Context, sessionID string) (model.AssessmentSession, bool, error) {
	var (
		out       model.AssessmentSession
		completed bool
		justDone  bool
	)
	err := a.store.UpdateSessionWithRecordings(ctx, sessionID, func(sess *model.AssessmentSession, recs []*model.TestRecording) error {
		for _, r := range recs {
			if !r.Status.Terminal() || r.Counted {
				continue
			}
			r.Counted = true
			if sess.CompletedTests < sess.TotalTests {
				sess.CompletedTests++
			}
		}

		if sess.CompletedTests == sess.TotalTests && sess.TotalTests > 0 {
			if sess.Status != model.SessionCompleted {
				sess.Status = model.SessionCompleted
				sess.CompletedAt = time.Now()
				justDone = true
			}
			// Recomputed on every pass so a manual verification that
			// re-grades a recording refreshes the session result too.
			sess.OverallScore = meanPoints(recs)
			sess.OverallGrade = grading.LetterGrade(sess.OverallScore)
			sess.PercentileRank = meanPercentile(recs)
		}

		out = *sess
		completed = sess.Status == model.SessionCompleted
		return nil
	})
	if err != nil {
		return model.AssessmentSession{}, false, err
	}

	if justDone {
		metrics.RecordSessionCompleted()
		a.logger.Info(ctx, "session completed",
			logger.String("sessionID", sessionID),
			logger.Float64("overallScore", out.OverallScore),
			logger.String("overallGrade", out.OverallGrade),
		)
	}
	return out, completed, nil
}

// RefreshAthlete recomputes the athlete's derived aggregates from all
// completed sessions: overall talent score, talent grade, total points and
// level. Calling it twice in a row is a no-op.
func (a *Aggregator) RefreshAthlete(ctx context.Context, athleteID string) (model.AthleteProfile, error) {
	sessions, err := a.store.ListAthleteSessions(ctx, athleteID)
	if err != nil {
		return model.AthleteProfile{}, err
	}

	var (
		scoreSum  float64
		nDone     int
		totalPnts int
	)
	for _, sess := range sessions {
		if sess.Status != model.SessionCompleted {
			continue
		}
		scoreSum += sess.OverallScore
		nDone++

		recs, err := a.store.ListSessionRecordings(ctx, sess.ID)
		if err != nil {
			return model.AthleteProfile{}, err
		}
		for _, r := range recs {
			if r.Counted {
				totalPnts += r.Points
			}
		}
	}

	var out model.AthleteProfile
	err = a.store.UpdateAthlete(ctx, athleteID, func(p *model.AthleteProfile) error {
		if nDone > 0 {
			p.OverallTalentScore = scoreSum / float64(nDone)
			p.TalentGrade = grading.LetterGrade(p.OverallTalentScore)
		}
		p.TotalPoints = totalPnts
		p.Level = model.LevelForPoints(totalPnts)
		p.UpdatedAt = time.Now()
		out = *p
		return nil
	})
	if err != nil {
		return model.AthleteProfile{}, err
	}
	return out, nil
}

// meanPoints averages grade points across counted recordings. Ungraded
// recordings contribute zero rather than being skipped, keeping the score
// comparable across sessions of the same battery.
func meanPoints(recs []*model.TestRecording) float64 {
	if len(recs) == 0 {
		return 0
	}
	var sum float64
	var n int
	for _, r := range recs {
		if !r.Counted {
			continue
		}
		sum += float64(r.Points)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func meanPercentile(recs []*model.TestRecording) float64 {
	var sum float64
	var n int
	for _, r := range recs {
		if !r.Counted {
			continue
		}
		sum += r.Percentile
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
