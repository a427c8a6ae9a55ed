// Package submission drives the reviewer-facing approval workflow over
// immutable snapshots of completed sessions.
//
// A session gets at most one submission. Submitting twice is idempotent
// and returns the existing record with the same reference, never an error.
// The snapshot is captured at submit time; later athlete or session
// changes do not alter it.
package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/khelo/talenttrack/internal/adapters/repository"
	"github.com/khelo/talenttrack/internal/domain/model"
	"github.com/khelo/talenttrack/pkg/logger"
	"github.com/khelo/talenttrack/pkg/metrics"
)

const referencePrefix = "SAI"

// Store is the persistence surface the workflow needs.
type Store interface {
	GetSession(ctx context.Context, id string) (model.AssessmentSession, error)
	GetAthlete(ctx context.Context, id string) (model.AthleteProfile, error)
	ListSessionRecordings(ctx context.Context, sessionID string) ([]model.TestRecording, error)
	PutSubmission(ctx context.Context, sub model.Submission) error
	GetSubmission(ctx context.Context, id string) (model.Submission, error)
	GetSubmissionBySession(ctx context.Context, sessionID string) (model.Submission, error)
	UpdateSubmission(ctx context.Context, id string, fn func(*model.Submission) error) error
	UpdateAthlete(ctx context.Context, id string, fn func(*model.AthleteProfile) error) error
}

// Workflow owns the submission state machine.
type Workflow struct {
	store  Store
	logger logger.Logger
}

// Option applies a configuration option to the Workflow.
type Option func(*Workflow)

// WithLogger sets a custom logger for the workflow.
func WithLogger(l logger.Logger) Option {
	return func(w *Workflow) {
		if l != nil {
			w.logger = l
		}
	}
}

// New constructs a Workflow.
func New(store Store, opts ...Option) *Workflow {
	w := &Workflow{
		store:  store,
		logger: logger.Get().Named("submission"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// snapshot is the JSON shape frozen into a submission at submit time.
type snapshot struct {
	Athlete struct {
		ID       string       `json:"id"`
		FullName string       `json:"full_name"`
		Age      int          `json:"age"`
		Gender   model.Gender `json:"gender"`
		State    string       `json:"state"`
		District string       `json:"district"`
	} `json:"athlete"`
	Session struct {
		ID             string  `json:"id"`
		Name           string  `json:"name"`
		OverallScore   float64 `json:"overall_score"`
		OverallGrade   string  `json:"overall_grade"`
		PercentileRank float64 `json:"percentile_rank"`
		TotalTests     int     `json:"total_tests"`
		CompletedTests int     `json:"completed_tests"`
	} `json:"session"`
	Recordings []snapshotRecording `json:"recordings"`
}

type snapshotRecording struct {
	TestID     string                    `json:"test_id"`
	Status     model.RecordingStatus     `json:"status"`
	FinalScore float64                   `json:"final_score"`
	Category   model.PerformanceCategory `json:"category,omitempty"`
	Points     int                       `json:"points"`
	Percentile float64                   `json:"percentile"`
	Graded     bool                      `json:"graded"`
}

// Submit packages a completed session into a submission.
//
// Fails with ErrNotComplete unless the session status is completed. A
// second submit for the same session returns the existing submission with
// the same reference.
func (w *Workflow) Submit(ctx context.Context, sessionID string) (model.Submission, error) {
	if existing, err := w.store.GetSubmissionBySession(ctx, sessionID); err == nil {
		return existing, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.Submission{}, err
	}

	sess, err := w.store.GetSession(ctx, sessionID)
	if err != nil {
		return model.Submission{}, fmt.Errorf("session %s: %w", sessionID, err)
	}
	if sess.Status != model.SessionCompleted {
		return model.Submission{}, fmt.Errorf("%w: session %s is %s", ErrNotComplete, sessionID, sess.Status)
	}
	athlete, err := w.store.GetAthlete(ctx, sess.AthleteID)
	if err != nil {
		return model.Submission{}, fmt.Errorf("athlete %s: %w", sess.AthleteID, err)
	}
	recs, err := w.store.ListSessionRecordings(ctx, sessionID)
	if err != nil {
		return model.Submission{}, err
	}

	raw, err := json.Marshal(buildSnapshot(athlete, sess, recs))
	if err != nil {
		return model.Submission{}, fmt.Errorf("marshal snapshot: %w", err)
	}

	now := time.Now()
	sub := model.Submission{
		ID:          uuid.NewString(),
		Reference:   newReference(now),
		SessionID:   sessionID,
		AthleteID:   sess.AthleteID,
		Status:      model.SubmissionSubmitted,
		Snapshot:    raw,
		SubmittedAt: now,
	}
	if err := w.store.PutSubmission(ctx, sub); err != nil {
		// A concurrent submit won the race; its submission is the one.
		if errors.Is(err, repository.ErrAlreadyExists) {
			return w.store.GetSubmissionBySession(ctx, sessionID)
		}
		return model.Submission{}, err
	}

	metrics.RecordSubmissionCreated()
	w.logger.Info(ctx, "submission created",
		logger.String("reference", sub.Reference),
		logger.String("sessionID", sessionID),
	)
	return sub, nil
}

// Get returns a submission by id.
func (w *Workflow) Get(ctx context.Context, id string) (model.Submission, error) {
	return w.store.GetSubmission(ctx, id)
}

// BeginReview moves a submitted record to under_review and stamps the
// reviewer taking it.
func (w *Workflow) BeginReview(ctx context.Context, submissionID, reviewerID string) (model.Submission, error) {
	var out model.Submission
	err := w.store.UpdateSubmission(ctx, submissionID, func(s *model.Submission) error {
		if s.Status != model.SubmissionSubmitted {
			return fmt.Errorf("%w: review requires submitted status, submission %s is %s", ErrInvalidState, submissionID, s.Status)
		}
		s.Status = model.SubmissionUnderReview
		s.ReviewerID = reviewerID
		out = *s
		return nil
	})
	if err != nil {
		return model.Submission{}, err
	}
	return out, nil
}

// Review applies a terminal reviewer verdict. On approval the athlete's
// verification flag flips to true; this is the only path that sets it.
func (w *Workflow) Review(ctx context.Context, submissionID string, decision model.ReviewDecision, reviewerID, comments string) (model.Submission, error) {
	status, ok := decision.Status()
	if !ok {
		return model.Submission{}, fmt.Errorf("%w: unknown decision %q", ErrInvalidState, decision)
	}

	var out model.Submission
	err := w.store.UpdateSubmission(ctx, submissionID, func(s *model.Submission) error {
		if s.Status != model.SubmissionUnderReview {
			return fmt.Errorf("%w: verdict requires under_review status, submission %s is %s", ErrInvalidState, submissionID, s.Status)
		}
		s.Status = status
		s.ReviewerID = reviewerID
		s.ReviewComments = comments
		s.ReviewedAt = time.Now()
		out = *s
		return nil
	})
	if err != nil {
		return model.Submission{}, err
	}

	if decision == model.DecisionApproved {
		err := w.store.UpdateAthlete(ctx, out.AthleteID, func(p *model.AthleteProfile) error {
			p.Verified = true
			p.UpdatedAt = time.Now()
			return nil
		})
		if err != nil {
			return model.Submission{}, err
		}
	}

	metrics.RecordSubmissionReviewed(string(decision))
	w.logger.Info(ctx, "submission reviewed",
		logger.String("reference", out.Reference),
		logger.String("decision", string(decision)),
	)
	return out, nil
}

func buildSnapshot(athlete model.AthleteProfile, sess model.AssessmentSession, recs []model.TestRecording) snapshot {
	var snap snapshot
	snap.Athlete.ID = athlete.ID
	snap.Athlete.FullName = athlete.FullName
	snap.Athlete.Age = athlete.Age
	snap.Athlete.Gender = athlete.Gender
	snap.Athlete.State = athlete.State
	snap.Athlete.District = athlete.District
	snap.Session.ID = sess.ID
	snap.Session.Name = sess.Name
	snap.Session.OverallScore = sess.OverallScore
	snap.Session.OverallGrade = sess.OverallGrade
	snap.Session.PercentileRank = sess.PercentileRank
	snap.Session.TotalTests = sess.TotalTests
	snap.Session.CompletedTests = sess.CompletedTests
	snap.Recordings = make([]snapshotRecording, 0, len(recs))
	for _, r := range recs {
		if !r.Status.Terminal() {
			continue
		}
		snap.Recordings = append(snap.Recordings, snapshotRecording{
			TestID:     r.TestID,
			Status:     r.Status,
			FinalScore: r.FinalScore,
			Category:   r.Category,
			Points:     r.Points,
			Percentile: r.Percentile,
			Graded:     r.Graded,
		})
	}
	return snap
}

// newReference builds the human-readable id, e.g. SAI-20250901-4F2A1C.
func newReference(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("%s-%s-%s", referencePrefix, now.Format("20060102"), suffix)
}
