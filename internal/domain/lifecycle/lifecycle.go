// Package lifecycle owns the per-recording state machine from upload
// through final grade.
//
// Transitions:
//
//	uploaded -> analyzing -> cheat_checking -> {completed | flagged}
//	completed | flagged -> manually_verified
//	analyzing | cheat_checking -> failed
//	failed -> uploaded (manual retry, while retry_count < cap)
//
// The manager never calls the analyzer itself: submit and retry enqueue a
// job and return immediately, and the worker pool reports back through
// Claim and OnAnalysisResult. Cross-entity effects (session aggregation,
// leaderboard rebuilds) are left to the orchestrator, which acts on the
// Completion value returned from OnAnalysisResult and Override.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/khelo/talenttrack/internal/adapters/repository"
	"github.com/khelo/talenttrack/internal/domain/analysis"
	"github.com/khelo/talenttrack/internal/domain/grading"
	"github.com/khelo/talenttrack/internal/domain/model"
	"github.com/khelo/talenttrack/pkg/logger"
	"github.com/khelo/talenttrack/pkg/metrics"
)

// Default lifecycle configuration constants.
const (
	defaultMaxRetries     = 3
	defaultCheatThreshold = 0.7
)

// Store is the persistence surface the manager needs.
type Store interface {
	GetSession(ctx context.Context, id string) (model.AssessmentSession, error)
	UpdateSession(ctx context.Context, id string, fn func(*model.AssessmentSession) error) error
	GetTest(ctx context.Context, id string) (model.FitnessTest, error)
	GetAthlete(ctx context.Context, id string) (model.AthleteProfile, error)
	FindRecording(ctx context.Context, sessionID, testID string) (model.TestRecording, error)
	PutRecording(ctx context.Context, r model.TestRecording) error
	GetRecording(ctx context.Context, id string) (model.TestRecording, error)
	UpdateRecording(ctx context.Context, id string, fn func(*model.TestRecording) error) error
}

// Enqueuer dispatches analysis jobs. Returns false on backpressure.
type Enqueuer interface {
	Enqueue(ctx context.Context, j model.AnalysisJob) bool
}

// BenchmarkSource resolves benchmark rows for grading.
type BenchmarkSource interface {
	Lookup(test string, age int, gender model.Gender) (grading.Benchmark, error)
}

// Completion describes a recording that reached a terminal status, so the
// orchestrator can run session aggregation and leaderboard rebuilds.
type Completion struct {
	RecordingID string
	SessionID   string
	AthleteID   string
	TestID      string
	Status      model.RecordingStatus
	Terminal    bool
}

// Manager drives the recording state machine.
type Manager struct {
	store      Store
	jobs       Enqueuer
	benchmarks BenchmarkSource
	detector   analysis.CheatDetector

	maxRetries     int
	cheatThreshold float64

	logger logger.Logger
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithMaxRetries caps user-initiated retries per recording.
func WithMaxRetries(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.maxRetries = n
		}
	}
}

// WithCheatThreshold sets the suspicion score above which a recording is flagged.
func WithCheatThreshold(t float64) Option {
	return func(m *Manager) {
		if t >= 0 && t <= 1 {
			m.cheatThreshold = t
		}
	}
}

// WithLogger sets a custom logger for the manager.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// New constructs a Manager.
func New(store Store, jobs Enqueuer, benchmarks BenchmarkSource, detector analysis.CheatDetector, opts ...Option) *Manager {
	m := &Manager{
		store:          store,
		jobs:           jobs,
		benchmarks:     benchmarks,
		detector:       detector,
		maxRetries:     defaultMaxRetries,
		cheatThreshold: defaultCheatThreshold,
		logger:         logger.Get().Named("lifecycle"),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Submit registers a video for a (session, test) pair and enqueues analysis.
//
// A prior non-terminal recording for the pair is replaced in place: same
// identity, status reset to uploaded, retry count preserved. Re-submission
// for an already-completed test fails with ErrInvalidState. The first
// submission moves the session from created to in_progress.
func (m *Manager) Submit(ctx context.Context, sessionID, testID, videoRef string, deviceHints map[string]string) (model.TestRecording, error) {
	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return model.TestRecording{}, fmt.Errorf("session %s: %w", sessionID, err)
	}
	if sess.Status == model.SessionCompleted {
		return model.TestRecording{}, fmt.Errorf("%w: session %s already completed", ErrInvalidState, sessionID)
	}
	test, err := m.store.GetTest(ctx, testID)
	if err != nil {
		return model.TestRecording{}, fmt.Errorf("test %s: %w", testID, err)
	}
	if !test.Active {
		return model.TestRecording{}, fmt.Errorf("%w: test %s is inactive", ErrInvalidState, testID)
	}

	now := time.Now()
	var rec model.TestRecording

	prior, err := m.store.FindRecording(ctx, sessionID, testID)
	switch {
	case err == nil:
		if prior.Status.Terminal() {
			return model.TestRecording{}, fmt.Errorf("%w: test already completed in session %s", ErrInvalidState, sessionID)
		}
		// Replace in place: identity and retry count survive the re-upload.
		replaceErr := m.store.UpdateRecording(ctx, prior.ID, func(r *model.TestRecording) error {
			r.VideoRef = videoRef
			r.DeviceHints = deviceHints
			r.Status = model.RecordingUploaded
			r.RawScore = 0
			r.Confidence = 0
			r.AnalysisData = nil
			r.SuspicionScore = 0
			r.CheatFlags = nil
			r.FlagReason = ""
			r.FinalScore = 0
			r.Category = ""
			r.Points = 0
			r.Percentile = 0
			r.Graded = false
			r.LastError = ""
			r.CreatedAt = now
			r.ProcessedAt = time.Time{}
			rec = *r
			return nil
		})
		if replaceErr != nil {
			return model.TestRecording{}, replaceErr
		}
	case errors.Is(err, repository.ErrNotFound):
		rec = model.TestRecording{
			ID:          uuid.NewString(),
			SessionID:   sessionID,
			AthleteID:   sess.AthleteID,
			TestID:      testID,
			VideoRef:    videoRef,
			DeviceHints: deviceHints,
			Status:      model.RecordingUploaded,
			CreatedAt:   now,
		}
		if err := m.store.PutRecording(ctx, rec); err != nil {
			return model.TestRecording{}, err
		}
	default:
		return model.TestRecording{}, err
	}

	if sess.Status == model.SessionCreated {
		if err := m.store.UpdateSession(ctx, sessionID, func(s *model.AssessmentSession) error {
			if s.Status == model.SessionCreated {
				s.Status = model.SessionInProgress
			}
			return nil
		}); err != nil {
			return model.TestRecording{}, err
		}
	}

	if err := m.enqueue(ctx, rec.ID, videoRef, test.Name); err != nil {
		return model.TestRecording{}, err
	}

	metrics.RecordRecordingSubmitted()
	m.logger.Debug(ctx, "recording submitted",
		logger.String("recordingID", rec.ID),
		logger.String("sessionID", sessionID),
		logger.String("test", test.Name),
	)
	return rec, nil
}

// enqueue dispatches the analysis job; on backpressure the recording is
// failed with a retryable reason so it is never silently stuck in uploaded.
func (m *Manager) enqueue(ctx context.Context, recordingID, videoRef, testName string) error {
	ok := m.jobs.Enqueue(ctx, model.AnalysisJob{
		RecordingID: recordingID,
		VideoRef:    videoRef,
		TestName:    testName,
		EnqueuedAt:  time.Now(),
	})
	if ok {
		return nil
	}
	_ = m.store.UpdateRecording(ctx, recordingID, func(r *model.TestRecording) error {
		r.Status = model.RecordingFailed
		r.LastError = "analysis queue full"
		return nil
	})
	return fmt.Errorf("%w: recording %s", ErrQueueFull, recordingID)
}

// Claim transitions uploaded -> analyzing. A false return marks a stale
// job: the recording was replaced or retried past this attempt.
func (m *Manager) Claim(ctx context.Context, recordingID string) (bool, error) {
	claimed := false
	err := m.store.UpdateRecording(ctx, recordingID, func(r *model.TestRecording) error {
		if r.Status != model.RecordingUploaded {
			return nil
		}
		r.Status = model.RecordingAnalyzing
		claimed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

// OnAnalysisResult applies an analyzer outcome and reports whether the
// recording reached a terminal status.
//
// Results are tolerated out of order and at-least-once: an outcome for a
// recording no longer in analyzing/cheat_checking is a no-op, not an error.
func (m *Manager) OnAnalysisResult(ctx context.Context, outcome model.AnalysisOutcome) (Completion, error) {
	if outcome.Kind == model.OutcomeFailed {
		return m.applyFailure(ctx, outcome)
	}
	return m.applyScored(ctx, outcome)
}

func (m *Manager) applyFailure(ctx context.Context, outcome model.AnalysisOutcome) (Completion, error) {
	var rec model.TestRecording
	applied := false
	err := m.store.UpdateRecording(ctx, outcome.RecordingID, func(r *model.TestRecording) error {
		if r.Status != model.RecordingAnalyzing && r.Status != model.RecordingCheatChecking {
			return nil
		}
		// The failure reason is stored verbatim; retry_count only moves on
		// an explicit retry request, keeping the cap a measure of how many
		// times a human chose to retry.
		r.Status = model.RecordingFailed
		r.LastError = outcome.Reason
		r.ProcessedAt = time.Now()
		rec = *r
		applied = true
		return nil
	})
	if err != nil {
		return Completion{}, err
	}
	if !applied {
		return Completion{}, nil
	}
	m.logger.Warn(ctx, "analysis failed",
		logger.String("recordingID", outcome.RecordingID),
		logger.String("reason", outcome.Reason),
	)
	return Completion{
		RecordingID: rec.ID,
		SessionID:   rec.SessionID,
		AthleteID:   rec.AthleteID,
		TestID:      rec.TestID,
		Status:      rec.Status,
	}, nil
}

func (m *Manager) applyScored(ctx context.Context, outcome model.AnalysisOutcome) (Completion, error) {
	// First step: analyzing -> cheat_checking, storing the raw output.
	var rec model.TestRecording
	applied := false
	err := m.store.UpdateRecording(ctx, outcome.RecordingID, func(r *model.TestRecording) error {
		if r.Status != model.RecordingAnalyzing {
			return nil
		}
		r.Status = model.RecordingCheatChecking
		r.RawScore = outcome.RawScore
		r.Confidence = outcome.Confidence
		r.AnalysisData = outcome.AnalysisData
		rec = *r
		applied = true
		return nil
	})
	if err != nil {
		return Completion{}, err
	}
	if !applied {
		// Duplicate or stale delivery.
		return Completion{}, nil
	}

	test, err := m.store.GetTest(ctx, rec.TestID)
	if err != nil {
		return Completion{}, fmt.Errorf("test %s: %w", rec.TestID, err)
	}
	athlete, err := m.store.GetAthlete(ctx, rec.AthleteID)
	if err != nil {
		return Completion{}, fmt.Errorf("athlete %s: %w", rec.AthleteID, err)
	}

	// Cheat detection runs outside any store lock.
	var susp analysis.Suspicion
	if test.CheatSensitive {
		susp, err = m.detector.Inspect(ctx, analysis.Request{
			RecordingID: rec.ID,
			VideoRef:    rec.VideoRef,
			TestName:    test.Name,
		}, analysis.Result{
			RawScore:     outcome.RawScore,
			Confidence:   outcome.Confidence,
			AnalysisData: outcome.AnalysisData,
		})
		if err != nil {
			return m.applyFailure(ctx, model.FailedOutcome(rec.ID, "cheat detection: "+err.Error()))
		}
	}

	graded, gradeRes := m.gradeFor(test.Name, athlete, outcome.RawScore)

	// Second step: cheat_checking -> completed | flagged with final fields.
	finalized := false
	err = m.store.UpdateRecording(ctx, outcome.RecordingID, func(r *model.TestRecording) error {
		if r.Status != model.RecordingCheatChecking {
			return nil
		}
		r.SuspicionScore = susp.Score
		r.CheatFlags = susp.Flags
		if test.CheatSensitive && susp.Score > m.cheatThreshold {
			r.Status = model.RecordingFlagged
			r.FlagReason = "suspicion above threshold: " + strings.Join(susp.Flags, ",")
		} else {
			r.Status = model.RecordingCompleted
		}
		r.FinalScore = r.RawScore
		r.Graded = graded
		if graded {
			r.Category = gradeRes.Category
			r.Points = gradeRes.Points
		}
		r.ProcessedAt = time.Now()
		rec = *r
		finalized = true
		return nil
	})
	if err != nil {
		return Completion{}, err
	}
	if !finalized {
		return Completion{}, nil
	}

	switch rec.Status {
	case model.RecordingFlagged:
		metrics.RecordRecordingFlagged()
	default:
		metrics.RecordRecordingCompleted()
	}
	if !graded {
		metrics.RecordRecordingUngraded()
	}

	return Completion{
		RecordingID: rec.ID,
		SessionID:   rec.SessionID,
		AthleteID:   rec.AthleteID,
		TestID:      rec.TestID,
		Status:      rec.Status,
		Terminal:    true,
	}, nil
}

// gradeFor resolves the benchmark and grades the recording's final score.
// A missing benchmark is not an error: the recording completes ungraded.
func (m *Manager) gradeFor(testName string, athlete model.AthleteProfile, score float64) (bool, grading.Result) {
	b, err := m.benchmarks.Lookup(testName, athlete.Age, athlete.Gender)
	if err != nil {
		return false, grading.Result{}
	}
	return true, grading.Grade(score, b)
}

// Retry re-enqueues analysis for a failed recording. This is the only path
// that increments retry_count.
func (m *Manager) Retry(ctx context.Context, recordingID string) (model.TestRecording, error) {
	var rec model.TestRecording
	err := m.store.UpdateRecording(ctx, recordingID, func(r *model.TestRecording) error {
		// Cap check precedes the status check: a recording at the cap is
		// RetryExhausted regardless of status.
		if r.RetryCount >= m.maxRetries {
			return fmt.Errorf("%w: recording %s has used %d retries", ErrRetryExhausted, recordingID, r.RetryCount)
		}
		if r.Status != model.RecordingFailed {
			return fmt.Errorf("%w: retry requires failed status, recording %s is %s", ErrInvalidState, recordingID, r.Status)
		}
		r.RetryCount++
		r.LastError = ""
		r.Status = model.RecordingUploaded
		rec = *r
		return nil
	})
	if err != nil {
		return model.TestRecording{}, err
	}

	test, err := m.store.GetTest(ctx, rec.TestID)
	if err != nil {
		return model.TestRecording{}, fmt.Errorf("test %s: %w", rec.TestID, err)
	}
	if err := m.enqueue(ctx, rec.ID, rec.VideoRef, test.Name); err != nil {
		return model.TestRecording{}, err
	}

	metrics.RecordRecordingRetried()
	m.logger.Info(ctx, "recording retry enqueued",
		logger.String("recordingID", rec.ID),
		logger.Int("retryCount", rec.RetryCount),
	)
	return rec, nil
}

// Override applies a reviewing official's manual score to a completed or
// flagged recording, re-grading it and marking it manually verified.
func (m *Manager) Override(ctx context.Context, recordingID string, score float64, officialID, notes string) (Completion, error) {
	rec, err := m.store.GetRecording(ctx, recordingID)
	if err != nil {
		return Completion{}, err
	}
	test, err := m.store.GetTest(ctx, rec.TestID)
	if err != nil {
		return Completion{}, fmt.Errorf("test %s: %w", rec.TestID, err)
	}
	athlete, err := m.store.GetAthlete(ctx, rec.AthleteID)
	if err != nil {
		return Completion{}, fmt.Errorf("athlete %s: %w", rec.AthleteID, err)
	}

	b, lookupErr := m.benchmarks.Lookup(test.Name, athlete.Age, athlete.Gender)

	err = m.store.UpdateRecording(ctx, recordingID, func(r *model.TestRecording) error {
		if r.Status != model.RecordingCompleted && r.Status != model.RecordingFlagged {
			return fmt.Errorf("%w: override requires completed or flagged status, recording %s is %s", ErrInvalidState, recordingID, r.Status)
		}
		r.Status = model.RecordingVerified
		r.ManualScore = score
		r.VerifiedBy = officialID
		r.VerificationNotes = notes
		r.FinalScore = score
		if lookupErr == nil {
			res := grading.Grade(score, b)
			r.Category = res.Category
			r.Points = res.Points
			r.Graded = true
		}
		rec = *r
		return nil
	})
	if err != nil {
		return Completion{}, err
	}

	return Completion{
		RecordingID: rec.ID,
		SessionID:   rec.SessionID,
		AthleteID:   rec.AthleteID,
		TestID:      rec.TestID,
		Status:      rec.Status,
		Terminal:    true,
	}, nil
}
