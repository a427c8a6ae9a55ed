// Package service wires the assessment pipeline together and implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	jobqueue "github.com/khelo/talenttrack/internal/adapters/mq/queue"
	workerpool "github.com/khelo/talenttrack/internal/adapters/mq/worker"
	"github.com/khelo/talenttrack/internal/adapters/repository"
	"github.com/khelo/talenttrack/internal/domain/aggregate"
	"github.com/khelo/talenttrack/internal/domain/analysis"
	"github.com/khelo/talenttrack/internal/domain/grading"
	"github.com/khelo/talenttrack/internal/domain/lifecycle"
	"github.com/khelo/talenttrack/internal/domain/model"
	"github.com/khelo/talenttrack/internal/domain/ranking"
	"github.com/khelo/talenttrack/internal/domain/submission"
	"github.com/khelo/talenttrack/pkg/logger"
	"github.com/khelo/talenttrack/pkg/metrics"
)

// Service implements the API dependencies for the assessment pipeline.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      *repository.MemoryStore
	benchmarks *grading.Table
	jobQueue   jobqueue.Queue
	analyzer   analysis.Analyzer
	detector   analysis.CheatDetector
	lifecycle  *lifecycle.Manager
	aggregator *aggregate.Aggregator
	ranking    *ranking.Engine
	reviews    *submission.Workflow
	workerPool *workerpool.Pool

	// Configuration
	workerCount         int
	queueSize           int
	maxLeaderboardLimit int
	benchmarkFile       string
	watchBenchmarks     bool
	cheatThreshold      float64
	maxRetries          int
	analysisMinLatency  time.Duration
	analysisMaxLatency  time.Duration

	// State
	started bool
	stopCh  chan struct{}

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of analysis workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the analysis job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithMaxLeaderboardLimit caps how many rows a leaderboard query returns.
func WithMaxLeaderboardLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxLeaderboardLimit = limit
		}
	}
}

// WithBenchmarkFile points the service at the YAML benchmark reference data.
func WithBenchmarkFile(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.benchmarkFile = path
		}
	}
}

// WithBenchmarkWatch enables hot-reload of the benchmark file.
func WithBenchmarkWatch(enabled bool) Option {
	return func(s *Service) {
		s.watchBenchmarks = enabled
	}
}

// WithCheatThreshold sets the suspicion score above which a recording is flagged.
func WithCheatThreshold(t float64) Option {
	return func(s *Service) {
		if t >= 0 && t <= 1 {
			s.cheatThreshold = t
		}
	}
}

// WithMaxRetries caps user-initiated analysis retries per recording.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithAnalysisLatencyRange sets the simulated analyzer latency range.
func WithAnalysisLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(s *Service) {
		if minLatency > 0 && maxLatency > minLatency {
			s.analysisMinLatency = minLatency
			s.analysisMaxLatency = maxLatency
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:         runtime.NumCPU() * 4,
		queueSize:           50_000,
		maxLeaderboardLimit: 100,
		benchmarkFile:       "benchmarks.yaml",
		cheatThreshold:      0.7,
		maxRetries:          3,
		analysisMinLatency:  80 * time.Millisecond,
		analysisMaxLatency:  150 * time.Millisecond,
		stopCh:              make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting assessment pipeline...")

	s.store = repository.NewMemoryStore()

	table, err := grading.LoadFile(s.benchmarkFile)
	if err != nil {
		// Missing reference data is survivable: recordings complete
		// ungraded until a benchmark file appears.
		s.logger.Warn(ctx, "benchmark table unavailable, grading disabled",
			logger.String("file", s.benchmarkFile),
			logger.Error(err),
		)
		table, _ = grading.NewTable(nil)
	}
	s.benchmarks = table
	if s.watchBenchmarks {
		go func() {
			if err := s.benchmarks.Watch(ctx, s.benchmarkFile); err != nil {
				s.logger.Error(ctx, "benchmark watch stopped", logger.Error(err))
			}
		}()
	}

	s.jobQueue = jobqueue.NewInMemoryQueue(
		jobqueue.WithCapacity(s.queueSize),
		jobqueue.WithBufferSize(s.queueSize),
	)
	s.analyzer = analysis.NewSimulatedAnalyzer(
		analysis.WithLatencyRange(s.analysisMinLatency, s.analysisMaxLatency),
	)
	s.detector = analysis.NewSimulatedCheatDetector()

	s.lifecycle = lifecycle.New(s.store, s.jobQueue, s.benchmarks, s.detector,
		lifecycle.WithMaxRetries(s.maxRetries),
		lifecycle.WithCheatThreshold(s.cheatThreshold),
	)
	s.aggregator = aggregate.New(s.store)
	s.ranking = ranking.New(s.store)
	s.reviews = submission.New(s.store)

	s.workerPool = workerpool.NewPool(s.workerCount, s.jobQueue, s.analyzer, s)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "assessment pipeline started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("benchmarks", s.benchmarks.Count()),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping assessment pipeline...")

	if s.workerPool != nil {
		s.workerPool.Stop()
	}
	if q, ok := s.jobQueue.(*jobqueue.InMemoryQueue); ok {
		_ = q.Close()
	}

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(context.Background(), "assessment pipeline stopped")
}

// ---- Worker reporter ----

// Claim transitions the recording to analyzing; a false return drops the job.
func (s *Service) Claim(ctx context.Context, recordingID string) (bool, error) {
	return s.lifecycle.Claim(ctx, recordingID)
}

// OnAnalysisResult applies the analyzer outcome and, when the recording
// reaches a terminal status, runs the downstream aggregation and ranking steps.
func (s *Service) OnAnalysisResult(ctx context.Context, outcome model.AnalysisOutcome) error {
	completion, err := s.lifecycle.OnAnalysisResult(ctx, outcome)
	if err != nil {
		return err
	}
	if !completion.Terminal {
		return nil
	}
	return s.afterCompletion(ctx, completion)
}

// afterCompletion runs the cross-entity steps a terminal recording triggers,
// each one explicit and separately testable: session aggregation, athlete
// refresh, leaderboard rebuilds, then a session refresh to pick up the
// percentiles the rebuild wrote back.
func (s *Service) afterCompletion(ctx context.Context, c lifecycle.Completion) error {
	_, completed, err := s.aggregator.RecordCompletion(ctx, c.SessionID)
	if err != nil {
		return fmt.Errorf("aggregate session %s: %w", c.SessionID, err)
	}
	if completed {
		if _, err := s.aggregator.RefreshAthlete(ctx, c.AthleteID); err != nil {
			return fmt.Errorf("refresh athlete %s: %w", c.AthleteID, err)
		}
	}

	athlete, err := s.store.GetAthlete(ctx, c.AthleteID)
	if err != nil {
		return err
	}
	if err := s.ranking.RebuildAffected(ctx, athlete, c.TestID); err != nil {
		return fmt.Errorf("rebuild leaderboards: %w", err)
	}

	if completed {
		// Idempotent second pass folds the fresh percentiles into the
		// session's aggregate fields.
		if _, _, err := s.aggregator.RecordCompletion(ctx, c.SessionID); err != nil {
			return fmt.Errorf("refresh session %s: %w", c.SessionID, err)
		}
	}
	return nil
}

// ---- Athletes and tests ----

// RegisterAthlete creates an athlete profile.
func (s *Service) RegisterAthlete(ctx context.Context, a model.AthleteProfile) (model.AthleteProfile, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Level = model.LevelForPoints(a.TotalPoints)
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	if err := s.store.PutAthlete(ctx, a); err != nil {
		return model.AthleteProfile{}, err
	}
	metrics.UpdateTotalAthletes(s.store.CountAthletes(ctx))
	return a, nil
}

// GetAthlete returns an athlete profile by id.
func (s *Service) GetAthlete(ctx context.Context, id string) (model.AthleteProfile, error) {
	return s.store.GetAthlete(ctx, id)
}

// RegisterTest adds a fitness test catalog entry.
func (s *Service) RegisterTest(ctx context.Context, t model.FitnessTest) (model.FitnessTest, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := s.store.PutTest(ctx, t); err != nil {
		return model.FitnessTest{}, err
	}
	return t, nil
}

// ListTests returns the fitness test catalog.
func (s *Service) ListTests(ctx context.Context) ([]model.FitnessTest, error) {
	return s.store.ListTests(ctx)
}

// ---- Sessions and recordings ----

// StartSession opens an assessment session covering the given test battery.
func (s *Service) StartSession(ctx context.Context, athleteID, name string, testIDs []string) (model.AssessmentSession, error) {
	if _, err := s.store.GetAthlete(ctx, athleteID); err != nil {
		return model.AssessmentSession{}, fmt.Errorf("athlete %s: %w", athleteID, err)
	}
	for _, testID := range testIDs {
		if _, err := s.store.GetTest(ctx, testID); err != nil {
			return model.AssessmentSession{}, fmt.Errorf("test %s: %w", testID, err)
		}
	}

	sess := model.AssessmentSession{
		ID:         uuid.NewString(),
		AthleteID:  athleteID,
		Name:       name,
		Status:     model.SessionCreated,
		TotalTests: len(testIDs),
		CreatedAt:  time.Now(),
	}
	if err := s.store.PutSession(ctx, sess); err != nil {
		return model.AssessmentSession{}, err
	}
	return sess, nil
}

// GetSession returns a session by id.
func (s *Service) GetSession(ctx context.Context, id string) (model.AssessmentSession, error) {
	return s.store.GetSession(ctx, id)
}

// SubmitRecording registers a performance video for analysis.
func (s *Service) SubmitRecording(ctx context.Context, sessionID, testID, videoRef string, deviceHints map[string]string) (model.TestRecording, error) {
	rec, err := s.lifecycle.Submit(ctx, sessionID, testID, videoRef, deviceHints)
	if err != nil {
		return model.TestRecording{}, err
	}
	metrics.UpdateQueueSize(s.jobQueue.Len(ctx))
	return rec, nil
}

// RetryRecording re-enqueues analysis for a failed recording.
func (s *Service) RetryRecording(ctx context.Context, recordingID string) (model.TestRecording, error) {
	return s.lifecycle.Retry(ctx, recordingID)
}

// RecordingStatus returns the recording's current state, including any
// stored analysis failure reason.
func (s *Service) RecordingStatus(ctx context.Context, recordingID string) (model.TestRecording, error) {
	return s.store.GetRecording(ctx, recordingID)
}

// OverrideRecording applies a reviewing official's manual score and reruns
// the downstream aggregation and ranking steps.
func (s *Service) OverrideRecording(ctx context.Context, recordingID string, score float64, officialID, notes string) (model.TestRecording, error) {
	completion, err := s.lifecycle.Override(ctx, recordingID, score, officialID, notes)
	if err != nil {
		return model.TestRecording{}, err
	}
	if err := s.afterCompletion(ctx, completion); err != nil {
		return model.TestRecording{}, err
	}
	return s.store.GetRecording(ctx, recordingID)
}

// ---- Leaderboards ----

// Leaderboard returns up to limit rows for a scope, rank order preserved.
func (s *Service) Leaderboard(ctx context.Context, scope model.Scope, limit int) ([]model.LeaderboardRow, error) {
	if limit <= 0 || limit > s.maxLeaderboardLimit {
		limit = s.maxLeaderboardLimit
	}
	rows, err := s.store.ScopeRows(ctx, scope)
	if err != nil {
		return nil, err
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// AthleteRank returns the athlete's standing within a scope.
func (s *Service) AthleteRank(ctx context.Context, scope model.Scope, athleteID string) (model.LeaderboardRow, error) {
	return s.store.AthleteRank(ctx, scope, athleteID)
}

// ---- Submissions ----

// SubmitToReview packages a completed session into a reviewable submission.
func (s *Service) SubmitToReview(ctx context.Context, sessionID string) (model.Submission, error) {
	return s.reviews.Submit(ctx, sessionID)
}

// GetSubmission returns a submission by id.
func (s *Service) GetSubmission(ctx context.Context, id string) (model.Submission, error) {
	return s.reviews.Get(ctx, id)
}

// BeginReview moves a submission to under_review for the given reviewer.
func (s *Service) BeginReview(ctx context.Context, submissionID, reviewerID string) (model.Submission, error) {
	return s.reviews.BeginReview(ctx, submissionID, reviewerID)
}

// ReviewSubmission applies a terminal reviewer verdict.
func (s *Service) ReviewSubmission(ctx context.Context, submissionID string, decision model.ReviewDecision, reviewerID, comments string) (model.Submission, error) {
	return s.reviews.Review(ctx, submissionID, decision, reviewerID, comments)
}

// ---- Monitoring ----

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}

	if s.started {
		queueLen := s.jobQueue.Len(ctx)
		totalAthletes := s.store.CountAthletes(ctx)

		stats["queueLength"] = queueLen
		stats["totalAthletes"] = totalAthletes
		stats["benchmarks"] = s.benchmarks.Count()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateTotalAthletes(totalAthletes)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}
