// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/khelo/talenttrack/internal/adapters/repository"
	"github.com/khelo/talenttrack/internal/domain/lifecycle"
	"github.com/khelo/talenttrack/internal/domain/model"
	"github.com/khelo/talenttrack/internal/domain/submission"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	AthleteDependencies
	TestDependencies
	SessionDependencies
	RecordingDependencies
	LeaderboardDependencies
	SubmissionDependencies
}

// AthleteDependencies defines the interface for athlete operations.
type AthleteDependencies interface {
	RegisterAthlete(ctx context.Context, a model.AthleteProfile) (model.AthleteProfile, error)
	GetAthlete(ctx context.Context, id string) (model.AthleteProfile, error)
}

// TestDependencies defines the interface for test catalog operations.
type TestDependencies interface {
	RegisterTest(ctx context.Context, t model.FitnessTest) (model.FitnessTest, error)
	ListTests(ctx context.Context) ([]model.FitnessTest, error)
}

// SessionDependencies defines the interface for session operations.
type SessionDependencies interface {
	StartSession(ctx context.Context, athleteID, name string, testIDs []string) (model.AssessmentSession, error)
	GetSession(ctx context.Context, id string) (model.AssessmentSession, error)
}

// RecordingDependencies defines the interface for recording operations.
type RecordingDependencies interface {
	SubmitRecording(ctx context.Context, sessionID, testID, videoRef string, deviceHints map[string]string) (model.TestRecording, error)
	RetryRecording(ctx context.Context, recordingID string) (model.TestRecording, error)
	RecordingStatus(ctx context.Context, recordingID string) (model.TestRecording, error)
	OverrideRecording(ctx context.Context, recordingID string, score float64, officialID, notes string) (model.TestRecording, error)
}

// LeaderboardDependencies defines the interface for leaderboard queries.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, scope model.Scope, limit int) ([]model.LeaderboardRow, error)
	AthleteRank(ctx context.Context, scope model.Scope, athleteID string) (model.LeaderboardRow, error)
}

// SubmissionDependencies defines the interface for the review workflow.
type SubmissionDependencies interface {
	SubmitToReview(ctx context.Context, sessionID string) (model.Submission, error)
	GetSubmission(ctx context.Context, id string) (model.Submission, error)
	BeginReview(ctx context.Context, submissionID, reviewerID string) (model.Submission, error)
	ReviewSubmission(ctx context.Context, submissionID string, decision model.ReviewDecision, reviewerID, comments string) (model.Submission, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	athletesHandler    *AthletesHandler
	testsHandler       *TestsHandler
	sessionsHandler    *SessionsHandler
	recordingsHandler  *RecordingsHandler
	leaderboardHandler *LeaderboardHandler
	submissionsHandler *SubmissionsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		athletesHandler:    NewAthletesHandler(deps),
		testsHandler:       NewTestsHandler(deps),
		sessionsHandler:    NewSessionsHandler(deps),
		recordingsHandler:  NewRecordingsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
		submissionsHandler: NewSubmissionsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/athletes", MetricsMiddleware(s.athletesHandler.HandleAthletes, "athletes"))
	mux.HandleFunc("/athletes/", MetricsMiddleware(s.athletesHandler.HandleAthleteByID, "athlete"))
	mux.HandleFunc("/tests", MetricsMiddleware(s.testsHandler.HandleTests, "tests"))
	mux.HandleFunc("/sessions", MetricsMiddleware(s.sessionsHandler.HandleSessions, "sessions"))
	mux.HandleFunc("/sessions/", MetricsMiddleware(s.sessionsHandler.HandleSessionByID, "session"))
	mux.HandleFunc("/recordings", MetricsMiddleware(s.recordingsHandler.HandleRecordings, "recordings"))
	mux.HandleFunc("/recordings/", MetricsMiddleware(s.recordingsHandler.HandleRecordingByID, "recording"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.leaderboardHandler.HandleGetRank, "rank"))
	mux.HandleFunc("/submissions", MetricsMiddleware(s.submissionsHandler.HandleSubmissions, "submissions"))
	mux.HandleFunc("/submissions/", MetricsMiddleware(s.submissionsHandler.HandleSubmissionByID, "submission"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates domain sentinel errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, lifecycle.ErrRetryExhausted):
		writeError(w, http.StatusConflict, "retry_exhausted", err)
	case errors.Is(err, lifecycle.ErrInvalidState), errors.Is(err, submission.ErrInvalidState):
		writeError(w, http.StatusConflict, "invalid_state", err)
	case errors.Is(err, submission.ErrNotComplete):
		writeError(w, http.StatusConflict, "not_complete", err)
	case errors.Is(err, lifecycle.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
