// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/khelo/talenttrack/internal/domain/model"
)

// SessionsHandler handles assessment session requests.
type SessionsHandler struct {
	deps SessionDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

// sessionRequest mirrors the request schema for POST /sessions.
type sessionRequest struct {
	AthleteID string   `json:"athlete_id"`
	Name      string   `json:"name"`
	TestIDs   []string `json:"test_ids"`
}

func (s sessionRequest) validate() error {
	switch {
	case strings.TrimSpace(s.AthleteID) == "":
		return errors.New("missing athlete_id")
	case len(s.TestIDs) == 0:
		return errors.New("missing test_ids")
	}
	return nil
}

// sessionResponse mirrors the response schema for session reads.
type sessionResponse struct {
	ID             string    `json:"id"`
	AthleteID      string    `json:"athlete_id"`
	Name           string    `json:"name"`
	Status         string    `json:"status"`
	TotalTests     int       `json:"total_tests"`
	CompletedTests int       `json:"completed_tests"`
	OverallScore   float64   `json:"overall_score"`
	OverallGrade   string    `json:"overall_grade,omitempty"`
	PercentileRank float64   `json:"percentile_rank"`
	CreatedAt      time.Time `json:"created_at"`
}

func toSessionResponse(s model.AssessmentSession) sessionResponse {
	return sessionResponse{
		ID:             s.ID,
		AthleteID:      s.AthleteID,
		Name:           s.Name,
		Status:         string(s.Status),
		TotalTests:     s.TotalTests,
		CompletedTests: s.CompletedTests,
		OverallScore:   s.OverallScore,
		OverallGrade:   s.OverallGrade,
		PercentileRank: s.PercentileRank,
		CreatedAt:      s.CreatedAt,
	}
}

// HandleSessions handles POST /sessions requests.
func (h *SessionsHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_session"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	sess, err := h.deps.StartSession(r.Context(), req.AthleteID, req.Name, req.TestIDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

// HandleSessionByID handles GET /sessions/{id} requests.
func (h *SessionsHandler) HandleSessionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/sessions/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	sess, err := h.deps.GetSession(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}
