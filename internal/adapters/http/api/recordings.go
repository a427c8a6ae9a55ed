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

// RecordingsHandler handles recording submission, status and retry.
type RecordingsHandler struct {
	deps RecordingDependencies
}

// NewRecordingsHandler creates a new recordings handler.
func NewRecordingsHandler(deps RecordingDependencies) *RecordingsHandler {
	return &RecordingsHandler{deps: deps}
}

// recordingRequest mirrors the request schema for POST /recordings.
type recordingRequest struct {
	SessionID   string            `json:"session_id"`
	TestID      string            `json:"test_id"`
	VideoRef    string            `json:"video_ref"`
	DeviceHints map[string]string `json:"device_hints,omitempty"`
}

func (rr recordingRequest) validate() error {
	switch {
	case strings.TrimSpace(rr.SessionID) == "":
		return errors.New("missing session_id")
	case strings.TrimSpace(rr.TestID) == "":
		return errors.New("missing test_id")
	case strings.TrimSpace(rr.VideoRef) == "":
		return errors.New("missing video_ref")
	}
	return nil
}

// overrideRequest mirrors the request schema for POST /recordings/{id}/override.
type overrideRequest struct {
	Score      float64 `json:"score"`
	OfficialID string  `json:"official_id"`
	Notes      string  `json:"notes"`
}

// recordingResponse mirrors the response schema for recording reads.
type recordingResponse struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	AthleteID   string    `json:"athlete_id"`
	TestID      string    `json:"test_id"`
	Status      string    `json:"status"`
	FinalScore  float64   `json:"final_score"`
	Category    string    `json:"category,omitempty"`
	Points      int       `json:"points"`
	Percentile  float64   `json:"percentile"`
	Graded      bool      `json:"graded"`
	FlagReason  string    `json:"flag_reason,omitempty"`
	RetryCount  int       `json:"retry_count"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ProcessedAt time.Time `json:"processed_at,omitzero"`
}

func toRecordingResponse(rec model.TestRecording) recordingResponse {
	return recordingResponse{
		ID:          rec.ID,
		SessionID:   rec.SessionID,
		AthleteID:   rec.AthleteID,
		TestID:      rec.TestID,
		Status:      string(rec.Status),
		FinalScore:  rec.FinalScore,
		Category:    string(rec.Category),
		Points:      rec.Points,
		Percentile:  rec.Percentile,
		Graded:      rec.Graded,
		FlagReason:  rec.FlagReason,
		RetryCount:  rec.RetryCount,
		LastError:   rec.LastError,
		CreatedAt:   rec.CreatedAt,
		ProcessedAt: rec.ProcessedAt,
	}
}

// HandleRecordings handles POST /recordings requests.
func (h *RecordingsHandler) HandleRecordings(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_recording"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req recordingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	rec, err := h.deps.SubmitRecording(r.Context(), req.SessionID, req.TestID, req.VideoRef, req.DeviceHints)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toRecordingResponse(rec))
}

// HandleRecordingByID routes GET /recordings/{id}, POST /recordings/{id}/retry
// and POST /recordings/{id}/override requests.
func (h *RecordingsHandler) HandleRecordingByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/recordings/")
	id, action, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		rec, err := h.deps.RecordingStatus(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRecordingResponse(rec))
	case action == "retry" && r.Method == http.MethodPost:
		rec, err := h.deps.RetryRecording(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, toRecordingResponse(rec))
	case action == "override" && r.Method == http.MethodPost:
		h.handleOverride(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (h *RecordingsHandler) handleOverride(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.override_recording"
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.OfficialID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing official_id")))
		return
	}
	rec, err := h.deps.OverrideRecording(r.Context(), id, req.Score, req.OfficialID, req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordingResponse(rec))
}
