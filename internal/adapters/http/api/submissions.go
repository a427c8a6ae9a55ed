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

// SubmissionsHandler handles the reviewer-facing submission workflow.
type SubmissionsHandler struct {
	deps SubmissionDependencies
}

// NewSubmissionsHandler creates a new submissions handler.
func NewSubmissionsHandler(deps SubmissionDependencies) *SubmissionsHandler {
	return &SubmissionsHandler{deps: deps}
}

// submitRequest mirrors the request schema for POST /submissions.
type submitRequest struct {
	SessionID string `json:"session_id"`
}

// claimRequest mirrors the request schema for POST /submissions/{id}/claim.
type claimRequest struct {
	ReviewerID string `json:"reviewer_id"`
}

// reviewRequest mirrors the request schema for POST /submissions/{id}/review.
type reviewRequest struct {
	Decision   string `json:"decision"`
	ReviewerID string `json:"reviewer_id"`
	Comments   string `json:"comments"`
}

// submissionResponse mirrors the response schema for submission reads.
type submissionResponse struct {
	ID             string          `json:"id"`
	Reference      string          `json:"reference"`
	SessionID      string          `json:"session_id"`
	AthleteID      string          `json:"athlete_id"`
	Status         string          `json:"status"`
	Snapshot       json.RawMessage `json:"snapshot,omitempty"`
	ReviewerID     string          `json:"reviewer_id,omitempty"`
	ReviewComments string          `json:"review_comments,omitempty"`
	SubmittedAt    time.Time       `json:"submitted_at"`
	ReviewedAt     time.Time       `json:"reviewed_at,omitzero"`
}

func toSubmissionResponse(s model.Submission) submissionResponse {
	return submissionResponse{
		ID:             s.ID,
		Reference:      s.Reference,
		SessionID:      s.SessionID,
		AthleteID:      s.AthleteID,
		Status:         string(s.Status),
		Snapshot:       s.Snapshot,
		ReviewerID:     s.ReviewerID,
		ReviewComments: s.ReviewComments,
		SubmittedAt:    s.SubmittedAt,
		ReviewedAt:     s.ReviewedAt,
	}
}

// HandleSubmissions handles POST /submissions requests.
func (h *SubmissionsHandler) HandleSubmissions(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_submission"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing session_id")))
		return
	}
	sub, err := h.deps.SubmitToReview(r.Context(), req.SessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubmissionResponse(sub))
}

// HandleSubmissionByID routes GET /submissions/{id},
// POST /submissions/{id}/claim and POST /submissions/{id}/review requests.
func (h *SubmissionsHandler) HandleSubmissionByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/submissions/")
	id, action, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		sub, err := h.deps.GetSubmission(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSubmissionResponse(sub))
	case action == "claim" && r.Method == http.MethodPost:
		h.handleClaim(w, r, id)
	case action == "review" && r.Method == http.MethodPost:
		h.handleReview(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (h *SubmissionsHandler) handleClaim(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.claim_submission"
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.ReviewerID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing reviewer_id")))
		return
	}
	sub, err := h.deps.BeginReview(r.Context(), id, req.ReviewerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubmissionResponse(sub))
}

func (h *SubmissionsHandler) handleReview(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.review_submission"
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.ReviewerID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing reviewer_id")))
		return
	}
	sub, err := h.deps.ReviewSubmission(r.Context(), id, model.ReviewDecision(req.Decision), req.ReviewerID, req.Comments)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubmissionResponse(sub))
}
