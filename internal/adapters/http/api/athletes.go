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

// AthletesHandler handles athlete registration and lookup.
type AthletesHandler struct {
	deps AthleteDependencies
}

// NewAthletesHandler creates a new athletes handler.
func NewAthletesHandler(deps AthleteDependencies) *AthletesHandler {
	return &AthletesHandler{deps: deps}
}

// athleteRequest mirrors the request schema for POST /athletes.
type athleteRequest struct {
	FullName string `json:"full_name"`
	Age      int    `json:"age"`
	Gender   string `json:"gender"`
	State    string `json:"state"`
	District string `json:"district"`
}

func (a athleteRequest) validate() error {
	switch {
	case strings.TrimSpace(a.FullName) == "":
		return errors.New("missing full_name")
	case a.Age <= 0:
		return errors.New("invalid age")
	}
	switch model.Gender(a.Gender) {
	case model.GenderMale, model.GenderFemale, model.GenderOther:
		return nil
	default:
		return errors.New("invalid gender; must be male, female or other")
	}
}

// athleteResponse mirrors the response schema for athlete reads.
type athleteResponse struct {
	ID                 string    `json:"id"`
	FullName           string    `json:"full_name"`
	Age                int       `json:"age"`
	Gender             string    `json:"gender"`
	State              string    `json:"state"`
	District           string    `json:"district"`
	AgeGroup           string    `json:"age_group"`
	OverallTalentScore float64   `json:"overall_talent_score"`
	TalentGrade        string    `json:"talent_grade,omitempty"`
	TotalPoints        int       `json:"total_points"`
	Level              int       `json:"level"`
	Verified           bool      `json:"verified"`
	CreatedAt          time.Time `json:"created_at"`
}

func toAthleteResponse(a model.AthleteProfile) athleteResponse {
	return athleteResponse{
		ID:                 a.ID,
		FullName:           a.FullName,
		Age:                a.Age,
		Gender:             string(a.Gender),
		State:              a.State,
		District:           a.District,
		AgeGroup:           a.AgeGroup(),
		OverallTalentScore: a.OverallTalentScore,
		TalentGrade:        a.TalentGrade,
		TotalPoints:        a.TotalPoints,
		Level:              a.Level,
		Verified:           a.Verified,
		CreatedAt:          a.CreatedAt,
	}
}

// HandleAthletes handles POST /athletes requests.
func (h *AthletesHandler) HandleAthletes(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_athlete"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req athleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	athlete, err := h.deps.RegisterAthlete(r.Context(), model.AthleteProfile{
		FullName: req.FullName,
		Age:      req.Age,
		Gender:   model.Gender(req.Gender),
		State:    req.State,
		District: req.District,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAthleteResponse(athlete))
}

// HandleAthleteByID handles GET /athletes/{id} requests.
func (h *AthletesHandler) HandleAthleteByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/athletes/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	athlete, err := h.deps.GetAthlete(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAthleteResponse(athlete))
}
