// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/khelo/talenttrack/internal/domain/model"
)

// LeaderboardHandler handles leaderboard and rank requests.
type LeaderboardHandler struct {
	deps LeaderboardDependencies
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

// rowResponse mirrors the response schema for leaderboard reads.
type rowResponse struct {
	Rank         int     `json:"rank"`
	PreviousRank int     `json:"previous_rank"`
	RankDelta    int     `json:"rank_delta"`
	AthleteID    string  `json:"athlete_id"`
	BestScore    float64 `json:"best_score"`
	TotalPoints  int     `json:"total_points"`
}

func toRowResponse(row model.LeaderboardRow) rowResponse {
	return rowResponse{
		Rank:         row.Rank,
		PreviousRank: row.PreviousRank,
		RankDelta:    row.RankDelta(),
		AthleteID:    row.AthleteID,
		BestScore:    row.BestScore,
		TotalPoints:  row.TotalPoints,
	}
}

// scopeFromQuery builds a leaderboard scope from query parameters:
// scope (national|state|district|age_group), region, test_id.
func scopeFromQuery(q url.Values) (model.Scope, error) {
	kind := model.ScopeKind(q.Get("scope"))
	if kind == "" {
		kind = model.ScopeNational
	}
	region := q.Get("region")
	switch kind {
	case model.ScopeNational:
		region = ""
	case model.ScopeState, model.ScopeDistrict, model.ScopeAgeGroup:
		if region == "" {
			return model.Scope{}, errors.New("missing region for scoped leaderboard")
		}
	default:
		return model.Scope{}, errors.New("invalid scope; must be national, state, district or age_group")
	}
	return model.Scope{Kind: kind, Region: region, TestID: q.Get("test_id")}, nil
}

// HandleGetLeaderboard handles GET /leaderboard?scope=&region=&test_id=&limit=N requests.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	scope, err := scopeFromQuery(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	limit := 0
	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
	}
	rows, err := h.deps.Leaderboard(r.Context(), scope, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]rowResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toRowResponse(row))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetRank handles GET /rank/{athlete_id}?scope=&region=&test_id= requests.
func (h *LeaderboardHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	athleteID := strings.TrimPrefix(r.URL.Path, "/rank/")
	if athleteID == "" || strings.Contains(athleteID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	scope, err := scopeFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	row, err := h.deps.AthleteRank(r.Context(), scope, athleteID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRowResponse(row))
}
