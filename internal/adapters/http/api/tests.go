// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/khelo/talenttrack/internal/domain/model"
)

// TestsHandler handles the fitness test catalog.
type TestsHandler struct {
	deps TestDependencies
}

// NewTestsHandler creates a new tests handler.
func NewTestsHandler(deps TestDependencies) *TestsHandler {
	return &TestsHandler{deps: deps}
}

// testRequest mirrors the request schema for POST /tests.
type testRequest struct {
	Name           string `json:"name"`
	Unit           string `json:"unit"`
	CheatSensitive bool   `json:"cheat_sensitive"`
}

// testResponse mirrors the response schema for catalog reads.
type testResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Unit           string `json:"unit"`
	CheatSensitive bool   `json:"cheat_sensitive"`
	Active         bool   `json:"active"`
}

func toTestResponse(t model.FitnessTest) testResponse {
	return testResponse{
		ID:             t.ID,
		Name:           t.Name,
		Unit:           t.Unit,
		CheatSensitive: t.CheatSensitive,
		Active:         t.Active,
	}
}

// HandleTests handles POST /tests and GET /tests requests.
func (h *TestsHandler) HandleTests(w http.ResponseWriter, r *http.Request) {
	const op = "api.tests"
	switch r.Method {
	case http.MethodPost:
		var req testRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing name")))
			return
		}
		test, err := h.deps.RegisterTest(r.Context(), model.FitnessTest{
			Name:           req.Name,
			Unit:           req.Unit,
			CheatSensitive: req.CheatSensitive,
			Active:         true,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toTestResponse(test))
	case http.MethodGet:
		tests, err := h.deps.ListTests(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		out := make([]testResponse, 0, len(tests))
		for _, t := range tests {
			out = append(out, toTestResponse(t))
		}
		writeJSON(w, http.StatusOK, out)
	default:
		http.NotFound(w, r)
	}
}
