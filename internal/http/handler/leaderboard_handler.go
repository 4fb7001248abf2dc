package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sandeepkv93/step-leaderboard-service/internal/http/middleware"
	"github.com/sandeepkv93/step-leaderboard-service/internal/http/response"
	"github.com/sandeepkv93/step-leaderboard-service/internal/observability"
	"github.com/sandeepkv93/step-leaderboard-service/internal/repository"
	"github.com/sandeepkv93/step-leaderboard-service/internal/service"
)

type LeaderboardHandler struct {
	leaderboardSvc service.LeaderboardServiceInterface
}

func NewLeaderboardHandler(leaderboardSvc service.LeaderboardServiceInterface) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboardSvc: leaderboardSvc}
}

func (h *LeaderboardHandler) Top(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAPIRequestDuration(r.Context(), "leaderboard", status, time.Since(start))
	}()

	entries, err := h.leaderboardSvc.Top()
	if err != nil {
		status = "failure"
		response.Error(w, r, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "credential store unavailable", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"leaderboard": entries})
}

type stepsRequest struct {
	Steps int64 `json:"steps"`
}

// UpdateSteps lets an authenticated user report their own total for today.
// The identity always comes from the token, never from the payload.
func (h *LeaderboardHandler) UpdateSteps(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAPIRequestDuration(r.Context(), "steps", status, time.Since(start))
	}()

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		status = "failure"
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	var req stepsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	if err := h.leaderboardSvc.UpdateSteps(claims.Subject, req.Steps); err != nil {
		status = "failure"
		switch {
		case errors.Is(err, service.ErrNegativeSteps):
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		case errors.Is(err, repository.ErrNotFound):
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
		default:
			response.Error(w, r, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "credential store unavailable", nil)
		}
		return
	}
	observability.RecordStepsReported(r.Context(), int(req.Steps))
	observability.Audit(r, "steps.updated", "email", claims.Subject, "steps", req.Steps)
	response.JSON(w, r, http.StatusOK, map[string]any{"message": "steps updated", "steps": req.Steps})
}
