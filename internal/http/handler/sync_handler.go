package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/sandeepkv93/step-leaderboard-service/internal/http/response"
	"github.com/sandeepkv93/step-leaderboard-service/internal/observability"
	"github.com/sandeepkv93/step-leaderboard-service/internal/repository"
	"github.com/sandeepkv93/step-leaderboard-service/internal/service"
)

type SyncHandler struct {
	syncSvc service.SyncServiceInterface
}

func NewSyncHandler(syncSvc service.SyncServiceInterface) *SyncHandler {
	return &SyncHandler{syncSvc: syncSvc}
}

// SyncAll triggers one batch run. Per-user failures are data in the 200
// response body; only store or configuration failures surface as errors.
func (h *SyncHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAPIRequestDuration(r.Context(), "sync_all", status, time.Since(start))
	}()

	observability.Audit(r, "sync.run.requested")
	outcome, err := h.syncSvc.RunSync(r.Context())
	if err != nil {
		status = "failure"
		switch {
		case errors.Is(err, service.ErrSyncNotConfigured):
			observability.RecordSyncRunEvent(r.Context(), "not_configured")
			response.Error(w, r, http.StatusInternalServerError, "SYNC_NOT_CONFIGURED",
				"sync is not configured: missing Google client secret", nil)
		case errors.Is(err, service.ErrSyncAlreadyRunning):
			observability.RecordSyncRunEvent(r.Context(), "already_running")
			response.Error(w, r, http.StatusConflict, "SYNC_IN_PROGRESS", err.Error(), nil)
		case errors.Is(err, repository.ErrStoreUnavailable):
			observability.RecordSyncRunEvent(r.Context(), "store_unavailable")
			response.Error(w, r, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "credential store unavailable", nil)
		default:
			observability.RecordSyncRunEvent(r.Context(), "error")
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		}
		return
	}
	observability.RecordSyncRunEvent(r.Context(), "completed")
	observability.Audit(r, "sync.run.completed",
		"run_id", outcome.RunID,
		"succeeded", len(outcome.Succeeded),
		"failed", len(outcome.Failed),
		"skipped", len(outcome.Skipped),
	)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"message": "sync completed",
		"results": map[string]any{
			"success": outcome.Succeeded,
			"failed":  outcome.Failed,
			"skipped": outcome.Skipped,
		},
		"timestamp": outcome.FinishedAt,
	})
}

func (h *SyncHandler) TokenStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAPIRequestDuration(r.Context(), "token_status", status, time.Since(start))
	}()

	report, err := h.syncSvc.TokenStatus()
	if err != nil {
		status = "failure"
		response.Error(w, r, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "credential store unavailable", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, report)
}
