package api

import (
	"context"
	"net/http"
	"strconv"

	"emlak-ingest/models"
	"emlak-ingest/utils"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// RunReader lists monitoring run summaries, newest first.
type RunReader interface {
	RecentRuns(ctx context.Context, limit int) ([]*models.MonitorRun, error)
}

type RunsHandler struct {
	runs   RunReader
	logger *utils.Logger
}

func NewRunsHandler(runs RunReader, logger *utils.Logger) *RunsHandler {
	return &RunsHandler{runs: runs, logger: logger}
}

// HandleRecent serves GET /api/v1/monitor/runs?limit=N.
func (h *RunsHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("[api] recent runs: %v", err)
		writeError(w, http.StatusInternalServerError, "run log unavailable")
		return
	}
	if runs == nil {
		runs = []*models.MonitorRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}
