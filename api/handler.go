// Package api exposes the import pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"emlak-ingest/models"
	"emlak-ingest/scraper"
	"emlak-ingest/scraper/browser"
	"emlak-ingest/scraper/portal"
	"emlak-ingest/services"
	"emlak-ingest/utils"
)

// ImportService is the part of services.Importer the HTTP layer calls.
type ImportService interface {
	Preview(ctx context.Context, req services.PreviewRequest) (services.PreviewResult, error)
	Confirm(ctx context.Context, req services.ConfirmRequest) (*models.ImportTask, error)
	GetTask(ctx context.Context, id string) (*models.ImportTask, error)
}

type ImportHandler struct {
	imports ImportService
	logger  *utils.Logger
}

func NewImportHandler(imports ImportService, logger *utils.Logger) *ImportHandler {
	return &ImportHandler{imports: imports, logger: logger}
}

type confirmResponse struct {
	TaskID string           `json:"taskId"`
	State  models.TaskState `json:"state"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *ImportHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	var req services.PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.imports.Preview(r.Context(), req)
	if err != nil {
		h.fail(w, "preview", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ImportHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	var req services.ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	task, err := h.imports.Confirm(r.Context(), req)
	if err != nil {
		h.fail(w, "confirm", err)
		return
	}
	writeJSON(w, http.StatusAccepted, confirmResponse{TaskID: task.ID, State: task.State})
}

func (h *ImportHandler) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.imports.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *ImportHandler) fail(w http.ResponseWriter, op string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("[api] %s: %v", op, err)
	} else {
		h.logger.Warn("[api] %s: %v", op, err)
	}
	writeError(w, status, err.Error())
}

// StatusFor maps pipeline errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, portal.ErrUnknownPortal), errors.Is(err, services.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrTaskConfirmed):
		return http.StatusConflict
	case errors.Is(err, browser.ErrStructureChanged), errors.Is(err, scraper.ErrTooFewFields):
		return http.StatusUnprocessableEntity
	case utils.IsNetworkError(err):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
