package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"emlak-ingest/utils"
)

// NewRouter wires the import routes and health check. The run log and
// metrics routes are mounted only when their handlers are non-nil.
func NewRouter(h *ImportHandler, runs *RunsHandler, metrics http.Handler, logger *utils.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Route("/api/v1/imports", func(r chi.Router) {
		r.Post("/preview", h.HandlePreview)
		r.Post("/confirm", h.HandleConfirm)
		r.Get("/{id}", h.HandleGetTask)
	})
	if runs != nil {
		r.Get("/api/v1/monitor/runs", runs.HandleRecent)
	}
	return r
}

func requestLogger(logger *utils.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("[api] %s %s -> %d in %v (req %s)",
				r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
		})
	}
}
