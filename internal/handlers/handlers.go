// Package handlers exposes the worker's HTTP boundary: a health endpoint
// backed by queue lag and the Prometheus metrics endpoint.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// LagReader reports how many queue items are visible and waiting.
type LagReader interface {
	QueueLag(ctx context.Context) (int64, error)
}

type Handler struct {
	queue  LagReader
	logger *zap.SugaredLogger
}

func New(queue LagReader, logger *zap.SugaredLogger) *Handler {
	return &Handler{queue: queue, logger: logger}
}

// Router builds the boundary router.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Health returns 200 with the current queue lag, or 503 when the store is
// unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	lag, err := h.queue.QueueLag(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		h.logger.Errorw("health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{
			"status": "unavailable",
			"time":   time.Now().UTC(),
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"queueLag": lag,
		"time":     time.Now().UTC(),
	})
}
