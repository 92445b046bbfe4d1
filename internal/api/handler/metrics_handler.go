package handler

import (
	"context"
	"net/http"

	"github.com/notifyhub/event-notifier/internal/broker"
)

// QueueStatter reports the notification queue's current depth.
type QueueStatter interface {
	Queue() string
	Stats(ctx context.Context) (broker.QueueStats, error)
}

// MetricsHandler serves a human-readable JSON queue snapshot.
// Raw Prometheus metrics (counters, histograms) are available at /metrics
// via promhttp.Handler and are separate from this endpoint.
type MetricsHandler struct {
	q QueueStatter
}

func NewMetricsHandler(q QueueStatter) *MetricsHandler {
	return &MetricsHandler{q: q}
}

// GetMetrics handles GET /api/v1/metrics
//
// @Summary  Real-time queue depth snapshot
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  map[string]any
// @Failure  503  {object}  map[string]string
// @Router   /api/v1/metrics [get]
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.q.Stats(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"queue":       h.q.Queue(),
		"queue_depth": stats.Messages,
		"consumers":   stats.Consumers,
	})
}
