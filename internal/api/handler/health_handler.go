package handler

import (
	"context"
	"net/http"
	"time"
)

// Check probes one dependency. Key names the boolean reported on success,
// e.g. "db_connected".
type Check struct {
	Key   string
	Probe func(ctx context.Context) error
}

// HealthHandler serves the readiness probe. Checks run in order and the
// first failure turns the response into a 503.
type HealthHandler struct {
	checks  []Check
	timeout time.Duration

	// Details adds fields to a healthy response. Optional.
	Details func() map[string]any
}

func NewHealthHandler(timeout time.Duration, checks ...Check) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: timeout}
}

// Health handles GET /health
//
// @Summary  Readiness probe
// @Tags     system
// @Produce  json
// @Success  200  {object}  map[string]any
// @Failure  503  {object}  map[string]string
// @Router   /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	body := map[string]any{"status": "healthy"}
	for _, c := range h.checks {
		if err := c.Probe(ctx); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
		body[c.Key] = true
	}

	if h.Details != nil {
		for k, v := range h.Details() {
			body[k] = v
		}
	}
	respondJSON(w, http.StatusOK, body)
}
