package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/event-notifier/internal/api/handler"
	apimw "github.com/notifyhub/event-notifier/internal/api/middleware"
	"github.com/notifyhub/event-notifier/internal/service"
)

// ServerDeps carries everything the event API needs to serve requests.
type ServerDeps struct {
	Events *service.EventService
	Users  *service.UserService
	Health *handler.HealthHandler
	Queue  handler.QueueStatter
	Reg    prometheus.Gatherer
	Logger *zap.Logger
}

// NewServerRouter wires the event API. It is the single source of truth for
// that process's HTTP surface area.
func NewServerRouter(d ServerDeps) http.Handler {
	r := newBaseRouter(d.Logger)

	eh := handler.NewEventHandler(d.Events, d.Logger)
	uh := handler.NewUserHandler(d.Users, d.Logger)
	mh := handler.NewMetricsHandler(d.Queue)

	r.Get("/health", d.Health.Health)
	r.Handle("/metrics", promhttp.HandlerFor(d.Reg, promhttp.HandlerOpts{}))

	r.Post("/events", eh.Create)
	r.Get("/events", eh.List)

	r.Post("/users/register", uh.Register)
	r.Get("/users", uh.List)

	r.Get("/api/v1/metrics", mh.GetMetrics)

	return r
}

// NewNotifierRouter exposes only health and Prometheus metrics; the notifier
// has no request-driven work.
func NewNotifierRouter(health *handler.HealthHandler, reg prometheus.Gatherer, logger *zap.Logger) http.Handler {
	r := newBaseRouter(logger)
	r.Get("/health", health.Health)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return r
}

func newBaseRouter(logger *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestSize(1 << 20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)
	r.Use(apimw.Tracing)
	r.Use(apimw.RequestLogger(logger))
	return r
}
