package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/notifyhub/event-notifier/internal/supervisor"
	"github.com/notifyhub/event-notifier/internal/worker"
)

// Metrics groups all Prometheus instruments used across both processes.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	ConnectionFailures *prometheus.CounterVec
	Published          *prometheus.CounterVec
	Consumed           *prometheus.CounterVec
	Reconnects         prometheus.Counter
	HandlingLatency    prometheus.Histogram
	OutboxPending      prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "connection_attempt_failures_total",
			Help: "Failed connection attempts, by target (database, message broker).",
		}, []string{"target"}),

		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Notification publish attempts after a committed event, by outcome.",
		}, []string{"outcome"}),

		Consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messages_consumed_total",
			Help: "Messages settled by the consumer, by result (ack, nack).",
		}, []string{"result"}),

		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consumer_reconnects_total",
			Help: "Times the consumer loop restarted after a failed connect or lost transport.",
		}),

		HandlingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "message_handling_seconds",
			Help:    "Time from delivery to ack/nack.",
			Buckets: prometheus.DefBuckets,
		}),

		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending",
			Help: "Outbox rows not yet published, as of the last relay poll.",
		}),
	}

	reg.MustRegister(
		m.ConnectionFailures,
		m.Published,
		m.Consumed,
		m.Reconnects,
		m.HandlingLatency,
		m.OutboxPending,
	)

	return m
}

// Publish outcome labels.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeFailed    = "failed"
)

// ObserveSupervisor wires connection-attempt failures into the counter.
func (m *Metrics) ObserveSupervisor(sup *supervisor.Supervisor) {
	sup.OnAttemptFailed = func(target supervisor.Target) {
		m.ConnectionFailures.WithLabelValues(string(target)).Inc()
	}
}

// PublishHook returns the callback expected by service.EventService.
func (m *Metrics) PublishHook() func(ok bool) {
	return func(ok bool) {
		if ok {
			m.Published.WithLabelValues(OutcomeConfirmed).Inc()
			return
		}
		m.Published.WithLabelValues(OutcomeFailed).Inc()
	}
}

// ConsumerHooks returns the callbacks expected by worker.Consumer.
// Centralises the prometheus observation calls so the worker stays import-free.
func (m *Metrics) ConsumerHooks() worker.ConsumerHooks {
	return worker.ConsumerHooks{
		OnAck:       func() { m.Consumed.WithLabelValues("ack").Inc() },
		OnNack:      func() { m.Consumed.WithLabelValues("nack").Inc() },
		OnReconnect: func() { m.Reconnects.Inc() },
		OnHandled:   func(d time.Duration) { m.HandlingLatency.Observe(d.Seconds()) },
	}
}
