package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons for undelivered realtime messages.
const (
	DropQueueFull = "queue_full"
	DropClosed    = "session_closed"
)

// Metrics holds all application metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RateLimitedTotal     *prometheus.CounterVec

	// Realtime metrics
	ActiveSessions  prometheus.Gauge
	ActiveRooms     prometheus.Gauge
	EventsPublished *prometheus.CounterVec
	EventDeliveries *prometheus.CounterVec
	MessagesDropped *prometheus.CounterVec

	// Store metrics
	StoreConflictsTotal *prometheus.CounterVec
	StoreBreakerState   *prometheus.GaugeVec
}

// New creates a Metrics instance registered on reg. A nil reg uses the default registerer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "projecthub"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		RateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "rate_limited_total",
				Help:      "Requests rejected by a rate limiter",
			},
			[]string{"limiter"},
		),

		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "realtime",
				Name:      "active_sessions",
				Help:      "Number of connected realtime sessions",
			},
		),
		ActiveRooms: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "realtime",
				Name:      "active_rooms",
				Help:      "Number of project rooms with at least one subscriber",
			},
		),
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "realtime",
				Name:      "events_published_total",
				Help:      "Change events handed to the broadcaster",
			},
			[]string{"kind"},
		),
		EventDeliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "realtime",
				Name:      "deliveries_total",
				Help:      "Change events enqueued to subscribed sessions",
			},
			[]string{"kind"},
		),
		MessagesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "realtime",
				Name:      "messages_dropped_total",
				Help:      "Outbound messages that were not delivered",
			},
			[]string{"reason"},
		),

		StoreConflictsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "conflicts_total",
				Help:      "Version conflicts reported by the entity store",
			},
			[]string{"resource"},
		),
		StoreBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "breaker_state",
				Help:      "Entity store circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"store"},
		),
	}
}

// --- Convenience methods ---

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRateLimited counts a request rejected by limiter.
func (m *Metrics) RecordRateLimited(limiter string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(limiter).Inc()
}

// SetRealtime sets the session and room gauges.
func (m *Metrics) SetRealtime(sessions, rooms int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(sessions))
	m.ActiveRooms.Set(float64(rooms))
}

// RecordPublish records one published event and the number of sessions it was enqueued to.
func (m *Metrics) RecordPublish(kind string, deliveries int) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(kind).Inc()
	if deliveries > 0 {
		m.EventDeliveries.WithLabelValues(kind).Add(float64(deliveries))
	}
}

// RecordDrop counts an undelivered message.
func (m *Metrics) RecordDrop(reason string) {
	if m == nil {
		return
	}
	m.MessagesDropped.WithLabelValues(reason).Inc()
}

// RecordStoreConflict counts a version conflict on resource.
func (m *Metrics) RecordStoreConflict(resource string) {
	if m == nil {
		return
	}
	m.StoreConflictsTotal.WithLabelValues(resource).Inc()
}

// SetBreakerState sets the breaker gauge for store.
func (m *Metrics) SetBreakerState(store string, state int) {
	if m == nil {
		return
	}
	m.StoreBreakerState.WithLabelValues(store).Set(float64(state))
}
