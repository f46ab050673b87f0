// Package metrics provides Prometheus collectors for the chat gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector the gateway exports.
type Registry struct {
	gatherer prometheus.Gatherer

	LiveConnections prometheus.Gauge
	OnlineUsers     prometheus.Gauge
	Connections     *prometheus.CounterVec
	InboundEvents   *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
	Emissions       *prometheus.CounterVec
	FanoutDuration  prometheus.Histogram
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

var _ ports.MetricsRecorder = (*Registry)(nil)

// NewRegistry registers the collectors on reg. Passing nil uses the default
// Prometheus registry.
func NewRegistry(reg *prometheus.Registry) *Registry {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}
	factory := promauto.With(registerer)

	return &Registry{
		gatherer: gatherer,
		LiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chat_live_connections",
			Help: "Number of live WebSocket connections",
		}),
		OnlineUsers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chat_online_users",
			Help: "Number of users with at least one live connection",
		}),
		Connections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_connections_total",
			Help: "Connection lifecycle events by outcome",
		}, []string{"outcome"}),
		InboundEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_inbound_events_total",
			Help: "Inbound WebSocket events by type and outcome",
		}, []string{"event", "outcome"}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_fanout_notifications_total",
			Help: "Per-recipient fan-out outcomes",
		}, []string{"outcome"}),
		Emissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_fanout_emissions_total",
			Help: "Events pushed to live connections by type and outcome",
		}, []string{"event", "outcome"}),
		FanoutDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chat_fanout_duration_seconds",
			Help:    "Duration of a fan-out run across all recipients",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (r *Registry) RecordNotification(outcome string) {
	r.Notifications.WithLabelValues(outcome).Inc()
}

func (r *Registry) RecordEmission(event domain.EventType, outcome string) {
	r.Emissions.WithLabelValues(string(event), outcome).Inc()
}

func (r *Registry) RecordInbound(event domain.InboundEventType, outcome string) {
	r.InboundEvents.WithLabelValues(string(event), outcome).Inc()
}

func (r *Registry) RecordConnection(outcome string) {
	r.Connections.WithLabelValues(outcome).Inc()
}

func (r *Registry) SetLiveConnections(connections, users int) {
	r.LiveConnections.Set(float64(connections))
	r.OnlineUsers.Set(float64(users))
}

func (r *Registry) ObserveFanout(seconds float64) {
	r.FanoutDuration.Observe(seconds)
}

// ObserveHTTP records a completed HTTP request.
func (r *Registry) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	r.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler returns an HTTP handler exposing the registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
