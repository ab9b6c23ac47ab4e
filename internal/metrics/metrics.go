// Package metrics provides Prometheus metrics for gemchat.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionCommandsTotal *prometheus.CounterVec

	// Chat metrics
	MessagesSentTotal       *prometheus.CounterVec
	CompletionDuration      prometheus.Histogram
	SubscriptionErrorsTotal *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics on a private registry, so several instances
// can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}

	m.SessionCommandsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gemchat_session_commands_total",
			Help: "Total number of session commands by outcome",
		},
		[]string{"command", "outcome"},
	)

	m.MessagesSentTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gemchat_messages_sent_total",
			Help: "Total number of send-message commands by outcome",
		},
		[]string{"outcome"},
	)

	m.CompletionDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gemchat_completion_duration_seconds",
			Help:    "Duration of completion requests in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	m.SubscriptionErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gemchat_subscription_errors_total",
			Help: "Total number of store subscription failures",
		},
		[]string{"stream"},
	)

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gemchat_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gemchat_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordSessionCommand(command, outcome string) {
	if m == nil {
		return
	}
	m.SessionCommandsTotal.WithLabelValues(command, outcome).Inc()
}

func (m *Metrics) RecordMessageSent(outcome string) {
	if m == nil {
		return
	}
	m.MessagesSentTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordCompletion(d time.Duration) {
	if m == nil {
		return
	}
	m.CompletionDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordSubscriptionError(stream string) {
	if m == nil {
		return
	}
	m.SubscriptionErrorsTotal.WithLabelValues(stream).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
