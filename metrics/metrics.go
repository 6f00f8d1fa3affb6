// Package metrics provides Prometheus metrics for console API operations.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the request client and auth flow.
type Metrics struct {
	enabled bool

	// Request metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration prometheus.Histogram

	// Refresh coordinator metrics
	refreshTotal     *prometheus.CounterVec
	refreshCoalesced prometheus.Counter

	// Auth flow metrics
	authFailuresTotal *prometheus.CounterVec
	sessionsRestored  prometheus.Counter
}

// New creates and registers Prometheus metrics.
// If enabled is false, returns a no-op Metrics instance.
func New(enabled bool) *Metrics {
	m := &Metrics{enabled: enabled}

	if !enabled {
		return m
	}

	m.requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admin_requests_total",
		Help: "Total outbound API requests",
	}, []string{"method", "status"})

	m.requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "admin_request_duration_seconds",
		Help:    "Outbound API request duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	m.refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admin_token_refreshes_total",
		Help: "Total session credential refresh attempts",
	}, []string{"result"})

	m.refreshCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "admin_token_refreshes_coalesced_total",
		Help: "Requests that waited on an already in-flight refresh",
	})

	m.authFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admin_auth_failures_total",
		Help: "Total authentication flow failures",
	}, []string{"operation", "category"})

	m.sessionsRestored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "admin_sessions_restored_total",
		Help: "Sessions rehydrated from persistent storage at startup",
	})

	return m
}

// RecordRequest records one completed outbound request.
func (m *Metrics) RecordRequest(method string, status int, durationSeconds float64) {
	if !m.enabled {
		return
	}
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.Observe(durationSeconds)
}

// RecordRefresh records one refresh attempt outcome ("success" or "failure").
func (m *Metrics) RecordRefresh(result string) {
	if !m.enabled {
		return
	}
	m.refreshTotal.WithLabelValues(result).Inc()
}

// RecordRefreshCoalesced records a request that joined an in-flight refresh.
func (m *Metrics) RecordRefreshCoalesced() {
	if !m.enabled {
		return
	}
	m.refreshCoalesced.Inc()
}

// RecordAuthFailure records a failed auth flow operation.
func (m *Metrics) RecordAuthFailure(operation, category string) {
	if !m.enabled {
		return
	}
	m.authFailuresTotal.WithLabelValues(operation, category).Inc()
}

// RecordSessionRestored records a session rehydrated from storage.
func (m *Metrics) RecordSessionRestored() {
	if !m.enabled {
		return
	}
	m.sessionsRestored.Inc()
}
