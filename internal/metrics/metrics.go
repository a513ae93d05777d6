package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess   = "success"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
	OutcomeReused    = "reused"
)

// Metrics holds the Prometheus collectors of the connection manager
type Metrics struct {
	LoginsTotal        *prometheus.CounterVec
	RefreshesTotal     *prometheus.CounterVec
	ReauthsTotal       *prometheus.CounterVec
	LoginDuration      prometheus.Histogram
	ConnectionsActive  prometheus.Gauge
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPRequestLatency *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors on registry
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssoconn_logins_total",
				Help: "Total number of SSO login attempts by outcome",
			},
			[]string{"outcome"},
		),
		RefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssoconn_token_refreshes_total",
				Help: "Total number of silent token refreshes by outcome",
			},
			[]string{"outcome"},
		),
		ReauthsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssoconn_reauthentications_total",
				Help: "Total number of interactive reauthentications by outcome",
			},
			[]string{"outcome"},
		),
		LoginDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ssoconn_login_duration_seconds",
				Help:    "Duration of SSO logins in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
			},
		),
		ConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ssoconn_connections",
				Help: "Number of registered connections",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssoconn_http_requests_total",
				Help: "Total number of status API requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ssoconn_http_request_duration_seconds",
				Help:    "Status API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	registry.MustRegister(
		m.LoginsTotal,
		m.RefreshesTotal,
		m.ReauthsTotal,
		m.LoginDuration,
		m.ConnectionsActive,
		m.HTTPRequestsTotal,
		m.HTTPRequestLatency,
	)
	return m
}

// ObserveLogin records a finished login. Nil receivers are ignored so callers
// can run without metrics.
func (m *Metrics) ObserveLogin(outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(outcome).Inc()
	m.LoginDuration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.RefreshesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveReauth(outcome string) {
	if m == nil {
		return
	}
	m.ReauthsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.ConnectionsActive.Set(float64(n))
}

// ObserveHTTP records one status API request.
func (m *Metrics) ObserveHTTP(method, path string, status int, started time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestLatency.WithLabelValues(method, path).Observe(time.Since(started).Seconds())
}

// Handler exposes registry in the Prometheus text format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
