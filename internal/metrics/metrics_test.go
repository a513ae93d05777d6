package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-sso-connect/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	m.ObserveLogin(metrics.OutcomeSuccess, time.Now())
	m.ObserveLogin(metrics.OutcomeSuccess, time.Now())
	m.ObserveRefresh(metrics.OutcomeFailed)
	m.ObserveReauth(metrics.OutcomeCancelled)
	m.SetConnections(3)

	require.Equal(t, 2.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues(metrics.OutcomeSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RefreshesTotal.WithLabelValues(metrics.OutcomeFailed)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ReauthsTotal.WithLabelValues(metrics.OutcomeCancelled)))
	require.Equal(t, 3.0, testutil.ToFloat64(m.ConnectionsActive))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *metrics.Metrics
	m.ObserveLogin(metrics.OutcomeFailed, time.Now())
	m.ObserveRefresh(metrics.OutcomeSuccess)
	m.ObserveReauth(metrics.OutcomeSuccess)
	m.SetConnections(1)
	m.ObserveHTTP(http.MethodGet, "/", http.StatusOK, time.Now())
}

func TestHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)
	m.ObserveReauth(metrics.OutcomeSuccess)

	rec := httptest.NewRecorder()
	metrics.Handler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ssoconn_reauthentications_total")
}
