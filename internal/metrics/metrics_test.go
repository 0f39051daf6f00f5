package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monepiceriz/api/internal/metrics"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("/orders", http.MethodGet, 200, time.Millisecond)
		m.ObserveTransition("pending", "confirmed")
		m.ObserveCapture("success")
		m.ObserveConflict()
		m.EventDropped()
	})
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveTransition("pending", "confirmed")
	m.ObserveTransition("pending", "confirmed")
	m.ObserveCapture("declined")
	m.EventDropped()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("pending", "confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Captures.WithLabelValues("declined")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsDropped))
}

func TestHandlerExposesRegistry(t *testing.T) {
	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	m.ObserveRequest("/orders/{id}", http.MethodGet, 404, 3*time.Millisecond)

	rr := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, `monepiceriz_http_requests_total{method="GET",route="/orders/{id}",status="404"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}
