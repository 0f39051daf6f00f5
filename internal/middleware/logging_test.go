package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/monepiceriz/api/internal/metrics"
	"github.com/monepiceriz/api/internal/middleware"
)

func TestRequestLogger_RecordsRoutePattern(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := metrics.New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(zap.New(core), m))
	r.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	req := httptest.NewRequest("GET", "/orders/123", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	entries := logs.FilterMessage("request").All()
	if len(entries) != 1 {
		t.Fatalf("log entries: got %d, want 1", len(entries))
	}
	if entries[0].Level != zap.WarnLevel {
		t.Errorf("level: got %v, want warn", entries[0].Level)
	}
	fields := entries[0].ContextMap()
	if fields["route"] != "/orders/{id}" {
		t.Errorf("route: got %v", fields["route"])
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues("/orders/{id}", "GET", "409")); got != 1 {
		t.Errorf("request counter: got %v, want 1", got)
	}
}

func TestRequestLogger_DefaultsStatusToOK(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(zap.New(core), nil))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("log entries: got %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["status"]; got != int64(http.StatusOK) {
		t.Errorf("status: got %v, want 200", got)
	}
}
