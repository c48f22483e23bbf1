package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsMiddlewareAndHandler(t *testing.T) {
	m := NewMetrics()
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/statements/CASH_FLOW", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}

	m.ObserveGeneration("CASH_FLOW", 120*time.Millisecond, 2, 0, false)
	m.ObserveGeneration("CASH_FLOW", 0, 0, 1, true)

	metricsRec := httptest.NewRecorder()
	m.Handler().ServeHTTP(metricsRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := metricsRec.Body.String()

	for _, want := range []string{
		"aegis_http_requests_total",
		`aegis_statement_generations_total{outcome="ok",statement_code="CASH_FLOW"} 1`,
		`aegis_statement_generations_total{outcome="error",statement_code="CASH_FLOW"} 1`,
		`aegis_statement_validation_issues_total{severity="warning",statement_code="CASH_FLOW"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q\n%s", want, body)
		}
	}
}

func TestNilMetricsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveGeneration("X", time.Second, 1, 1, false)
	if m.Middleware(nil) != nil {
		t.Fatal("nil metrics middleware must pass through")
	}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}
