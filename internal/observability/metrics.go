package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics for the service.
type Metrics struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	generations       *prometheus.CounterVec
	generationSeconds *prometheus.HistogramVec
	validationIssues  *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aegis_http_requests_total",
		Help: "HTTP request count by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aegis_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	generations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aegis_statement_generations_total",
		Help: "Statement generations by statement code and outcome.",
	}, []string{"statement_code", "outcome"})
	generationSeconds := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aegis_statement_generation_duration_seconds",
		Help:    "End-to-end statement generation duration by statement code.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"statement_code"})
	validationIssues := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aegis_statement_validation_issues_total",
		Help: "Validation warnings and errors recorded on generated statements.",
	}, []string{"statement_code", "severity"})
	registry.MustRegister(requests, duration, generations, generationSeconds, validationIssues)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		generations:       generations,
		generationSeconds: generationSeconds,
		validationIssues:  validationIssues,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveGeneration records one statement generation pass.
func (m *Metrics) ObserveGeneration(statementCode string, duration time.Duration, warnings, errs int, failed bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.generations.WithLabelValues(statementCode, outcome).Inc()
	if !failed {
		m.generationSeconds.WithLabelValues(statementCode).Observe(duration.Seconds())
	}
	if warnings > 0 {
		m.validationIssues.WithLabelValues(statementCode, "warning").Add(float64(warnings))
	}
	if errs > 0 {
		m.validationIssues.WithLabelValues(statementCode, "error").Add(float64(errs))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
