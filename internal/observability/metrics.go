package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics of the service.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	transfersTotal   *prometheus.CounterVec
	transferQuantity *prometheus.CounterVec
	sequenceTotal    *prometheus.CounterVec
	sequenceFallback *prometheus.CounterVec
	jobsTotal        *prometheus.CounterVec
}

// NewMetrics initialises the registry and every collector.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockflow_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stockflow_http_request_duration_seconds",
		Help:    "HTTP request latency per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	transfers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockflow_transfers_total",
		Help: "Withdrawals by mode and outcome.",
	}, []string{"mode", "outcome"})
	quantity := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockflow_transfer_quantity_total",
		Help: "Units moved out of depots by mode.",
	}, []string{"mode"})
	sequence := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockflow_sequence_numbers_total",
		Help: "Document numbers issued by document type.",
	}, []string{"doc_type"})
	fallback := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockflow_sequence_fallback_total",
		Help: "Document numbers issued from the timestamp fallback.",
	}, []string{"doc_type"})
	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockflow_jobs_total",
		Help: "Background jobs by task type and outcome.",
	}, []string{"task", "outcome"})
	registry.MustRegister(requests, duration, transfers, quantity, sequence, fallback, jobs)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		transfersTotal:   transfers,
		transferQuantity: quantity,
		sequenceTotal:    sequence,
		sequenceFallback: fallback,
		jobsTotal:        jobs,
	}
}

// Handler returns the http.Handler serving /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency.
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

// ObserveTransfer counts one withdrawal attempt. quantity is only added for
// successful ones.
func (m *Metrics) ObserveTransfer(mode, outcome string, quantity int) {
	if m == nil {
		return
	}
	m.transfersTotal.WithLabelValues(mode, outcome).Inc()
	if outcome == "ok" && quantity > 0 {
		m.transferQuantity.WithLabelValues(mode).Add(float64(quantity))
	}
}

// ObserveSequence counts one issued document number.
func (m *Metrics) ObserveSequence(docType string, fallback bool) {
	if m == nil {
		return
	}
	m.sequenceTotal.WithLabelValues(docType).Inc()
	if fallback {
		m.sequenceFallback.WithLabelValues(docType).Inc()
	}
}

// ObserveJob counts one processed background task.
func (m *Metrics) ObserveJob(task string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.jobsTotal.WithLabelValues(task, outcome).Inc()
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
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
