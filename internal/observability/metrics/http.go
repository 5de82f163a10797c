package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics owns the api process registry. It doubles as the search
// observer wired into the hybrid search use case.
type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchRequestsTotal  *prometheus.CounterVec
	searchModeTotal      *prometheus.CounterVec
	searchDegradedTotal  *prometheus.CounterVec
	searchCandidates     *prometheus.HistogramVec
	searchDuration       *prometheus.HistogramVec
	searchExportsTotal   *prometheus.CounterVec
	agentRunsTotal       *prometheus.CounterVec
	agentIterations      *prometheus.HistogramVec
	rateLimitedTotal     *prometheus.CounterVec
	validationErrorTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gallery",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gallery",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gallery",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gallery",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total completed searches.",
		},
		[]string{"service"},
	)
	searchModeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gallery",
			Subsystem: "search",
			Name:      "mode_requests_total",
			Help:      "Total completed searches by effective retrieval mode.",
		},
		[]string{"service", "mode"},
	)
	searchDegradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gallery",
			Subsystem: "search",
			Name:      "degraded_total",
			Help:      "Total searches served from a single retriever.",
		},
		[]string{"service", "mode"},
	)
	searchCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gallery",
			Subsystem: "search",
			Name:      "fused_results",
			Help:      "Distribution of results returned per search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gallery",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	searchExportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gallery",
			Subsystem: "search",
			Name:      "exports_total",
			Help:      "Total search result exports by status.",
		},
		[]string{"service", "status"},
	)
	agentRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gallery",
			Subsystem: "agent",
			Name:      "runs_total",
			Help:      "Total completed agent runs by status.",
		},
		[]string{"service", "status"},
	)
	agentIterations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gallery",
			Subsystem: "agent",
			Name:      "iterations",
			Help:      "Distribution of agent loop iterations per run.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
		[]string{"service"},
	)
	rateLimitedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gallery",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the per-tenant rate limiter.",
		},
		[]string{"service"},
	)
	validationErrorTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gallery",
			Subsystem: "http",
			Name:      "validation_errors_total",
			Help:      "Total requests rejected by request schema validation.",
		},
		[]string{"service", "path"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchRequestsTotal,
		searchModeTotal,
		searchDegradedTotal,
		searchCandidates,
		searchDuration,
		searchExportsTotal,
		agentRunsTotal,
		agentIterations,
		rateLimitedTotal,
		validationErrorTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		service:              service,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		searchRequestsTotal:  searchRequestsTotal,
		searchModeTotal:      searchModeTotal,
		searchDegradedTotal:  searchDegradedTotal,
		searchCandidates:     searchCandidates,
		searchDuration:       searchDuration,
		searchExportsTotal:   searchExportsTotal,
		agentRunsTotal:       agentRunsTotal,
		agentIterations:      agentIterations,
		rateLimitedTotal:     rateLimitedTotal,
		validationErrorTotal: validationErrorTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			m.service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/analyses/"):
		return "/v1/analyses/{analysis_id}"
	default:
		return path
	}
}

// ObserveSearch satisfies the search observer contract of the hybrid search
// use case.
func (m *HTTPServerMetrics) ObserveSearch(mode string, candidates int, duration time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	m.searchRequestsTotal.WithLabelValues(m.service).Inc()
	m.searchModeTotal.WithLabelValues(m.service, mode).Inc()
	m.searchCandidates.WithLabelValues(m.service).Observe(float64(candidates))
	m.searchDuration.WithLabelValues(m.service).Observe(duration.Seconds())
	if mode != "fused" {
		m.searchDegradedTotal.WithLabelValues(m.service, mode).Inc()
	}
}

func (m *HTTPServerMetrics) RecordExport(status string) {
	if status == "" {
		status = "unknown"
	}
	m.searchExportsTotal.WithLabelValues(m.service, status).Inc()
}

func (m *HTTPServerMetrics) RecordAgentRun(status string, iterations int) {
	if status == "" {
		status = "unknown"
	}
	m.agentRunsTotal.WithLabelValues(m.service, status).Inc()
	if iterations > 0 {
		m.agentIterations.WithLabelValues(m.service).Observe(float64(iterations))
	}
}

func (m *HTTPServerMetrics) RecordRateLimited() {
	m.rateLimitedTotal.WithLabelValues(m.service).Inc()
}

func (m *HTTPServerMetrics) RecordValidationError(path string) {
	m.validationErrorTotal.WithLabelValues(m.service, normalizePath(path)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
