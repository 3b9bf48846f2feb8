// Package metrics exposes Prometheus collectors for the starter-kit backend.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "starterkit",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "starterkit",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "starterkit",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "path"},
	)

	packBuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "starterkit",
			Subsystem: "packs",
			Name:      "builds_total",
			Help:      "Total number of repo pack builds by result.",
		},
		[]string{"result"},
	)

	packBuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "starterkit",
			Subsystem: "packs",
			Name:      "build_duration_seconds",
			Help:      "Duration of repo pack builds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"result"},
	)

	embedCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "starterkit",
			Subsystem: "gemini",
			Name:      "embed_calls_total",
			Help:      "Total number of embedding calls.",
		},
		[]string{"status"},
	)

	llmCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "starterkit",
			Subsystem: "gemini",
			Name:      "llm_calls_total",
			Help:      "Total number of LLM generation calls.",
		},
		[]string{"status"},
	)

	llmDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "starterkit",
			Subsystem: "gemini",
			Name:      "llm_call_duration_seconds",
			Help:      "Duration of LLM generation calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		packBuilds,
		packBuildDuration,
		embedCalls,
		llmCalls,
		llmDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordPackBuild records a pack build attempt. result is hit, miss, or error.
func RecordPackBuild(result string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	packBuilds.WithLabelValues(result).Inc()
	packBuildDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordEmbedCall records one embedding call.
func RecordEmbedCall(err error) {
	embedCalls.WithLabelValues(statusLabel(err)).Inc()
}

// RecordLLMCall records one LLM generation call.
func RecordLLMCall(err error, duration time.Duration) {
	llmCalls.WithLabelValues(statusLabel(err)).Inc()
	if err == nil {
		llmDuration.Observe(duration.Seconds())
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// canonicalPath collapses parameterized segments so the cardinality of the
// path label stays bounded.
func canonicalPath(path string) string {
	switch {
	case path == "/" || path == "/health" || path == "/metrics":
		return path
	case strings.HasPrefix(path, "/api/search"):
		return "/api/search"
	case strings.HasPrefix(path, "/api/starter_kit"):
		return "/api/starter_kit"
	case strings.HasPrefix(path, "/api/hints"):
		return "/api/hints"
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.written {
		r.status = code
		r.written = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.status = http.StatusOK
		r.written = true
	}
	return r.ResponseWriter.Write(b)
}
