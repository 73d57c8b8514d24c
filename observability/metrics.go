package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	executorMetricsOnce sync.Once
	executorRegistry    *ExecutorMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record HTTP
// API activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pooledger",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total API requests segmented by module and route.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pooledger",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total API errors segmented by module, route, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "pooledger",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pooledger",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of an API request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit" or
// "quota_exceeded".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// ExecutorMetrics tracks transaction execution.
type ExecutorMetrics struct {
	transactions *prometheus.CounterVec
	instructions *prometheus.CounterVec
	latency      prometheus.Histogram
	lastCommit   prometheus.Gauge
}

// Executor returns the singleton executor metrics registry.
func Executor() *ExecutorMetrics {
	executorMetricsOnce.Do(func() {
		executorRegistry = &ExecutorMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pooledger",
				Subsystem: "executor",
				Name:      "transactions_total",
				Help:      "Submitted transactions segmented by outcome and error kind.",
			}, []string{"outcome", "kind"}),
			instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pooledger",
				Subsystem: "executor",
				Name:      "instructions_total",
				Help:      "Executed instructions segmented by program and outcome.",
			}, []string{"program", "outcome"}),
			latency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "pooledger",
				Subsystem: "executor",
				Name:      "transaction_duration_seconds",
				Help:      "Time spent executing and committing a transaction.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			}),
			lastCommit: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "pooledger",
				Subsystem: "executor",
				Name:      "last_commit_timestamp_seconds",
				Help:      "Unix time of the most recent committed transaction.",
			}),
		}
		prometheus.MustRegister(
			executorRegistry.transactions,
			executorRegistry.instructions,
			executorRegistry.latency,
			executorRegistry.lastCommit,
		)
	})
	return executorRegistry
}

// RecordTransaction records a transaction outcome. kind is empty on success.
func (m *ExecutorMetrics) RecordTransaction(committed bool, kind string, duration time.Duration, at time.Time) {
	if m == nil {
		return
	}
	outcome := "committed"
	if !committed {
		outcome = "failed"
	}
	kind = strings.TrimSpace(kind)
	if kind == "" {
		kind = "none"
	}
	m.transactions.WithLabelValues(outcome, kind).Inc()
	m.latency.Observe(duration.Seconds())
	if committed {
		m.lastCommit.Set(float64(at.Unix()))
	}
}

// RecordInstruction counts one executed instruction for program.
func (m *ExecutorMetrics) RecordInstruction(program string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	if program == "" {
		program = "unknown"
	}
	m.instructions.WithLabelValues(program, outcome).Inc()
}
