package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "timesheet"

// Transition outcomes reported by RecordTransition.
const (
	OutcomeApplied      = "applied"
	OutcomeViolation    = "violation"
	OutcomeLocked       = "locked"
	OutcomeUnauthorized = "unauthorized"
	OutcomeInvalid      = "invalid"
	OutcomeError        = "error"
)

// Audit outcomes reported by RecordAudit.
const (
	AuditQueued    = "queued"
	AuditInline    = "inline"
	AuditFailed    = "failed"
	AuditAbandoned = "abandoned"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheLatency    *prometheus.HistogramVec
	txDuration      *prometheus.HistogramVec
	transitions     *prometheus.CounterVec
	dailyCapHits    prometheus.Counter
	auditLogs       *prometheus.CounterVec
}

// NewMetricsService registers the HTTP, workflow and runtime collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "status_cache_lookups_total",
		Help:      "Status projection lookups by result",
	}, []string{"result"})

	cacheLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "status_cache_seconds",
		Help:      "Latency of status cache operations",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"op"})

	txDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "db_tx_duration_seconds",
		Help:      "Duration of database transactions by operation",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "transitions_total",
		Help:      "Time sheet workflow events by outcome",
	}, []string{"event", "outcome"})

	dailyCapHits := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "daily_cap_exceeded_total",
		Help:      "Entry writes that pushed a day above the configured hour cap",
	})

	auditLogs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "audit_logs_total",
		Help:      "Audit records by delivery outcome",
	}, []string{"outcome"})

	registry.MustRegister(
		requestDuration, requestTotal,
		cacheLookups, cacheLatency, txDuration,
		transitions, dailyCapHits, auditLogs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLookups:    cacheLookups,
		cacheLatency:    cacheLatency,
		txDuration:      txDuration,
		transitions:     transitions,
		dailyCapHits:    dailyCapHits,
		auditLogs:       auditLogs,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheLookup counts a status cache lookup.
func (m *MetricsService) RecordCacheLookup(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
	m.cacheLatency.WithLabelValues("lookup").Observe(duration.Seconds())
}

// ObserveCacheWrite tracks status cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.WithLabelValues("store").Observe(duration.Seconds())
}

// ObserveTx records how long a service transaction held its locks.
func (m *MetricsService) ObserveTx(op string, duration time.Duration) {
	if m == nil {
		return
	}
	m.txDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordTransition counts a workflow event and how it ended.
func (m *MetricsService) RecordTransition(event, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(event, outcome).Inc()
}

// RecordDailyCapExceeded counts daily-cap anomalies.
func (m *MetricsService) RecordDailyCapExceeded() {
	if m == nil {
		return
	}
	m.dailyCapHits.Inc()
}

// RecordAudit counts an audit record by outcome.
func (m *MetricsService) RecordAudit(outcome string) {
	if m == nil {
		return
	}
	m.auditLogs.WithLabelValues(outcome).Inc()
}
