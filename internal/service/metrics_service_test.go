package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatheredValue(t *testing.T, m *MetricsService, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if labels[pair.GetName()] != pair.GetValue() {
					continue metrics
				}
			}
			if metric.GetCounter() != nil {
				return metric.GetCounter().GetValue()
			}
			return metric.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

func TestMetricsServiceTransitions(t *testing.T) {
	m := NewMetricsService()
	m.RecordTransition("submit", OutcomeApplied)
	m.RecordTransition("submit", OutcomeApplied)
	m.RecordTransition("approve", OutcomeUnauthorized)

	assert.Equal(t, 2.0, gatheredValue(t, m, "timesheet_transitions_total", map[string]string{"event": "submit", "outcome": OutcomeApplied}))
	assert.Equal(t, 1.0, gatheredValue(t, m, "timesheet_transitions_total", map[string]string{"event": "approve", "outcome": OutcomeUnauthorized}))
}

func TestMetricsServiceStatusCacheAndAudit(t *testing.T) {
	m := NewMetricsService()
	m.RecordCacheLookup(true, time.Millisecond)
	m.RecordCacheLookup(false, time.Millisecond)
	m.RecordCacheLookup(true, time.Millisecond)
	m.RecordAudit(AuditQueued)
	m.RecordAudit(AuditAbandoned)
	m.RecordAudit(AuditQueued)

	assert.Equal(t, 2.0, gatheredValue(t, m, "timesheet_status_cache_lookups_total", map[string]string{"result": "hit"}))
	assert.Equal(t, 1.0, gatheredValue(t, m, "timesheet_status_cache_lookups_total", map[string]string{"result": "miss"}))
	assert.Equal(t, 2.0, gatheredValue(t, m, "timesheet_audit_logs_total", map[string]string{"outcome": AuditQueued}))
	assert.Equal(t, 1.0, gatheredValue(t, m, "timesheet_audit_logs_total", map[string]string{"outcome": AuditAbandoned}))
}

func TestMetricsServiceHandler(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/timesheets/:ref/status", http.StatusOK, time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")

	var nilMetrics *MetricsService
	w = httptest.NewRecorder()
	nilMetrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	nilMetrics.RecordTransition("save", OutcomeApplied)
}
