package metrics_test

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/KaramelBytes/uidpulse/internal/clean"
	"github.com/KaramelBytes/uidpulse/internal/dataset"
	"github.com/KaramelBytes/uidpulse/internal/metrics"
)

func TestObserveCleaning(t *testing.T) {
	m := metrics.New()
	m.ObserveCleaning(clean.Report{Kind: dataset.Enrolment, Input: 10, DroppedDates: 2, CoercedValues: 3, PlaceholderLabels: 1})
	m.ObserveFile("enrolment", nil)
	m.ObserveFile("enrolment", errors.New("bad"))

	assert.Equal(t, 10.0, testutil.ToFloat64(m.RowsIngested.WithLabelValues("enrolment")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RowsDropped.WithLabelValues("enrolment", "invalid_date")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ValuesCoerced.WithLabelValues("enrolment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesRead.WithLabelValues("enrolment", "error")))
}

func TestHandlerExposesCounters(t *testing.T) {
	m := metrics.New()
	m.CacheResult(true)
	m.CacheResult(false)
	m.CacheResult(false)
	done := m.Time("bundle")
	done()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `uidpulse_cache_requests_total{result="miss"} 2`)
	assert.Contains(t, body, `uidpulse_operation_duration_seconds_count{op="bundle"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveCleaning(clean.Report{Kind: dataset.BiometricUpdate})
		m.CacheResult(true)
		m.Narrative("kpis", "ok")
		m.ExportSlice(false)
		m.Time("x")()
	})
}
