// Package metrics holds the prometheus collectors of the pipeline and HTTP surface.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KaramelBytes/uidpulse/internal/clean"
)

const namespace = "uidpulse"

// Metrics groups the collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	FilesRead         *prometheus.CounterVec
	RowsIngested      *prometheus.CounterVec
	RowsDropped       *prometheus.CounterVec
	ValuesCoerced     *prometheus.CounterVec
	PlaceholderLabels *prometheus.CounterVec
	OpDuration        *prometheus.HistogramVec
	CacheRequests     *prometheus.CounterVec
	NarrativeCalls    *prometheus.CounterVec
	ExportSlices      *prometheus.CounterVec
}

// New registers every collector plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		FilesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "source_files_total", Help: "Source files read, by dataset and result.",
		}, []string{"kind", "result"}),
		RowsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "rows_ingested_total", Help: "Raw rows handed to the normalizer.",
		}, []string{"kind"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "rows_dropped_total", Help: "Rows discarded during cleaning.",
		}, []string{"kind", "reason"}),
		ValuesCoerced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "values_coerced_total", Help: "Measure cells replaced with zero.",
		}, []string{"kind"}),
		PlaceholderLabels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "placeholder_labels_total", Help: "Missing state or district labels.",
		}, []string{"kind"}),
		OpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "operation_duration_seconds", Help: "Pipeline operation latency.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"op"}),
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_requests_total", Help: "Bundle cache lookups.",
		}, []string{"result"}),
		NarrativeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "narrative_requests_total", Help: "Narrative generation attempts.",
		}, []string{"topic", "result"}),
		ExportSlices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "export_slices_total", Help: "Exported region slices.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.FilesRead, m.RowsIngested, m.RowsDropped, m.ValuesCoerced, m.PlaceholderLabels,
		m.OpDuration, m.CacheRequests, m.NarrativeCalls, m.ExportSlices,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveFile counts a source file attempt.
func (m *Metrics) ObserveFile(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.FilesRead.WithLabelValues(kind, result).Inc()
}

// ObserveCleaning adds a cleaning report to the ingest counters.
func (m *Metrics) ObserveCleaning(rep clean.Report) {
	if m == nil {
		return
	}
	k := rep.Kind.String()
	m.RowsIngested.WithLabelValues(k).Add(float64(rep.Input))
	m.RowsDropped.WithLabelValues(k, "invalid_date").Add(float64(rep.DroppedDates))
	m.ValuesCoerced.WithLabelValues(k).Add(float64(rep.CoercedValues))
	m.PlaceholderLabels.WithLabelValues(k).Add(float64(rep.PlaceholderLabels))
}

// Time starts a latency observation for op; call the returned func when done.
func (m *Metrics) Time(op string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() { m.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds()) }
}

// CacheResult counts a cache hit or miss.
func (m *Metrics) CacheResult(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheRequests.WithLabelValues("hit").Inc()
		return
	}
	m.CacheRequests.WithLabelValues("miss").Inc()
}

// Narrative counts a narrative attempt by outcome (ok, error, disabled, skipped).
func (m *Metrics) Narrative(topic, result string) {
	if m == nil {
		return
	}
	m.NarrativeCalls.WithLabelValues(topic, result).Inc()
}

// ExportSlice counts an exported slice by outcome.
func (m *Metrics) ExportSlice(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.ExportSlices.WithLabelValues("ok").Inc()
		return
	}
	m.ExportSlices.WithLabelValues("failed").Inc()
}
