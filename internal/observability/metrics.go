// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	RowsParsed        *prometheus.CounterVec // labels: source, status (ok|error)
	DuplicatesSkipped *prometheus.CounterVec // labels: source
	BatchesCompleted  *prometheus.CounterVec // labels: source
	ImportDuration    *prometheus.HistogramVec

	// Resolution metrics
	PriceLookups      *prometheus.CounterVec // labels: outcome (direct|bridge|live|not_found)
	LiveSourceLatency prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec // labels: operation
}

// NewMetrics creates a new Metrics instance with all metrics registered.
// Registration is global, so call it once per process.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "bsc_ledger_lab"
	}

	return &Metrics{
		RowsParsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "rows_parsed_total",
			Help:      "Total number of CSV rows parsed, by source and status",
		}, []string{"source", "status"}),
		DuplicatesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "duplicates_skipped_total",
			Help:      "Total number of rows skipped as duplicates",
		}, []string{"source"}),
		BatchesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "batches_completed_total",
			Help:      "Total number of import batches completed",
		}, []string{"source"}),
		ImportDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "import_duration_seconds",
			Help:      "Duration of one import call",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		PriceLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prices",
			Name:      "lookups_total",
			Help:      "Total number of price resolutions, by outcome",
		}, []string{"outcome"}),
		LiveSourceLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "prices",
			Name:      "live_source_latency_seconds",
			Help:      "Latency of live price source calls",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Duration of database queries",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"operation"}),
	}
}

// ObserveRow increments the parsed-rows counter. Nil-safe so components can
// run without metrics in tests.
func (m *Metrics) ObserveRow(source, status string) {
	if m == nil {
		return
	}
	m.RowsParsed.WithLabelValues(source, status).Inc()
}

// ObserveDuplicate increments the duplicates counter.
func (m *Metrics) ObserveDuplicate(source string) {
	if m == nil {
		return
	}
	m.DuplicatesSkipped.WithLabelValues(source).Inc()
}

// ObserveBatch increments the completed-batches counter.
func (m *Metrics) ObserveBatch(source string) {
	if m == nil {
		return
	}
	m.BatchesCompleted.WithLabelValues(source).Inc()
}

// ObserveImportDuration records one import call duration in seconds.
func (m *Metrics) ObserveImportDuration(source string, seconds float64) {
	if m == nil {
		return
	}
	m.ImportDuration.WithLabelValues(source).Observe(seconds)
}

// ObserveLookup increments the price-lookup counter.
func (m *Metrics) ObserveLookup(outcome string) {
	if m == nil {
		return
	}
	m.PriceLookups.WithLabelValues(outcome).Inc()
}

// ObserveLiveLatency records one live source call duration in seconds.
func (m *Metrics) ObserveLiveLatency(seconds float64) {
	if m == nil {
		return
	}
	m.LiveSourceLatency.Observe(seconds)
}

// ObserveDBQuery records one database query duration in seconds.
func (m *Metrics) ObserveDBQuery(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(operation).Observe(seconds)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
