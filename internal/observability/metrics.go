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
	// Batch metrics
	BatchRunsTotal    *prometheus.CounterVec
	BatchDuration     prometheus.Histogram
	BatchInProgress   prometheus.Gauge
	LastSuccessfulRun prometheus.Gauge

	// Symbol metrics
	SymbolsProcessed  *prometheus.CounterVec
	SymbolDuration    prometheus.Histogram
	NarrativeOutcomes prometheus.Counter
	EpisodesDetected  prometheus.Counter

	// Data quality metrics
	CalendarGapSessions prometheus.Counter
	MalformedSnapshots  prometheus.Counter
	UnknownPersistence  prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Progress feed
	ProgressClients prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "narrative_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Batch metrics
		BatchRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "runs_total",
			Help:      "Total number of batch runs by status",
		}, []string{"status"}),
		BatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "duration_seconds",
			Help:      "Batch execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		BatchInProgress: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "in_progress",
			Help:      "1 while a batch run is executing",
		}),
		LastSuccessfulRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last batch run without failed symbols",
		}),

		// Symbol metrics
		SymbolsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "symbols_processed_total",
			Help:      "Total number of symbols processed by status",
		}, []string{"status"}),
		SymbolDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "symbol_duration_seconds",
			Help:      "Per-symbol processing duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		NarrativeOutcomes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "narrative_outcomes_total",
			Help:      "Total number of narrative outcomes persisted",
		}),
		EpisodesDetected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "episodes_detected_total",
			Help:      "Total number of closed episodes detected",
		}),

		// Data quality metrics
		CalendarGapSessions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data_quality",
			Name:      "calendar_gap_sessions_total",
			Help:      "Exchange sessions missing from price series inside forward windows",
		}),
		MalformedSnapshots: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data_quality",
			Name:      "malformed_snapshots_total",
			Help:      "Snapshots rejected by normalization",
		}),
		UnknownPersistence: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data_quality",
			Name:      "unknown_persistence_total",
			Help:      "Ranked narratives without a recognised persistence classification",
		}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		ProgressClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "clients",
			Help:      "Connected progress feed clients",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns an HTTP handler serving metrics from gatherer.
func HandlerFor(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordSymbol records a processed symbol.
func (m *Metrics) RecordSymbol(success bool, durationSeconds float64, outcomes int) {
	m.SymbolsProcessed.WithLabelValues(statusLabel(success)).Inc()
	m.SymbolDuration.Observe(durationSeconds)
	if success {
		m.NarrativeOutcomes.Add(float64(outcomes))
	}
}

// RecordBatchRun records a completed batch run.
func (m *Metrics) RecordBatchRun(success bool, durationSeconds float64, finishedUnix int64) {
	m.BatchRunsTotal.WithLabelValues(statusLabel(success)).Inc()
	m.BatchDuration.Observe(durationSeconds)
	if success {
		m.LastSuccessfulRun.Set(float64(finishedUnix))
	}
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordDBQuery records database query metrics on DefaultMetrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.RecordDBQuery(database, operation, seconds, err)
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
