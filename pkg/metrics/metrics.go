// Package metrics exposes the pipeline's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ImportMetrics counts and times pipeline work. All methods are safe on a
// nil receiver so instrumentation stays optional in tests and the CLI.
type ImportMetrics struct {
	analyses        prometheus.Counter
	analyzeDuration prometheus.Histogram
	imports         *prometheus.CounterVec
	rowsImported    prometheus.Counter
	rowsDuplicate   prometheus.Counter
	rowErrors       *prometheus.CounterVec
}

func NewImportMetrics(reg prometheus.Registerer) *ImportMetrics {
	factory := promauto.With(reg)
	return &ImportMetrics{
		analyses: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradeledger_analyses_total",
			Help: "File analyses performed.",
		}),
		analyzeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradeledger_analyze_duration_seconds",
			Help:    "Time spent analyzing one file.",
			Buckets: prometheus.DefBuckets,
		}),
		imports: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeledger_imports_total",
			Help: "Import executions by outcome.",
		}, []string{"status"}),
		rowsImported: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradeledger_rows_imported_total",
			Help: "Transactions persisted.",
		}),
		rowsDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradeledger_rows_duplicate_total",
			Help: "Rows skipped as already imported.",
		}),
		rowErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeledger_row_errors_total",
			Help: "Rows rejected, by error code.",
		}, []string{"code"}),
	}
}

func (m *ImportMetrics) ObserveAnalysis(seconds float64) {
	if m == nil {
		return
	}
	m.analyses.Inc()
	m.analyzeDuration.Observe(seconds)
}

func (m *ImportMetrics) CountImport(status string, imported, duplicates int) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(status).Inc()
	m.rowsImported.Add(float64(imported))
	m.rowsDuplicate.Add(float64(duplicates))
}

func (m *ImportMetrics) CountRowError(code string) {
	if m == nil {
		return
	}
	m.rowErrors.WithLabelValues(code).Inc()
}

// Handler serves the given registry over HTTP for scraping.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
