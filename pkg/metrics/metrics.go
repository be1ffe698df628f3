// Package metrics exposes prometheus collectors for the importer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "importer"

// Row results
const (
	RowImported = "imported"
	RowSkipped  = "skipped"
)

// ImportMetrics groups the collectors updated by the import service.
// A nil *ImportMetrics is valid and records nothing.
type ImportMetrics struct {
	rows              *prometheus.CounterVec
	imports           *prometheus.CounterVec
	categoriesCreated prometheus.Counter
	duration          prometheus.Histogram
}

// NewImportMetrics registers the import collectors on reg
func NewImportMetrics(reg prometheus.Registerer) *ImportMetrics {
	factory := promauto.With(reg)

	return &ImportMetrics{
		rows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows read from import files, by result.",
		}, []string{"result"}),
		imports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Import attempts, by final status.",
		}, []string{"status"}),
		categoriesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "categories_created_total",
			Help:      "Categories created by imports.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Time spent importing a single file.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// ObserveRows adds imported and skipped row counts
func (m *ImportMetrics) ObserveRows(imported, skipped int) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues(RowImported).Add(float64(imported))
	m.rows.WithLabelValues(RowSkipped).Add(float64(skipped))
}

// ObserveImport records the outcome and duration of one import
func (m *ImportMetrics) ObserveImport(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(status).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// AddCategoriesCreated counts newly created categories
func (m *ImportMetrics) AddCategoriesCreated(n int) {
	if m == nil {
		return
	}
	m.categoriesCreated.Add(float64(n))
}

// Handler serves the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
