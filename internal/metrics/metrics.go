// Package metrics exposes Prometheus instrumentation for the store, the
// configuration cache and spreadsheet imports.
//
// Every method is safe to call on a nil *Metrics, so packages can accept
// metrics as an optional dependency.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all collectors registered by New.
type Metrics struct {
	StoreOpDuration *prometheus.HistogramVec
	StoreOpErrors   *prometheus.CounterVec
	ImportRows      *prometheus.CounterVec
	Imports         *prometheus.CounterVec
	ConfigLookups   *prometheus.CounterVec
	ConfigReconcile *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StoreOpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "roster_store_operation_duration_seconds",
			Help:    "Duration of document store operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"collection", "operation"}),
		StoreOpErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_store_operation_errors_total",
			Help: "Document store operations that returned an error",
		}, []string{"collection", "operation"}),
		ImportRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_import_rows_total",
			Help: "Spreadsheet rows processed by outcome (created, skipped)",
		}, []string{"outcome"}),
		Imports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_imports_total",
			Help: "Spreadsheet imports by result (ok, error)",
		}, []string{"result"}),
		ConfigLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_config_lookups_total",
			Help: "Configuration reads by cache result (hit, miss)",
		}, []string{"result"}),
		ConfigReconcile: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_config_reconcile_total",
			Help: "Configuration reconciliations by whether the document was written",
		}, []string{"written"}),
	}
}

// ObserveStoreOp records one store call. Call with time.Now() taken
// before the operation.
func (m *Metrics) ObserveStoreOp(collection, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.StoreOpDuration.WithLabelValues(collection, op).Observe(time.Since(start).Seconds())
	if err != nil {
		m.StoreOpErrors.WithLabelValues(collection, op).Inc()
	}
}

// ObserveImport records the outcome of one import.
func (m *Metrics) ObserveImport(created, skipped int, err error) {
	if m == nil {
		return
	}
	m.ImportRows.WithLabelValues("created").Add(float64(created))
	m.ImportRows.WithLabelValues("skipped").Add(float64(skipped))
	if err != nil {
		m.Imports.WithLabelValues("error").Inc()
		return
	}
	m.Imports.WithLabelValues("ok").Inc()
}

// ObserveConfigLookup records a configuration read.
func (m *Metrics) ObserveConfigLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.ConfigLookups.WithLabelValues("hit").Inc()
		return
	}
	m.ConfigLookups.WithLabelValues("miss").Inc()
}

// ObserveReconcile records one reconciliation.
func (m *Metrics) ObserveReconcile(written bool) {
	if m == nil {
		return
	}
	m.ConfigReconcile.WithLabelValues(strconv.FormatBool(written)).Inc()
}
