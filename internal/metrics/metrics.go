// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Flows.
const (
	FlowPaso1 = "paso1"
	FlowPaso2 = "paso2"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeError   = "error"
)

// Metrics holds the instruments of one registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	batches       *prometheus.CounterVec
	rowsDerived   *prometheus.CounterVec
	rateFallbacks *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	warehouseRows prometheus.Counter
}

// New registers the instruments on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		gatherer: reg,
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prioridades_pago_batches_total",
			Help: "Processed batches by flow and outcome.",
		}, []string{"flow", "outcome"}),
		rowsDerived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prioridades_pago_rows_derived_total",
			Help: "Rows that went through the derivation chain.",
		}, []string{"flow"}),
		rateFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prioridades_pago_rate_fallbacks_total",
			Help: "Rate lookups that used the default rate.",
		}, []string{"pair"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "prioridades_pago_step_duration_seconds",
			Help:    "Pipeline step latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"flow", "step"}),
		warehouseRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prioridades_pago_warehouse_rows_total",
			Help: "Rows appended to the warehouse table.",
		}),
	}

	reg.MustRegister(
		m.batches,
		m.rowsDerived,
		m.rateFallbacks,
		m.stepDuration,
		m.warehouseRows,
	)
	return m
}

// Batch counts a finished batch.
func (m *Metrics) Batch(flow, outcome string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(flow, outcome).Inc()
}

// RowsDerived adds n derived rows.
func (m *Metrics) RowsDerived(flow string, n int) {
	if m == nil {
		return
	}
	m.rowsDerived.WithLabelValues(flow).Add(float64(n))
}

// RateFallback counts a pair that used its default rate.
func (m *Metrics) RateFallback(pair string) {
	if m == nil {
		return
	}
	m.rateFallbacks.WithLabelValues(pair).Inc()
}

// ObserveStep records how long a step took.
func (m *Metrics) ObserveStep(flow, step string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(flow, step).Observe(d.Seconds())
}

// WarehouseRows adds n loaded rows.
func (m *Metrics) WarehouseRows(n int) {
	if m == nil {
		return
	}
	m.warehouseRows.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
