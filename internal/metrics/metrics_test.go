package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Batch(FlowPaso1, OutcomeSuccess)
	m.Batch(FlowPaso1, OutcomeSuccess)
	m.Batch(FlowPaso2, OutcomePartial)
	m.RowsDerived(FlowPaso1, 3)
	m.RateFallback("EUR/USD")
	m.WarehouseRows(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.batches.WithLabelValues(FlowPaso1, OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batches.WithLabelValues(FlowPaso2, OutcomePartial)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.rowsDerived.WithLabelValues(FlowPaso1)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateFallbacks.WithLabelValues("EUR/USD")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.warehouseRows))
}

func TestMetrics_StepHistogram(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveStep(FlowPaso1, "derive", 20*time.Millisecond)
	m.ObserveStep(FlowPaso1, "render", time.Second)

	assert.Equal(t, 2, testutil.CollectAndCount(m.stepDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Batch(FlowPaso1, OutcomeError)
		m.RowsDerived(FlowPaso1, 1)
		m.RateFallback("VES/USD")
		m.ObserveStep(FlowPaso2, "merge", time.Millisecond)
		m.WarehouseRows(1)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New(nil)
	m.Batch(FlowPaso2, OutcomeSuccess)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `prioridades_pago_batches_total{flow="paso2",outcome="success"} 1`))
}
