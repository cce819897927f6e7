package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// sample returns the value of the first series of name whose labels match.
func sample(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue series
				}
			}
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("inventory:stock_reconcile").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("inventory:stock_reconcile").End(boom), boom)

	job := map[string]string{"job": "inventory:stock_reconcile"}
	require.Equal(t, 1.0, sample(t, reg, "odyssey_jobs_total", map[string]string{"job": "inventory:stock_reconcile", "status": "success"}))
	require.Equal(t, 1.0, sample(t, reg, "odyssey_jobs_total", map[string]string{"job": "inventory:stock_reconcile", "status": "failure"}))
	require.Equal(t, 1.0, sample(t, reg, "odyssey_jobs_failures_total", job))
}

func TestStockDiscrepancies(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.AddStockDiscrepancies(3)
	m.AddStockDiscrepancies(0)
	require.Equal(t, 3.0, sample(t, reg, "odyssey_stock_reconcile_discrepancies_total", nil))
	require.Equal(t, 0.0, sample(t, reg, "odyssey_stock_reconcile_last_discrepancies", nil))

	m.AddStockDiscrepancies(2)
	require.Equal(t, 5.0, sample(t, reg, "odyssey_stock_reconcile_discrepancies_total", nil))
	require.Equal(t, 2.0, sample(t, reg, "odyssey_stock_reconcile_last_discrepancies", nil))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddStockDiscrepancies(1)
	err := errors.New("x")
	require.Equal(t, err, m.Track("job").End(err))
}
