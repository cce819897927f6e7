package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs              *prometheus.CounterVec
	failures          *prometheus.CounterVec
	duration          *prometheus.HistogramVec
	discrepancies     prometheus.Counter
	lastDiscrepancies prometheus.Gauge
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddStockDiscrepancies records the outcome of one reconciliation pass:
// the counter accumulates mismatches, the gauge holds the latest pass.
func (m *Metrics) AddStockDiscrepancies(count int) {
	if m == nil {
		return
	}
	m.lastDiscrepancies.Set(float64(count))
	if count > 0 {
		m.discrepancies.Add(float64(count))
	}
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	discrepancies := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "odyssey_stock_reconcile_discrepancies_total",
		Help: "Goods whose running stock total disagreed with the ledger fold.",
	})
	lastDiscrepancies := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "odyssey_stock_reconcile_last_discrepancies",
		Help: "Discrepancies found by the most recent reconciliation pass.",
	})
	registerer.MustRegister(runs, failures, duration, discrepancies, lastDiscrepancies)
	return &Metrics{runs: runs, failures: failures, duration: duration, discrepancies: discrepancies, lastDiscrepancies: lastDiscrepancies}
}
