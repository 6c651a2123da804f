package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics groups the instruments recorded by one delete-sync run.
// Lambda containers are not scraped, so the registry is pushed to a
// Pushgateway at the end of each run when one is configured.
type Metrics struct {
	reg *prometheus.Registry

	RecordsTotal    *prometheus.CounterVec
	CleanupFailures prometheus.Counter
	CallLatency     prometheus.Histogram
	RunDuration     prometheus.Histogram
	RunsTotal       *prometheus.CounterVec
	LastBatchSize   prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,

		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_delete_records_total",
			Help: "Queue records processed, by outcome.",
		}, []string{"outcome"}),

		CleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_delete_cleanup_failures_total",
			Help: "Queue rows whose removal failed after a successful upstream delete.",
		}),

		CallLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_delete_call_seconds",
			Help:    "Latency of individual catalog API delete calls.",
			Buckets: prometheus.DefBuckets,
		}),

		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_delete_run_seconds",
			Help:    "Wall time of one reconciliation run.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),

		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_delete_runs_total",
			Help: "Reconciliation runs, by result.",
		}, []string{"result"}),

		LastBatchSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_delete_last_batch_size",
			Help: "Number of records fetched by the most recent run.",
		}),
	}

	reg.MustRegister(
		m.RecordsTotal,
		m.CleanupFailures,
		m.CallLatency,
		m.RunDuration,
		m.RunsTotal,
		m.LastBatchSize,
	)
	return m
}

// Registry returns the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// ObserveRecord is the reconciler's per-record hook.
func (m *Metrics) ObserveRecord(outcome string, latency time.Duration, cleanupFailed bool) {
	m.RecordsTotal.WithLabelValues(outcome).Inc()
	m.CallLatency.Observe(latency.Seconds())
	if cleanupFailed {
		m.CleanupFailures.Inc()
	}
}

// ObserveRun records the end of a run. ok is false for fatal runs.
func (m *Metrics) ObserveRun(ok bool, batch int, d time.Duration) {
	result := "ok"
	if !ok {
		result = "fatal"
	}
	m.RunsTotal.WithLabelValues(result).Inc()
	m.LastBatchSize.Set(float64(batch))
	m.RunDuration.Observe(d.Seconds())
}

// Push sends the registry to a Pushgateway. Empty url is a no-op.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
