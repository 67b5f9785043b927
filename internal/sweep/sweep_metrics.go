package sweep

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for sweep runs.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec
	AffectedTotal *prometheus.CounterVec
	SkippedTotal  *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
}

// NewMetrics registers and returns sweep metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_sweep_runs_total",
			Help: "Sweep runs by sweep and outcome.",
		}, []string{"sweep", "outcome"}),
		AffectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_sweep_affected_total",
			Help: "Records changed by sweeps.",
		}, []string{"sweep"}),
		SkippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_sweep_skipped_total",
			Help: "Sweep runs skipped because the previous run was still going.",
		}, []string{"sweep"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sift_sweep_duration_seconds",
			Help:    "Duration of sweep runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~20s
		}, []string{"sweep"}),
	}

	reg.MustRegister(m.RunsTotal, m.AffectedTotal, m.SkippedTotal, m.Duration)
	return m
}

// Hooks returns sweep Hooks that update the metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnRun: func(name string, affected int, dur time.Duration, err error) {
			outcome := "success"
			if err != nil {
				outcome = "error"
			}
			m.RunsTotal.WithLabelValues(name, outcome).Inc()
			m.AffectedTotal.WithLabelValues(name).Add(float64(affected))
			m.Duration.WithLabelValues(name).Observe(dur.Seconds())
		},
		OnSkip: func(name string) {
			m.SkippedTotal.WithLabelValues(name).Inc()
		},
	}
}
