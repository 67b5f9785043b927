package triage

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/sift/internal/burst"
	"github.com/linnemanlabs/sift/internal/disposition"
	"github.com/linnemanlabs/sift/internal/feedback"
)

// Metrics holds Prometheus metrics for the triage pipeline and its collaborators.
type Metrics struct {
	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	PhaseFailures     *prometheus.CounterVec
	SubmitsTotal      *prometheus.CounterVec
	IgnoreMatches     *prometheus.CounterVec
	BurstsCreated     prometheus.Counter
	BurstItemsJoined  prometheus.Counter
	BurstGroupSize    prometheus.Histogram
	ClassifierResults *prometheus.CounterVec
	DispositionsTotal *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_triage_runs_total",
			Help: "Total triage runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sift_triage_duration_seconds",
			Help:    "Duration of triage runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~10s
		}),
		PhaseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_triage_phase_failures_total",
			Help: "Triage phases that failed, by phase.",
		}, []string{"phase"}),
		SubmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_submits_total",
			Help: "Total feedback submissions by result.",
		}, []string{"result"}),
		IgnoreMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_ignore_matches_total",
			Help: "Items suppressed by ignore patterns, by matched field.",
		}, []string{"field"}),
		BurstsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sift_burst_groups_created_total",
			Help: "Burst groups created.",
		}),
		BurstItemsJoined: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sift_burst_items_joined_total",
			Help: "Items added to existing burst groups.",
		}),
		BurstGroupSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sift_burst_group_size",
			Help:    "Burst group count observed on every change.",
			Buckets: prometheus.ExponentialBuckets(3, 2, 10), // 3 .. ~1536
		}),
		ClassifierResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_classifier_results_total",
			Help: "Disposition suggestions by source and fallback reason.",
		}, []string{"source", "reason"}),
		DispositionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_dispositions_total",
			Help: "Suggested dispositions by value and source.",
		}, []string{"disposition", "source"}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.PhaseFailures,
		m.SubmitsTotal,
		m.IgnoreMatches,
		m.BurstsCreated,
		m.BurstItemsJoined,
		m.BurstGroupSize,
		m.ClassifierResults,
		m.DispositionsTotal,
	)

	return m
}

// Hooks returns orchestrator and intake hooks that update the metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnComplete: func(r *Result) {
			m.RunsTotal.WithLabelValues(r.Outcome()).Inc()
			m.RunDuration.Observe(r.Duration.Seconds())
			if r.Suggestion != nil {
				m.DispositionsTotal.WithLabelValues(string(r.Suggestion.Disposition), string(r.Suggestion.Source)).Inc()
			}
		},
		OnPhaseError: func(p Phase) {
			m.PhaseFailures.WithLabelValues(string(p)).Inc()
		},
		OnSubmit: func(result string) {
			m.SubmitsTotal.WithLabelValues(result).Inc()
		},
	}
}

// BurstHooks returns burst.Hooks that update the metrics.
func (m *Metrics) BurstHooks() burst.Hooks {
	return burst.Hooks{
		OnCreated: func(g *feedback.BurstGroup) {
			m.BurstsCreated.Inc()
			m.BurstGroupSize.Observe(float64(g.Count))
		},
		OnJoined: func(g *feedback.BurstGroup, added int) {
			m.BurstItemsJoined.Add(float64(added))
			m.BurstGroupSize.Observe(float64(g.Count))
		},
	}
}

// ClassifierHooks returns disposition.Hooks that update the metrics.
func (m *Metrics) ClassifierHooks() disposition.Hooks {
	return disposition.Hooks{
		OnResult: func(source string, reason disposition.Reason) {
			m.ClassifierResults.WithLabelValues(source, string(reason)).Inc()
		},
	}
}

// OnIgnoreMatch is suitable for ignore.Matcher.OnMatch.
func (m *Metrics) OnIgnoreMatch(p *feedback.IgnorePattern) {
	m.IgnoreMatches.WithLabelValues(p.Field).Inc()
}
