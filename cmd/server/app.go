package main

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/sift/internal/assign"
	"github.com/linnemanlabs/sift/internal/burst"
	vc "github.com/linnemanlabs/sift/internal/cfg"
	"github.com/linnemanlabs/sift/internal/disposition"
	"github.com/linnemanlabs/sift/internal/feedback"
	"github.com/linnemanlabs/sift/internal/feedbackapi"
	"github.com/linnemanlabs/sift/internal/fingerprint"
	"github.com/linnemanlabs/sift/internal/focus"
	"github.com/linnemanlabs/sift/internal/ignore"
	"github.com/linnemanlabs/sift/internal/snooze"
	"github.com/linnemanlabs/sift/internal/sweep"
	"github.com/linnemanlabs/sift/internal/triage"
)

// app is the wired pipeline behind the API listener.
type app struct {
	api     *feedbackapi.API
	sweeps  *sweep.Scheduler
	matcher *ignore.Matcher
	intake  *triage.Intake
}

type appDeps struct {
	store    feedback.Store
	provider disposition.Provider // nil = rules only
	reg      prometheus.Registerer
	logger   log.Logger
	now      func() time.Time
}

// newApp builds every pipeline component from configuration, loads the
// assignment table and seeds ignore patterns.
func newApp(ctx context.Context, c vc.Config, d appDeps) (*app, error) {
	L := d.logger
	if d.now == nil {
		d.now = time.Now
	}

	triageMetrics := triage.NewMetrics(d.reg)
	sweepMetrics := sweep.NewMetrics(d.reg)

	owners := assign.DefaultTable()
	if c.AssignmentFile != "" {
		t, err := assign.Load(c.AssignmentFile)
		if err != nil {
			return nil, err
		}
		owners = t
		L.Info(ctx, "loaded assignment table", "path", c.AssignmentFile, "entries", len(t.Owners), "default", t.Default)
	}

	cache := ignore.NewCache(d.store, c.PatternCacheTTL, d.now, L)
	matcher := ignore.NewMatcher(cache, d.store, L, d.now)
	matcher.OnMatch = triageMetrics.OnIgnoreMatch
	patterns := ignore.NewManager(d.store, cache, L, d.now)

	if c.IgnoreSeedFile != "" {
		reqs, err := ignore.LoadSeed(c.IgnoreSeedFile)
		if err != nil {
			return nil, err
		}
		n, err := patterns.Seed(ctx, reqs)
		if err != nil {
			return nil, fmt.Errorf("seed ignore patterns: %w", err)
		}
		L.Info(ctx, "seeded ignore patterns", "path", c.IgnoreSeedFile, "requested", len(reqs), "created", n)
	}

	bursts := burst.NewManager(d.store, burst.Config{
		MinOccurrences: c.BurstMinOccurrences,
		Window:         c.BurstWindow,
		MaxItems:       c.BurstMaxItems,
	}, L, d.now, triageMetrics.BurstHooks())

	classifier := disposition.NewClassifier(d.provider, disposition.Config{
		Timeout:   c.ClassifierTimeout,
		PerMinute: c.ClassifierRatePerMinute,
		Burst:     c.ClassifierBurst,
	}, L, triageMetrics.ClassifierHooks())

	orch := triage.NewOrchestrator(triage.Deps{
		Store:      d.store,
		Matcher:    matcher,
		Bursts:     bursts,
		Owners:     owners,
		Classifier: classifier,
	}, L, d.now, triageMetrics.Hooks())

	var dedup *fingerprint.DedupCache
	if c.DedupWindow > 0 {
		dedup = fingerprint.NewDedupCache(c.DedupWindow, d.now)
	}
	intake := triage.NewIntake(d.store, orch, dedup, L, d.now, triageMetrics.Hooks())
	snoozes := snooze.NewManager(d.store, L, d.now)

	sched := sweep.New(L, sweepMetrics.Hooks())
	for _, j := range []sweep.Job{
		{
			Name:     sweep.Bursts,
			Schedule: c.SweepBurstsSchedule,
			Timeout:  c.SweepTimeout,
			Run: func(ctx context.Context) (int, error) {
				res, err := bursts.Sweep(ctx)
				return res.Affected(), err
			},
		},
		{
			Name:     sweep.Snoozes,
			Schedule: c.SweepSnoozesSchedule,
			Timeout:  c.SweepTimeout,
			Run:      snoozes.WakeExpired,
		},
		{
			Name:     sweep.Triage,
			Schedule: c.SweepTriageSchedule,
			Timeout:  c.SweepTimeout,
			Run: func(ctx context.Context) (int, error) {
				res, err := orch.TriageUntriaged(ctx, c.TriageBatchLimit)
				return res.Affected(), err
			},
		},
	} {
		if err := sched.Add(j); err != nil {
			return nil, fmt.Errorf("register sweep %s: %w", j.Name, err)
		}
	}

	api := feedbackapi.New(L, feedbackapi.Deps{
		Intake:       intake,
		Orchestrator: orch,
		Items:        d.store,
		Snoozes:      snoozes,
		Focus:        focus.NewBuilder(d.store, d.now),
		Patterns:     patterns,
		Bursts:       bursts,
		Sweeps:       sched,
		Tokens:       c.Tokens(),
	})

	return &app{api: api, sweeps: sched, matcher: matcher, intake: intake}, nil
}
