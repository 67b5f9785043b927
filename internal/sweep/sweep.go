// Package sweep runs the periodic maintenance jobs (burst promotion, snooze
// wake-up, batch triage) on cron schedules. A job never overlaps itself: a
// tick or manual run that finds it still running is skipped.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/sift/internal/postgres"
)

// Job names.
const (
	Bursts  = "bursts"
	Snoozes = "snoozes"
	Triage  = "triage"
)

// ErrBusy is returned by RunNow when the job is already running.
var ErrBusy = errors.New("sweep already running")

// ErrUnknownJob is returned by RunNow for an unregistered name.
var ErrUnknownJob = errors.New("unknown sweep")

// Func performs one sweep and returns how many records it affected.
type Func func(ctx context.Context) (int, error)

// Job is a named sweep and its schedule. An empty schedule registers the job
// for manual runs only.
type Job struct {
	Name     string
	Schedule string
	// Timeout bounds a single run; 0 means no bound beyond the scheduler's context.
	Timeout time.Duration
	Run     Func
}

// Hooks observe sweep runs, typically for metrics.
type Hooks struct {
	OnRun  func(name string, affected int, dur time.Duration, err error)
	OnSkip func(name string)
}

type job struct {
	Job
	running atomic.Bool
	entry   cron.EntryID
}

// Scheduler owns the cron loop and the registered jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger log.Logger
	hooks  Hooks
	now    func() time.Time

	mu     sync.Mutex
	jobs   map[string]*job
	base   context.Context
	cancel context.CancelFunc
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule validates a 5-field cron expression or an @every/@hourly
// style descriptor.
func ParseSchedule(spec string) (cron.Schedule, error) {
	s, err := parser.Parse(strings.TrimSpace(spec))
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

// New returns a stopped Scheduler.
func New(logger log.Logger, hooks Hooks) *Scheduler {
	if logger == nil {
		logger = log.Nop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.Recover(cronLogger{logger})),
		),
		logger: logger,
		hooks:  hooks,
		now:    time.Now,
		jobs:   make(map[string]*job),
		base:   base,
		cancel: cancel,
	}
}

// Add registers j. Names must be unique.
func (s *Scheduler) Add(j Job) error {
	if j.Name == "" || j.Run == nil {
		panic(xerrors.New("sweep job needs a name and a run func"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[j.Name]; dup {
		return fmt.Errorf("sweep %q already registered", j.Name)
	}
	jb := &job{Job: j}
	if strings.TrimSpace(j.Schedule) != "" {
		sched, err := ParseSchedule(j.Schedule)
		if err != nil {
			return fmt.Errorf("sweep %s: %w", j.Name, err)
		}
		jb.entry = s.cron.Schedule(sched, cron.FuncJob(func() {
			_, _ = s.run(s.base, jb)
		}))
	}
	s.jobs[j.Name] = jb
	return nil
}

// Jobs returns the registered job names, sorted.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for n := range s.jobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Next returns the next scheduled run of name, zero if it is manual-only or
// the scheduler is not started.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.Lock()
	jb, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok || jb.entry == 0 {
		return time.Time{}
	}
	return s.cron.Entry(jb.entry).Next
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start(ctx context.Context) {
	for _, name := range s.Jobs() {
		s.mu.Lock()
		jb := s.jobs[name]
		s.mu.Unlock()
		if jb.entry == 0 {
			s.logger.Info(ctx, "sweep registered for manual runs only", "sweep", name)
			continue
		}
		s.logger.Info(ctx, "sweep scheduled", "sweep", name, "schedule", jb.Schedule)
	}
	s.cron.Start()
}

// Stop halts the schedule, cancels running sweeps and waits for them to
// return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow runs name synchronously in ctx. It returns ErrBusy instead of
// waiting when the job is already running.
func (s *Scheduler) RunNow(ctx context.Context, name string) (int, error) {
	s.mu.Lock()
	jb, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, jb)
}

func (s *Scheduler) run(ctx context.Context, jb *job) (int, error) {
	if !jb.running.CompareAndSwap(false, true) {
		s.logger.Info(ctx, "sweep still running, skipping", "sweep", jb.Name)
		if s.hooks.OnSkip != nil {
			s.hooks.OnSkip(jb.Name)
		}
		return 0, ErrBusy
	}
	defer jb.running.Store(false)

	ctx = postgres.WithSweep(ctx, jb.Name)
	if jb.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, jb.Timeout)
		defer cancel()
	}

	start := s.now()
	n, err := jb.Run(ctx)
	dur := s.now().Sub(start)

	if err != nil {
		s.logger.Error(ctx, err, "sweep failed", "sweep", jb.Name, "affected", n, "duration", dur)
	} else if n > 0 {
		s.logger.Info(ctx, "sweep complete", "sweep", jb.Name, "affected", n, "duration", dur)
	}
	if s.hooks.OnRun != nil {
		s.hooks.OnRun(jb.Name, n, dur, err)
	}
	return n, err
}

// cronLogger adapts log.Logger to cron.Logger for the recover wrapper.
type cronLogger struct{ L log.Logger }

func (c cronLogger) Info(msg string, kv ...any) {
	c.L.Info(context.Background(), msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.L.Error(context.Background(), err, msg, kv...)
}
