package triage

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/sift/internal/assign"
	"github.com/linnemanlabs/sift/internal/burst"
	"github.com/linnemanlabs/sift/internal/disposition"
	"github.com/linnemanlabs/sift/internal/feedback"
	"github.com/linnemanlabs/sift/internal/feedback/memstore"
	"github.com/linnemanlabs/sift/internal/fingerprint"
	"github.com/linnemanlabs/sift/internal/ignore"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// faultyStore fails selected operations.
type faultyStore struct {
	*memstore.Store
	putErr      error
	patternsErr error
}

func (s *faultyStore) PutItem(ctx context.Context, it *feedback.Item) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.Store.PutItem(ctx, it)
}

func (s *faultyStore) UpdateItem(ctx context.Context, it *feedback.Item, prev feedback.ItemState) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.Store.UpdateItem(ctx, it, prev)
}

func (s *faultyStore) ListActivePatterns(ctx context.Context, now time.Time) ([]*feedback.IgnorePattern, error) {
	if s.patternsErr != nil {
		return nil, s.patternsErr
	}
	return s.Store.ListActivePatterns(ctx, now)
}

type stubProvider struct {
	reply string
	err   error
}

func (p *stubProvider) Complete(context.Context, string, string) (string, error) {
	return p.reply, p.err
}

// sweepingProvider runs a burst sweep while the classifier call is in flight,
// the way the scheduled sweep can overlap a synchronous triage.
type sweepingProvider struct {
	bursts *burst.Manager
	swept  burst.SweepResult
	err    error
}

func (p *sweepingProvider) Complete(ctx context.Context, _, _ string) (string, error) {
	p.swept, p.err = p.bursts.Sweep(ctx)
	return `{"disposition":"actionable","confidence":80,"suggestion":"fix the deadlock"}`, nil
}

type hookLog struct {
	mu        sync.Mutex
	completed []*Result
	failed    []Phase
	submits   []string
}

func (h *hookLog) hooks() Hooks {
	return Hooks{
		OnComplete: func(r *Result) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.completed = append(h.completed, r)
		},
		OnPhaseError: func(p Phase) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.failed = append(h.failed, p)
		},
		OnSubmit: func(r string) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.submits = append(h.submits, r)
		},
	}
}

type fixture struct {
	clock    *clock
	store    *faultyStore
	matcher  *ignore.Matcher
	patterns *ignore.Manager
	bursts   *burst.Manager
	hooks    *hookLog
	orch     *Orchestrator
}

func newFixture(t *testing.T, provider disposition.Provider) *fixture {
	t.Helper()
	clk := &clock{now: t0}
	store := &faultyStore{Store: memstore.New()}
	cache := ignore.NewCache(store, time.Minute, clk.Now, log.Nop())
	matcher := ignore.NewMatcher(cache, store, log.Nop(), clk.Now)
	bursts := burst.NewManager(store, burst.DefaultConfig(), log.Nop(), clk.Now, burst.Hooks{})
	classifier := disposition.NewClassifier(provider, disposition.Config{Timeout: time.Second}, log.Nop(), disposition.Hooks{})
	hl := &hookLog{}

	f := &fixture{
		clock:    clk,
		store:    store,
		matcher:  matcher,
		patterns: ignore.NewManager(store, cache, log.Nop(), clk.Now),
		bursts:   bursts,
		hooks:    hl,
	}
	f.orch = NewOrchestrator(Deps{
		Store:      store,
		Matcher:    matcher,
		Bursts:     bursts,
		Owners:     assign.DefaultTable(),
		Classifier: classifier,
	}, log.Nop(), clk.Now, hl.hooks())
	t.Cleanup(matcher.Wait)
	return f
}

func (f *fixture) put(t *testing.T, it *feedback.Item) *feedback.Item {
	t.Helper()
	if it.Status == "" {
		it.Status = feedback.StatusNew
	}
	if it.Type == "" {
		it.Type = feedback.TypeIssue
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = f.clock.Now()
	}
	it.OccurrenceCount = 1
	if err := f.store.Store.PutItem(context.Background(), it); err != nil {
		t.Fatalf("PutItem: %v", err)
	}
	return it
}

func (f *fixture) get(t *testing.T, id string) *feedback.Item {
	t.Helper()
	it, ok, err := f.store.GetItem(context.Background(), id)
	if err != nil || !ok {
		t.Fatalf("GetItem(%s) = %v, %v", id, ok, err)
	}
	return it
}

func phases(r *Result) string {
	var parts []string
	for _, a := range r.Actions {
		parts = append(parts, string(a.Phase)+"="+string(a.Status))
	}
	return strings.Join(parts, ",")
}

func TestTriage_FullPipeline(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.put(t, &feedback.Item{
		ID:         "it-1",
		Title:      "Database connection timeout",
		Severity:   feedback.SeverityCritical,
		SourceType: feedback.SourceErrorCapture,
		Category:   "db",
	})

	res := f.orch.Triage(context.Background(), "it-1")

	if !res.Success {
		t.Fatalf("Success = false, error %q", res.Error)
	}
	want := "ignore=ok,priority=ok,burst=skipped,assign=ok,disposition=ok,persist=ok"
	if got := phases(res); got != want {
		t.Errorf("phases = %s\nwant     %s", got, want)
	}
	if res.Priority != feedback.P0 {
		t.Errorf("Priority = %s, want P0", res.Priority)
	}
	if res.Assignment == nil || res.Assignment.Owner != assign.OnCall || res.Assignment.Rule != assign.RuleSourceSeverity {
		t.Errorf("Assignment = %+v", res.Assignment)
	}
	if res.Suggestion == nil || res.Suggestion.Source != feedback.SourceRules || res.Suggestion.Confidence != 70 {
		t.Errorf("Suggestion = %+v", res.Suggestion)
	}
	if res.Route != disposition.RouteVetting {
		t.Errorf("Route = %q, want vetting", res.Route)
	}

	it := f.get(t, "it-1")
	if it.Status != feedback.StatusTriaged {
		t.Errorf("stored Status = %s, want triaged", it.Status)
	}
	if it.AssignedTo != assign.OnCall {
		t.Errorf("stored AssignedTo = %q", it.AssignedTo)
	}
	if it.TriagedAt == nil || !it.TriagedAt.Equal(t0) {
		t.Errorf("TriagedAt = %v", it.TriagedAt)
	}
	if !strings.Contains(it.PriorityReasoning, "clamped") {
		t.Errorf("PriorityReasoning = %q, want clamp note", it.PriorityReasoning)
	}
	if len(it.TriageActions) != 5 || !strings.HasPrefix(it.TriageActions[0], "ignore:ok") {
		t.Errorf("TriageActions = %q", it.TriageActions)
	}
	if it.Suggestion == nil || it.Suggestion.Disposition != feedback.DispositionActionable {
		t.Errorf("stored Suggestion = %+v", it.Suggestion)
	}
	if len(f.hooks.completed) != 1 || f.hooks.completed[0].Outcome() != "triaged" {
		t.Errorf("completed hooks = %v", f.hooks.completed)
	}
}

func TestTriage_UsesClassifierReply(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubProvider{reply: "```json\n{\"disposition\":\"consideration_only\",\"confidence\":81,\"suggestion\":\"Note for roadmap\"}\n```"})
	f.put(t, &feedback.Item{
		ID:         "it-1",
		Type:       feedback.TypeEnhancement,
		Title:      "Dark mode",
		Value:      "high",
		Effort:     "small",
		SourceType: feedback.SourceManualFeedback,
	})

	res := f.orch.Triage(context.Background(), "it-1")
	if !res.Success {
		t.Fatalf("Success = false: %s", res.Error)
	}
	if res.Priority != feedback.P1 {
		t.Errorf("Priority = %s, want P1", res.Priority)
	}
	if res.Suggestion == nil || res.Suggestion.Source != feedback.SourceLLM || res.Suggestion.Confidence != 81 {
		t.Fatalf("Suggestion = %+v", res.Suggestion)
	}
	if res.Route != disposition.RouteArchived {
		t.Errorf("Route = %q, want archived", res.Route)
	}
	if res.Assignment.Owner != "product" {
		t.Errorf("Owner = %q, want product", res.Assignment.Owner)
	}
}

func TestTriage_ClassifierFailureFallsBack(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubProvider{err: errors.New("overloaded")})
	f.put(t, &feedback.Item{ID: "it-1", Title: "Checkout step fails", Severity: feedback.SeverityHigh, SourceType: feedback.SourceUATFailure})

	res := f.orch.Triage(context.Background(), "it-1")
	if !res.Success {
		t.Fatalf("Success = false: %s", res.Error)
	}
	pr, _ := res.Phase(PhaseDisposition)
	if pr.Status != PhaseOK || !strings.Contains(pr.Detail, "provider_error") {
		t.Errorf("disposition phase = %+v", pr)
	}
	if res.Suggestion == nil || res.Suggestion.Source != feedback.SourceRules {
		t.Errorf("Suggestion = %+v", res.Suggestion)
	}
}

func TestTriage_NoSuggestionIsSkipped(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.put(t, &feedback.Item{ID: "it-1", Title: "Typo on pricing page", Severity: feedback.SeverityLow, SourceType: feedback.SourceManualFeedback})

	res := f.orch.Triage(context.Background(), "it-1")
	pr, _ := res.Phase(PhaseDisposition)
	if pr.Status != PhaseSkipped {
		t.Errorf("disposition phase = %+v, want skipped", pr)
	}
	if res.Suggestion != nil {
		t.Errorf("Suggestion = %+v, want nil", res.Suggestion)
	}
	if !res.Success {
		t.Error("Success = false")
	}
}

func TestTriage_IgnoreShortCircuits(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	p, err := f.patterns.Create(ctx, ignore.CreateRequest{
		Field: "title", Type: feedback.PatternContains, Value: "flaky-test", Reason: "known flake",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.put(t, &feedback.Item{ID: "it-1", Title: "CI flaky-test in checkout suite", Severity: feedback.SeverityCritical, SourceType: feedback.SourceUATFailure})

	res := f.orch.Triage(ctx, "it-1")
	if !res.Success {
		t.Fatalf("Success = false: %s", res.Error)
	}
	if got, want := phases(res), "ignore=ok,persist=ok"; got != want {
		t.Errorf("phases = %s, want %s", got, want)
	}
	if res.IgnoredBy == nil || res.IgnoredBy.ID != p.ID {
		t.Errorf("IgnoredBy = %+v", res.IgnoredBy)
	}
	it := f.get(t, "it-1")
	if it.Status != feedback.StatusIgnored {
		t.Errorf("Status = %s, want ignored", it.Status)
	}
	if it.Priority != "" || it.AssignedTo != "" {
		t.Errorf("ignored item got priority %q owner %q", it.Priority, it.AssignedTo)
	}

	f.matcher.Wait()
	stored, _, _ := f.store.GetPattern(ctx, p.ID)
	if stored.MatchCount != 1 || stored.LastMatchAt == nil {
		t.Errorf("pattern stats = %d, %v", stored.MatchCount, stored.LastMatchAt)
	}

	again := f.orch.Triage(ctx, "it-1")
	if !again.Success || !again.NoOp {
		t.Errorf("re-triage = %+v, want successful no-op", again)
	}
	if after := f.get(t, "it-1"); !after.UpdatedAt.Equal(it.UpdatedAt) || len(after.TriageActions) != len(it.TriageActions) {
		t.Error("re-triage of ignored item modified it")
	}
}

func TestTriage_JoinsOpenBurstGroup(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	fp := fingerprint.GroupingKey("Database", "billing", "db.go")
	g := &feedback.BurstGroup{
		ID: "g-1", Fingerprint: fp, Count: 3, FirstSeen: t0, LastSeen: t0,
		ItemIDs: []string{"a", "b", "c"}, RepresentativeID: "a",
		Priority: feedback.P1, Status: feedback.GroupOpen, CreatedAt: t0,
	}
	if err := f.store.CreateGroup(ctx, g); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	f.clock.Advance(time.Minute)
	f.put(t, &feedback.Item{
		ID: "it-1", Title: "deadlock detected", Severity: feedback.SeverityMedium,
		SourceType: feedback.SourceErrorCapture, Category: "database", Application: "Billing", File: " db.go",
	})

	res := f.orch.Triage(ctx, "it-1")
	if !res.Success {
		t.Fatalf("Success = false: %s", res.Error)
	}
	if got, want := phases(res), "ignore=ok,priority=ok,burst=ok,assign=skipped,disposition=ok,persist=ok"; got != want {
		t.Errorf("phases = %s\nwant     %s", got, want)
	}
	if res.BurstGroup == nil || res.BurstGroup.Count != 4 {
		t.Errorf("BurstGroup = %+v", res.BurstGroup)
	}
	if res.Suggestion == nil || !strings.Contains(res.Suggestion.Text, "burst of 4") {
		t.Errorf("Suggestion = %+v", res.Suggestion)
	}

	it := f.get(t, "it-1")
	if it.Status != feedback.StatusGrouped || it.BurstGroupID != "g-1" {
		t.Errorf("item status %s group %q", it.Status, it.BurstGroupID)
	}
	if it.AssignedTo != "" {
		t.Errorf("grouped item assigned to %q", it.AssignedTo)
	}
	if res.Outcome() != "grouped" {
		t.Errorf("Outcome = %q", res.Outcome())
	}

	again := f.orch.Triage(ctx, "it-1")
	if !again.NoOp {
		t.Error("re-triage of grouped item was not a no-op")
	}
	stored, _, _ := f.store.GetGroup(ctx, "g-1")
	if stored.Count != 4 {
		t.Errorf("group count = %d after re-triage, want 4", stored.Count)
	}
}

func TestTriage_YieldsToConcurrentSweep(t *testing.T) {
	t.Parallel()

	p := &sweepingProvider{}
	f := newFixture(t, p)
	p.bursts = f.bursts
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		f.put(t, &feedback.Item{
			ID: id, Title: "deadlock detected", Severity: feedback.SeverityMedium,
			SourceType: feedback.SourceErrorCapture, Category: "database", Application: "billing", File: "db.go",
		})
	}

	res := f.orch.Triage(ctx, "a")
	if p.err != nil || p.swept.Created != 1 || p.swept.Grouped != 3 {
		t.Fatalf("sweep during classify = %+v, %v", p.swept, p.err)
	}
	if !res.Success || !res.NoOp {
		t.Fatalf("result = %+v, want successful no-op", res)
	}
	if res.Status != feedback.StatusGrouped || res.Outcome() != "noop" {
		t.Errorf("Status = %s, Outcome = %s", res.Status, res.Outcome())
	}
	if pr, _ := res.Phase(PhasePersist); pr.Status != PhaseSkipped {
		t.Errorf("persist phase = %+v", pr)
	}
	if res.Assignment != nil || res.Suggestion != nil {
		t.Errorf("unwritten decisions reported: assignment %+v suggestion %+v", res.Assignment, res.Suggestion)
	}

	it := f.get(t, "a")
	if it.Status != feedback.StatusGrouped || it.BurstGroupID == "" {
		t.Fatalf("stored item a: status=%s burst_group_id=%q", it.Status, it.BurstGroupID)
	}
	if it.AssignedTo != "" || it.TriagedAt != nil {
		t.Errorf("triage output leaked into stored item: %+v", it)
	}
	g, ok, err := f.store.GetGroup(ctx, it.BurstGroupID)
	if err != nil || !ok || g.Count != 3 || !slices.Contains(g.ItemIDs, "a") {
		t.Fatalf("group = %+v, %v, %v", g, ok, err)
	}

	again, err := f.bursts.Sweep(ctx)
	if err != nil || again.Created != 0 || again.Grouped != 0 {
		t.Errorf("later sweep = %+v, %v; item a was regrouped", again, err)
	}
}

func TestTriage_SettledAndAssignedItems(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status     feedback.Status
		wantNoOp   bool
		wantAssign PhaseStatus
	}{
		{feedback.StatusResolved, true, ""},
		{feedback.StatusClosed, true, ""},
		{feedback.StatusAssigned, false, PhaseSkipped},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, nil)
			f.put(t, &feedback.Item{
				ID: "it-1", Title: "Checkout fails", Severity: feedback.SeverityCritical,
				SourceType: feedback.SourceErrorCapture, Status: tt.status,
				Priority: feedback.P3, AssignedTo: "alice",
			})

			res := f.orch.Triage(context.Background(), "it-1")
			if !res.Success || res.NoOp != tt.wantNoOp {
				t.Fatalf("result = %+v, want success with NoOp=%v", res, tt.wantNoOp)
			}
			if tt.wantAssign != "" {
				if pr, _ := res.Phase(PhaseAssign); pr.Status != tt.wantAssign {
					t.Errorf("assign phase = %+v", pr)
				}
			}

			it := f.get(t, "it-1")
			if it.AssignedTo != "alice" || it.Status != tt.status {
				t.Errorf("stored item: status=%s assigned_to=%q", it.Status, it.AssignedTo)
			}
			if tt.wantNoOp && it.Priority != feedback.P3 {
				t.Errorf("settled item priority rewritten to %s", it.Priority)
			}
		})
	}
}

func TestTriage_NonCriticalFailuresContinue(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.store.patternsErr = errors.New("connection reset")
	f.put(t, &feedback.Item{ID: "it-1", Title: "Slow page", Severity: feedback.SeverityMedium, SourceType: feedback.SourceManualFeedback})

	res := f.orch.Triage(context.Background(), "it-1")
	if !res.Success {
		t.Fatalf("Success = false: %s", res.Error)
	}
	pr, _ := res.Phase(PhaseIgnore)
	if pr.Status != PhaseError || !strings.Contains(pr.Detail, "connection reset") {
		t.Errorf("ignore phase = %+v", pr)
	}
	if f.get(t, "it-1").Status != feedback.StatusTriaged {
		t.Error("item not triaged after ignore failure")
	}
	if len(f.hooks.failed) != 1 || f.hooks.failed[0] != PhaseIgnore {
		t.Errorf("phase failures = %v", f.hooks.failed)
	}
}

func TestTriage_CriticalFailures(t *testing.T) {
	t.Parallel()

	t.Run("missing item", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		res := f.orch.Triage(context.Background(), "nope")
		if res.Success {
			t.Fatal("Success = true for missing item")
		}
		pr, ok := res.Phase(PhaseFetch)
		if !ok || pr.Status != PhaseError || !strings.Contains(res.Error, "not found") {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("persist fails", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		f.put(t, &feedback.Item{ID: "it-1", Title: "x", SourceType: feedback.SourceManualFeedback})
		f.store.putErr = feedback.StoreFailure("put item", errors.New("disk full"))

		res := f.orch.Triage(context.Background(), "it-1")
		if res.Success {
			t.Fatal("Success = true after persist failure")
		}
		pr, _ := res.Phase(PhasePersist)
		if pr.Status != PhaseError {
			t.Errorf("persist phase = %+v", pr)
		}
		if !strings.Contains(res.Error, "disk full") {
			t.Errorf("Error = %q", res.Error)
		}
		if res.Outcome() != "failed" {
			t.Errorf("Outcome = %q", res.Outcome())
		}
	})
}

func TestTriageUntriaged(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.patterns.Create(ctx, ignore.CreateRequest{Field: "title", Type: feedback.PatternExact, Value: "noise"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i, title := range []string{"first", "noise", "third", "fourth"} {
		f.put(t, &feedback.Item{
			ID: "it-" + title, Title: title, Severity: feedback.SeverityLow,
			SourceType: feedback.SourceManualFeedback, CreatedAt: t0.Add(time.Duration(i) * time.Second),
		})
	}
	f.put(t, &feedback.Item{ID: "done", Title: "done", Status: feedback.StatusTriaged, SourceType: "x"})

	b, err := f.orch.TriageUntriaged(ctx, 3)
	if err != nil {
		t.Fatalf("TriageUntriaged: %v", err)
	}
	if b.Processed != 3 || b.Succeeded != 3 || b.Ignored != 1 || b.Failed != 0 {
		t.Errorf("batch = %+v", b)
	}
	if f.get(t, "it-fourth").Status != feedback.StatusNew {
		t.Error("limit not honored, oldest-first violated")
	}

	b, err = f.orch.TriageUntriaged(ctx, 10)
	if err != nil {
		t.Fatalf("second TriageUntriaged: %v", err)
	}
	if b.Processed != 1 || b.Affected() != 1 {
		t.Errorf("second batch = %+v", b)
	}
}

func TestNewOrchestrator_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("expected panic without store")
		}
	}()
	NewOrchestrator(Deps{Owners: assign.DefaultTable()}, nil, nil, Hooks{})
}

func TestTriage_CreatesSpan(t *testing.T) {
	// Not parallel: swaps the global OTel tracer provider.

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	f := newFixture(t, nil)
	f.put(t, &feedback.Item{ID: "it-1", Title: "Auth token expired", Severity: feedback.SeverityHigh, SourceType: feedback.SourceErrorCapture})
	f.orch.Triage(context.Background(), "it-1")

	var run *tracetest.SpanStub
	spans := exporter.GetSpans()
	for i := range spans {
		if spans[i].Name == "triage.run" {
			run = &spans[i]
		}
	}
	if run == nil {
		t.Fatal("no triage.run span")
	}

	attrs := make(map[string]any)
	for _, a := range run.Attributes {
		attrs[string(a.Key)] = a.Value.AsInterface()
	}
	if attrs["sift.item.id"] != "it-1" {
		t.Errorf("sift.item.id = %v", attrs["sift.item.id"])
	}
	if attrs["sift.triage.success"] != true {
		t.Errorf("sift.triage.success = %v", attrs["sift.triage.success"])
	}
	if attrs["sift.triage.outcome"] != "triaged" {
		t.Errorf("sift.triage.outcome = %v", attrs["sift.triage.outcome"])
	}

	var events []string
	for _, e := range run.Events {
		events = append(events, e.Name)
	}
	want := "phase.ignore,phase.priority,phase.burst,phase.assign,phase.disposition"
	if got := strings.Join(events, ","); got != want {
		t.Errorf("events = %s, want %s", got, want)
	}
}
