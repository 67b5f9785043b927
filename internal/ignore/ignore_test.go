package ignore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/sift/internal/feedback"
	"github.com/linnemanlabs/sift/internal/feedback/memstore"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// fakeClock is a settable clock shared by the cache, matcher and manager.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingStore counts active-set loads and can fail match recording.
type countingStore struct {
	*memstore.Store
	loads      atomic.Int32
	recordFail bool
}

func (s *countingStore) ListActivePatterns(ctx context.Context, now time.Time) ([]*feedback.IgnorePattern, error) {
	s.loads.Add(1)
	return s.Store.ListActivePatterns(ctx, now)
}

func (s *countingStore) RecordPatternMatch(ctx context.Context, id string, at time.Time) error {
	if s.recordFail {
		return errors.New("db down")
	}
	return s.Store.RecordPatternMatch(ctx, id, at)
}

type fixture struct {
	clock   *fakeClock
	store   *countingStore
	cache   *Cache
	matcher *Matcher
	manager *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: t0}
	store := &countingStore{Store: memstore.New()}
	cache := NewCache(store, time.Minute, clock.Now, log.Nop())
	return &fixture{
		clock:   clock,
		store:   store,
		cache:   cache,
		matcher: NewMatcher(cache, store, log.Nop(), clock.Now),
		manager: NewManager(store, cache, log.Nop(), clock.Now),
	}
}

func (f *fixture) put(t *testing.T, p *feedback.IgnorePattern) {
	t.Helper()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = f.clock.Now()
	}
	if err := f.store.CreatePattern(context.Background(), p); err != nil {
		t.Fatalf("CreatePattern: %v", err)
	}
}

func TestRule_Matches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		typ   feedback.PatternType
		value string
		in    string
		want  bool
	}{
		{"exact equal", feedback.PatternExact, "Healthcheck failed", "healthcheck FAILED", true},
		{"exact partial", feedback.PatternExact, "Healthcheck", "healthcheck failed", false},
		{"contains", feedback.PatternContains, "Flaky-Test", "this is a flaky-test run", true},
		{"contains miss", feedback.PatternContains, "flaky", "stable", false},
		{"regex", feedback.PatternRegex, `^timeout after \d+ms$`, "TIMEOUT after 300ms", true},
		{"regex unanchored", feedback.PatternRegex, `conn(ection)? reset`, "tcp connection reset by peer", true},
		{"glob star", feedback.PatternGlob, "error-*-timeout", "error-db-timeout", true},
		{"glob star needs middle", feedback.PatternGlob, "error-*-timeout", "error-timeout", false},
		{"glob anchored", feedback.PatternGlob, "error-*", "an error-x", false},
		{"glob question", feedback.PatternGlob, "v?.log", "v1.log", true},
		{"glob question one char", feedback.PatternGlob, "v?.log", "v10.log", false},
		{"glob escapes dot", feedback.PatternGlob, "a.b", "axb", false},
		{"glob escapes brackets", feedback.PatternGlob, "[warn] *", "[WARN] disk", true},
		{"glob case insensitive", feedback.PatternGlob, "*TIMEOUT", "db timeout", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, err := Compile(&feedback.IgnorePattern{Type: tt.typ, Value: tt.value})
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if got := r.Matches(tt.in); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCompile_BadRegexNeverMatches(t *testing.T) {
	t.Parallel()

	r, err := Compile(&feedback.IgnorePattern{Type: feedback.PatternRegex, Value: "(unclosed"})
	if err == nil {
		t.Fatal("expected compile error")
	}
	if r.Err() == nil {
		t.Error("rule should carry its compile error")
	}
	if r.Matches("(unclosed") {
		t.Error("bad regex matched")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		p     feedback.IgnorePattern
		field string
	}{
		{"empty field", feedback.IgnorePattern{Type: feedback.PatternExact, Value: "x"}, "field"},
		{"bad field", feedback.IgnorePattern{Field: "no spaces allowed", Type: feedback.PatternExact, Value: "x"}, "field"},
		{"bad type", feedback.IgnorePattern{Field: "title", Type: "fuzzy", Value: "x"}, "pattern_type"},
		{"empty value", feedback.IgnorePattern{Field: "title", Type: feedback.PatternExact}, "pattern_value"},
		{"bad regex", feedback.IgnorePattern{Field: "title", Type: feedback.PatternRegex, Value: "a[b"}, "pattern_value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(&tt.p)
			var ve *feedback.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}

	ok := feedback.IgnorePattern{Field: "metadata.env", Type: feedback.PatternGlob, Value: "stag*"}
	if err := Validate(&ok); err != nil {
		t.Errorf("valid pattern rejected: %v", err)
	}
}

func TestMatch_ExpiredPatternDoesNotSuppress(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	yesterday := t0.Add(-24 * time.Hour)
	f.put(t, &feedback.IgnorePattern{
		ID: "p1", Field: "title", Type: feedback.PatternContains, Value: "flaky-test",
		IsActive: true, ExpiresAt: &yesterday,
	})

	got, err := f.matcher.Match(context.Background(), &feedback.Item{Title: "CI: flaky-test in auth suite"})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if got != nil {
		t.Errorf("expired pattern matched: %+v", got)
	}
}

func TestMatch_PatternExpiringInsideTTL(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	soon := t0.Add(10 * time.Second)
	f.put(t, &feedback.IgnorePattern{
		ID: "p1", Field: "title", Type: feedback.PatternContains, Value: "noise",
		IsActive: true, ExpiresAt: &soon,
	})
	it := &feedback.Item{Title: "noise"}

	if got, _ := f.matcher.Match(ctx, it); got == nil {
		t.Fatal("pattern should match before expiry")
	}
	f.clock.Advance(20 * time.Second)
	if got, _ := f.matcher.Match(ctx, it); got != nil {
		t.Error("cached pattern matched after expiry")
	}
	if n := f.store.loads.Load(); n != 1 {
		t.Errorf("loads = %d, want 1 (still within TTL)", n)
	}
	f.matcher.Wait()
}

func TestMatch_FirstMatchWinsAndRecords(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.put(t, &feedback.IgnorePattern{ID: "bad", Field: "title", Type: feedback.PatternRegex, Value: "(", IsActive: true, CreatedAt: t0})
	f.put(t, &feedback.IgnorePattern{ID: "first", Field: "source_file", Type: feedback.PatternGlob, Value: "*_test.go", IsActive: true, CreatedAt: t0.Add(time.Second)})
	f.put(t, &feedback.IgnorePattern{ID: "second", Field: "title", Type: feedback.PatternContains, Value: "panic", IsActive: true, CreatedAt: t0.Add(2 * time.Second)})

	it := &feedback.Item{Title: "panic in handler", File: "api/handler_test.go"}
	got, err := f.matcher.Match(ctx, it)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if got == nil || got.ID != "first" {
		t.Fatalf("matched %+v, want pattern first", got)
	}

	f.matcher.Wait()
	p, _, _ := f.store.GetPattern(ctx, "first")
	if p.MatchCount != 1 || p.LastMatchAt == nil || !p.LastMatchAt.Equal(t0) {
		t.Errorf("match stats = %d, %v", p.MatchCount, p.LastMatchAt)
	}
	other, _, _ := f.store.GetPattern(ctx, "second")
	if other.MatchCount != 0 {
		t.Errorf("second pattern MatchCount = %d, want 0", other.MatchCount)
	}
}

func TestMatch_MetadataFallback(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.put(t, &feedback.IgnorePattern{ID: "env", Field: "environment", Type: feedback.PatternExact, Value: "staging", IsActive: true})

	got, _ := f.matcher.Match(context.Background(), &feedback.Item{Metadata: map[string]any{"environment": "Staging"}})
	if got == nil {
		t.Error("metadata value should be matched when no direct field exists")
	}
	got, _ = f.matcher.Match(context.Background(), &feedback.Item{Title: "x"})
	if got != nil {
		t.Error("unresolvable field matched")
	}
	f.matcher.Wait()
}

func TestMatch_RecordFailureDoesNotBlock(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.recordFail = true

	f.put(t, &feedback.IgnorePattern{ID: "p", Field: "title", Type: feedback.PatternExact, Value: "x", IsActive: true})

	got, err := f.matcher.Match(context.Background(), &feedback.Item{Title: "X"})
	if err != nil || got == nil {
		t.Fatalf("Match = %v, %v; want a match despite recording failure", got, err)
	}
	f.matcher.Wait()
}

func TestCache_TTLAndInvalidate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	for range 3 {
		if _, err := f.cache.Active(ctx); err != nil {
			t.Fatalf("Active: %v", err)
		}
	}
	if n := f.store.loads.Load(); n != 1 {
		t.Errorf("loads = %d, want 1", n)
	}

	f.clock.Advance(time.Minute)
	_, _ = f.cache.Active(ctx)
	if n := f.store.loads.Load(); n != 2 {
		t.Errorf("loads after TTL = %d, want 2", n)
	}

	f.cache.Invalidate()
	_, _ = f.cache.Active(ctx)
	if n := f.store.loads.Load(); n != 3 {
		t.Errorf("loads after Invalidate = %d, want 3", n)
	}
}

func TestManager_CreateIsVisibleImmediately(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	it := &feedback.Item{Title: "synthetic healthcheck"}
	if got, _ := f.matcher.Match(ctx, it); got != nil {
		t.Fatal("unexpected match before create")
	}

	p, err := f.manager.Create(ctx, CreateRequest{
		Field: "title", Type: "Contains", Value: "healthcheck", Reason: "probes", CreatedBy: "ops",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Type != feedback.PatternContains || !p.IsActive || p.CreatedBy != "ops" {
		t.Errorf("created pattern = %+v", p)
	}

	got, _ := f.matcher.Match(ctx, it)
	if got == nil || got.ID != p.ID {
		t.Fatalf("new pattern not used despite warm cache: %+v", got)
	}

	if err := f.manager.Deactivate(ctx, p.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if got, _ := f.matcher.Match(ctx, it); got != nil {
		t.Error("deactivated pattern still matched")
	}

	if err := f.manager.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := f.manager.Delete(ctx, p.ID); !errors.Is(err, feedback.ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
	if err := f.manager.Deactivate(ctx, "missing"); !errors.Is(err, feedback.ErrNotFound) {
		t.Errorf("Deactivate(missing) err = %v, want ErrNotFound", err)
	}
	f.matcher.Wait()
}

func TestManager_CreateRejects(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	past := t0.Add(-time.Hour)
	reqs := []CreateRequest{
		{Field: "title", Type: "regex", Value: "(("},
		{Field: "", Type: "exact", Value: "x"},
		{Field: "title", Type: "exact", Value: "x", ExpiresAt: &past},
	}
	for _, req := range reqs {
		if _, err := f.manager.Create(ctx, req); !feedback.IsValidation(err) {
			t.Errorf("Create(%+v) err = %v, want ValidationError", req, err)
		}
	}
	ps, _ := f.manager.List(ctx)
	if len(ps) != 0 {
		t.Errorf("rejected patterns were persisted: %d", len(ps))
	}
}

func TestSeed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	reqs, err := ParseSeed([]byte(`
patterns:
  - field: title
    type: contains
    value: healthcheck
    reason: synthetic probes
  - field: source_file
    type: glob
    value: "*_test.go"
    expires_in: 720h
`))
	if err != nil {
		t.Fatalf("ParseSeed: %v", err)
	}
	if len(reqs) != 2 || reqs[1].ExpiresIn != 720*time.Hour {
		t.Fatalf("parsed = %+v", reqs)
	}

	n, err := f.manager.Seed(ctx, reqs)
	if err != nil || n != 2 {
		t.Fatalf("Seed = %d, %v; want 2", n, err)
	}
	n, err = f.manager.Seed(ctx, reqs)
	if err != nil || n != 0 {
		t.Fatalf("second Seed = %d, %v; want 0", n, err)
	}

	ps, _ := f.manager.List(ctx)
	for _, p := range ps {
		if p.CreatedBy != "seed" {
			t.Errorf("CreatedBy = %q, want seed", p.CreatedBy)
		}
	}
}

func TestParseSeed_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := ParseSeed([]byte("patterns: [")); err == nil {
		t.Error("expected parse error")
	}
}

func FuzzGlobToRegexp(f *testing.F) {
	f.Add("error-*-timeout")
	f.Add("[a-z]+?(x)|y\\")
	f.Fuzz(func(t *testing.T, glob string) {
		r, err := Compile(&feedback.IgnorePattern{Type: feedback.PatternGlob, Value: glob})
		if err != nil {
			t.Fatalf("glob %q failed to compile: %v", glob, err)
		}
		// a glob without wildcards matches itself
		if !strings.ContainsAny(glob, "*?") && !r.Matches(glob) {
			t.Errorf("literal glob %q does not match itself", glob)
		}
	})
}
