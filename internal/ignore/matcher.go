package ignore

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/sift/internal/feedback"
)

// recordTimeout bounds the background match_count update.
const recordTimeout = 5 * time.Second

// Matcher tests items against the active pattern set.
type Matcher struct {
	cache  *Cache
	store  feedback.PatternStore
	logger log.Logger
	now    func() time.Time

	// OnMatch, when set, is called synchronously with every matched pattern.
	OnMatch func(p *feedback.IgnorePattern)

	pending sync.WaitGroup
}

// NewMatcher returns a Matcher reading patterns through cache and recording
// matches on store.
func NewMatcher(cache *Cache, store feedback.PatternStore, logger log.Logger, now func() time.Time) *Matcher {
	if logger == nil {
		logger = log.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &Matcher{cache: cache, store: store, logger: logger, now: now}
}

// Match returns the first active pattern it satisfies, or nil. Patterns are
// tried in (created_at, id) order. A fieldless value never matches.
//
// The match statistics are updated in the background; failures there are
// logged and never change the result.
func (m *Matcher) Match(ctx context.Context, it *feedback.Item) (*feedback.IgnorePattern, error) {
	rules, err := m.cache.Active(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range rules {
		v, ok := feedback.ResolveField(it, r.Pattern.Field)
		if !ok || !r.Matches(v) {
			continue
		}
		p := r.Pattern.Clone()
		if m.OnMatch != nil {
			m.OnMatch(p)
		}
		m.record(ctx, p.ID)
		return p, nil
	}
	return nil, nil
}

func (m *Matcher) record(ctx context.Context, id string) {
	at := m.now()
	ctx = context.WithoutCancel(ctx)
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		ctx, cancel := context.WithTimeout(ctx, recordTimeout)
		defer cancel()
		if err := m.store.RecordPatternMatch(ctx, id, at); err != nil {
			m.logger.Warn(ctx, "failed to record ignore pattern match", "pattern_id", id, "error", err)
		}
	}()
}

// Wait blocks until background match recording has finished.
func (m *Matcher) Wait() {
	m.pending.Wait()
}
