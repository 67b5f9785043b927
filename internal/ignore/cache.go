package ignore

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/sift/internal/feedback"
)

// DefaultCacheTTL bounds how stale the active set may get between invalidations.
const DefaultCacheTTL = 60 * time.Second

// Cache holds the compiled active pattern set, reloading it from the store
// once the TTL passes. Concurrent reloads are coalesced into one store read.
type Cache struct {
	store  feedback.PatternStore
	ttl    time.Duration
	now    func() time.Time
	logger log.Logger

	loads singleflight.Group

	mu       sync.RWMutex
	rules    []*Rule
	loadedAt time.Time
	valid    bool
	gen      uint64
}

// NewCache returns a cache over store. ttl <= 0 uses DefaultCacheTTL and a
// nil now uses time.Now.
func NewCache(store feedback.PatternStore, ttl time.Duration, now func() time.Time, logger log.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Cache{store: store, ttl: ttl, now: now, logger: logger}
}

// Active returns the rules active at the time of the call, in store order.
// Rules whose pattern expired since the last load are filtered out here so
// a stale cache never resurrects an expired pattern.
func (c *Cache) Active(ctx context.Context) ([]*Rule, error) {
	now := c.now()

	c.mu.RLock()
	rules, fresh := c.rules, c.valid && now.Sub(c.loadedAt) < c.ttl
	c.mu.RUnlock()

	if !fresh {
		v, err, _ := c.loads.Do("active", func() (any, error) {
			return c.load(ctx)
		})
		if err != nil {
			return nil, err
		}
		rules = v.([]*Rule)
	}

	out := make([]*Rule, 0, len(rules))
	for _, r := range rules {
		if r.Pattern.ActiveAt(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *Cache) load(ctx context.Context) ([]*Rule, error) {
	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	now := c.now()
	patterns, err := c.store.ListActivePatterns(ctx, now)
	if err != nil {
		return nil, feedback.StoreFailure("list active patterns", err)
	}

	rules := make([]*Rule, 0, len(patterns))
	for _, p := range patterns {
		r, err := Compile(p)
		if err != nil {
			c.logger.Warn(ctx, "ignore pattern never matches", "pattern_id", p.ID, "error", err)
		}
		rules = append(rules, r)
	}

	c.mu.Lock()
	// an Invalidate during the read means this snapshot may already be stale
	if c.gen == gen {
		c.rules, c.loadedAt, c.valid = rules, now, true
	}
	c.mu.Unlock()
	return rules, nil
}

// Invalidate forces the next Active call to reload from the store.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
	c.gen++
	// drop an in-flight load so the next caller starts a fresh read
	c.loads.Forget("active")
}
