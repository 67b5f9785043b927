package fingerprint

import (
	"sync"
	"time"
)

// DefaultDedupWindow is how long a raw capture is treated as a repeat.
const DefaultDedupWindow = 5 * time.Minute

type dedupEntry struct {
	itemID  string
	expires time.Time
}

// DedupCache remembers which item a dedup key produced for a short window.
// It is process-local and safe for concurrent use; a stale or evicted entry
// only costs an extra persisted duplicate.
type DedupCache struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	entries map[string]dedupEntry
	puts    int
}

// sweepEvery bounds how many Puts happen between full expiry sweeps.
const sweepEvery = 256

// NewDedupCache returns a cache with the given window (DefaultDedupWindow if
// <= 0). now may be nil to use time.Now.
func NewDedupCache(window time.Duration, now func() time.Time) *DedupCache {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	if now == nil {
		now = time.Now
	}
	return &DedupCache{window: window, now: now, entries: make(map[string]dedupEntry)}
}

// Lookup returns the item id recorded for key if it is still inside the window.
func (c *DedupCache) Lookup(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return "", false
	}
	return e.itemID, true
}

// Put records key → itemID, restarting the window.
func (c *DedupCache) Put(key, itemID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.entries[key] = dedupEntry{itemID: itemID, expires: now.Add(c.window)}
	if c.puts++; c.puts%sweepEvery == 0 {
		c.evictLocked(now)
	}
}

// Forget drops key, e.g. when the item it points to no longer exists.
func (c *DedupCache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of entries, expired ones included until evicted.
func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Evict drops every expired entry and returns how many were removed.
func (c *DedupCache) Evict() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictLocked(c.now())
}

func (c *DedupCache) evictLocked(now time.Time) int {
	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}
