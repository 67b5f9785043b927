// Package memstore provides an in-memory implementation of feedback.Store.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/linnemanlabs/sift/internal/feedback"
)

// Store holds items, patterns and groups in memory. Suitable for dev/testing.
type Store struct {
	mu       sync.RWMutex
	items    map[string]*feedback.Item
	patterns map[string]*feedback.IgnorePattern
	groups   map[string]*feedback.BurstGroup
}

var _ feedback.Store = (*Store)(nil)

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		items:    make(map[string]*feedback.Item),
		patterns: make(map[string]*feedback.IgnorePattern),
		groups:   make(map[string]*feedback.BurstGroup),
	}
}

// GetItem retrieves an item by ID. Returns a copy.
func (s *Store) GetItem(_ context.Context, id string) (*feedback.Item, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return nil, false, nil
	}
	return it.Clone(), true, nil
}

// PutItem stores a copy of the item.
func (s *Store) PutItem(_ context.Context, it *feedback.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[it.ID] = it.Clone()
	return nil
}

// UpdateItem stores a copy of it if the stored status and group still match prev.
func (s *Store) UpdateItem(_ context.Context, it *feedback.Item, prev feedback.ItemState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[it.ID]
	if !ok {
		return feedback.ErrNotFound
	}
	if cur.State() != prev {
		return feedback.ErrConflict
	}
	next := it.Clone()
	next.OccurrenceCount = max(next.OccurrenceCount, cur.OccurrenceCount)
	s.items[it.ID] = next
	return nil
}

// ListItems returns copies of the items matching f.
func (s *Store) ListItems(_ context.Context, f feedback.ItemFilter) ([]*feedback.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*feedback.Item
	for _, it := range s.items {
		if matches(f, it) {
			out = append(out, it.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if f.Oldest {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(f feedback.ItemFilter, it *feedback.Item) bool {
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, it.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !slices.Contains(f.Priorities, it.Priority) {
		return false
	}
	if !f.CreatedAfter.IsZero() && it.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && !it.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	if f.AssignedTo != "" && it.AssignedTo != f.AssignedTo {
		return false
	}
	if f.Unassigned && it.AssignedTo != "" {
		return false
	}
	if f.Ungrouped && it.BurstGroupID != "" {
		return false
	}
	for k, want := range f.Metadata {
		got, ok := feedback.ResolveField(it, "metadata."+k)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// IncrementOccurrence bumps the occurrence count of an item.
func (s *Store) IncrementOccurrence(_ context.Context, id string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return 0, feedback.ErrNotFound
	}
	it.OccurrenceCount++
	it.UpdatedAt = at
	return it.OccurrenceCount, nil
}

// MarkGrouped moves eligible items into a group.
func (s *Store) MarkGrouped(_ context.Context, groupID string, ids []string, at time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var updated []string
	for _, id := range ids {
		it, ok := s.items[id]
		if !ok || it.BurstGroupID != "" || it.Status.Frozen() || it.Status.Terminal() {
			continue
		}
		it.Status = feedback.StatusGrouped
		it.BurstGroupID = groupID
		it.UpdatedAt = at
		updated = append(updated, id)
	}
	return updated, nil
}

// WakeSnoozed reopens snoozed items whose snooze has elapsed.
func (s *Store) WakeSnoozed(_ context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var woken []string
	for id, it := range s.items {
		if it.Status != feedback.StatusSnoozed || it.SnoozedUntil == nil || !it.SnoozedUntil.Before(now) {
			continue
		}
		it.Status = feedback.StatusOpen
		it.SnoozedUntil = nil
		it.UpdatedAt = now
		woken = append(woken, id)
	}
	sort.Strings(woken)
	return woken, nil
}

// CreatePattern stores a new ignore pattern.
func (s *Store) CreatePattern(_ context.Context, p *feedback.IgnorePattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.patterns[p.ID]; exists {
		return feedback.ErrConflict
	}
	s.patterns[p.ID] = p.Clone()
	return nil
}

// GetPattern retrieves a pattern by ID.
func (s *Store) GetPattern(_ context.Context, id string) (*feedback.IgnorePattern, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patterns[id]
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

// ListPatterns returns every pattern in creation order.
func (s *Store) ListPatterns(_ context.Context) ([]*feedback.IgnorePattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedPatterns(func(*feedback.IgnorePattern) bool { return true }), nil
}

// ListActivePatterns returns active, unexpired patterns in creation order.
func (s *Store) ListActivePatterns(_ context.Context, now time.Time) ([]*feedback.IgnorePattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedPatterns(func(p *feedback.IgnorePattern) bool { return p.ActiveAt(now) }), nil
}

func (s *Store) sortedPatterns(keep func(*feedback.IgnorePattern) bool) []*feedback.IgnorePattern {
	var out []*feedback.IgnorePattern
	for _, p := range s.patterns {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DeactivatePattern clears is_active. Returns false if the pattern does not exist.
func (s *Store) DeactivatePattern(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patterns[id]
	if !ok {
		return false, nil
	}
	p.IsActive = false
	return true, nil
}

// DeletePattern removes a pattern. Returns false if it did not exist.
func (s *Store) DeletePattern(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patterns[id]; !ok {
		return false, nil
	}
	delete(s.patterns, id)
	return true, nil
}

// RecordPatternMatch increments match_count and sets last_match_at.
func (s *Store) RecordPatternMatch(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patterns[id]
	if !ok {
		return feedback.ErrNotFound
	}
	p.MatchCount++
	t := at
	p.LastMatchAt = &t
	return nil
}

// CreateGroup stores a new burst group, enforcing one open group per fingerprint.
func (s *Store) CreateGroup(_ context.Context, g *feedback.BurstGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.groups[g.ID]; exists {
		return feedback.ErrConflict
	}
	if g.Status == feedback.GroupOpen {
		for _, other := range s.groups {
			if other.Status == feedback.GroupOpen && other.Fingerprint == g.Fingerprint {
				return feedback.ErrConflict
			}
		}
	}
	s.groups[g.ID] = g.Clone()
	return nil
}

// GetGroup retrieves a group by ID.
func (s *Store) GetGroup(_ context.Context, id string) (*feedback.BurstGroup, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, false, nil
	}
	return g.Clone(), true, nil
}

// FindOpenGroup returns the open group for a fingerprint created at or after since.
func (s *Store) FindOpenGroup(_ context.Context, fingerprint string, since time.Time) (*feedback.BurstGroup, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.groups {
		if g.Status == feedback.GroupOpen && g.Fingerprint == fingerprint && !g.CreatedAt.Before(since) {
			return g.Clone(), true, nil
		}
	}
	return nil, false, nil
}

// AppendToGroup records new members on a group.
func (s *Store) AppendToGroup(_ context.Context, groupID string, itemIDs []string, at time.Time, maxItems int) (*feedback.BurstGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, feedback.ErrNotFound
	}
	for _, id := range itemIDs {
		if slices.Contains(g.ItemIDs, id) {
			continue
		}
		g.Count++
		if maxItems <= 0 || len(g.ItemIDs) < maxItems {
			g.ItemIDs = append(g.ItemIDs, id)
		}
	}
	if at.After(g.LastSeen) {
		g.LastSeen = at
	}
	return g.Clone(), nil
}

// ListGroups returns groups with the given status (all if empty), newest first.
func (s *Store) ListGroups(_ context.Context, status feedback.GroupStatus, limit int) ([]*feedback.BurstGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*feedback.BurstGroup
	for _, g := range s.groups {
		if status == "" || g.Status == status {
			out = append(out, g.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CloseGroupsBefore closes open groups created before cutoff.
func (s *Store) CloseGroupsBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, g := range s.groups {
		if g.Status == feedback.GroupOpen && g.CreatedAt.Before(cutoff) {
			g.Status = feedback.GroupClosed
			n++
		}
	}
	return n, nil
}
