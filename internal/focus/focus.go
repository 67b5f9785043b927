// Package focus builds read-only working views over feedback items.
package focus

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/sift/internal/feedback"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000

	// StaleAfter is the age past which an open item counts as stale.
	StaleAfter = 7 * 24 * time.Hour

	maxAge = 100 * 365 * 24 * time.Hour
)

// View selects and orders items. Zero-valued fields do not filter.
type View struct {
	Name       string              `json:"name,omitempty"`
	Priorities []feedback.Priority `json:"priorities,omitempty"`
	Statuses   []feedback.Status   `json:"statuses,omitempty"`
	OlderThan  time.Duration       `json:"older_than,omitempty"`
	NewerThan  time.Duration       `json:"newer_than,omitempty"`
	AssignedTo string              `json:"assigned_to,omitempty"`
	Unassigned bool                `json:"unassigned,omitempty"`
	Limit      int                 `json:"limit,omitempty"`
}

// active are the statuses that still need someone's attention.
var active = []feedback.Status{
	feedback.StatusNew,
	feedback.StatusTriaged,
	feedback.StatusAssigned,
	feedback.StatusOpen,
}

var presets = map[string]View{
	"urgent": {
		Name:       "urgent",
		Priorities: []feedback.Priority{feedback.P0, feedback.P1},
		Statuses:   active,
	},
	"stale": {
		Name:      "stale",
		Statuses:  []feedback.Status{feedback.StatusTriaged, feedback.StatusAssigned, feedback.StatusOpen},
		OlderThan: StaleAfter,
	},
	"snoozed": {
		Name:     "snoozed",
		Statuses: []feedback.Status{feedback.StatusSnoozed},
	},
	"unassigned": {
		Name:       "unassigned",
		Statuses:   []feedback.Status{feedback.StatusTriaged, feedback.StatusOpen},
		Unassigned: true,
	},
}

// Presets lists the named views.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Preset returns a copy of the named view.
func Preset(name string) (View, bool) {
	v, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return View{}, false
	}
	v.Priorities = slices.Clone(v.Priorities)
	v.Statuses = slices.Clone(v.Statuses)
	return v, true
}

// ParseAge reads an item age for older_than/newer_than: "<n>d" days,
// "<n>w" weeks, or any Go duration ("30m" is thirty minutes, "36h").
// Unlike snooze lengths there is no month unit.
func ParseAge(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, errors.New("empty age")
	}
	var d time.Duration
	switch unit := s[len(s)-1]; unit {
	case 'd', 'w':
		n, err := strconv.Atoi(s[:len(s)-1])
		if err != nil {
			return 0, fmt.Errorf("age %q: %w", s, err)
		}
		per := 24 * time.Hour
		if unit == 'w' {
			per *= 7
		}
		if n > int(maxAge/per) {
			return 0, fmt.Errorf("age %q is too large", s)
		}
		d = time.Duration(n) * per
	default:
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, err
		}
	}
	if d <= 0 || d > maxAge {
		return 0, fmt.Errorf("age %q must be positive and at most %s", s, maxAge)
	}
	return d, nil
}

// Validate rejects views that can never match or are out of range.
func (v View) Validate() error {
	for _, p := range v.Priorities {
		if !p.Valid() {
			return feedback.Invalid("priority", "unknown priority %q", p)
		}
	}
	if v.OlderThan < 0 || v.NewerThan < 0 {
		return feedback.Invalid("age", "must not be negative")
	}
	if v.OlderThan > 0 && v.NewerThan > 0 && v.OlderThan >= v.NewerThan {
		return feedback.Invalid("age", "older_than %s must be less than newer_than %s", v.OlderThan, v.NewerThan)
	}
	if v.AssignedTo != "" && v.Unassigned {
		return feedback.Invalid("assigned_to", "cannot be combined with unassigned")
	}
	if v.Limit < 0 {
		return feedback.Invalid("limit", "must not be negative")
	}
	return nil
}

// Filter translates the view into a store filter at now.
func (v View) Filter(now time.Time) feedback.ItemFilter {
	f := feedback.ItemFilter{
		Statuses:   v.Statuses,
		Priorities: v.Priorities,
		AssignedTo: v.AssignedTo,
		Unassigned: v.Unassigned,
	}
	if v.OlderThan > 0 {
		f.CreatedBefore = now.Add(-v.OlderThan)
	}
	if v.NewerThan > 0 {
		f.CreatedAfter = now.Add(-v.NewerThan)
	}
	return f
}

// Builder runs views against a store.
type Builder struct {
	store feedback.ItemStore
	now   func() time.Time
}

// NewBuilder returns a Builder.
func NewBuilder(store feedback.ItemStore, now func() time.Time) *Builder {
	if store == nil {
		panic(xerrors.New("item store is required"))
	}
	if now == nil {
		now = time.Now
	}
	return &Builder{store: store, now: now}
}

// Build returns the items in v, most urgent first and oldest first within a
// priority. Items without a priority sort last.
func (b *Builder) Build(ctx context.Context, v View) ([]*feedback.Item, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	items, err := b.store.ListItems(ctx, v.Filter(b.now()))
	if err != nil {
		return nil, feedback.StoreFailure("list focus view", err)
	}
	Sort(items)

	limit := v.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Sort orders items by priority, then age, then id.
func Sort(items []*feedback.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if la, lb := rank(a.Priority), rank(b.Priority); la != lb {
			return la < lb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func rank(p feedback.Priority) int {
	if l := p.Level(); l >= 0 {
		return l
	}
	return 4
}
