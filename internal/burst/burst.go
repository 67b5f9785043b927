// Package burst folds near-duplicate feedback items into burst groups.
//
// Items join an open group for their fingerprint as they arrive (Join), and a
// periodic Sweep promotes clusters of ungrouped items that reached the
// threshold inside the window. One open group exists per fingerprint; the
// store rejects a second with feedback.ErrConflict and the loser joins the
// winner instead.
package burst

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/sift/internal/feedback"
	"github.com/linnemanlabs/sift/internal/fingerprint"
)

// Config tunes grouping.
type Config struct {
	// MinOccurrences is how many same-fingerprint items inside Window form a group.
	MinOccurrences int
	// Window is the trailing interval items and open groups are considered in.
	Window time.Duration
	// MaxItems caps grouped_item_ids; Count keeps counting past it.
	MaxItems int
}

// DefaultConfig returns the conservative defaults: 3 occurrences in 5 minutes,
// at most 50 recorded ids.
func DefaultConfig() Config {
	return Config{MinOccurrences: 3, Window: 5 * time.Minute, MaxItems: 50}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinOccurrences <= 0 {
		c.MinOccurrences = d.MinOccurrences
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.MaxItems <= 0 {
		c.MaxItems = d.MaxItems
	}
	return c
}

// sweepable are the statuses a sweep may pull into a group.
var sweepable = []feedback.Status{
	feedback.StatusNew,
	feedback.StatusTriaged,
	feedback.StatusOpen,
	feedback.StatusAssigned,
}

// Hooks observe group changes, typically for metrics.
type Hooks struct {
	OnCreated func(g *feedback.BurstGroup)
	OnJoined  func(g *feedback.BurstGroup, added int)
}

// Manager creates and extends burst groups.
type Manager struct {
	store  feedback.Store
	cfg    Config
	logger log.Logger
	now    func() time.Time
	hooks  Hooks
}

// NewManager returns a Manager. Zero Config fields take their defaults.
func NewManager(store feedback.Store, cfg Config, logger log.Logger, now func() time.Time, hooks Hooks) *Manager {
	if store == nil {
		panic(xerrors.New("store is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{store: store, cfg: cfg.withDefaults(), logger: logger, now: now, hooks: hooks}
}

// Config returns the effective configuration.
func (m *Manager) Config() Config { return m.cfg }

// Join adds it to the open group for its fingerprint, if one was created
// inside the window. On success it sets it.Status and it.BurstGroupID and
// returns the updated group; the caller persists the item. A nil group means
// there was nothing to join.
func (m *Manager) Join(ctx context.Context, it *feedback.Item) (*feedback.BurstGroup, error) {
	if it.BurstGroupID != "" || it.Status.Frozen() || it.Status.Terminal() {
		return nil, nil
	}
	fp := fingerprint.ForItem(it)
	if fingerprint.IsEmpty(fp) {
		return nil, nil
	}

	now := m.now()
	g, ok, err := m.store.FindOpenGroup(ctx, fp, now.Add(-m.cfg.Window))
	if err != nil {
		return nil, feedback.StoreFailure("find open group", err)
	}
	if !ok {
		return nil, nil
	}

	g, err = m.store.AppendToGroup(ctx, g.ID, []string{it.ID}, now, m.cfg.MaxItems)
	if err != nil {
		return nil, feedback.StoreFailure("append to group", err)
	}
	it.Status = feedback.StatusGrouped
	it.BurstGroupID = g.ID
	it.UpdatedAt = now

	if m.hooks.OnJoined != nil {
		m.hooks.OnJoined(g, 1)
	}
	return g, nil
}

// SweepResult counts what a sweep changed.
type SweepResult struct {
	Closed   int `json:"closed"`
	Created  int `json:"created"`
	Extended int `json:"extended"`
	Grouped  int `json:"grouped"`
}

// Affected is the number of groups created or extended.
func (r SweepResult) Affected() int { return r.Created + r.Extended }

// Sweep closes groups that fell out of the window, then buckets the
// ungrouped items of the trailing window by fingerprint. A bucket joins the
// open group for its fingerprint if there is one; otherwise it becomes a new
// P1 group once it reaches MinOccurrences. Safe to run concurrently with Join
// and with itself.
func (m *Manager) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := m.now()
	cutoff := now.Add(-m.cfg.Window)

	closed, err := m.store.CloseGroupsBefore(ctx, cutoff)
	if err != nil {
		return res, feedback.StoreFailure("close groups", err)
	}
	res.Closed = closed

	items, err := m.store.ListItems(ctx, feedback.ItemFilter{
		Statuses:     sweepable,
		CreatedAfter: cutoff,
		Ungrouped:    true,
		Oldest:       true,
	})
	if err != nil {
		return res, feedback.StoreFailure("list ungrouped items", err)
	}

	buckets := make(map[string][]*feedback.Item)
	var order []string
	for _, it := range items {
		fp := fingerprint.ForItem(it)
		if fingerprint.IsEmpty(fp) {
			continue
		}
		if _, seen := buckets[fp]; !seen {
			order = append(order, fp)
		}
		buckets[fp] = append(buckets[fp], it)
	}

	var errs []error
	for _, fp := range order {
		members := buckets[fp]
		grouped, created, err := m.promote(ctx, fp, members, cutoff, now)
		if err != nil {
			m.logger.Error(ctx, err, "burst promotion failed", "fingerprint", fp, "members", len(members))
			errs = append(errs, err)
			continue
		}
		if grouped == 0 {
			continue
		}
		res.Grouped += grouped
		if created {
			res.Created++
		} else {
			res.Extended++
		}
	}

	if res.Affected() > 0 || res.Closed > 0 {
		m.logger.Info(ctx, "burst sweep complete",
			"created", res.Created,
			"extended", res.Extended,
			"grouped", res.Grouped,
			"closed", res.Closed,
		)
	}
	return res, errors.Join(errs...)
}

// promote moves members into the open group for fp, creating it when the
// bucket is large enough. It returns how many items were grouped and whether
// a new group was created.
func (m *Manager) promote(ctx context.Context, fp string, members []*feedback.Item, cutoff, now time.Time) (int, bool, error) {
	g, ok, err := m.store.FindOpenGroup(ctx, fp, cutoff)
	if err != nil {
		return 0, false, feedback.StoreFailure("find open group", err)
	}

	created := false
	if !ok {
		if len(members) < m.cfg.MinOccurrences {
			return 0, false, nil
		}
		g, created, err = m.create(ctx, fp, members, now)
		if err != nil {
			return 0, false, err
		}
	}

	ids := make([]string, len(members))
	for i, it := range members {
		ids[i] = it.ID
	}
	moved, err := m.store.MarkGrouped(ctx, g.ID, ids, now)
	if err != nil {
		return 0, created, feedback.StoreFailure("mark grouped", err)
	}
	if len(moved) == 0 {
		return 0, created, nil
	}
	// keep arrival order for grouped_item_ids
	slices.SortStableFunc(moved, func(a, b string) int {
		return slices.Index(ids, a) - slices.Index(ids, b)
	})

	g, err = m.store.AppendToGroup(ctx, g.ID, moved, members[len(members)-1].CreatedAt, m.cfg.MaxItems)
	if err != nil {
		return 0, created, feedback.StoreFailure("append to group", err)
	}

	if created {
		m.logger.Info(ctx, "burst group created", "group_id", g.ID, "fingerprint", fp, "count", g.Count)
		if m.hooks.OnCreated != nil {
			m.hooks.OnCreated(g)
		}
	} else if m.hooks.OnJoined != nil {
		m.hooks.OnJoined(g, len(moved))
	}
	return len(moved), created, nil
}

// create inserts an empty open group for fp. If another writer won the race
// the existing open group is returned with created=false.
func (m *Manager) create(ctx context.Context, fp string, members []*feedback.Item, now time.Time) (*feedback.BurstGroup, bool, error) {
	first := members[0]
	g := &feedback.BurstGroup{
		ID:               ulid.Make().String(),
		Fingerprint:      fp,
		FirstSeen:        first.CreatedAt,
		LastSeen:         first.CreatedAt,
		ItemIDs:          []string{},
		RepresentativeID: first.ID,
		Priority:         feedback.P1,
		Status:           feedback.GroupOpen,
		CreatedAt:        now,
	}
	err := m.store.CreateGroup(ctx, g)
	if err == nil {
		return g, true, nil
	}
	if !errors.Is(err, feedback.ErrConflict) {
		return nil, false, feedback.StoreFailure("create group", err)
	}

	winner, ok, ferr := m.store.FindOpenGroup(ctx, fp, time.Time{})
	if ferr != nil {
		return nil, false, feedback.StoreFailure("find open group", ferr)
	}
	if !ok {
		return nil, false, fmt.Errorf("open group for %q conflicted but is gone: %w", fp, feedback.ErrConflict)
	}
	m.logger.Info(ctx, "burst group already open, joining", "group_id", winner.ID, "fingerprint", fp)
	return winner, false, nil
}

// Group returns a group by id.
func (m *Manager) Group(ctx context.Context, id string) (*feedback.BurstGroup, bool, error) {
	g, ok, err := m.store.GetGroup(ctx, id)
	if err != nil {
		return nil, false, feedback.StoreFailure("get group", err)
	}
	return g, ok, nil
}

// Groups lists groups with the given status (all if empty), newest first.
func (m *Manager) Groups(ctx context.Context, status feedback.GroupStatus, limit int) ([]*feedback.BurstGroup, error) {
	gs, err := m.store.ListGroups(ctx, status, limit)
	if err != nil {
		return nil, feedback.StoreFailure("list groups", err)
	}
	return gs, nil
}
