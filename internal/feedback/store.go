package feedback

import (
	"context"
	"time"
)

// ItemFilter selects items for sweeps and focus views. Zero-valued fields do not filter.
type ItemFilter struct {
	Statuses      []Status
	Priorities    []Priority
	CreatedAfter  time.Time
	CreatedBefore time.Time
	AssignedTo    string
	Unassigned    bool
	Ungrouped     bool
	// Metadata matches items whose metadata[key] equals the value (string comparison).
	Metadata map[string]string
	// Limit caps the result size; 0 means no limit.
	Limit int
	// Oldest returns items ordered by created_at ascending; otherwise newest first.
	Oldest bool
}

// ItemState is what a conditional item update is checked against: the
// fields that sweeps change behind a caller's back.
type ItemState struct {
	Status       Status
	BurstGroupID string
}

// State returns the current guard values of it.
func (it *Item) State() ItemState {
	return ItemState{Status: it.Status, BurstGroupID: it.BurstGroupID}
}

// ItemStore persists feedback items.
type ItemStore interface {
	GetItem(ctx context.Context, id string) (*Item, bool, error)
	// PutItem inserts or replaces it unconditionally. Used for new items.
	PutItem(ctx context.Context, it *Item) error
	// UpdateItem replaces the stored item only while its status and
	// burst_group_id still equal prev. It returns ErrConflict when either
	// changed since prev was read and ErrNotFound when the item is gone.
	// occurrence_count never decreases.
	UpdateItem(ctx context.Context, it *Item, prev ItemState) error
	ListItems(ctx context.Context, f ItemFilter) ([]*Item, error)

	// IncrementOccurrence bumps occurrence_count for a repeat capture and returns the new count.
	IncrementOccurrence(ctx context.Context, id string, at time.Time) (int, error)

	// MarkGrouped sets status=grouped and burst_group_id for every listed item that is
	// not already grouped or terminal. It returns the ids actually updated.
	MarkGrouped(ctx context.Context, groupID string, ids []string, at time.Time) ([]string, error)

	// WakeSnoozed moves every snoozed item whose snoozed_until is before now back to
	// open in one update and returns the ids woken.
	WakeSnoozed(ctx context.Context, now time.Time) ([]string, error)
}

// PatternStore persists ignore patterns.
type PatternStore interface {
	CreatePattern(ctx context.Context, p *IgnorePattern) error
	GetPattern(ctx context.Context, id string) (*IgnorePattern, bool, error)
	ListPatterns(ctx context.Context) ([]*IgnorePattern, error)
	// ListActivePatterns returns active, unexpired patterns ordered by created_at, id.
	ListActivePatterns(ctx context.Context, now time.Time) ([]*IgnorePattern, error)
	DeactivatePattern(ctx context.Context, id string) (bool, error)
	DeletePattern(ctx context.Context, id string) (bool, error)
	RecordPatternMatch(ctx context.Context, id string, at time.Time) error
}

// GroupStore persists burst groups.
type GroupStore interface {
	// CreateGroup inserts g. It returns ErrConflict if an open group already exists
	// for g.Fingerprint.
	CreateGroup(ctx context.Context, g *BurstGroup) error
	GetGroup(ctx context.Context, id string) (*BurstGroup, bool, error)
	// FindOpenGroup returns the open group for fingerprint created at or after since.
	FindOpenGroup(ctx context.Context, fingerprint string, since time.Time) (*BurstGroup, bool, error)
	// AppendToGroup bumps count and last_seen and records itemIDs while the list is
	// shorter than maxItems.
	AppendToGroup(ctx context.Context, groupID string, itemIDs []string, at time.Time, maxItems int) (*BurstGroup, error)
	ListGroups(ctx context.Context, status GroupStatus, limit int) ([]*BurstGroup, error)
	// CloseGroupsBefore closes open groups created before cutoff and returns how many.
	CloseGroupsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Store is the full persistence boundary of the pipeline.
type Store interface {
	ItemStore
	PatternStore
	GroupStore
}
