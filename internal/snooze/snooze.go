package snooze

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/sift/internal/feedback"
)

// Manager snoozes and wakes items.
type Manager struct {
	store  feedback.ItemStore
	logger log.Logger
	now    func() time.Time
}

// NewManager returns a Manager over store. now may be nil to use time.Now.
func NewManager(store feedback.ItemStore, logger log.Logger, now func() time.Time) *Manager {
	if store == nil {
		panic(xerrors.New("item store is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{store: store, logger: logger, now: now}
}

// Request asks for an item to be snoozed. Duration is parsed with
// ParseDuration; For, when positive, is used instead.
type Request struct {
	Duration string
	For      time.Duration
	By       string
	Reason   string
}

// Snooze hides an item until now + the requested duration. Snoozing an
// already snoozed item moves its wake time.
func (m *Manager) Snooze(ctx context.Context, id string, req Request) (*feedback.Item, error) {
	var (
		d   time.Duration
		err error
	)
	if req.For > 0 {
		d, err = Validate(req.For)
	} else {
		d, err = ParseDuration(req.Duration)
	}
	if err != nil {
		return nil, err
	}

	it, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.Status.Frozen() || it.Status.Terminal() {
		return nil, fmt.Errorf("snooze %s item: %w", it.Status, feedback.ErrInvalidTransition)
	}

	prev := it.State()
	now := m.now()
	until := now.Add(d)
	it.Status = feedback.StatusSnoozed
	it.SnoozedUntil = &until
	it.SnoozedBy = req.By
	it.SnoozeReason = req.Reason
	it.UpdatedAt = now

	if err := m.update(ctx, it, prev); err != nil {
		return nil, err
	}
	m.logger.Info(ctx, "item snoozed", "item_id", id, "until", until, "by", req.By)
	return it, nil
}

// Wake reopens a snoozed item ahead of its wake time. Waking an item that
// is not snoozed returns it unchanged.
func (m *Manager) Wake(ctx context.Context, id string) (*feedback.Item, error) {
	it, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.Status != feedback.StatusSnoozed {
		return it, nil
	}

	prev := it.State()
	it.Status = feedback.StatusOpen
	it.SnoozedUntil = nil
	it.SnoozedBy = ""
	it.SnoozeReason = ""
	it.UpdatedAt = m.now()

	if err := m.update(ctx, it, prev); err != nil {
		return nil, err
	}
	m.logger.Info(ctx, "item woken", "item_id", id)
	return it, nil
}

// WakeExpired reopens every snoozed item whose wake time has passed and
// returns how many were woken. Repeated calls are no-ops for woken items.
func (m *Manager) WakeExpired(ctx context.Context) (int, error) {
	ids, err := m.store.WakeSnoozed(ctx, m.now())
	if err != nil {
		return 0, feedback.StoreFailure("wake snoozed", err)
	}
	if len(ids) > 0 {
		m.logger.Info(ctx, "snoozed items woken", "count", len(ids))
	}
	return len(ids), nil
}

func (m *Manager) load(ctx context.Context, id string) (*feedback.Item, error) {
	it, ok, err := m.store.GetItem(ctx, id)
	if err != nil {
		return nil, feedback.StoreFailure("get item", err)
	}
	if !ok {
		return nil, feedback.ErrNotFound
	}
	return it, nil
}

// update writes it back unless a concurrent change moved it since it was
// loaded; that case surfaces as feedback.ErrConflict.
func (m *Manager) update(ctx context.Context, it *feedback.Item, prev feedback.ItemState) error {
	err := m.store.UpdateItem(ctx, it, prev)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, feedback.ErrConflict):
		return fmt.Errorf("item %s changed concurrently: %w", it.ID, feedback.ErrConflict)
	case errors.Is(err, feedback.ErrNotFound):
		return feedback.ErrNotFound
	}
	return feedback.StoreFailure("update item", err)
}
