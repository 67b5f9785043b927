package ignore

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/sift/internal/feedback"
)

// CreateRequest describes a new ignore pattern.
type CreateRequest struct {
	Field     string               `json:"field" yaml:"field"`
	Type      feedback.PatternType `json:"pattern_type" yaml:"type"`
	Value     string               `json:"pattern_value" yaml:"value"`
	Reason    string               `json:"reason,omitempty" yaml:"reason"`
	ExpiresAt *time.Time           `json:"expires_at,omitempty" yaml:"expires_at"`
	// ExpiresIn is relative to creation and wins over ExpiresAt when both are set.
	ExpiresIn time.Duration `json:"-" yaml:"expires_in"`
	CreatedBy string        `json:"-" yaml:"created_by"`
}

// Manager owns the lifecycle of ignore patterns and keeps the cache in step
// with every change.
type Manager struct {
	store  feedback.PatternStore
	cache  *Cache
	logger log.Logger
	now    func() time.Time
}

// NewManager returns a Manager. cache is invalidated after each mutation.
func NewManager(store feedback.PatternStore, cache *Cache, logger log.Logger, now func() time.Time) *Manager {
	if store == nil {
		panic(xerrors.New("pattern store is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{store: store, cache: cache, logger: logger, now: now}
}

// Create validates and stores a new active pattern.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*feedback.IgnorePattern, error) {
	now := m.now()
	p := &feedback.IgnorePattern{
		ID:        ulid.Make().String(),
		Field:     strings.TrimSpace(req.Field),
		Type:      feedback.PatternType(strings.ToLower(strings.TrimSpace(string(req.Type)))),
		Value:     req.Value,
		Reason:    req.Reason,
		ExpiresAt: req.ExpiresAt,
		IsActive:  true,
		CreatedBy: req.CreatedBy,
		CreatedAt: now,
	}
	if req.ExpiresIn > 0 {
		at := now.Add(req.ExpiresIn)
		p.ExpiresAt = &at
	}
	if err := Validate(p); err != nil {
		return nil, err
	}
	if p.ExpiresAt != nil && !p.ExpiresAt.After(now) {
		return nil, feedback.Invalid("expires_at", "must be in the future")
	}

	if err := m.store.CreatePattern(ctx, p); err != nil {
		return nil, feedback.StoreFailure("create pattern", err)
	}
	m.invalidate()

	m.logger.Info(ctx, "ignore pattern created",
		"pattern_id", p.ID,
		"field", p.Field,
		"pattern_type", p.Type,
		"created_by", p.CreatedBy,
	)
	return p, nil
}

// Get returns a pattern by id.
func (m *Manager) Get(ctx context.Context, id string) (*feedback.IgnorePattern, bool, error) {
	p, ok, err := m.store.GetPattern(ctx, id)
	if err != nil {
		return nil, false, feedback.StoreFailure("get pattern", err)
	}
	return p, ok, nil
}

// List returns all patterns, active or not.
func (m *Manager) List(ctx context.Context) ([]*feedback.IgnorePattern, error) {
	ps, err := m.store.ListPatterns(ctx)
	if err != nil {
		return nil, feedback.StoreFailure("list patterns", err)
	}
	return ps, nil
}

// Deactivate stops a pattern from matching but keeps its history.
func (m *Manager) Deactivate(ctx context.Context, id string) error {
	ok, err := m.store.DeactivatePattern(ctx, id)
	if err != nil {
		return feedback.StoreFailure("deactivate pattern", err)
	}
	if !ok {
		return feedback.ErrNotFound
	}
	m.invalidate()
	m.logger.Info(ctx, "ignore pattern deactivated", "pattern_id", id)
	return nil
}

// Delete removes a pattern.
func (m *Manager) Delete(ctx context.Context, id string) error {
	ok, err := m.store.DeletePattern(ctx, id)
	if err != nil {
		return feedback.StoreFailure("delete pattern", err)
	}
	if !ok {
		return feedback.ErrNotFound
	}
	m.invalidate()
	m.logger.Info(ctx, "ignore pattern deleted", "pattern_id", id)
	return nil
}

func (m *Manager) invalidate() {
	if m.cache != nil {
		m.cache.Invalidate()
	}
}
