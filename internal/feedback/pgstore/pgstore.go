// Package pgstore provides a PostgreSQL implementation of feedback.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/sift/internal/feedback"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sift/internal/feedback/pgstore")

//go:embed schema.sql
var schema string

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Store persists feedback items, ignore patterns and burst groups in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ feedback.Store = (*Store)(nil)

// New applies the schema on the given pool and returns a ready Store.
// The caller owns the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "pgstore."+name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

// fail records err on the span and wraps it as a feedback.StoreError.
func fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return feedback.StoreFailure(op, err)
}

const itemColumns = `id, type, title, description, severity, value_estimate, effort_estimate,
	source_type, error_category, source_application, source_file, metadata,
	priority, priority_reasoning, status, occurrence_count, burst_group_id, assigned_to,
	snoozed_until, snoozed_by, snooze_reason, suggestion, triage_actions, triaged_at,
	created_at, updated_at`

// GetItem retrieves a feedback item by ID.
func (s *Store) GetItem(ctx context.Context, id string) (*feedback.Item, bool, error) {
	ctx, span := startSpan(ctx, "GetItem", "SELECT")
	defer span.End()

	it, err := scanItem(s.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM feedback_items WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fail(span, "get item", err)
	}
	return it, true, nil
}

// itemArgs returns the values of it in itemColumns order.
func itemArgs(it *feedback.Item) ([]any, error) {
	metadata := it.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	var suggestionJSON, actionsJSON []byte
	if it.Suggestion != nil {
		if suggestionJSON, err = json.Marshal(it.Suggestion); err != nil {
			return nil, fmt.Errorf("marshal suggestion: %w", err)
		}
	}
	if it.TriageActions != nil {
		if actionsJSON, err = json.Marshal(it.TriageActions); err != nil {
			return nil, fmt.Errorf("marshal actions: %w", err)
		}
	}
	return []any{
		it.ID, string(it.Type), it.Title, it.Description, string(it.Severity), it.Value, it.Effort,
		it.SourceType, it.Category, it.Application, it.File, metadataJSON,
		string(it.Priority), it.PriorityReasoning, string(it.Status), it.OccurrenceCount, it.BurstGroupID, it.AssignedTo,
		it.SnoozedUntil, it.SnoozedBy, it.SnoozeReason, suggestionJSON, actionsJSON, it.TriagedAt,
		it.CreatedAt, it.UpdatedAt,
	}, nil
}

// PutItem inserts or updates a feedback item.
func (s *Store) PutItem(ctx context.Context, it *feedback.Item) error {
	ctx, span := startSpan(ctx, "PutItem", "UPSERT")
	defer span.End()

	args, err := itemArgs(it)
	if err != nil {
		return fail(span, "put item", err)
	}

	query := `INSERT INTO feedback_items (` + itemColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,NULLIF($17,''),$18,$19,$20,$21,$22,$23,$24,$25,$26)
	ON CONFLICT (id) DO UPDATE SET
		type               = EXCLUDED.type,
		title              = EXCLUDED.title,
		description        = EXCLUDED.description,
		severity           = EXCLUDED.severity,
		value_estimate     = EXCLUDED.value_estimate,
		effort_estimate    = EXCLUDED.effort_estimate,
		source_type        = EXCLUDED.source_type,
		error_category     = EXCLUDED.error_category,
		source_application = EXCLUDED.source_application,
		source_file        = EXCLUDED.source_file,
		metadata           = EXCLUDED.metadata,
		priority           = EXCLUDED.priority,
		priority_reasoning = EXCLUDED.priority_reasoning,
		status             = EXCLUDED.status,
		occurrence_count   = GREATEST(feedback_items.occurrence_count, EXCLUDED.occurrence_count),
		burst_group_id     = EXCLUDED.burst_group_id,
		assigned_to        = EXCLUDED.assigned_to,
		snoozed_until      = EXCLUDED.snoozed_until,
		snoozed_by         = EXCLUDED.snoozed_by,
		snooze_reason      = EXCLUDED.snooze_reason,
		suggestion         = EXCLUDED.suggestion,
		triage_actions     = EXCLUDED.triage_actions,
		triaged_at         = EXCLUDED.triaged_at,
		updated_at         = EXCLUDED.updated_at`

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fail(span, "put item", fmt.Errorf("upsert item: %w", err))
	}
	return nil
}

// UpdateItem writes it back only while status and burst_group_id still hold
// the values in prev. created_at is rewritten with its own value.
func (s *Store) UpdateItem(ctx context.Context, it *feedback.Item, prev feedback.ItemState) error {
	ctx, span := startSpan(ctx, "UpdateItem", "UPDATE")
	defer span.End()

	args, err := itemArgs(it)
	if err != nil {
		return fail(span, "update item", err)
	}
	args = append(args, string(prev.Status), prev.BurstGroupID)

	query := `UPDATE feedback_items SET
		type               = $2,
		title              = $3,
		description        = $4,
		severity           = $5,
		value_estimate     = $6,
		effort_estimate    = $7,
		source_type        = $8,
		error_category     = $9,
		source_application = $10,
		source_file        = $11,
		metadata           = $12,
		priority           = $13,
		priority_reasoning = $14,
		status             = $15,
		occurrence_count   = GREATEST(occurrence_count, $16),
		burst_group_id     = NULLIF($17, ''),
		assigned_to        = $18,
		snoozed_until      = $19,
		snoozed_by         = $20,
		snooze_reason      = $21,
		suggestion         = $22,
		triage_actions     = $23,
		triaged_at         = $24,
		created_at         = $25,
		updated_at         = $26
	WHERE id = $1 AND status = $27 AND burst_group_id IS NOT DISTINCT FROM NULLIF($28, '')`

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fail(span, "update item", fmt.Errorf("update item: %w", err))
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM feedback_items WHERE id = $1)`, it.ID).Scan(&exists); err != nil {
		return fail(span, "update item", err)
	}
	if !exists {
		return feedback.ErrNotFound
	}
	span.SetAttributes(attribute.Bool("sift.conflict", true))
	return feedback.ErrConflict
}

// ListItems returns items matching f.
func (s *Store) ListItems(ctx context.Context, f feedback.ItemFilter) ([]*feedback.Item, error) {
	ctx, span := startSpan(ctx, "ListItems", "SELECT")
	defer span.End()

	query, args := buildItemQuery(f)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fail(span, "list items", err)
	}
	defer rows.Close()

	var out []*feedback.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fail(span, "list items", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, "list items", fmt.Errorf("iterate items: %w", err))
	}
	span.SetAttributes(attribute.Int("db.rows", len(out)))
	return out, nil
}

// buildItemQuery renders f as a parameterised SELECT.
func buildItemQuery(f feedback.ItemFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.Statuses) > 0 {
		ss := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			ss[i] = string(st)
		}
		where = append(where, "status = ANY("+arg(ss)+")")
	}
	if len(f.Priorities) > 0 {
		ps := make([]string, len(f.Priorities))
		for i, p := range f.Priorities {
			ps[i] = string(p)
		}
		where = append(where, "priority = ANY("+arg(ps)+")")
	}
	if !f.CreatedAfter.IsZero() {
		where = append(where, "created_at >= "+arg(f.CreatedAfter))
	}
	if !f.CreatedBefore.IsZero() {
		where = append(where, "created_at < "+arg(f.CreatedBefore))
	}
	if f.AssignedTo != "" {
		where = append(where, "assigned_to = "+arg(f.AssignedTo))
	}
	if f.Unassigned {
		where = append(where, "assigned_to = ''")
	}
	if f.Ungrouped {
		where = append(where, "burst_group_id IS NULL")
	}
	keys := make([]string, 0, len(f.Metadata))
	for k := range f.Metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		where = append(where, "metadata->>"+arg(k)+" = "+arg(f.Metadata[k]))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + itemColumns + ` FROM feedback_items`)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if f.Oldest {
		b.WriteString(" ORDER BY created_at ASC, id ASC")
	} else {
		b.WriteString(" ORDER BY created_at DESC, id ASC")
	}
	if f.Limit > 0 {
		b.WriteString(" LIMIT " + arg(f.Limit))
	}
	return b.String(), args
}

// IncrementOccurrence bumps occurrence_count atomically.
func (s *Store) IncrementOccurrence(ctx context.Context, id string, at time.Time) (int, error) {
	ctx, span := startSpan(ctx, "IncrementOccurrence", "UPDATE")
	defer span.End()

	var n int
	err := s.pool.QueryRow(ctx,
		`UPDATE feedback_items SET occurrence_count = occurrence_count + 1, updated_at = $2
		 WHERE id = $1 RETURNING occurrence_count`, id, at,
	).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, feedback.ErrNotFound
		}
		return 0, fail(span, "increment occurrence", err)
	}
	return n, nil
}

// MarkGrouped moves eligible items into a group with a single conditional update.
func (s *Store) MarkGrouped(ctx context.Context, groupID string, ids []string, at time.Time) ([]string, error) {
	ctx, span := startSpan(ctx, "MarkGrouped", "UPDATE")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`UPDATE feedback_items SET status = 'grouped', burst_group_id = $1, updated_at = $2
		 WHERE id = ANY($3) AND burst_group_id IS NULL
		   AND status NOT IN ('grouped', 'ignored', 'resolved', 'closed')
		 RETURNING id`, groupID, at, ids,
	)
	if err != nil {
		return nil, fail(span, "mark grouped", err)
	}
	updated, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fail(span, "mark grouped", err)
	}
	slices.Sort(updated)
	return updated, nil
}

// WakeSnoozed reopens elapsed snoozes in one update.
func (s *Store) WakeSnoozed(ctx context.Context, now time.Time) ([]string, error) {
	ctx, span := startSpan(ctx, "WakeSnoozed", "UPDATE")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`UPDATE feedback_items SET status = 'open', snoozed_until = NULL, updated_at = $1
		 WHERE status = 'snoozed' AND snoozed_until < $1
		 RETURNING id`, now,
	)
	if err != nil {
		return nil, fail(span, "wake snoozed", err)
	}
	woken, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fail(span, "wake snoozed", err)
	}
	slices.Sort(woken)
	span.SetAttributes(attribute.Int("db.rows", len(woken)))
	return woken, nil
}

func scanItem(row pgx.Row) (*feedback.Item, error) {
	var (
		it             feedback.Item
		typ, severity  string
		priority       string
		status         string
		metadataJSON   []byte
		groupID        *string
		suggestionJSON []byte
		actionsJSON    []byte
	)
	err := row.Scan(
		&it.ID, &typ, &it.Title, &it.Description, &severity, &it.Value, &it.Effort,
		&it.SourceType, &it.Category, &it.Application, &it.File, &metadataJSON,
		&priority, &it.PriorityReasoning, &status, &it.OccurrenceCount, &groupID, &it.AssignedTo,
		&it.SnoozedUntil, &it.SnoozedBy, &it.SnoozeReason, &suggestionJSON, &actionsJSON, &it.TriagedAt,
		&it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	it.Type = feedback.Type(typ)
	it.Severity = feedback.Severity(severity)
	it.Priority = feedback.Priority(priority)
	it.Status = feedback.Status(status)
	if groupID != nil {
		it.BurstGroupID = *groupID
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &it.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
		if len(it.Metadata) == 0 {
			it.Metadata = nil
		}
	}
	if len(suggestionJSON) > 0 {
		it.Suggestion = &feedback.Suggestion{}
		if err := json.Unmarshal(suggestionJSON, it.Suggestion); err != nil {
			return nil, fmt.Errorf("unmarshal suggestion: %w", err)
		}
	}
	if len(actionsJSON) > 0 {
		if err := json.Unmarshal(actionsJSON, &it.TriageActions); err != nil {
			return nil, fmt.Errorf("unmarshal actions: %w", err)
		}
	}
	return &it, nil
}

const patternColumns = `id, field, pattern_type, pattern_value, reason, expires_at,
	is_active, match_count, last_match_at, created_by, created_at`

// CreatePattern inserts a new ignore pattern.
func (s *Store) CreatePattern(ctx context.Context, p *feedback.IgnorePattern) error {
	ctx, span := startSpan(ctx, "CreatePattern", "INSERT")
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO ignore_patterns (`+patternColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.Field, string(p.Type), p.Value, p.Reason, p.ExpiresAt,
		p.IsActive, p.MatchCount, p.LastMatchAt, p.CreatedBy, p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return feedback.ErrConflict
		}
		return fail(span, "create pattern", err)
	}
	return nil
}

// GetPattern retrieves a pattern by ID.
func (s *Store) GetPattern(ctx context.Context, id string) (*feedback.IgnorePattern, bool, error) {
	ctx, span := startSpan(ctx, "GetPattern", "SELECT")
	defer span.End()

	p, err := scanPattern(s.pool.QueryRow(ctx, `SELECT `+patternColumns+` FROM ignore_patterns WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fail(span, "get pattern", err)
	}
	return p, true, nil
}

// ListPatterns returns every pattern in creation order.
func (s *Store) ListPatterns(ctx context.Context) ([]*feedback.IgnorePattern, error) {
	ctx, span := startSpan(ctx, "ListPatterns", "SELECT")
	defer span.End()

	out, err := s.queryPatterns(ctx, `SELECT `+patternColumns+` FROM ignore_patterns ORDER BY created_at, id`)
	if err != nil {
		return nil, fail(span, "list patterns", err)
	}
	return out, nil
}

// ListActivePatterns returns active, unexpired patterns in creation order.
func (s *Store) ListActivePatterns(ctx context.Context, now time.Time) ([]*feedback.IgnorePattern, error) {
	ctx, span := startSpan(ctx, "ListActivePatterns", "SELECT")
	defer span.End()

	out, err := s.queryPatterns(ctx,
		`SELECT `+patternColumns+` FROM ignore_patterns
		 WHERE is_active AND (expires_at IS NULL OR expires_at > $1)
		 ORDER BY created_at, id`, now)
	if err != nil {
		return nil, fail(span, "list active patterns", err)
	}
	return out, nil
}

func (s *Store) queryPatterns(ctx context.Context, query string, args ...any) ([]*feedback.IgnorePattern, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*feedback.IgnorePattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeactivatePattern clears is_active.
func (s *Store) DeactivatePattern(ctx context.Context, id string) (bool, error) {
	ctx, span := startSpan(ctx, "DeactivatePattern", "UPDATE")
	defer span.End()

	tag, err := s.pool.Exec(ctx, `UPDATE ignore_patterns SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return false, fail(span, "deactivate pattern", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeletePattern removes a pattern.
func (s *Store) DeletePattern(ctx context.Context, id string) (bool, error) {
	ctx, span := startSpan(ctx, "DeletePattern", "DELETE")
	defer span.End()

	tag, err := s.pool.Exec(ctx, `DELETE FROM ignore_patterns WHERE id = $1`, id)
	if err != nil {
		return false, fail(span, "delete pattern", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RecordPatternMatch increments match_count and stamps last_match_at.
func (s *Store) RecordPatternMatch(ctx context.Context, id string, at time.Time) error {
	ctx, span := startSpan(ctx, "RecordPatternMatch", "UPDATE")
	defer span.End()

	tag, err := s.pool.Exec(ctx,
		`UPDATE ignore_patterns SET match_count = match_count + 1, last_match_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fail(span, "record pattern match", err)
	}
	if tag.RowsAffected() == 0 {
		return feedback.ErrNotFound
	}
	return nil
}

func scanPattern(row pgx.Row) (*feedback.IgnorePattern, error) {
	var (
		p   feedback.IgnorePattern
		typ string
	)
	err := row.Scan(&p.ID, &p.Field, &typ, &p.Value, &p.Reason, &p.ExpiresAt,
		&p.IsActive, &p.MatchCount, &p.LastMatchAt, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Type = feedback.PatternType(typ)
	return &p, nil
}

const groupColumns = `id, fingerprint, count, first_seen, last_seen, item_ids,
	representative_id, priority, status, created_at`

// CreateGroup inserts a burst group. The partial unique index on open
// fingerprints turns a concurrent duplicate into feedback.ErrConflict.
func (s *Store) CreateGroup(ctx context.Context, g *feedback.BurstGroup) error {
	ctx, span := startSpan(ctx, "CreateGroup", "INSERT")
	defer span.End()

	ids := g.ItemIDs
	if ids == nil {
		ids = []string{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO burst_groups (`+groupColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		g.ID, g.Fingerprint, g.Count, g.FirstSeen, g.LastSeen, ids,
		g.RepresentativeID, string(g.Priority), string(g.Status), g.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return feedback.ErrConflict
		}
		return fail(span, "create group", err)
	}
	return nil
}

// GetGroup retrieves a burst group by ID.
func (s *Store) GetGroup(ctx context.Context, id string) (*feedback.BurstGroup, bool, error) {
	ctx, span := startSpan(ctx, "GetGroup", "SELECT")
	defer span.End()

	g, err := scanGroup(s.pool.QueryRow(ctx, `SELECT `+groupColumns+` FROM burst_groups WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fail(span, "get group", err)
	}
	return g, true, nil
}

// FindOpenGroup returns the open group for fingerprint created at or after since.
func (s *Store) FindOpenGroup(ctx context.Context, fingerprint string, since time.Time) (*feedback.BurstGroup, bool, error) {
	ctx, span := startSpan(ctx, "FindOpenGroup", "SELECT")
	defer span.End()

	g, err := scanGroup(s.pool.QueryRow(ctx,
		`SELECT `+groupColumns+` FROM burst_groups
		 WHERE fingerprint = $1 AND status = 'open' AND created_at >= $2
		 ORDER BY created_at DESC LIMIT 1`, fingerprint, since))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fail(span, "find open group", err)
	}
	return g, true, nil
}

// AppendToGroup records new members under a row lock so concurrent joins do not lose counts.
func (s *Store) AppendToGroup(ctx context.Context, groupID string, itemIDs []string, at time.Time, maxItems int) (*feedback.BurstGroup, error) {
	ctx, span := startSpan(ctx, "AppendToGroup", "UPDATE")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fail(span, "append to group", fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	g, err := scanGroup(tx.QueryRow(ctx, `SELECT `+groupColumns+` FROM burst_groups WHERE id = $1 FOR UPDATE`, groupID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, feedback.ErrNotFound
		}
		return nil, fail(span, "append to group", err)
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

	if _, err := tx.Exec(ctx,
		`UPDATE burst_groups SET count = $2, item_ids = $3, last_seen = $4 WHERE id = $1`,
		g.ID, g.Count, g.ItemIDs, g.LastSeen,
	); err != nil {
		return nil, fail(span, "append to group", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fail(span, "append to group", fmt.Errorf("commit: %w", err))
	}
	return g, nil
}

// ListGroups returns groups with the given status (all if empty), newest first.
func (s *Store) ListGroups(ctx context.Context, status feedback.GroupStatus, limit int) ([]*feedback.BurstGroup, error) {
	ctx, span := startSpan(ctx, "ListGroups", "SELECT")
	defer span.End()

	query := `SELECT ` + groupColumns + ` FROM burst_groups WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC, id`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fail(span, "list groups", err)
	}
	defer rows.Close()

	var out []*feedback.BurstGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fail(span, "list groups", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, "list groups", err)
	}
	return out, nil
}

// CloseGroupsBefore closes open groups created before cutoff.
func (s *Store) CloseGroupsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	ctx, span := startSpan(ctx, "CloseGroupsBefore", "UPDATE")
	defer span.End()

	tag, err := s.pool.Exec(ctx,
		`UPDATE burst_groups SET status = 'closed' WHERE status = 'open' AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fail(span, "close groups", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanGroup(row pgx.Row) (*feedback.BurstGroup, error) {
	var (
		g        feedback.BurstGroup
		priority string
		status   string
	)
	err := row.Scan(&g.ID, &g.Fingerprint, &g.Count, &g.FirstSeen, &g.LastSeen, &g.ItemIDs,
		&g.RepresentativeID, &priority, &status, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	g.Priority = feedback.Priority(priority)
	g.Status = feedback.GroupStatus(status)
	return &g, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
