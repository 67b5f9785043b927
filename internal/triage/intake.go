package triage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/sift/internal/feedback"
	"github.com/linnemanlabs/sift/internal/fingerprint"
)

// Event is a producer submission.
type Event struct {
	Type        feedback.Type     `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Severity    feedback.Severity `json:"severity,omitempty"`
	Value       string            `json:"value_estimate,omitempty"`
	Effort      string            `json:"effort_estimate,omitempty"`
	SourceType  string            `json:"source_type"`
	Category    string            `json:"error_category,omitempty"`
	Application string            `json:"source_application,omitempty"`
	File        string            `json:"source_file,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`

	// Message and Trace identify a raw capture for deduplication. Message
	// defaults to Title.
	Message string `json:"message,omitempty"`
	Trace   string `json:"stack_trace,omitempty"`
}

// Validate rejects events that cannot become items.
func (e *Event) Validate() error {
	var errs []error
	if strings.TrimSpace(e.Title) == "" {
		errs = append(errs, feedback.Invalid("title", "is required"))
	}
	if strings.TrimSpace(e.SourceType) == "" {
		errs = append(errs, feedback.Invalid("source_type", "is required"))
	}
	switch e.Type {
	case feedback.TypeIssue, feedback.TypeEnhancement, "":
	default:
		errs = append(errs, feedback.Invalid("type", "must be issue or enhancement, got %q", e.Type))
	}
	switch e.Severity {
	case "", feedback.SeverityCritical, feedback.SeverityHigh, feedback.SeverityMedium,
		feedback.SeverityLow, feedback.SeverityNone:
	default:
		errs = append(errs, feedback.Invalid("severity", "unknown severity %q", e.Severity))
	}
	return errors.Join(errs...)
}

// dedupKey returns the raw capture key, or "" when the event is not a
// capture that should be deduplicated.
func (e *Event) dedupKey() string {
	if e.SourceType != feedback.SourceErrorCapture && strings.TrimSpace(e.Trace) == "" {
		return ""
	}
	msg := e.Message
	if strings.TrimSpace(msg) == "" {
		msg = e.Title
	}
	return fingerprint.DedupKey(msg, e.Trace)
}

// SubmitResult is the outcome of Intake.Submit.
type SubmitResult struct {
	ItemID       string  `json:"item_id"`
	Deduplicated bool    `json:"deduplicated"`
	Occurrences  int     `json:"occurrence_count"`
	Triage       *Result `json:"triage,omitempty"`
}

// Intake accepts producer events.
type Intake struct {
	store  feedback.ItemStore
	orch   *Orchestrator
	dedup  *fingerprint.DedupCache
	logger log.Logger
	now    func() time.Time
	hooks  Hooks
}

// NewIntake returns an Intake. A nil dedup cache disables deduplication.
func NewIntake(store feedback.ItemStore, orch *Orchestrator, dedup *fingerprint.DedupCache, logger log.Logger, now func() time.Time, hooks Hooks) *Intake {
	if store == nil {
		panic(xerrors.New("store is required"))
	}
	if orch == nil {
		panic(xerrors.New("orchestrator is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &Intake{store: store, orch: orch, dedup: dedup, logger: logger, now: now, hooks: hooks}
}

// Submit validates ev and either counts it against a recent identical capture
// or stores it as a new item and triages it synchronously.
func (in *Intake) Submit(ctx context.Context, ev *Event) (*SubmitResult, error) {
	if err := ev.Validate(); err != nil {
		in.report("rejected")
		return nil, err
	}

	key := ev.dedupKey()
	if key != "" && in.dedup != nil {
		if id, ok := in.dedup.Lookup(key); ok {
			n, err := in.store.IncrementOccurrence(ctx, id, in.now())
			switch {
			case err == nil:
				in.report("deduplicated")
				in.logger.Info(ctx, "duplicate capture counted", "item_id", id, "occurrence_count", n)
				return &SubmitResult{ItemID: id, Deduplicated: true, Occurrences: n}, nil
			case errors.Is(err, feedback.ErrNotFound):
				in.dedup.Forget(key)
			default:
				in.report("failed")
				return nil, feedback.StoreFailure("increment occurrence", err)
			}
		}
	}

	now := in.now()
	it := &feedback.Item{
		ID:              ulid.Make().String(),
		Type:            ev.Type,
		Title:           strings.TrimSpace(ev.Title),
		Description:     ev.Description,
		Severity:        ev.Severity,
		Value:           ev.Value,
		Effort:          ev.Effort,
		SourceType:      strings.TrimSpace(ev.SourceType),
		Category:        ev.Category,
		Application:     ev.Application,
		File:            ev.File,
		Metadata:        ev.Metadata,
		Status:          feedback.StatusNew,
		OccurrenceCount: 1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if it.Type == "" {
		it.Type = feedback.TypeIssue
	}
	if err := in.store.PutItem(ctx, it); err != nil {
		in.report("failed")
		return nil, feedback.StoreFailure("put item", err)
	}
	if key != "" && in.dedup != nil {
		in.dedup.Put(key, it.ID)
	}
	in.report("created")

	res := in.orch.TriageItem(ctx, it)
	return &SubmitResult{ItemID: it.ID, Occurrences: 1, Triage: res}, nil
}

func (in *Intake) report(result string) {
	if in.hooks.OnSubmit != nil {
		in.hooks.OnSubmit(result)
	}
}
