package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/sift/internal/assign"
	"github.com/linnemanlabs/sift/internal/burst"
	"github.com/linnemanlabs/sift/internal/disposition"
	"github.com/linnemanlabs/sift/internal/feedback"
	"github.com/linnemanlabs/sift/internal/ignore"
	"github.com/linnemanlabs/sift/internal/priority"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sift/internal/triage")

// Hooks observe orchestrator and intake activity, typically for metrics.
type Hooks struct {
	OnComplete   func(r *Result)
	OnPhaseError func(p Phase)
	OnSubmit     func(result string)
}

// Deps are the collaborators of an Orchestrator. Store and Owners are
// required; a nil Matcher, Bursts or Classifier skips that phase.
type Deps struct {
	Store      feedback.ItemStore
	Matcher    *ignore.Matcher
	Bursts     *burst.Manager
	Owners     *assign.Table
	Classifier *disposition.Classifier
}

// Orchestrator runs the triage pipeline for single items and batches.
type Orchestrator struct {
	store      feedback.ItemStore
	matcher    *ignore.Matcher
	bursts     *burst.Manager
	owners     *assign.Table
	classifier *disposition.Classifier
	logger     log.Logger
	now        func() time.Time
	hooks      Hooks
}

// NewOrchestrator returns an Orchestrator.
func NewOrchestrator(d Deps, logger log.Logger, now func() time.Time, hooks Hooks) *Orchestrator {
	if d.Store == nil {
		panic(xerrors.New("store is required"))
	}
	if d.Owners == nil {
		panic(xerrors.New("assignment table is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		store:      d.Store,
		matcher:    d.Matcher,
		bursts:     d.Bursts,
		owners:     d.Owners,
		classifier: d.Classifier,
		logger:     logger,
		now:        now,
		hooks:      hooks,
	}
}

// Triage loads the item and runs the pipeline on it. It never returns an
// error; failures are reported in the Result.
func (o *Orchestrator) Triage(ctx context.Context, id string) *Result {
	it, ok, err := o.store.GetItem(ctx, id)
	if err == nil && !ok {
		err = fmt.Errorf("item %s: %w", id, feedback.ErrNotFound)
	}
	if err != nil {
		res := &Result{ItemID: id}
		res.fail(PhaseFetch, err)
		res.Error = err.Error()
		o.phaseError(PhaseFetch)
		o.complete(res)
		o.logger.Error(ctx, err, "triage fetch failed", "item_id", id)
		return res
	}
	return o.TriageItem(ctx, it)
}

// TriageItem runs the pipeline on an already loaded item and persists it.
// Grouped, ignored, resolved and closed items are returned untouched as a
// successful no-op. The write is conditional on the status and group the
// item was loaded with: if a sweep grouped or otherwise moved it meanwhile,
// the stored state wins and the run reports a no-op.
func (o *Orchestrator) TriageItem(ctx context.Context, it *feedback.Item) *Result {
	start := o.now()
	ctx, span := tracer.Start(ctx, "triage.run", trace.WithAttributes(
		attribute.String("sift.item.id", it.ID),
		attribute.String("sift.item.source_type", it.SourceType),
		attribute.String("sift.item.status", string(it.Status)),
	))
	defer span.End()

	L := o.logger.With("item_id", it.ID)
	res := &Result{ItemID: it.ID}
	prev := it.State()

	if it.Status.Frozen() || it.Status.Terminal() {
		res.NoOp = true
		res.Success = true
		res.Status = it.Status
		res.Priority = it.Priority
		res.skip(PhaseIgnore, "item already %s", it.Status)
		span.SetAttributes(attribute.Bool("sift.triage.noop", true))
		o.finish(span, res, start)
		return res
	}

	if o.runIgnore(ctx, span, L, it, res) {
		o.persist(ctx, span, L, it, prev, res, start)
		return res
	}
	o.runPriority(span, it, res)
	group := o.runBurst(ctx, span, L, it, res)
	o.runAssign(span, it, res)
	o.runDisposition(ctx, span, it, group, res)

	switch it.Status {
	case feedback.StatusNew, feedback.StatusOpen:
		it.Status = feedback.StatusTriaged
	}
	o.persist(ctx, span, L, it, prev, res, start)
	return res
}

// runIgnore reports whether the item was suppressed.
func (o *Orchestrator) runIgnore(ctx context.Context, span trace.Span, L log.Logger, it *feedback.Item, res *Result) bool {
	if o.matcher == nil {
		res.skip(PhaseIgnore, "no matcher configured")
		phaseEvent(span, PhaseIgnore, PhaseSkipped)
		return false
	}
	p, err := o.matcher.Match(ctx, it)
	if err != nil {
		L.Warn(ctx, "ignore check failed, continuing", "error", err)
		res.fail(PhaseIgnore, err)
		o.phaseError(PhaseIgnore)
		phaseEvent(span, PhaseIgnore, PhaseError)
		return false
	}
	if p == nil {
		res.ok(PhaseIgnore, "no pattern matched")
		phaseEvent(span, PhaseIgnore, PhaseOK)
		return false
	}
	it.Status = feedback.StatusIgnored
	res.IgnoredBy = p
	res.ok(PhaseIgnore, "matched pattern %s (%s %s %q)", p.ID, p.Field, p.Type, p.Value)
	phaseEvent(span, PhaseIgnore, PhaseOK, attribute.String("sift.ignore.pattern_id", p.ID))
	L.Info(ctx, "item suppressed by ignore pattern", "pattern_id", p.ID, "field", p.Field)
	return true
}

func (o *Orchestrator) runPriority(span trace.Span, it *feedback.Item, res *Result) {
	pr := priority.Calculate(it)
	it.Priority = pr.Priority
	it.PriorityReasoning = pr.Trail()
	res.Priority = pr.Priority
	res.PriorityReasoning = pr.Reasoning
	res.ok(PhasePriority, "%s", pr.Priority)
	phaseEvent(span, PhasePriority, PhaseOK, attribute.String("sift.triage.priority", string(pr.Priority)))
}

func (o *Orchestrator) runBurst(ctx context.Context, span trace.Span, L log.Logger, it *feedback.Item, res *Result) *feedback.BurstGroup {
	if o.bursts == nil {
		res.skip(PhaseBurst, "grouping disabled")
		phaseEvent(span, PhaseBurst, PhaseSkipped)
		return nil
	}
	g, err := o.bursts.Join(ctx, it)
	switch {
	case err != nil:
		L.Warn(ctx, "burst join failed, continuing", "error", err)
		res.fail(PhaseBurst, err)
		o.phaseError(PhaseBurst)
		phaseEvent(span, PhaseBurst, PhaseError)
	case g == nil:
		res.skip(PhaseBurst, "no open group")
		phaseEvent(span, PhaseBurst, PhaseSkipped)
	default:
		res.BurstGroup = g
		res.ok(PhaseBurst, "joined group %s (count %d)", g.ID, g.Count)
		phaseEvent(span, PhaseBurst, PhaseOK, attribute.String("sift.burst.group_id", g.ID))
	}
	return g
}

func (o *Orchestrator) runAssign(span trace.Span, it *feedback.Item, res *Result) {
	if it.Status == feedback.StatusGrouped {
		res.skip(PhaseAssign, "item grouped, group owns assignment")
		phaseEvent(span, PhaseAssign, PhaseSkipped)
		return
	}
	if it.Status == feedback.StatusAssigned && it.AssignedTo != "" {
		res.skip(PhaseAssign, "already assigned to %s", it.AssignedTo)
		phaseEvent(span, PhaseAssign, PhaseSkipped)
		return
	}
	d := o.owners.Lookup(it.SourceType, it.Severity, it.Priority)
	it.AssignedTo = d.Owner
	res.Assignment = &d
	if d.Key != "" {
		res.ok(PhaseAssign, "%s via %s %q", d.Owner, d.Rule, d.Key)
	} else {
		res.ok(PhaseAssign, "%s via %s", d.Owner, d.Rule)
	}
	phaseEvent(span, PhaseAssign, PhaseOK, attribute.String("sift.assign.owner", d.Owner))
}

func (o *Orchestrator) runDisposition(ctx context.Context, span trace.Span, it *feedback.Item, g *feedback.BurstGroup, res *Result) {
	if o.classifier == nil {
		res.skip(PhaseDisposition, "classifier disabled")
		phaseEvent(span, PhaseDisposition, PhaseSkipped)
		return
	}
	in := disposition.Input{Item: it}
	if g != nil {
		in.GroupSize = g.Count
	}
	out := o.classifier.Suggest(ctx, in)

	var reason disposition.Reason
	var ce *disposition.ClassificationError
	if errors.As(out.Err, &ce) {
		reason = ce.Reason
	}

	s := out.Suggestion
	if s == nil {
		res.skip(PhaseDisposition, "no suggestion (%s)", reason)
		phaseEvent(span, PhaseDisposition, PhaseSkipped)
		return
	}
	it.Suggestion = s
	res.Suggestion = s
	res.Route = disposition.RouteFor(s.Disposition)
	if s.Source == feedback.SourceRules {
		res.ok(PhaseDisposition, "%s (%d%%) from rules after %s", s.Disposition, s.Confidence, reason)
	} else {
		res.ok(PhaseDisposition, "%s (%d%%) from %s", s.Disposition, s.Confidence, s.Source)
	}
	phaseEvent(span, PhaseDisposition, PhaseOK,
		attribute.String("sift.disposition", string(s.Disposition)),
		attribute.String("sift.disposition.source", string(s.Source)),
	)
}

func (o *Orchestrator) persist(ctx context.Context, span trace.Span, L log.Logger, it *feedback.Item, prev feedback.ItemState, res *Result, start time.Time) {
	now := o.now()
	it.TriagedAt = &now
	it.UpdatedAt = now
	it.TriageActions = res.Trail()

	err := o.store.UpdateItem(ctx, it, prev)
	switch {
	case errors.Is(err, feedback.ErrConflict):
		o.yield(ctx, span, L, it, res, start)
		return
	case err != nil:
		res.fail(PhasePersist, err)
		res.Error = err.Error()
		o.phaseError(PhasePersist)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		L.Error(ctx, err, "persist triaged item failed")
	default:
		res.ok(PhasePersist, "")
		res.Success = true
	}
	res.Status = it.Status
	o.finish(span, res, start)

	L.Info(ctx, "triage complete",
		"status", res.Status,
		"priority", res.Priority,
		"assigned_to", it.AssignedTo,
		"success", res.Success,
		"duration", res.Duration,
	)
}

// yield gives up a run whose item changed underneath it. Nothing computed by
// the run was written; the result reports the stored state.
func (o *Orchestrator) yield(ctx context.Context, span trace.Span, L log.Logger, it *feedback.Item, res *Result, start time.Time) {
	cur, ok, err := o.store.GetItem(ctx, it.ID)
	if err == nil && !ok {
		err = feedback.ErrNotFound
	}
	if err != nil {
		err = fmt.Errorf("reload after conflict: %w", err)
		res.fail(PhasePersist, err)
		res.Error = err.Error()
		o.phaseError(PhasePersist)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		L.Error(ctx, err, "reload after conflicting write failed")
		o.finish(span, res, start)
		return
	}

	if res.BurstGroup != nil && res.BurstGroup.ID != cur.BurstGroupID {
		L.Warn(ctx, "joined group was not recorded on the item", "group_id", res.BurstGroup.ID, "stored_group_id", cur.BurstGroupID)
	}
	res.NoOp = true
	res.Success = true
	res.Status = cur.Status
	res.Priority = cur.Priority
	res.PriorityReasoning = nil
	res.IgnoredBy = nil
	res.BurstGroup = nil
	res.Assignment = nil
	res.Suggestion = nil
	res.Route = ""
	res.skip(PhasePersist, "item changed to %s during the run, stored state kept", cur.Status)
	span.SetAttributes(attribute.Bool("sift.triage.noop", true))
	o.finish(span, res, start)

	L.Info(ctx, "triage yielded to concurrent update", "status", cur.Status, "burst_group_id", cur.BurstGroupID)
}

func (o *Orchestrator) finish(span trace.Span, res *Result, start time.Time) {
	res.Duration = o.now().Sub(start)
	span.SetAttributes(
		attribute.Bool("sift.triage.success", res.Success),
		attribute.String("sift.triage.outcome", res.Outcome()),
	)
	o.complete(res)
}

func (o *Orchestrator) complete(res *Result) {
	if o.hooks.OnComplete != nil {
		o.hooks.OnComplete(res)
	}
}

func (o *Orchestrator) phaseError(p Phase) {
	if o.hooks.OnPhaseError != nil {
		o.hooks.OnPhaseError(p)
	}
}

func phaseEvent(span trace.Span, p Phase, s PhaseStatus, attrs ...attribute.KeyValue) {
	attrs = append(attrs,
		attribute.String("sift.phase", string(p)),
		attribute.String("sift.phase.status", string(s)),
	)
	span.AddEvent("phase."+string(p), trace.WithAttributes(attrs...))
}

// BatchResult summarises a TriageUntriaged run.
type BatchResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Ignored   int `json:"ignored"`
	Grouped   int `json:"grouped"`
}

// Affected is the number of items the batch touched.
func (b BatchResult) Affected() int { return b.Processed }

// TriageUntriaged triages up to limit items still in status new, oldest
// first. Per-item failures are counted, not returned; only the listing
// itself can fail.
func (o *Orchestrator) TriageUntriaged(ctx context.Context, limit int) (BatchResult, error) {
	var b BatchResult
	items, err := o.store.ListItems(ctx, feedback.ItemFilter{
		Statuses: []feedback.Status{feedback.StatusNew},
		Limit:    limit,
		Oldest:   true,
	})
	if err != nil {
		return b, feedback.StoreFailure("list untriaged", err)
	}
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return b, err
		}
		res := o.TriageItem(ctx, it)
		b.Processed++
		if !res.Success {
			b.Failed++
			continue
		}
		b.Succeeded++
		switch res.Status {
		case feedback.StatusIgnored:
			b.Ignored++
		case feedback.StatusGrouped:
			b.Grouped++
		}
	}
	if b.Processed > 0 {
		o.logger.Info(ctx, "batch triage complete",
			"processed", b.Processed,
			"failed", b.Failed,
			"ignored", b.Ignored,
			"grouped", b.Grouped,
		)
	}
	return b, nil
}
