package triage

import (
	"fmt"
	"time"

	"github.com/linnemanlabs/sift/internal/assign"
	"github.com/linnemanlabs/sift/internal/disposition"
	"github.com/linnemanlabs/sift/internal/feedback"
)

// Phase names a pipeline step.
type Phase string

const (
	PhaseFetch       Phase = "fetch"
	PhaseIgnore      Phase = "ignore"
	PhasePriority    Phase = "priority"
	PhaseBurst       Phase = "burst"
	PhaseAssign      Phase = "assign"
	PhaseDisposition Phase = "disposition"
	PhasePersist     Phase = "persist"
)

// PhaseStatus is the outcome of one phase.
type PhaseStatus string

const (
	PhaseOK      PhaseStatus = "ok"
	PhaseSkipped PhaseStatus = "skipped"
	PhaseError   PhaseStatus = "error"
)

// PhaseResult is one entry of the action log.
type PhaseResult struct {
	Phase  Phase       `json:"phase"`
	Status PhaseStatus `json:"status"`
	Detail string      `json:"detail,omitempty"`
}

// String renders the entry for the item's triage_actions audit field.
func (p PhaseResult) String() string {
	if p.Detail == "" {
		return fmt.Sprintf("%s:%s", p.Phase, p.Status)
	}
	return fmt.Sprintf("%s:%s: %s", p.Phase, p.Status, p.Detail)
}

// Result is the per-run outcome returned to callers. It is not persisted as
// such; Flatten copies the audit-relevant parts onto the item.
type Result struct {
	ItemID  string          `json:"item_id"`
	Success bool            `json:"success"`
	NoOp    bool            `json:"no_op,omitempty"`
	Status  feedback.Status `json:"status"`
	Error   string          `json:"error,omitempty"`

	Priority          feedback.Priority       `json:"priority,omitempty"`
	PriorityReasoning []string                `json:"priority_reasoning,omitempty"`
	IgnoredBy         *feedback.IgnorePattern `json:"ignored_by,omitempty"`
	BurstGroup        *feedback.BurstGroup    `json:"burst_group,omitempty"`
	Assignment        *assign.Decision        `json:"assignment,omitempty"`
	Suggestion        *feedback.Suggestion    `json:"suggestion,omitempty"`
	Route             disposition.Route       `json:"route,omitempty"`

	Actions  []PhaseResult `json:"actions"`
	Duration time.Duration `json:"duration_ns"`
}

func (r *Result) ok(p Phase, format string, args ...any) {
	r.Actions = append(r.Actions, PhaseResult{Phase: p, Status: PhaseOK, Detail: fmt.Sprintf(format, args...)})
}

func (r *Result) skip(p Phase, format string, args ...any) {
	r.Actions = append(r.Actions, PhaseResult{Phase: p, Status: PhaseSkipped, Detail: fmt.Sprintf(format, args...)})
}

func (r *Result) fail(p Phase, err error) {
	r.Actions = append(r.Actions, PhaseResult{Phase: p, Status: PhaseError, Detail: err.Error()})
}

// Phase returns the first log entry for p.
func (r *Result) Phase(p Phase) (PhaseResult, bool) {
	for _, a := range r.Actions {
		if a.Phase == p {
			return a, true
		}
	}
	return PhaseResult{}, false
}

// Trail renders the action log for persistence.
func (r *Result) Trail() []string {
	out := make([]string, 0, len(r.Actions))
	for _, a := range r.Actions {
		out = append(out, a.String())
	}
	return out
}

// Outcome is the metrics label for a finished run.
func (r *Result) Outcome() string {
	switch {
	case r.NoOp:
		return "noop"
	case !r.Success:
		return "failed"
	case r.Status == feedback.StatusIgnored:
		return "ignored"
	case r.Status == feedback.StatusGrouped:
		return "grouped"
	}
	return "triaged"
}
