package feedback

import (
	"fmt"
	"time"
)

// Type classifies a feedback item.
type Type string

const (
	TypeIssue       Type = "issue"
	TypeEnhancement Type = "enhancement"
)

// Severity is the reporter-supplied urgency of an issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityNone     Severity = "none"
)

// Well-known source types. Producers may send others.
const (
	SourceErrorCapture   = "error_capture"
	SourceUATFailure     = "uat_failure"
	SourceManualFeedback = "manual_feedback"
)

// Status tracks where an item is in its lifecycle.
type Status string

const (
	// StatusNew means captured, not yet triaged
	StatusNew Status = "new"

	// StatusTriaged means priority computed and owner looked up
	StatusTriaged Status = "triaged"

	// StatusAssigned means an owner has accepted the item
	StatusAssigned Status = "assigned"

	// StatusSnoozed means hidden until SnoozedUntil
	StatusSnoozed Status = "snoozed"

	// StatusOpen means woken from a snooze and visible again
	StatusOpen Status = "open"

	// StatusGrouped means absorbed into a burst group; the group is triaged instead
	StatusGrouped Status = "grouped"

	// StatusIgnored means suppressed by an ignore pattern (terminal)
	StatusIgnored Status = "ignored"

	// StatusResolved and StatusClosed are set outside the pipeline
	StatusResolved Status = "resolved"
	StatusClosed   Status = "closed"
)

// Frozen reports whether independent triage must leave the item untouched.
func (s Status) Frozen() bool {
	return s == StatusGrouped || s == StatusIgnored
}

// Terminal reports whether the item is finished as far as the pipeline is concerned.
func (s Status) Terminal() bool {
	switch s {
	case StatusIgnored, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Priority is the four-level urgency, P0 being the most urgent.
type Priority string

const (
	P0 Priority = "P0"
	P1 Priority = "P1"
	P2 Priority = "P2"
	P3 Priority = "P3"
)

// PriorityFromLevel renders a numeric level as a Priority, clamping to [0,3].
func PriorityFromLevel(level int) Priority {
	level = max(0, min(3, level))
	return Priority(fmt.Sprintf("P%d", level))
}

// Level returns the numeric level of p, or -1 if p is not a known priority.
func (p Priority) Level() int {
	switch p {
	case P0:
		return 0
	case P1:
		return 1
	case P2:
		return 2
	case P3:
		return 3
	}
	return -1
}

// Valid reports whether p is one of P0..P3.
func (p Priority) Valid() bool { return p.Level() >= 0 }

// Item is a single reported problem or enhancement request.
type Item struct {
	ID          string         `json:"id"`
	Type        Type           `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Severity    Severity       `json:"severity,omitempty"`
	Value       string         `json:"value_estimate,omitempty"`
	Effort      string         `json:"effort_estimate,omitempty"`
	SourceType  string         `json:"source_type"`
	Category    string         `json:"error_category,omitempty"`
	Application string         `json:"source_application,omitempty"`
	File        string         `json:"source_file,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	Priority          Priority `json:"priority,omitempty"`
	PriorityReasoning string   `json:"priority_reasoning,omitempty"`
	Status            Status   `json:"status"`
	OccurrenceCount   int      `json:"occurrence_count"`
	BurstGroupID      string   `json:"burst_group_id,omitempty"`
	AssignedTo        string   `json:"assigned_to,omitempty"`

	SnoozedUntil *time.Time `json:"snoozed_until,omitempty"`
	SnoozedBy    string     `json:"snoozed_by,omitempty"`
	SnoozeReason string     `json:"snooze_reason,omitempty"`

	Suggestion    *Suggestion `json:"suggestion,omitempty"`
	TriageActions []string    `json:"triage_actions,omitempty"`
	TriagedAt     *time.Time  `json:"triaged_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the item so stores and callers never share maps or pointers.
func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	cp := *it
	if it.Metadata != nil {
		cp.Metadata = make(map[string]any, len(it.Metadata))
		for k, v := range it.Metadata {
			cp.Metadata[k] = v
		}
	}
	if it.SnoozedUntil != nil {
		t := *it.SnoozedUntil
		cp.SnoozedUntil = &t
	}
	if it.TriagedAt != nil {
		t := *it.TriagedAt
		cp.TriagedAt = &t
	}
	if it.Suggestion != nil {
		s := *it.Suggestion
		cp.Suggestion = &s
	}
	if it.TriageActions != nil {
		cp.TriageActions = append([]string(nil), it.TriageActions...)
	}
	return &cp
}

// Disposition is the six-way bucket a suggestion places an item in.
type Disposition string

const (
	DispositionActionable           Disposition = "actionable"
	DispositionAlreadyExists        Disposition = "already_exists"
	DispositionResearchNeeded       Disposition = "research_needed"
	DispositionConsiderationOnly    Disposition = "consideration_only"
	DispositionSignificantDeparture Disposition = "significant_departure"
	DispositionNeedsTriage          Disposition = "needs_triage"
)

// Dispositions lists every valid disposition.
var Dispositions = []Disposition{
	DispositionActionable,
	DispositionAlreadyExists,
	DispositionResearchNeeded,
	DispositionConsiderationOnly,
	DispositionSignificantDeparture,
	DispositionNeedsTriage,
}

// Valid reports whether d is one of the six dispositions.
func (d Disposition) Valid() bool {
	for _, v := range Dispositions {
		if d == v {
			return true
		}
	}
	return false
}

// SuggestionSource records who produced a suggestion.
type SuggestionSource string

const (
	SourceLLM   SuggestionSource = "llm"
	SourceRules SuggestionSource = "rules"
)

// Suggestion is a disposition recommendation from the classifier or the rule fallback.
type Suggestion struct {
	Disposition  Disposition      `json:"disposition"`
	Confidence   int              `json:"confidence"`
	Text         string           `json:"suggestion"`
	ConflictWith string           `json:"conflict_with,omitempty"`
	Source       SuggestionSource `json:"source"`
}

// GroupStatus tracks whether a burst group still absorbs members.
type GroupStatus string

const (
	GroupOpen   GroupStatus = "open"
	GroupClosed GroupStatus = "closed"
)

// BurstGroup aggregates near-duplicate items seen within a window.
type BurstGroup struct {
	ID               string      `json:"id"`
	Fingerprint      string      `json:"fingerprint"`
	Count            int         `json:"count"`
	FirstSeen        time.Time   `json:"first_seen"`
	LastSeen         time.Time   `json:"last_seen"`
	ItemIDs          []string    `json:"grouped_item_ids"`
	RepresentativeID string      `json:"representative_id"`
	Priority         Priority    `json:"priority"`
	Status           GroupStatus `json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Clone returns a deep copy of the group.
func (g *BurstGroup) Clone() *BurstGroup {
	if g == nil {
		return nil
	}
	cp := *g
	cp.ItemIDs = append([]string(nil), g.ItemIDs...)
	return &cp
}

// PatternType selects how an ignore pattern value is compared.
type PatternType string

const (
	PatternExact    PatternType = "exact"
	PatternContains PatternType = "contains"
	PatternRegex    PatternType = "regex"
	PatternGlob     PatternType = "glob"
)

// Valid reports whether t is a supported pattern type.
func (t PatternType) Valid() bool {
	switch t {
	case PatternExact, PatternContains, PatternRegex, PatternGlob:
		return true
	}
	return false
}

// IgnorePattern is a standing suppression rule.
type IgnorePattern struct {
	ID          string      `json:"id"`
	Field       string      `json:"field"`
	Type        PatternType `json:"pattern_type"`
	Value       string      `json:"pattern_value"`
	Reason      string      `json:"reason,omitempty"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
	IsActive    bool        `json:"is_active"`
	MatchCount  int64       `json:"match_count"`
	LastMatchAt *time.Time  `json:"last_match_at,omitempty"`
	CreatedBy   string      `json:"created_by,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ActiveAt reports whether the pattern participates in matching at now.
func (p *IgnorePattern) ActiveAt(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	return p.ExpiresAt == nil || p.ExpiresAt.After(now)
}

// Clone returns a deep copy of the pattern.
func (p *IgnorePattern) Clone() *IgnorePattern {
	if p == nil {
		return nil
	}
	cp := *p
	if p.ExpiresAt != nil {
		t := *p.ExpiresAt
		cp.ExpiresAt = &t
	}
	if p.LastMatchAt != nil {
		t := *p.LastMatchAt
		cp.LastMatchAt = &t
	}
	return &cp
}
