// Package priority computes the P0..P3 priority of a feedback item.
//
// Issues start from a severity base and are adjusted by type and source;
// enhancements use a value×effort table. The calculator never fails: unknown
// inputs fall back to documented defaults and the trail says so.
package priority

import (
	"fmt"
	"strings"

	"github.com/linnemanlabs/sift/internal/feedback"
)

// Result is a computed priority with its human-readable derivation.
type Result struct {
	Priority  feedback.Priority
	Reasoning []string
}

// Trail renders the reasoning as a single line for priority_reasoning.
func (r Result) Trail() string {
	return strings.Join(r.Reasoning, "; ")
}

var severityBase = map[feedback.Severity]int{
	feedback.SeverityCritical: 0,
	feedback.SeverityHigh:     1,
	feedback.SeverityMedium:   2,
	feedback.SeverityLow:      3,
	feedback.SeverityNone:     3,
}

var typeAdjust = map[feedback.Type]int{
	feedback.TypeIssue:       -1,
	feedback.TypeEnhancement: 0,
}

var sourceAdjust = map[string]int{
	feedback.SourceErrorCapture: -1,
	feedback.SourceUATFailure:   -1,
}

// enhancementTable is indexed [value][effort].
var enhancementTable = map[string]map[string]feedback.Priority{
	"high":   {"small": feedback.P1, "medium": feedback.P1, "large": feedback.P2},
	"medium": {"small": feedback.P2, "medium": feedback.P2, "large": feedback.P3},
	"low":    {"small": feedback.P3, "medium": feedback.P3, "large": feedback.P3},
}

// Calculate returns the priority of it.
func Calculate(it *feedback.Item) Result {
	if it.Type == feedback.TypeEnhancement {
		return enhancement(it.Value, it.Effort)
	}
	return issue(it.Type, it.Severity, it.SourceType)
}

func issue(typ feedback.Type, sev feedback.Severity, source string) Result {
	var r Result

	sevKey := feedback.Severity(strings.ToLower(strings.TrimSpace(string(sev))))
	base, ok := severityBase[sevKey]
	if !ok {
		base = severityBase[feedback.SeverityMedium]
		r.note("base P%d (severity %q unrecognized, treated as medium)", base, string(sev))
	} else {
		r.note("base P%d (severity %s)", base, sevKey)
	}

	level := base
	if adj := typeAdjust[typ]; adj != 0 {
		level += adj
		r.note("type %s %+d", typ, adj)
	}
	if adj := sourceAdjust[source]; adj != 0 {
		level += adj
		r.note("source %s %+d", source, adj)
	}

	switch {
	case level < 0:
		r.note("clamped %d to 0", level)
		level = 0
	case level > 3:
		r.note("clamped %d to 3", level)
		level = 3
	}

	r.Priority = feedback.PriorityFromLevel(level)
	r.note("result %s", r.Priority)
	return r
}

func enhancement(value, effort string) Result {
	var r Result

	v := strings.ToLower(strings.TrimSpace(value))
	if _, ok := enhancementTable[v]; !ok {
		r.note("value %q unrecognized, using medium", value)
		v = "medium"
	}
	e := strings.ToLower(strings.TrimSpace(effort))
	if _, ok := enhancementTable[v][e]; !ok {
		r.note("effort %q unrecognized, using medium", effort)
		e = "medium"
	}

	r.Priority = enhancementTable[v][e]
	r.note("enhancement value %s × effort %s → %s", v, e, r.Priority)
	return r
}

func (r *Result) note(format string, args ...any) {
	r.Reasoning = append(r.Reasoning, fmt.Sprintf(format, args...))
}
