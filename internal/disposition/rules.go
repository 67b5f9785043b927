package disposition

import (
	"fmt"
	"strings"

	"github.com/linnemanlabs/sift/internal/feedback"
)

const baseRuleConfidence = 40

// Fallback is the deterministic classifier used whenever the external one
// fails or is disabled. It looks at priority, source and keyword hints and
// returns nil when no rule applies.
func Fallback(in Input) *feedback.Suggestion {
	var (
		hints      []string
		confidence = baseRuleConfidence
	)
	hit := func(text string, c int) {
		hints = append(hints, text)
		confidence = max(confidence, c)
	}

	it := in.Item
	p0 := it.Priority == feedback.P0
	uat := it.SourceType == feedback.SourceUATFailure

	if p0 {
		hit("URGENT: Requires immediate attention.", 70)
	}
	if uat {
		hit("Consider reverting recent changes or creating a hotfix.", 60)
	}
	if mentions(it, "database") {
		hit("Check database connections and query performance.", 55)
	}
	if mentions(it, "auth") {
		hit("Verify authentication tokens and session handling.", 55)
	}
	if in.GroupSize > 0 {
		hit(fmt.Sprintf("Part of a burst of %d similar errors.", in.GroupSize), 50)
	}

	if len(hints) == 0 {
		return nil
	}

	d := feedback.DispositionNeedsTriage
	if p0 || uat {
		d = feedback.DispositionActionable
	}
	return &feedback.Suggestion{
		Disposition: d,
		Confidence:  confidence,
		Text:        strings.Join(hints, " "),
		Source:      feedback.SourceRules,
	}
}

// mentions reports whether the title or error category contains kw.
func mentions(it *feedback.Item, kw string) bool {
	return strings.Contains(strings.ToLower(it.Title), kw) ||
		strings.Contains(strings.ToLower(it.Category), kw)
}
