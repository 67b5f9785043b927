package disposition

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// SystemPrompt fixes the reply contract the parser relies on.
const SystemPrompt = `You triage product feedback for an engineering team.
Classify the item into exactly one disposition:
- actionable: clear, in scope, ready to work on
- already_exists: the capability or fix already exists
- research_needed: needs investigation before it can be acted on
- consideration_only: worth noting, no action planned
- significant_departure: conflicts with the current direction of the product
- needs_triage: not enough information to decide

Reply with a single JSON object and nothing else:
{"disposition": "<one of the values above>", "confidence": <integer 0-100>, "suggestion": "<one or two sentences>", "conflict_with": "<name of the conflicting component, or null>"}`

// maxDescription bounds how much free text is sent to the classifier.
const maxDescription = 4000

// BuildPrompt renders the user prompt for in.
func BuildPrompt(in Input) string {
	it := in.Item
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", it.Title)
	fmt.Fprintf(&b, "Type: %s\n", it.Type)
	fmt.Fprintf(&b, "Source: %s\n", it.SourceType)
	if it.Severity != "" {
		fmt.Fprintf(&b, "Severity: %s\n", it.Severity)
	}
	if it.Priority != "" {
		fmt.Fprintf(&b, "Priority: %s\n", it.Priority)
	}
	if it.Category != "" {
		fmt.Fprintf(&b, "Error category: %s\n", it.Category)
	}
	if it.Application != "" {
		fmt.Fprintf(&b, "Application: %s\n", it.Application)
	}
	if in.GroupSize > 0 {
		fmt.Fprintf(&b, "Burst group size: %d similar items\n", in.GroupSize)
	}
	desc := strings.TrimSpace(it.Description)
	if len(desc) > maxDescription {
		desc = truncate(desc, maxDescription) + "…"
	}
	if desc != "" {
		fmt.Fprintf(&b, "\nDescription:\n%s\n", desc)
	}
	return b.String()
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
