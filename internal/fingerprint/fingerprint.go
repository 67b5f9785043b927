// Package fingerprint derives the two keys the pipeline compares events by:
// the raw dedup key for repeat captures and the grouping key for bursts.
package fingerprint

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/linnemanlabs/sift/internal/feedback"
)

// Delimiter joins the grouping fields. Field values containing it are not escaped.
const Delimiter = "|"

// traceLines is how many non-empty trace lines contribute to the dedup key.
const traceLines = 3

// GroupingFields are the item attributes that make up the grouping key, in order.
var GroupingFields = []string{"error_category", "source_application", "source_file"}

// GroupingKey joins category, application and file, each trimmed and
// lower-cased. Missing values contribute an empty segment.
func GroupingKey(category, application, file string) string {
	return normalize(category) + Delimiter + normalize(application) + Delimiter + normalize(file)
}

// ForItem computes the grouping key of it. Each field is resolved with
// feedback.ResolveField, so a value carried in metadata counts as well.
func ForItem(it *feedback.Item) string {
	vals := make([]string, len(GroupingFields))
	for i, f := range GroupingFields {
		vals[i], _ = feedback.ResolveField(it, f)
	}
	return GroupingKey(vals[0], vals[1], vals[2])
}

// IsEmpty reports whether key was built from all-empty fields. Such items
// carry no grouping signal and are never bucketed together.
func IsEmpty(key string) bool {
	return strings.Trim(key, Delimiter) == ""
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// DedupKey hashes the message with the first few non-empty lines of trace.
// Line whitespace is trimmed so reindented traces still collide.
func DedupKey(message, trace string) string {
	h := xxhash.New()
	_, _ = h.WriteString(strings.TrimSpace(message))

	n := 0
	for line := range strings.SplitSeq(trace, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		_, _ = h.WriteString("\n")
		_, _ = h.WriteString(line)
		if n++; n == traceLines {
			break
		}
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
