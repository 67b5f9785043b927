// Package assign maps a triaged item to its owner with a static lookup table.
package assign

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/linnemanlabs/sift/internal/feedback"
)

// OnCall receives P0 items that no table entry claims.
const OnCall = "on-call"

// DefaultOwner is used when a table carries no default of its own.
const DefaultOwner = "triage-queue"

// Rule names which lookup step produced a decision.
type Rule string

const (
	RuleSourceSeverity Rule = "source_type_severity"
	RuleSource         Rule = "source_type"
	RuleOnCall         Rule = "on_call"
	RuleDefault        Rule = "default"
)

// Decision is the outcome of a lookup.
type Decision struct {
	Owner string `json:"owner"`
	Rule  Rule   `json:"rule"`
	Key   string `json:"key,omitempty"`
}

// Table is the owner lookup table. Keys are "<source_type>_<severity>" or
// "<source_type>", compared case-insensitively.
type Table struct {
	Default string            `yaml:"default"`
	Owners  map[string]string `yaml:"owners"`
}

// DefaultTable is used when no table file is configured.
func DefaultTable() *Table {
	return &Table{
		Default: DefaultOwner,
		Owners: map[string]string{
			feedback.SourceErrorCapture + "_critical": OnCall,
			feedback.SourceErrorCapture:               "platform",
			feedback.SourceUATFailure:                 "qa",
			feedback.SourceManualFeedback:             "product",
		},
	}
}

// Load reads a YAML table from path:
//
//	default: triage-queue
//	owners:
//	  error_capture_critical: on-call
//	  uat_failure: qa
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read assignment table: %w", err)
	}
	return Parse(data)
}

// Parse decodes and normalizes a YAML table.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse assignment table: %w", err)
	}
	owners := make(map[string]string, len(t.Owners))
	for k, v := range t.Owners {
		k = normalize(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			return nil, feedback.Invalid("owners", "entry %q: key and owner must be non-empty", k)
		}
		owners[k] = v
	}
	t.Owners = owners
	t.Default = strings.TrimSpace(t.Default)
	if t.Default == "" {
		t.Default = DefaultOwner
	}
	return &t, nil
}

// Lookup picks the owner of an item with the given source, severity and
// computed priority. The order is source+severity, then source, then
// on-call for P0, then the table default.
func (t *Table) Lookup(sourceType string, severity feedback.Severity, p feedback.Priority) Decision {
	src := normalize(sourceType)
	if src != "" {
		if sev := normalize(string(severity)); sev != "" {
			key := src + "_" + sev
			if owner, ok := t.Owners[key]; ok {
				return Decision{Owner: owner, Rule: RuleSourceSeverity, Key: key}
			}
		}
		if owner, ok := t.Owners[src]; ok {
			return Decision{Owner: owner, Rule: RuleSource, Key: src}
		}
	}
	if p == feedback.P0 {
		return Decision{Owner: OnCall, Rule: RuleOnCall}
	}
	def := t.Default
	if def == "" {
		def = DefaultOwner
	}
	return Decision{Owner: def, Rule: RuleDefault}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
