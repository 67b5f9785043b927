// Package ignore suppresses feedback items that match standing ignore patterns.
package ignore

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/linnemanlabs/sift/internal/feedback"
)

// Rule is an ignore pattern with its comparison prepared.
type Rule struct {
	Pattern *feedback.IgnorePattern
	match   func(string) bool
	err     error
}

// Err is the compile error of a regex or glob rule, nil otherwise. A rule
// with an error never matches.
func (r *Rule) Err() error { return r.err }

// Matches reports whether value satisfies the rule.
func (r *Rule) Matches(value string) bool {
	if r.match == nil {
		return false
	}
	return r.match(value)
}

// Compile prepares p for matching. The returned error only reports a bad
// regex; the Rule is usable either way and simply never matches.
func Compile(p *feedback.IgnorePattern) (*Rule, error) {
	r := &Rule{Pattern: p}
	switch p.Type {
	case feedback.PatternExact:
		want := p.Value
		r.match = func(v string) bool { return strings.EqualFold(v, want) }
	case feedback.PatternContains:
		want := strings.ToLower(p.Value)
		r.match = func(v string) bool { return strings.Contains(strings.ToLower(v), want) }
	case feedback.PatternRegex:
		re, err := regexp.Compile("(?i)" + p.Value)
		if err != nil {
			r.err = fmt.Errorf("compile regex %q: %w", p.Value, err)
			break
		}
		r.match = re.MatchString
	case feedback.PatternGlob:
		re, err := regexp.Compile(GlobToRegexp(p.Value))
		if err != nil {
			r.err = fmt.Errorf("compile glob %q: %w", p.Value, err)
			break
		}
		r.match = re.MatchString
	default:
		r.err = fmt.Errorf("unknown pattern type %q", p.Type)
	}
	return r, r.err
}

// GlobToRegexp translates a glob into an anchored, case-insensitive regular
// expression: '*' matches any run of characters, '?' exactly one, and
// everything else is literal.
func GlobToRegexp(glob string) string {
	var b strings.Builder
	b.WriteString(`(?is)^`)
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`$`)
	return b.String()
}

// Validate checks the fields a new pattern must carry, including that a
// regex pattern compiles.
func Validate(p *feedback.IgnorePattern) error {
	if err := feedback.ValidateFieldName(p.Field); err != nil {
		return err
	}
	if !p.Type.Valid() {
		return feedback.Invalid("pattern_type", "must be one of exact, contains, regex, glob; got %q", p.Type)
	}
	if p.Value == "" {
		return feedback.Invalid("pattern_value", "must not be empty")
	}
	if _, err := Compile(p); err != nil {
		return feedback.Invalid("pattern_value", "%v", err)
	}
	return nil
}
