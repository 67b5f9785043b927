package feedback

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// metadataPrefix addresses a metadata key explicitly, bypassing direct fields.
const metadataPrefix = "metadata."

var fieldNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-]*$`)

// directFields maps the attribute names ignore patterns and fingerprints may
// reference to their accessor on Item.
var directFields = map[string]func(*Item) string{
	"title":              func(it *Item) string { return it.Title },
	"description":        func(it *Item) string { return it.Description },
	"type":               func(it *Item) string { return string(it.Type) },
	"severity":           func(it *Item) string { return string(it.Severity) },
	"source_type":        func(it *Item) string { return it.SourceType },
	"error_category":     func(it *Item) string { return it.Category },
	"source_application": func(it *Item) string { return it.Application },
	"source_file":        func(it *Item) string { return it.File },
	"value_estimate":     func(it *Item) string { return it.Value },
	"effort_estimate":    func(it *Item) string { return it.Effort },
	"assigned_to":        func(it *Item) string { return it.AssignedTo },
}

// ValidateFieldName reports whether name can be resolved against an item:
// a direct field, "metadata.<key>", or a bare metadata key.
func ValidateFieldName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return Invalid("field", "must not be empty")
	}
	if _, ok := directFields[name]; ok {
		return nil
	}
	key := strings.TrimPrefix(name, metadataPrefix)
	if !fieldNameRe.MatchString(key) {
		return Invalid("field", "unrecognized field %q", name)
	}
	return nil
}

// ResolveField returns the value of the named attribute of it.
//
// Precedence:
//  1. "metadata.<key>" reads only metadata[key].
//  2. A direct field (title, source_type, ...) when its value is non-empty.
//  3. metadata[name].
//
// The bool is false when nothing resolved; the string is then empty.
func ResolveField(it *Item, name string) (string, bool) {
	if it == nil {
		return "", false
	}
	if key, ok := strings.CutPrefix(name, metadataPrefix); ok {
		return metadataString(it.Metadata, key)
	}
	if get, ok := directFields[name]; ok {
		if v := get(it); v != "" {
			return v, true
		}
	}
	return metadataString(it.Metadata, name)
}

func metadataString(md map[string]any, key string) (string, bool) {
	if md == nil {
		return "", false
	}
	v, ok := md[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, t != ""
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case fmt.Stringer:
		return t.String(), true
	}
	return fmt.Sprint(v), true
}
