package feedbackapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/sift/internal/feedback"
	"github.com/linnemanlabs/sift/internal/focus"
)

type focusResponse struct {
	View  focus.View       `json:"view"`
	Count int              `json:"count"`
	Items []*feedback.Item `json:"items"`
}

func (a *API) handleFocus(w http.ResponseWriter, r *http.Request) {
	v, err := viewFromQuery(r)
	if err != nil {
		a.writeError(w, r, err, "parse focus view")
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("sift.focus.view", v.Name))

	items, err := a.d.Focus.Build(r.Context(), v)
	if err != nil {
		a.writeError(w, r, err, "failed to build focus view")
		return
	}
	if items == nil {
		items = []*feedback.Item{}
	}
	writeJSON(w, http.StatusOK, focusResponse{View: v, Count: len(items), Items: items})
}

// viewFromQuery starts from the named preset, if any, and lets explicit
// parameters override it.
func viewFromQuery(r *http.Request) (focus.View, error) {
	q := r.URL.Query()

	var v focus.View
	if name := q.Get("view"); name != "" {
		p, ok := focus.Preset(name)
		if !ok {
			return v, feedback.Invalid("view", "unknown view %q (have %s)", name, strings.Join(focus.Presets(), ", "))
		}
		v = p
	}

	if ps := list(q["priority"]); len(ps) > 0 {
		v.Priorities = nil
		for _, p := range ps {
			v.Priorities = append(v.Priorities, feedback.Priority(strings.ToUpper(p)))
		}
	}
	if ss := list(q["status"]); len(ss) > 0 {
		v.Statuses = nil
		for _, s := range ss {
			v.Statuses = append(v.Statuses, feedback.Status(strings.ToLower(s)))
		}
	}

	var err error
	if s := q.Get("older_than"); s != "" {
		if v.OlderThan, err = age("older_than", s); err != nil {
			return v, err
		}
	}
	if s := q.Get("newer_than"); s != "" {
		if v.NewerThan, err = age("newer_than", s); err != nil {
			return v, err
		}
	}
	if s := q.Get("assigned_to"); s != "" {
		v.AssignedTo = s
	}
	if s := q.Get("unassigned"); s != "" {
		b, perr := strconv.ParseBool(s)
		if perr != nil {
			return v, feedback.Invalid("unassigned", "%q is not a boolean", s)
		}
		v.Unassigned = b
	}
	if s := q.Get("limit"); s != "" {
		n, perr := strconv.Atoi(s)
		if perr != nil {
			return v, feedback.Invalid("limit", "%q is not a number", s)
		}
		v.Limit = n
	}
	return v, nil
}

func age(field, s string) (time.Duration, error) {
	d, err := focus.ParseAge(s)
	if err != nil {
		return 0, feedback.Invalid(field, "%q is not a duration", s)
	}
	return d, nil
}

// list flattens repeated and comma separated query values.
func list(vals []string) []string {
	var out []string
	for _, v := range vals {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
