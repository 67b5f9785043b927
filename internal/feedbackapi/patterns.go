package feedbackapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/sift/internal/authmw"
	"github.com/linnemanlabs/sift/internal/feedback"
	"github.com/linnemanlabs/sift/internal/ignore"
	"github.com/linnemanlabs/sift/internal/snooze"
)

type createPatternRequest struct {
	ignore.CreateRequest
	// ExpiresIn accepts the same forms as snooze durations, e.g. "7d".
	ExpiresIn string `json:"expires_in,omitempty"`
}

func (a *API) handleCreatePattern(w http.ResponseWriter, r *http.Request) {
	var req createPatternRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err, "decode ignore pattern")
		return
	}
	if req.ExpiresIn != "" {
		d, err := snooze.ParseDuration(req.ExpiresIn)
		if err != nil {
			a.writeError(w, r, feedback.Invalid("expires_in", "%q is not a duration", req.ExpiresIn), "parse expires_in")
			return
		}
		req.CreateRequest.ExpiresIn = d
	}
	req.CreatedBy = authmw.Actor(r.Context())

	p, err := a.d.Patterns.Create(r.Context(), req.CreateRequest)
	if err != nil {
		a.writeError(w, r, err, "failed to create ignore pattern")
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("sift.pattern.id", p.ID))
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	ps, err := a.d.Patterns.List(r.Context())
	if err != nil {
		a.writeError(w, r, err, "failed to list ignore patterns")
		return
	}
	if ps == nil {
		ps = []*feedback.IgnorePattern{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"patterns": ps})
}

func (a *API) handleGetPattern(w http.ResponseWriter, r *http.Request) {
	id := patternID(r)
	p, ok, err := a.d.Patterns.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err, "failed to get ignore pattern")
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleDeactivatePattern(w http.ResponseWriter, r *http.Request) {
	if err := a.d.Patterns.Deactivate(r.Context(), patternID(r)); err != nil {
		a.writeError(w, r, err, "failed to deactivate ignore pattern")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleDeletePattern(w http.ResponseWriter, r *http.Request) {
	if err := a.d.Patterns.Delete(r.Context(), patternID(r)); err != nil {
		a.writeError(w, r, err, "failed to delete ignore pattern")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func patternID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("sift.pattern.id", id))
	return id
}
