package feedbackapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/sift/internal/feedback"
	"github.com/linnemanlabs/sift/internal/sweep"
)

const defaultBurstLimit = 50

func (a *API) handleListBursts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := feedback.GroupStatus(q.Get("status"))
	switch status {
	case "", feedback.GroupOpen, feedback.GroupClosed:
	default:
		a.writeError(w, r, feedback.Invalid("status", "unknown group status %q", status), "parse bursts query")
		return
	}

	limit := defaultBurstLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			a.writeError(w, r, feedback.Invalid("limit", "must be a positive number"), "parse bursts query")
			return
		}
		limit = n
	}

	gs, err := a.d.Bursts.Groups(r.Context(), status, limit)
	if err != nil {
		a.writeError(w, r, err, "failed to list burst groups")
		return
	}
	if gs == nil {
		gs = []*feedback.BurstGroup{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": gs})
}

func (a *API) handleGetBurst(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("sift.burst.id", id))

	g, ok, err := a.d.Bursts.Group(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err, "failed to get burst group")
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type sweepResponse struct {
	Sweep    string `json:"sweep"`
	Affected int    `json:"affected"`
}

func (a *API) handleRunSweep(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("sift.sweep", name))

	n, err := a.d.Sweeps.RunNow(r.Context(), name)
	switch {
	case errors.Is(err, sweep.ErrUnknownJob):
		http.Error(w, `{"error":"unknown sweep"}`, http.StatusNotFound)
		return
	case errors.Is(err, sweep.ErrBusy):
		http.Error(w, `{"error":"sweep already running"}`, http.StatusConflict)
		return
	case err != nil:
		a.writeError(w, r, err, "sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{Sweep: name, Affected: n})
}
