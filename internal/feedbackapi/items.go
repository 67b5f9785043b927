package feedbackapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/sift/internal/authmw"
	"github.com/linnemanlabs/sift/internal/feedback"
	"github.com/linnemanlabs/sift/internal/snooze"
	"github.com/linnemanlabs/sift/internal/triage"
)

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var ev triage.Event
	if err := decode(r, &ev); err != nil {
		a.writeError(w, r, err, "decode feedback")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("sift.item.source_type", ev.SourceType))

	res, err := a.d.Intake.Submit(r.Context(), &ev)
	if err != nil {
		a.writeError(w, r, err, "failed to submit feedback")
		return
	}

	span.SetAttributes(
		attribute.String("sift.item.id", res.ItemID),
		attribute.Bool("sift.item.deduplicated", res.Deduplicated),
	)

	status := http.StatusCreated
	if res.Deduplicated {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (a *API) handleGetItem(w http.ResponseWriter, r *http.Request) {
	it, ok := a.loadItem(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (a *API) handleTriage(w http.ResponseWriter, r *http.Request) {
	it, ok := a.loadItem(w, r)
	if !ok {
		return
	}
	res := a.d.Orchestrator.TriageItem(r.Context(), it)
	if !res.Success {
		a.logger.Warn(r.Context(), "manual triage failed", "item_id", it.ID, "error", res.Error)
		writeJSON(w, http.StatusInternalServerError, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type snoozeRequest struct {
	Duration string `json:"duration"`
	Reason   string `json:"reason,omitempty"`
}

func (a *API) handleSnooze(w http.ResponseWriter, r *http.Request) {
	id := itemID(r)

	var req snoozeRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err, "decode snooze")
		return
	}

	it, err := a.d.Snoozes.Snooze(r.Context(), id, snooze.Request{
		Duration: req.Duration,
		By:       authmw.Actor(r.Context()),
		Reason:   req.Reason,
	})
	if err != nil {
		a.writeError(w, r, err, "failed to snooze item")
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (a *API) handleWake(w http.ResponseWriter, r *http.Request) {
	it, err := a.d.Snoozes.Wake(r.Context(), itemID(r))
	if err != nil {
		a.writeError(w, r, err, "failed to wake item")
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func itemID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("sift.item.id", id))
	return id
}

func (a *API) loadItem(w http.ResponseWriter, r *http.Request) (*feedback.Item, bool) {
	id := itemID(r)
	it, ok, err := a.d.Items.GetItem(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get item", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return nil, false
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return nil, false
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("sift.item.status", string(it.Status)))
	return it, true
}
