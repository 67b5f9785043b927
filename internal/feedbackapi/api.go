// Package feedbackapi exposes feedback intake, triage and the operator
// workflows (snooze, focus views, ignore patterns, bursts, sweeps) over HTTP.
package feedbackapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/sift/internal/authmw"
	"github.com/linnemanlabs/sift/internal/burst"
	"github.com/linnemanlabs/sift/internal/feedback"
	"github.com/linnemanlabs/sift/internal/focus"
	"github.com/linnemanlabs/sift/internal/ignore"
	"github.com/linnemanlabs/sift/internal/snooze"
	"github.com/linnemanlabs/sift/internal/sweep"
	"github.com/linnemanlabs/sift/internal/triage"
)

// Deps are the components the handlers drive. Intake, Orchestrator and
// Items are required; a nil optional component leaves its routes
// unregistered.
type Deps struct {
	Intake       *triage.Intake
	Orchestrator *triage.Orchestrator
	Items        feedback.ItemStore
	Snoozes      *snooze.Manager
	Focus        *focus.Builder
	Patterns     *ignore.Manager
	Bursts       *burst.Manager
	Sweeps       *sweep.Scheduler

	// Tokens enables bearer auth on every route when non-empty.
	Tokens authmw.Tokens
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	d      Deps
}

// New creates a new API handler.
func New(logger log.Logger, d Deps) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if d.Intake == nil || d.Orchestrator == nil || d.Items == nil {
		panic(xerrors.New("intake, orchestrator and item store are required"))
	}
	return &API{logger: logger, d: d}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		if len(a.d.Tokens) > 0 {
			r.Use(authmw.BearerToken(a.d.Tokens))
		}

		r.Post("/feedback", a.handleSubmit)
		r.Get("/feedback/{id}", a.handleGetItem)
		r.Post("/feedback/{id}/triage", a.handleTriage)

		if a.d.Snoozes != nil {
			r.Post("/feedback/{id}/snooze", a.handleSnooze)
			r.Post("/feedback/{id}/wake", a.handleWake)
		}
		if a.d.Focus != nil {
			r.Get("/focus", a.handleFocus)
		}
		if a.d.Patterns != nil {
			r.Get("/ignore-patterns", a.handleListPatterns)
			r.Post("/ignore-patterns", a.handleCreatePattern)
			r.Get("/ignore-patterns/{id}", a.handleGetPattern)
			r.Post("/ignore-patterns/{id}/deactivate", a.handleDeactivatePattern)
			r.Delete("/ignore-patterns/{id}", a.handleDeletePattern)
		}
		if a.d.Bursts != nil {
			r.Get("/bursts", a.handleListBursts)
			r.Get("/bursts/{id}", a.handleGetBurst)
		}
		if a.d.Sweeps != nil {
			r.Post("/sweeps/{name}", a.handleRunSweep)
		}
	})
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes. Anything unrecognised is
// logged and reported as an internal error.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var ve *feedback.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Field: ve.Field})
	case errors.Is(err, feedback.ErrNotFound):
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	case errors.Is(err, feedback.ErrInvalidTransition), errors.Is(err, feedback.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		a.logger.Error(r.Context(), err, msg)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return feedback.Invalid("", "invalid payload")
	}
	return nil
}
