package triage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/sift/internal/feedback"
	"github.com/linnemanlabs/sift/internal/fingerprint"
)

func newIntake(t *testing.T) (*Intake, *fixture, *fingerprint.DedupCache) {
	t.Helper()
	f := newFixture(t, nil)
	dedup := fingerprint.NewDedupCache(fingerprint.DefaultDedupWindow, f.clock.Now)
	return NewIntake(f.store, f.orch, dedup, log.Nop(), f.clock.Now, f.hooks.hooks()), f, dedup
}

func captureEvent() *Event {
	return &Event{
		Title:      "TypeError: cannot read property 'id' of undefined",
		Severity:   feedback.SeverityHigh,
		SourceType: feedback.SourceErrorCapture,
		Category:   "frontend",
		Trace:      "at Checkout (checkout.js:10)\n\nat render (react.js:200)\nat main (index.js:1)\nat boot (boot.js:9)",
	}
}

func TestSubmit_CreatesAndTriages(t *testing.T) {
	t.Parallel()

	in, f, _ := newIntake(t)
	sr, err := in.Submit(context.Background(), captureEvent())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(sr.ItemID) != 26 {
		t.Errorf("ItemID = %q, want a ULID", sr.ItemID)
	}
	if sr.Deduplicated || sr.Occurrences != 1 {
		t.Errorf("result = %+v", sr)
	}
	if sr.Triage == nil || !sr.Triage.Success {
		t.Fatalf("Triage = %+v", sr.Triage)
	}

	it := f.get(t, sr.ItemID)
	if it.Status != feedback.StatusTriaged || it.Type != feedback.TypeIssue {
		t.Errorf("stored item status %s type %s", it.Status, it.Type)
	}
	if it.Priority != feedback.P0 {
		t.Errorf("Priority = %s, want P0", it.Priority)
	}
	if len(f.hooks.submits) != 1 || f.hooks.submits[0] != "created" {
		t.Errorf("submits = %v", f.hooks.submits)
	}
}

func TestSubmit_DeduplicatesRepeatCaptures(t *testing.T) {
	t.Parallel()

	in, f, _ := newIntake(t)
	ctx := context.Background()

	first, err := in.Submit(ctx, captureEvent())
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	// trailing whitespace and trace lines past the third do not matter
	ev := captureEvent()
	ev.Title += "  "
	ev.Trace = "at Checkout (checkout.js:10)\nat render (react.js:200)\nat main (index.js:1)\nat other (x.js:1)"
	f.clock.Advance(time.Minute)

	second, err := in.Submit(ctx, ev)
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if !second.Deduplicated || second.ItemID != first.ItemID || second.Occurrences != 2 {
		t.Errorf("second = %+v", second)
	}
	if second.Triage != nil {
		t.Error("duplicate was triaged again")
	}

	items, _ := f.store.ListItems(ctx, feedback.ItemFilter{})
	if len(items) != 1 {
		t.Errorf("stored %d items, want 1", len(items))
	}
	if got := f.get(t, first.ItemID).OccurrenceCount; got != 2 {
		t.Errorf("OccurrenceCount = %d, want 2", got)
	}

	f.clock.Advance(fingerprint.DefaultDedupWindow)
	third, err := in.Submit(ctx, captureEvent())
	if err != nil {
		t.Fatalf("third Submit: %v", err)
	}
	if third.Deduplicated {
		t.Error("capture outside the window was deduplicated")
	}
}

func TestSubmit_StaleDedupEntry(t *testing.T) {
	t.Parallel()

	in, _, dedup := newIntake(t)
	ev := captureEvent()
	key := fingerprint.DedupKey(ev.Title, ev.Trace)
	dedup.Put(key, "deleted-item")

	sr, err := in.Submit(context.Background(), ev)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sr.Deduplicated || sr.ItemID == "deleted-item" {
		t.Errorf("result = %+v, want a new item", sr)
	}
	if id, _ := dedup.Lookup(key); id != sr.ItemID {
		t.Errorf("dedup entry = %q, want %q", id, sr.ItemID)
	}
}

func TestSubmit_ManualFeedbackIsNotDeduplicated(t *testing.T) {
	t.Parallel()

	in, _, _ := newIntake(t)
	ev := &Event{Title: "Please add CSV export", Type: feedback.TypeEnhancement, SourceType: feedback.SourceManualFeedback}

	a, err := in.Submit(context.Background(), ev)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	b, err := in.Submit(context.Background(), ev)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if a.ItemID == b.ItemID || b.Deduplicated {
		t.Error("manual feedback was deduplicated")
	}
}

func TestSubmit_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		ev    Event
		field string
	}{
		{"missing title", Event{SourceType: "x"}, "title"},
		{"missing source", Event{Title: "x"}, "source_type"},
		{"bad type", Event{Title: "x", SourceType: "x", Type: "bug"}, "type"},
		{"bad severity", Event{Title: "x", SourceType: "x", Severity: "urgent"}, "severity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in, f, _ := newIntake(t)
			_, err := in.Submit(context.Background(), &tt.ev)
			var ve *feedback.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
			items, _ := f.store.ListItems(context.Background(), feedback.ItemFilter{})
			if len(items) != 0 {
				t.Error("invalid event was persisted")
			}
			if len(f.hooks.submits) != 1 || f.hooks.submits[0] != "rejected" {
				t.Errorf("submits = %v", f.hooks.submits)
			}
		})
	}
}

func TestSubmit_StoreFailure(t *testing.T) {
	t.Parallel()

	in, f, _ := newIntake(t)
	f.store.putErr = errors.New("pool closed")

	_, err := in.Submit(context.Background(), captureEvent())
	if !feedback.IsStore(err) {
		t.Fatalf("err = %v, want StoreError", err)
	}
}
