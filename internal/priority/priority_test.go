package priority

import (
	"strings"
	"testing"

	"github.com/linnemanlabs/sift/internal/feedback"
)

func TestCalculate_Issues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		severity feedback.Severity
		source   string
		want     feedback.Priority
	}{
		{"critical error capture clamps at floor", feedback.SeverityCritical, feedback.SourceErrorCapture, feedback.P0},
		{"critical manual", feedback.SeverityCritical, feedback.SourceManualFeedback, feedback.P0},
		{"high manual", feedback.SeverityHigh, feedback.SourceManualFeedback, feedback.P0},
		{"medium manual", feedback.SeverityMedium, feedback.SourceManualFeedback, feedback.P1},
		{"medium uat", feedback.SeverityMedium, feedback.SourceUATFailure, feedback.P0},
		{"low manual", feedback.SeverityLow, feedback.SourceManualFeedback, feedback.P2},
		{"low error capture", feedback.SeverityLow, feedback.SourceErrorCapture, feedback.P1},
		{"none unknown source", feedback.SeverityNone, "webhook", feedback.P2},
		{"unknown severity is medium", "catastrophic", "", feedback.P1},
		{"empty severity is medium", "", "", feedback.P1},
		{"severity is case insensitive", "HIGH", "", feedback.P0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Calculate(&feedback.Item{Type: feedback.TypeIssue, Severity: tt.severity, SourceType: tt.source})
			if got.Priority != tt.want {
				t.Errorf("priority = %s, want %s (trail: %s)", got.Priority, tt.want, got.Trail())
			}
		})
	}
}

func TestCalculate_ReasoningTrail(t *testing.T) {
	t.Parallel()

	got := Calculate(&feedback.Item{
		Type:       feedback.TypeIssue,
		Severity:   feedback.SeverityCritical,
		SourceType: feedback.SourceErrorCapture,
	})
	trail := got.Trail()
	for _, want := range []string{"base P0", "type issue -1", "source error_capture -1", "clamped -2 to 0", "result P0"} {
		if !strings.Contains(trail, want) {
			t.Errorf("trail %q missing %q", trail, want)
		}
	}
}

func TestCalculate_EnhancementMatrix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value, effort string
		want          feedback.Priority
	}{
		{"high", "small", feedback.P1},
		{"high", "medium", feedback.P1},
		{"high", "large", feedback.P2},
		{"medium", "small", feedback.P2},
		{"medium", "medium", feedback.P2},
		{"medium", "large", feedback.P3},
		{"low", "small", feedback.P3},
		{"low", "medium", feedback.P3},
		{"low", "large", feedback.P3},
		{"", "", feedback.P2},
		{"huge", "small", feedback.P2},
		{"High", "tiny", feedback.P1},
	}

	for _, tt := range tests {
		t.Run(tt.value+"/"+tt.effort, func(t *testing.T) {
			t.Parallel()
			got := Calculate(&feedback.Item{
				Type:     feedback.TypeEnhancement,
				Value:    tt.value,
				Effort:   tt.effort,
				Severity: feedback.SeverityCritical, // ignored for enhancements
			})
			if got.Priority != tt.want {
				t.Errorf("priority = %s, want %s (trail: %s)", got.Priority, tt.want, got.Trail())
			}
		})
	}
}

func TestCalculate_AlwaysValid(t *testing.T) {
	t.Parallel()

	types := []feedback.Type{feedback.TypeIssue, feedback.TypeEnhancement, "", "question"}
	severities := []feedback.Severity{"critical", "high", "medium", "low", "none", "", "bogus"}
	sources := []string{feedback.SourceErrorCapture, feedback.SourceUATFailure, feedback.SourceManualFeedback, "", "other"}

	for _, typ := range types {
		for _, sev := range severities {
			for _, src := range sources {
				got := Calculate(&feedback.Item{Type: typ, Severity: sev, SourceType: src})
				if !got.Priority.Valid() {
					t.Errorf("Calculate(%s,%s,%s) = %q, not P0..P3", typ, sev, src, got.Priority)
				}
				if len(got.Reasoning) == 0 {
					t.Errorf("Calculate(%s,%s,%s) produced no reasoning", typ, sev, src)
				}
			}
		}
	}
}
