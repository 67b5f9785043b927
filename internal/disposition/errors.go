package disposition

import "fmt"

// Reason classifies why the external classifier could not be used.
type Reason string

const (
	ReasonTimeout     Reason = "timeout"
	ReasonRateLimited Reason = "rate_limited"
	ReasonProvider    Reason = "provider_error"
	ReasonNoJSON      Reason = "no_json"
	ReasonMalformed   Reason = "malformed_json"
	ReasonDisabled    Reason = "disabled"
)

// ClassificationError reports a classifier failure. It is always recovered
// with the rule-based fallback and never surfaces past the orchestrator.
type ClassificationError struct {
	Reason Reason
	Err    error
}

func (e *ClassificationError) Error() string {
	if e.Err == nil {
		return "classification: " + string(e.Reason)
	}
	return fmt.Sprintf("classification: %s: %v", e.Reason, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

func classErr(r Reason, err error) error {
	return &ClassificationError{Reason: r, Err: err}
}
