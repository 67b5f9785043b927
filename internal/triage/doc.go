// Package triage is the business boundary of sift. The Orchestrator runs the
// fixed per-item pipeline (ignore, priority, burst join, assignment,
// disposition, persist) and the Intake service turns producer events into
// items, deduplicating repeat captures before triage.
package triage
