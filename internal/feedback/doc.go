// Package feedback holds the domain model shared by the triage pipeline:
// feedback items, burst groups, ignore patterns, the Store interface that
// persists them, and the error taxonomy the pipeline reports with.
package feedback
