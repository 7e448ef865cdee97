package model

import "fmt"

// ValidationError reports a malformed persisted document or deployment
// configuration. It is fatal for the operation that encountered it; callers
// surface it rather than repairing or discarding the input.
type ValidationError struct {
	Path   string // JSON-ish path to the offending field
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Path, e.Reason)
}
