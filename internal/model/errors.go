package model

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("element not found")

// ValidationError is returned when user-supplied text violates a constraint
// (empty, forbidden substring, bad hotfix parameter). The patch is unchanged.
type ValidationError struct {
	Field  string // which attribute: "name", "object", "value", ...
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// StructuralError is returned when a mutation would break a tree invariant.
// The patch is unchanged.
type StructuralError struct {
	Op     string
	ID     NodeID
	Reason string
	Err    error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s #%d: %s", e.Op, e.ID, e.Reason)
}

func (e *StructuralError) Unwrap() error { return e.Err }

func structural(op string, id NodeID, format string, args ...any) *StructuralError {
	return &StructuralError{Op: op, ID: id, Reason: fmt.Sprintf(format, args...)}
}

func notFound(op string, id NodeID) *StructuralError {
	return &StructuralError{Op: op, ID: id, Reason: "unknown element", Err: ErrNotFound}
}
