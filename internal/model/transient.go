package model

import (
	"fmt"
	"strings"
)

// Severity orders checker results; a higher value is more severe.
type Severity uint8

const (
	SeverityNone Severity = iota
	SeverityInvisible
	SeverityInformational
	SeverityWarning
	SeverityContentError
	SeveritySyntaxError
)

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityInvisible:
		return "invisible"
	case SeverityInformational:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityContentError:
		return "content-error"
	case SeveritySyntaxError:
		return "syntax-error"
	default:
		return fmt.Sprintf("severity(%d)", s)
	}
}

// ParseSeverity is the inverse of Severity.String.
func ParseSeverity(s string) (Severity, error) {
	for v := SeverityNone; v <= SeveritySyntaxError; v++ {
		if strings.EqualFold(s, v.String()) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}

// Status is one checker result attached to an element.
type Status struct {
	Checker     string
	Severity    Severity
	Description string
}

// OverwriteState classifies a statement against other statements writing
// the same or an overlapping (object, field) key.
type OverwriteState uint8

const (
	NotOverwriting OverwriteState = iota
	FullOverwriter
	PartialOverwriter
	FullyOverwritten
	PartiallyOverwritten
	Irrelevant
)

func (s OverwriteState) String() string {
	switch s {
	case NotOverwriting:
		return "not-overwriting"
	case FullOverwriter:
		return "full-overwriter"
	case PartialOverwriter:
		return "partial-overwriter"
	case FullyOverwritten:
		return "fully-overwritten"
	case PartiallyOverwritten:
		return "partially-overwritten"
	case Irrelevant:
		return "irrelevant"
	default:
		return fmt.Sprintf("overwrite(%d)", s)
	}
}

// TransientData is the cache of computed annotations for one element. It is
// owned by the element and rewritten by the annotation engine.
type TransientData struct {
	// Statuses are the checker hits on the element itself, in registry order.
	Statuses []Status
	// Counts maps a checker name to its number of occurrences in the subtree.
	Counts map[string]int
	// Overwrite is the element's overwrite classification.
	Overwrite OverwriteState
	// AcceptStatuses is false for elements that keep no statuses or counts
	// (the root and the top-level "mods" category).
	AcceptStatuses bool
	// Failed is set when a checker could not be evaluated on the element.
	Failed bool
}

func newTransientData() *TransientData {
	return &TransientData{Counts: map[string]int{}, AcceptStatuses: true}
}

// Count returns the occurrences of checker in the subtree.
func (t *TransientData) Count(checker string) int {
	if t == nil {
		return 0
	}
	return t.Counts[checker]
}

// Has reports whether checker hits the element itself.
func (t *TransientData) Has(checker string) bool {
	if t == nil {
		return false
	}
	for _, s := range t.Statuses {
		if s.Checker == checker {
			return true
		}
	}
	return false
}

// HighestSeverity returns the most severe status on the element itself.
func (t *TransientData) HighestSeverity() Severity {
	if t == nil {
		return SeverityNone
	}
	best := SeverityNone
	for _, s := range t.Statuses {
		if s.Severity > best {
			best = s.Severity
		}
	}
	return best
}

// Reset clears every cached value.
func (t *TransientData) Reset() {
	t.Statuses = t.Statuses[:0]
	for k := range t.Counts {
		delete(t.Counts, k)
	}
	t.Overwrite = NotOverwriting
	t.Failed = false
}
