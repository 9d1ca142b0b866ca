// Package invert builds the inverse of a category: for every statement it
// looks up the value the object had before the mod touched it, using an
// object dictionary.
//
// Planning (Plan) only reads the patch on the calling goroutine and then
// streams dumps on worker goroutines; it returns plain data. Applying the
// result (Apply) mutates the patch and must run on the goroutine that owns
// it.
package invert

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/openblcmm/blcmm/internal/model"
)

// Reasons recorded on statements that could not be inverted.
const (
	ReasonNoClass         = "object has no class mapping"
	ReasonNoDump          = "object has no dump"
	ReasonFieldNotFound   = "field not found in dump"
	ReasonIndexOutOfRange = "index out of range"
	ReasonMalformedDump   = "dump could not be parsed"
	ReasonInvalidValue    = "dump value cannot be written back"
)

// ResolutionAmbiguity explains why a statement was left uninverted.
type ResolutionAmbiguity struct {
	Object string
	Field  string
	Reason string
}

func (a *ResolutionAmbiguity) Error() string {
	return fmt.Sprintf("cannot invert %s %s: %s", a.Object, a.Field, a.Reason)
}

// Wrapper is the hotfix metadata a statement carries into the result.
type Wrapper struct {
	Name      string
	Type      model.HotfixType
	Parameter string
}

// Statement is one planned output statement.
type Statement struct {
	// Source is the statement in the inverted category this one came from.
	Source model.NodeID

	Kind         model.Kind
	Object       string
	Field        string
	CompareValue string
	Value        string

	// Wrapper is nil for statements outside hotfixes.
	Wrapper *Wrapper
	// Ambiguity is set on uninverted statements.
	Ambiguity *ResolutionAmbiguity
}

// Code renders the statement the way the model does.
func (s Statement) Code() string {
	if s.Kind == model.KindSetCMPCommand {
		return fmt.Sprintf("set_cmp %s %s %s %s", s.Object, s.Field, s.CompareValue, s.Value)
	}
	return fmt.Sprintf("set %s %s %s", s.Object, s.Field, s.Value)
}

// Result is the outcome of Plan.
type Result struct {
	// Name is the name of the inverted category.
	Name       string
	Inverted   []Statement
	Uninverted []Statement
}

// Empty reports whether the result holds no statements at all.
func (r *Result) Empty() bool {
	return len(r.Inverted) == 0 && len(r.Uninverted) == 0
}

func compareStatements(a, b Statement) int {
	if c := strings.Compare(strings.ToLower(a.Code()), strings.ToLower(b.Code())); c != 0 {
		return c
	}
	if c := strings.Compare(a.Code(), b.Code()); c != 0 {
		return c
	}
	switch {
	case a.Wrapper == nil && b.Wrapper != nil:
		return -1
	case a.Wrapper != nil && b.Wrapper == nil:
		return 1
	case a.Wrapper != nil:
		if c := strings.Compare(a.Wrapper.Name, b.Wrapper.Name); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Wrapper.Type, b.Wrapper.Type); c != 0 {
			return c
		}
		if c := strings.Compare(a.Wrapper.Parameter, b.Wrapper.Parameter); c != 0 {
			return c
		}
	}
	return cmp.Compare(a.Source, b.Source)
}

func (r *Result) sort() {
	slices.SortFunc(r.Inverted, compareStatements)
	slices.SortFunc(r.Uninverted, compareStatements)
}
