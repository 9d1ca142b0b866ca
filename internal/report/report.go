// Package report collects the annotations and overwrite relations of a patch
// into a flat, serialisable report and renders it as styled text, JSON, YAML
// or TOML.
package report

import (
	"slices"
	"strings"

	"github.com/openblcmm/blcmm/internal/model"
	"github.com/openblcmm/blcmm/internal/properties"
)

// Options select what goes into a report.
type Options struct {
	// MinSeverity drops statuses below it. The zero value keeps everything
	// but invisible results.
	MinSeverity model.Severity
	// Overwrites adds the overwrite section.
	Overwrites bool
}

func (o Options) minSeverity() model.Severity {
	if o.MinSeverity == model.SeverityNone {
		return model.SeverityInformational
	}
	return o.MinSeverity
}

// Report is the flattened result of one check run.
type Report struct {
	Name   string `json:"name" yaml:"name" toml:"name"`
	Digest string `json:"digest" yaml:"digest" toml:"digest"`
	// Totals counts every checker hit in the tree at or above the minimum
	// severity, by checker name.
	Totals      map[string]int `json:"totals,omitempty" yaml:"totals,omitempty" toml:"totals,omitempty"`
	Annotations []Annotation   `json:"annotations,omitempty" yaml:"annotations,omitempty" toml:"annotations,omitempty"`
	Overwrites  []Overwrite    `json:"overwrites,omitempty" yaml:"overwrites,omitempty" toml:"overwrites,omitempty"`
}

// Annotation lists the statuses of one element.
type Annotation struct {
	ID       uint32   `json:"id" yaml:"id" toml:"id"`
	Path     string   `json:"path" yaml:"path" toml:"path"`
	Kind     string   `json:"kind" yaml:"kind" toml:"kind"`
	Code     string   `json:"code" yaml:"code" toml:"code"`
	Severity string   `json:"severity" yaml:"severity" toml:"severity"`
	Statuses []Status `json:"statuses" yaml:"statuses" toml:"statuses"`
}

// Status is one checker hit.
type Status struct {
	Checker     string `json:"checker" yaml:"checker" toml:"checker"`
	Severity    string `json:"severity" yaml:"severity" toml:"severity"`
	Description string `json:"description" yaml:"description" toml:"description"`
}

// Overwrite describes a statement involved in an overwrite relation.
type Overwrite struct {
	ID          uint32 `json:"id" yaml:"id" toml:"id"`
	Path        string `json:"path" yaml:"path" toml:"path"`
	Code        string `json:"code" yaml:"code" toml:"code"`
	State       string `json:"state" yaml:"state" toml:"state"`
	Overwriters []Ref  `json:"overwriters,omitempty" yaml:"overwriters,omitempty" toml:"overwriters,omitempty"`
	Overwritten []Ref  `json:"overwritten,omitempty" yaml:"overwritten,omitempty" toml:"overwritten,omitempty"`
}

// Ref points at another statement.
type Ref struct {
	ID      uint32 `json:"id" yaml:"id" toml:"id"`
	Code    string `json:"code" yaml:"code" toml:"code"`
	Partial bool   `json:"partial,omitempty" yaml:"partial,omitempty" toml:"partial,omitempty"`
}

// Build collects a report from p and the engine attached to it.
func Build(name string, p *model.Patch, e *properties.Engine, opts Options) *Report {
	floor := opts.minSeverity()
	r := &Report{Name: name, Digest: e.Digest(), Totals: map[string]int{}}
	for k, v := range e.Totals(p.Root()) {
		if c, ok := e.Checker(k); v > 0 && ok && c.Severity >= floor {
			r.Totals[k] = v
		}
	}
	res := e.Resolver()

	var walk func(id model.NodeID, path []string)
	walk = func(id model.NodeID, path []string) {
		n, err := p.Node(id)
		if err != nil {
			return
		}
		if id != p.Root() && n.Kind.IsContainer() {
			path = append(path, n.Name)
		}
		loc := strings.Join(path, "/")

		var sts []Status
		for _, s := range e.Statuses(id) {
			if s.Severity >= floor {
				sts = append(sts, Status{Checker: s.Checker, Severity: s.Severity.String(), Description: s.Description})
			}
		}
		if len(sts) > 0 {
			r.Annotations = append(r.Annotations, Annotation{
				ID:       uint32(id),
				Path:     loc,
				Kind:     n.Kind.String(),
				Code:     n.Code(),
				Severity: e.HighestSeverity(id).String(),
				Statuses: sts,
			})
		}

		if opts.Overwrites && n.Kind.IsStatement() {
			if ow, ok := overwriteEntry(p, res, n, loc); ok {
				r.Overwrites = append(r.Overwrites, ow)
			}
		}
		for _, c := range n.Children {
			walk(c, slices.Clone(path))
		}
	}
	walk(p.Root(), nil)
	return r
}

func overwriteEntry(p *model.Patch, res overwriteQueries, n *model.Node, loc string) (Overwrite, bool) {
	state := res.State(n.ID)
	switch state {
	case model.NotOverwriting, model.Irrelevant:
		return Overwrite{}, false
	}
	ow := Overwrite{ID: uint32(n.ID), Path: loc, Code: n.Code(), State: state.String()}
	ow.Overwriters = append(refs(p, res.Overwriters(n.ID, false), false), refs(p, res.Overwriters(n.ID, true), true)...)
	ow.Overwritten = append(refs(p, res.Overwritten(n.ID, false), false), refs(p, res.Overwritten(n.ID, true), true)...)
	return ow, true
}

// overwriteQueries is the part of overwrite.Resolver a report reads.
type overwriteQueries interface {
	State(id model.NodeID) model.OverwriteState
	Overwriters(id model.NodeID, partial bool) []model.NodeID
	Overwritten(id model.NodeID, partial bool) []model.NodeID
}

func refs(p *model.Patch, ids []model.NodeID, partial bool) []Ref {
	var out []Ref
	for _, id := range ids {
		n, err := p.Node(id)
		if err != nil {
			continue
		}
		out = append(out, Ref{ID: uint32(id), Code: n.Code(), Partial: partial})
	}
	return out
}
