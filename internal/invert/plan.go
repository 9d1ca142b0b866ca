package invert

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/openblcmm/blcmm/internal/dictionary"
	"github.com/openblcmm/blcmm/internal/model"
)

// Options tune Plan.
type Options struct {
	// Workers bounds how many classes are streamed at once. Zero means
	// GOMAXPROCS.
	Workers int
	// MissingAsEmpty inverts a statement to an empty value when neither its
	// field nor the head of its field exists in the dump. By default such a
	// statement is left uninverted.
	MissingAsEmpty bool
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// classGroup is the work for one class: lowercased object name to the
// indexes of the statements writing it.
type classGroup struct {
	class   string
	objects map[string][]int
}

type classResult struct {
	inverted   []Statement
	uninverted []Statement
}

// Plan computes the inversion of category. It reads the patch only before
// the first dictionary stream starts, so the patch must not be mutated
// concurrently with the call itself; the returned Result shares nothing
// with it.
func Plan(ctx context.Context, p *model.Patch, category model.NodeID, dict dictionary.Dictionary, opts Options) (*Result, error) {
	start := time.Now()
	n, err := p.Node(category)
	if err != nil {
		return nil, err
	}
	if n.Kind != model.KindCategory {
		return nil, &model.StructuralError{Op: "invert", ID: category, Reason: "only categories can be inverted"}
	}

	sources := collect(p, category)
	res := &Result{Name: n.Name}

	groups, err := groupByClass(ctx, dict, sources, res)
	if err != nil {
		return nil, err
	}

	outs := make([]classResult, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i, grp := range groups {
		g.Go(func() error {
			out, err := invertClass(gctx, dict, grp, sources, opts, p.ValidateStatement)
			outs[i] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, out := range outs {
		res.Inverted = append(res.Inverted, out.inverted...)
		res.Uninverted = append(res.Uninverted, out.uninverted...)
	}
	res.sort()
	log.Debug("inversion planned",
		"category", n.Name,
		"statements", len(sources),
		"classes", len(groups),
		"inverted", len(res.Inverted),
		"uninverted", len(res.Uninverted),
		"took", time.Since(start))
	return res, nil
}

// collect snapshots every statement under category in document order,
// unselected ones included.
func collect(p *model.Patch, category model.NodeID) []Statement {
	ids := p.Statements(category)
	out := make([]Statement, 0, len(ids))
	for _, id := range ids {
		n, err := p.Node(id)
		if err != nil {
			continue
		}
		s := Statement{
			Source:       id,
			Kind:         n.Kind,
			Object:       n.Object,
			Field:        n.Field,
			CompareValue: n.CompareValue,
			Value:        n.Value,
		}
		if w, err := p.Node(n.Parent); err == nil && w.Kind == model.KindHotfixWrapper {
			s.Wrapper = &Wrapper{Name: w.Name, Type: w.HotfixType, Parameter: w.Parameter}
		}
		out = append(out, s)
	}
	return out
}

// groupByClass resolves the class of every written object. Statements on
// objects without a class go straight to res.Uninverted.
func groupByClass(ctx context.Context, dict dictionary.Dictionary, sources []Statement, res *Result) ([]classGroup, error) {
	type lookup struct {
		class string
		ok    bool
	}
	known := make(map[string]lookup)
	byClass := make(map[string]map[string][]int)

	for i, s := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := strings.ToLower(s.Object)
		l, seen := known[key]
		if !seen {
			class, ok, err := dict.ObjectClass(ctx, s.Object)
			if err != nil {
				return nil, fmt.Errorf("resolve class of %s: %w", s.Object, err)
			}
			l = lookup{class: strings.ToLower(class), ok: ok}
			known[key] = l
		}
		if !l.ok {
			res.Uninverted = append(res.Uninverted, uninverted(s, ReasonNoClass))
			continue
		}
		objects := byClass[l.class]
		if objects == nil {
			objects = make(map[string][]int)
			byClass[l.class] = objects
		}
		objects[key] = append(objects[key], i)
	}

	groups := make([]classGroup, 0, len(byClass))
	for class, objects := range byClass {
		groups = append(groups, classGroup{class: class, objects: objects})
	}
	slices.SortFunc(groups, func(a, b classGroup) int { return strings.Compare(a.class, b.class) })
	return groups, nil
}

// invertClass streams the dumps of one class and resolves every statement
// on an object of that class. Inverted statements that valid rejects are
// reported as not inverted.
func invertClass(ctx context.Context, dict dictionary.Dictionary, grp classGroup, sources []Statement, opts Options, valid func(object, field, value string) error) (classResult, error) {
	var out classResult
	seen := make(map[string]bool, len(grp.objects))

	err := dict.StreamDumpsOfClass(ctx, grp.class, func(d dictionary.Dump) error {
		key := strings.ToLower(d.Object)
		idx, wanted := grp.objects[key]
		if !wanted || seen[key] {
			return nil
		}
		seen[key] = true

		obj, perr := dictionary.ParseObject(d.Text)
		for _, i := range idx {
			s := sources[i]
			if perr != nil {
				out.uninverted = append(out.uninverted, uninverted(s, ReasonMalformedDump))
				continue
			}
			value, reason := resolve(obj, s.Field, opts)
			if reason != "" {
				log.Debug("statement not inverted", "object", d.Object, "field", s.Field, "reason", reason)
				out.uninverted = append(out.uninverted, uninverted(s, reason))
				continue
			}
			if err := valid(d.Object, s.Field, value); err != nil {
				log.Debug("statement not inverted", "object", d.Object, "field", s.Field, "err", err)
				out.uninverted = append(out.uninverted, uninverted(s, ReasonInvalidValue))
				continue
			}
			out.inverted = append(out.inverted, Statement{
				Source:  s.Source,
				Kind:    model.KindSetCommand,
				Object:  d.Object,
				Field:   s.Field,
				Value:   value,
				Wrapper: s.Wrapper,
			})
		}
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("stream class %s: %w", grp.class, err)
	}

	for key, idx := range grp.objects {
		if seen[key] {
			continue
		}
		for _, i := range idx {
			out.uninverted = append(out.uninverted, uninverted(sources[i], ReasonNoDump))
		}
	}
	return out, nil
}

// resolve looks up field in obj. A non-empty reason means the statement
// cannot be inverted.
func resolve(obj *dictionary.Object, field string, opts Options) (value, reason string) {
	v, err := obj.Field(field)
	switch {
	case err == nil:
		return v, ""
	case errors.Is(err, dictionary.ErrIndexOutOfRange):
		return "", ReasonIndexOutOfRange
	case !errors.Is(err, dictionary.ErrFieldNotFound):
		return "", ReasonMalformedDump
	}
	if opts.MissingAsEmpty {
		if _, herr := obj.Field(headField(field)); errors.Is(herr, dictionary.ErrFieldNotFound) {
			return "", ""
		}
	}
	return "", ReasonFieldNotFound
}

// headField strips sub-field and index qualifiers: "A[2].B" -> "A".
func headField(field string) string {
	if i := strings.IndexAny(field, ".["); i >= 0 {
		return field[:i]
	}
	return field
}

func uninverted(s Statement, reason string) Statement {
	s.Ambiguity = &ResolutionAmbiguity{Object: s.Object, Field: s.Field, Reason: reason}
	return s
}
