package properties

import (
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"lukechampine.com/blake3"

	"github.com/openblcmm/blcmm/internal/config"
	"github.com/openblcmm/blcmm/internal/model"
	"github.com/openblcmm/blcmm/internal/overwrite"
)

var failureChecker = &Checker{
	Name:        CheckerFailure,
	Severity:    model.SeveritySyntaxError,
	Description: "A check could not be evaluated on this element",
	Propagating: true,
}

// nodeState is the engine's private view of one element. Counts are kept
// even for elements that do not accept statuses, so sums pass through them.
type nodeState struct {
	local, deps             []*Checker
	localFailed, depsFailed bool

	hits   []*Checker
	failed bool
	counts map[string]int

	// totals and worst cover every checker in the subtree, propagating or
	// not.
	totals map[string]int
	worst  model.Severity
}

// Engine keeps the transient data of every attached element current. It
// must be used from the goroutine that owns the patch.
type Engine struct {
	registry  Registry
	byName    map[string]*Checker
	classes   ClassIndex
	constants *config.Constants
	logger    *log.Logger

	patch    *model.Patch
	state    map[model.NodeID]*nodeState
	resolver *overwrite.Resolver
}

// Option configures an Engine.
type Option func(*Engine)

// WithClassIndex sets the index consulted by class-aware checkers. Without
// one those checkers never hit.
func WithClassIndex(c ClassIndex) Option {
	return func(e *Engine) { e.classes = c }
}

// WithRegistry replaces the default checker list.
func WithRegistry(r Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithConstants makes the content checkers validate against c instead of
// the patch's own constants.
func WithConstants(c *config.Constants) Option {
	return func(e *Engine) { e.constants = c }
}

// WithLogger sets the logger used for checker failures.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New returns an engine that is not yet attached to a patch.
func New(opts ...Option) *Engine {
	e := &Engine{
		registry: DefaultRegistry(),
		logger:   log.Default(),
		state:    make(map[model.NodeID]*nodeState),
		resolver: overwrite.New(),
	}
	for _, o := range opts {
		o(e)
	}
	e.byName = map[string]*Checker{CheckerFailure: failureChecker}
	for _, c := range e.registry {
		e.byName[c.Name] = c
	}
	return e
}

// Attach subscribes the engine to p and annotates the whole tree.
func (e *Engine) Attach(p *model.Patch) {
	e.patch = p
	p.Subscribe(e)
	e.RecomputeAll()
}

// Resolver exposes the overwrite relations of the last recompute.
func (e *Engine) Resolver() *overwrite.Resolver { return e.resolver }

func (e *Engine) context() *Context {
	c := e.constants
	if c == nil {
		c = e.patch.Constants()
	}
	return &Context{Patch: e.patch, Constants: c, Classes: e.classes}
}

// RecomputeAll discards every cached annotation and evaluates the tree from
// scratch.
func (e *Engine) RecomputeAll() {
	if e.patch == nil {
		return
	}
	clear(e.state)
	ctx := e.context()
	e.recompute(ctx, e.patch.Root())
	e.resolver.Resolve(e.patch)
}

// recompute evaluates every element under id, children first.
func (e *Engine) recompute(ctx *Context, id model.NodeID) {
	n, err := e.patch.Node(id)
	if err != nil {
		return
	}
	for _, c := range n.Children {
		e.recompute(ctx, c)
	}
	e.evaluate(ctx, n, false)
}

type dirty struct {
	depth int
	// onlyChildren limits the update to checkers that look at children.
	onlyChildren bool
}

// PatchChanged implements model.Listener.
func (e *Engine) PatchChanged(p *model.Patch, ev model.Event) {
	if p != e.patch {
		return
	}
	set := make(map[model.NodeID]*dirty)
	full := func(id model.NodeID) {
		_ = p.Walk(id, func(n *model.Node) error {
			set[n.ID] = &dirty{}
			return nil
		})
	}
	chain := func(from model.NodeID) {
		for cur := from; cur != model.NoNode; cur = p.Parent(cur) {
			if _, ok := set[cur]; !ok {
				set[cur] = &dirty{onlyChildren: true}
			}
		}
	}

	switch ev.Op {
	case model.OpInserted, model.OpEdited:
		full(ev.ID)
		chain(p.Parent(ev.ID))
	case model.OpRemoved:
		_ = p.Walk(ev.ID, func(n *model.Node) error {
			delete(e.state, n.ID)
			return nil
		})
		chain(ev.OldParent)
	case model.OpSelection:
		for _, id := range ev.IDs {
			set[id] = &dirty{}
		}
		for _, id := range ev.IDs {
			chain(p.Parent(id))
		}
	case model.OpReordered:
		chain(ev.ID)
	}

	ids := make([]model.NodeID, 0, len(set))
	for id, d := range set {
		if !p.Attached(id) {
			continue
		}
		d.depth = len(p.Ancestors(id))
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b model.NodeID) int {
		if c := set[b].depth - set[a].depth; c != 0 {
			return c
		}
		return int(a) - int(b)
	})

	ctx := e.context()
	for _, id := range ids {
		n, _ := p.Node(id)
		e.evaluate(ctx, n, set[id].onlyChildren)
	}
	e.resolver.Resolve(p)
	log.Debug("annotations updated", "op", ev.Op, "id", ev.ID, "elements", len(ids))
}

func (e *Engine) accepts(id model.NodeID) bool {
	return id != e.patch.Root() && !e.patch.IsTopLevelMods(id)
}

// evaluate recomputes the hits of n (or only its children-dependent hits)
// and rebuilds its counts from its children's cached counts.
func (e *Engine) evaluate(ctx *Context, n *model.Node, onlyChildren bool) {
	st, ok := e.state[n.ID]
	if !ok {
		st = &nodeState{}
		e.state[n.ID] = st
		onlyChildren = false
	}
	accepting := e.accepts(n.ID)

	local := func(c *Checker) bool { return !c.DependsOnChildren }
	deps := func(c *Checker) bool { return c.DependsOnChildren }
	switch {
	case !accepting:
		st.local, st.deps = nil, nil
		st.localFailed, st.depsFailed = false, false
	case onlyChildren:
		st.deps, st.depsFailed = e.run(ctx, n, deps)
	default:
		st.local, st.localFailed = e.run(ctx, n, local)
		st.deps, st.depsFailed = e.run(ctx, n, deps)
	}
	st.hits = mergeInOrder(e.registry, st.local, st.deps)
	st.failed = st.localFailed || st.depsFailed
	if st.failed {
		st.hits = append(st.hits, failureChecker)
	}

	st.counts = make(map[string]int)
	st.totals = make(map[string]int)
	st.worst = model.SeverityNone
	for _, c := range st.hits {
		st.counts[c.Name]++
		st.totals[c.Name]++
		st.worst = max(st.worst, c.Severity)
	}
	for _, child := range n.Children {
		cs, ok := e.state[child]
		if !ok {
			continue
		}
		for name, v := range cs.counts {
			if c := e.checker(name); c != nil && c.Propagating {
				st.counts[name] += v
			}
		}
		for name, v := range cs.totals {
			st.totals[name] += v
		}
		st.worst = max(st.worst, cs.worst)
	}

	e.publish(n, st, accepting)
}

func (e *Engine) checker(name string) *Checker {
	return e.byName[name]
}

// Checker returns the checker registered under name, CheckerFailure
// included.
func (e *Engine) Checker(name string) (*Checker, bool) {
	c, ok := e.byName[name]
	return c, ok
}

// run evaluates the selected checkers on n. A checker that panics or errors
// marks n as failed and is treated as not hitting.
func (e *Engine) run(ctx *Context, n *model.Node, include func(*Checker) bool) (hits []*Checker, failed bool) {
	s := newSubject(ctx, n)
	for _, c := range e.registry {
		if !include(c) || c.check == nil {
			continue
		}
		hit, err := e.safeCheck(ctx, c, n, s)
		if err != nil {
			failed = true
			e.logger.Warn("checker failed", "checker", c.Name, "element", n.ID, "err", err)
			continue
		}
		if hit {
			hits = append(hits, c)
		}
	}
	return hits, failed
}

func (e *Engine) safeCheck(ctx *Context, c *Checker, n *model.Node, s *subject) (hit bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			hit, err = false, fmt.Errorf("panic: %v", r)
		}
	}()
	return c.check(ctx, n, s)
}

// mergeInOrder combines two hit lists, keeping registry order.
func mergeInOrder(r Registry, a, b []*Checker) []*Checker {
	in := make(map[*Checker]bool, len(a)+len(b))
	for _, c := range a {
		in[c] = true
	}
	for _, c := range b {
		in[c] = true
	}
	out := make([]*Checker, 0, len(in))
	for _, c := range r {
		if in[c] {
			out = append(out, c)
		}
	}
	return out
}

func (e *Engine) publish(n *model.Node, st *nodeState, accepting bool) {
	t := n.Transient
	if t == nil {
		return
	}
	t.AcceptStatuses = accepting
	t.Statuses = t.Statuses[:0]
	clear(t.Counts)
	t.Failed = false
	if !accepting {
		return
	}
	for _, c := range st.hits {
		t.Statuses = append(t.Statuses, model.Status{Checker: c.Name, Severity: c.Severity, Description: c.Description})
	}
	maps.Copy(t.Counts, st.counts)
	t.Failed = st.failed
}

// Statuses returns the checker hits on id itself, in registry order.
func (e *Engine) Statuses(id model.NodeID) []model.Status {
	n, err := e.patch.Node(id)
	if err != nil || n.Transient == nil {
		return nil
	}
	return slices.Clone(n.Transient.Statuses)
}

// Count returns the occurrences of checker under id. For elements that do
// not accept statuses this is the sum over their children.
func (e *Engine) Count(id model.NodeID, checker string) int {
	if st, ok := e.state[id]; ok {
		return st.counts[checker]
	}
	return 0
}

// Counts returns a copy of every checker count under id.
func (e *Engine) Counts(id model.NodeID) map[string]int {
	if st, ok := e.state[id]; ok {
		return maps.Clone(st.counts)
	}
	return nil
}

// Totals returns the hits of every checker in the subtree of id, including
// checkers whose counts do not propagate.
func (e *Engine) Totals(id model.NodeID) map[string]int {
	if st, ok := e.state[id]; ok {
		return maps.Clone(st.totals)
	}
	return nil
}

// SubtreeSeverity returns the most severe result on id or anywhere below it.
func (e *Engine) SubtreeSeverity(id model.NodeID) model.Severity {
	if st, ok := e.state[id]; ok {
		return st.worst
	}
	return model.SeverityNone
}

// HighestSeverity returns the most severe result on id or, for propagating
// checkers, anywhere below it. This is what a tree view shows next to an
// element; use SubtreeSeverity to ask whether anything below it is wrong.
func (e *Engine) HighestSeverity(id model.NodeID) model.Severity {
	st, ok := e.state[id]
	if !ok {
		return model.SeverityNone
	}
	best := model.SeverityNone
	for _, c := range st.hits {
		best = max(best, c.Severity)
	}
	for name, v := range st.counts {
		if c := e.checker(name); v > 0 && c != nil && c.Propagating {
			best = max(best, c.Severity)
		}
	}
	return best
}

// OverwriteState returns the overwrite classification of id.
func (e *Engine) OverwriteState(id model.NodeID) model.OverwriteState {
	return e.resolver.State(id)
}

// Digest hashes a canonical rendering of every attached element's
// annotations. Two trees with identical annotations have equal digests.
func (e *Engine) Digest() string {
	if e.patch == nil {
		return ""
	}
	h := blake3.New(32, nil)
	_ = e.patch.Walk(e.patch.Root(), func(n *model.Node) error {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%d|%s|%s|", len(e.patch.Ancestors(n.ID)), n.Kind, n.Code())
		if t := n.Transient; t != nil {
			fmt.Fprintf(&sb, "%t|%t|%s|", t.AcceptStatuses, t.Failed, t.Overwrite)
			for _, s := range t.Statuses {
				sb.WriteString(s.Checker)
				sb.WriteByte(',')
			}
			sb.WriteByte('|')
			for _, k := range slices.Sorted(maps.Keys(t.Counts)) {
				fmt.Fprintf(&sb, "%s=%d,", k, t.Counts[k])
			}
		}
		sb.WriteByte('\n')
		_, _ = h.Write([]byte(sb.String()))
		return nil
	})
	return hex.EncodeToString(h.Sum(nil))
}
