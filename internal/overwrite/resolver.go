// Package overwrite works out which statements of a patch overwrite each
// other. Statements are replayed in the order the game applies them: every
// plain set statement in document order, then every hotfix statement in
// document order. A later write to the same key, or to a coarser key,
// fully overwrites earlier writes; a later write to a finer key partially
// overwrites them.
package overwrite

import (
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/openblcmm/blcmm/internal/model"
)

type entry struct {
	id     model.NodeID
	seq    int
	key    string
	free   string
	writer bool

	fullBy    []*entry // later writers of an equal or coarser key
	fullOf    []*entry // earlier entries this one fully overwrites
	partialBy []*entry // later writers of a finer key
	partialOf []*entry // earlier entries this one partially overwrites
}

// Resolver holds the result of the last Resolve. It is not safe for
// concurrent use.
type Resolver struct {
	keyer   Keyer
	entries map[model.NodeID]*entry
	byKey   map[string][]*entry
	keys    keySet
	states  map[model.NodeID]model.OverwriteState
}

// New returns an empty resolver.
func New() *Resolver {
	r := &Resolver{}
	r.reset()
	return r
}

func (r *Resolver) reset() {
	r.entries = make(map[model.NodeID]*entry)
	r.byKey = make(map[string][]*entry)
	r.keys = r.keys[:0]
	r.states = make(map[model.NodeID]model.OverwriteState)
}

// Resolve recomputes overwrite relations for the whole tree and stores each
// element's state in its transient data. Resolving an unchanged tree twice
// gives the same result.
func (r *Resolver) Resolve(p *model.Patch) {
	r.reset()
	r.keyer = Keyer{Separators: p.Constants().FieldSeparators}

	irrelevant := r.irrelevantBranches(p)
	for id := range irrelevant {
		r.states[id] = model.Irrelevant
	}

	var plain, hotfix []model.NodeID
	_ = p.Walk(p.Root(), func(n *model.Node) error {
		if irrelevant[n.ID] {
			return model.SkipChildren
		}
		if !n.Kind.IsStatement() || skipped(n) {
			return nil
		}
		if p.IsInHotfix(n.ID) {
			hotfix = append(hotfix, n.ID)
		} else {
			plain = append(plain, n.ID)
		}
		return nil
	})
	for _, id := range slices.Concat(plain, hotfix) {
		r.add(p, id)
	}

	for id, e := range r.entries {
		r.states[id] = e.state()
	}
	r.aggregate(p, p.Root())

	_ = p.Walk(p.Root(), func(n *model.Node) error {
		if n.Transient != nil {
			n.Transient.Overwrite = r.states[n.ID]
		}
		return nil
	})
	log.Debug("overwrites resolved", "statements", len(r.entries), "keys", len(r.keys))
}

// skipped reports statements the game treats as additive or that are
// handled outside the regular key space.
func skipped(n *model.Node) bool {
	return strings.HasPrefix(n.Value, "+(") || strings.EqualFold(n.Field, "levellist")
}

// irrelevantBranches marks every element inside a branch of a mutually
// exclusive category that holds no selected statement.
func (r *Resolver) irrelevantBranches(p *model.Patch) map[model.NodeID]bool {
	out := make(map[model.NodeID]bool)
	_ = p.Walk(p.Root(), func(n *model.Node) error {
		if n.Kind != model.KindCategory || !n.MutuallyExclusive {
			return nil
		}
		for _, branch := range n.Children {
			if hasSelected(p, branch) {
				continue
			}
			_ = p.Walk(branch, func(d *model.Node) error {
				out[d.ID] = true
				return nil
			})
		}
		return model.SkipChildren
	})
	return out
}

func hasSelected(p *model.Patch, id model.NodeID) bool {
	for _, s := range p.Statements(id) {
		if n, err := p.Node(s); err == nil && n.Selected {
			return true
		}
	}
	return false
}

func (r *Resolver) add(p *model.Patch, id model.NodeID) {
	n, err := p.Node(id)
	if err != nil {
		return
	}
	var wrapper *model.Node
	if p.IsInHotfix(id) {
		wrapper, _ = p.Node(n.Parent)
	}
	e := &entry{
		id:     id,
		seq:    len(r.entries),
		key:    r.keyer.Start(n, wrapper),
		free:   r.keyer.HotfixFreeStart(n),
		writer: n.Selected,
	}

	// Unselected statements are registered so later writers can overwrite
	// them, but they never overwrite anything themselves.
	if e.writer {
		for _, key := range r.keys.withPrefix(e.free) {
			switch {
			case strings.HasPrefix(key, e.key) && r.keyer.IsValidSuperString(e.key, key):
				for _, old := range r.byKey[key] {
					old.fullBy = append(old.fullBy, e)
					e.fullOf = append(e.fullOf, old)
				}
			case strings.HasPrefix(e.key, key) && r.keyer.IsValidSuperString(key, e.key):
				for _, old := range r.byKey[key] {
					old.partialBy = append(old.partialBy, e)
					e.partialOf = append(e.partialOf, old)
				}
			}
		}
	}

	r.entries[id] = e
	r.byKey[e.key] = append(r.byKey[e.key], e)
	r.keys.add(e.key)
}

func (e *entry) state() model.OverwriteState {
	switch {
	case len(e.fullBy) > 0:
		return model.FullyOverwritten
	case len(e.partialBy) > 0:
		return model.PartiallyOverwritten
	case len(e.fullOf) > 0:
		return model.FullOverwriter
	case len(e.partialOf) > 0:
		return model.PartialOverwriter
	default:
		return model.NotOverwriting
	}
}

func rank(s model.OverwriteState) int {
	switch s {
	case model.FullyOverwritten:
		return 4
	case model.PartiallyOverwritten:
		return 3
	case model.FullOverwriter:
		return 2
	case model.PartialOverwriter:
		return 1
	default:
		return 0
	}
}

// aggregate gives every container the most significant state found below
// it. A container holding only partial overwriters counts as an overwriter.
// The root and the top-level mods category keep NotOverwriting.
func (r *Resolver) aggregate(p *model.Patch, id model.NodeID) model.OverwriteState {
	n, err := p.Node(id)
	if err != nil {
		return model.NotOverwriting
	}
	if !n.Kind.IsContainer() {
		return r.states[id]
	}
	if r.states[id] == model.Irrelevant {
		return model.Irrelevant
	}
	best := model.NotOverwriting
	for _, c := range n.Children {
		s := r.aggregate(p, c)
		if s == model.PartialOverwriter {
			s = model.FullOverwriter
		}
		if rank(s) > rank(best) {
			best = s
		}
	}
	if id == p.Root() || p.IsTopLevelMods(id) {
		r.states[id] = model.NotOverwriting
	} else {
		r.states[id] = best
	}
	return best
}

// State returns the overwrite state computed for id by the last Resolve.
func (r *Resolver) State(id model.NodeID) model.OverwriteState {
	return r.states[id]
}

func ids(list []*entry) []model.NodeID {
	sorted := slices.Clone(list)
	slices.SortFunc(sorted, func(a, b *entry) int { return a.seq - b.seq })
	out := make([]model.NodeID, 0, len(sorted))
	for _, e := range sorted {
		out = append(out, e.id)
	}
	return out
}

// Overwriters returns the later statements that overwrite id, in the order
// the game applies them. With partial set it returns the later writers of
// finer keys instead of equal or coarser ones.
func (r *Resolver) Overwriters(id model.NodeID, partial bool) []model.NodeID {
	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	if partial {
		return ids(e.partialBy)
	}
	return ids(e.fullBy)
}

// Overwritten returns the earlier statements id overwrites, in the order the
// game applies them. With partial set it returns the earlier writes of
// coarser keys that id only partly replaces.
func (r *Resolver) Overwritten(id model.NodeID, partial bool) []model.NodeID {
	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	if partial {
		return ids(e.partialOf)
	}
	return ids(e.fullOf)
}

// PartialOverwrittens returns every statement id shares a partial overwrite
// with, in application order, most recent last. For a coarse write this is
// the list of finer writes that followed it; for a finer write it starts
// with the coarse writes it refines.
func (r *Resolver) PartialOverwrittens(id model.NodeID) []model.NodeID {
	return slices.Concat(r.Overwritten(id, true), r.Overwriters(id, true))
}

// GoToOverwriter returns the last statement that fully overwrites id.
func (r *Resolver) GoToOverwriter(id model.NodeID) (model.NodeID, bool) {
	return last(r.Overwriters(id, false))
}

// GoToPartialOverwritten returns the most recent entry of
// PartialOverwrittens(id).
func (r *Resolver) GoToPartialOverwritten(id model.NodeID) (model.NodeID, bool) {
	return last(r.PartialOverwrittens(id))
}

func last(list []model.NodeID) (model.NodeID, bool) {
	if len(list) == 0 {
		return model.NoNode, false
	}
	return list[len(list)-1], true
}
