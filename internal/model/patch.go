package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/openblcmm/blcmm/internal/config"
)

// RootName is the name of the root category of every patch.
const RootName = "root"

// ModsCategoryName is the top-level category that keeps no statuses.
const ModsCategoryName = "mods"

// EventOp identifies what kind of mutation an Event describes.
type EventOp uint8

const (
	// OpInserted: the subtree rooted at ID was attached.
	OpInserted EventOp = iota + 1
	// OpRemoved: the subtree rooted at ID was detached from OldParent.
	OpRemoved
	// OpEdited: attributes of ID changed (name, code, lock, MUT, hotfix metadata).
	OpEdited
	// OpSelection: the selected bit of the leaves in IDs changed.
	OpSelection
	// OpReordered: the children of ID were reordered.
	OpReordered
)

// Event describes one applied mutation.
type Event struct {
	Op        EventOp
	ID        NodeID
	OldParent NodeID
	IDs       []NodeID
}

// Listener is notified after every successful mutation, in order.
type Listener interface {
	PatchChanged(p *Patch, ev Event)
}

// Patch is the root aggregate: it owns the element arena, the single root
// category, the profiles and the dirty bit. A Patch is not safe for
// concurrent use; all mutation must happen on one goroutine.
type Patch struct {
	nodes     map[NodeID]*Node
	root      NodeID
	nextID    NodeID
	gameType  string
	constants *config.Constants

	profiles []*Profile
	current  int

	changed   bool
	listeners []Listener

	// vacated records where hotfix wrappers emptied by a removal used to
	// sit, so that inserting back into them restores the wrapper too.
	vacated map[NodeID]slot
}

type slot struct {
	parent NodeID
	index  int
}

// NewPatch creates a patch with an empty root category and one profile
// named "default". A nil constants uses config.Default().
func NewPatch(gameType string, constants *config.Constants) *Patch {
	if constants == nil {
		constants = config.Default()
	}
	p := &Patch{
		nodes:     make(map[NodeID]*Node),
		vacated:   make(map[NodeID]slot),
		gameType:  gameType,
		constants: constants,
	}
	root := p.alloc(KindCategory)
	root.Name = RootName
	p.root = root.ID
	p.profiles = []*Profile{newProfile("default")}
	return p
}

func (p *Patch) alloc(kind Kind) *Node {
	p.nextID++
	n := &Node{ID: p.nextID, Kind: kind, Transient: newTransientData()}
	p.nodes[n.ID] = n
	return n
}

// Subscribe registers l for mutation events.
func (p *Patch) Subscribe(l Listener) {
	p.listeners = append(p.listeners, l)
}

func (p *Patch) emit(ev Event) {
	p.changed = true
	for _, l := range p.listeners {
		l.PatchChanged(p, ev)
	}
}

// GameType is the opaque game variant of the patch.
func (p *Patch) GameType() string { return p.gameType }

// Constants returns the validation constants in use.
func (p *Patch) Constants() *config.Constants { return p.constants }

// Changed reports whether the patch was mutated since the last MarkSaved.
func (p *Patch) Changed() bool { return p.changed }

// MarkSaved clears the dirty bit.
func (p *Patch) MarkSaved() { p.changed = false }

// Root returns the ID of the root category.
func (p *Patch) Root() NodeID { return p.root }

// Node returns the element with the given ID.
func (p *Patch) Node(id NodeID) (*Node, error) {
	n, ok := p.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: #%d", ErrNotFound, id)
	}
	return n, nil
}

// Len returns the number of elements in the arena, attached or not.
func (p *Patch) Len() int { return len(p.nodes) }

// Children returns a copy of the child IDs of id.
func (p *Patch) Children(id NodeID) []NodeID {
	n, ok := p.nodes[id]
	if !ok {
		return nil
	}
	return append([]NodeID(nil), n.Children...)
}

// Parent returns the parent of id, or NoNode.
func (p *Patch) Parent(id NodeID) NodeID {
	if n, ok := p.nodes[id]; ok {
		return n.Parent
	}
	return NoNode
}

// IndexOf returns the position of id among its siblings, or -1.
func (p *Patch) IndexOf(id NodeID) int {
	n, ok := p.nodes[id]
	if !ok || n.Parent == NoNode {
		return -1
	}
	for i, c := range p.nodes[n.Parent].Children {
		if c == id {
			return i
		}
	}
	return -1
}

// Attached reports whether id is reachable from the root.
func (p *Patch) Attached(id NodeID) bool {
	for cur := id; cur != NoNode; {
		if cur == p.root {
			return true
		}
		n, ok := p.nodes[cur]
		if !ok {
			return false
		}
		cur = n.Parent
	}
	return false
}

// IsAncestor reports whether anc is id or one of its ancestors.
func (p *Patch) IsAncestor(anc, id NodeID) bool {
	for cur := id; cur != NoNode; cur = p.nodes[cur].Parent {
		if cur == anc {
			return true
		}
		if _, ok := p.nodes[cur]; !ok {
			return false
		}
	}
	return false
}

// Ancestors returns the parent chain of id, nearest first.
func (p *Patch) Ancestors(id NodeID) []NodeID {
	var out []NodeID
	n, ok := p.nodes[id]
	if !ok {
		return nil
	}
	for cur := n.Parent; cur != NoNode; cur = p.nodes[cur].Parent {
		out = append(out, cur)
	}
	return out
}

// IsInHotfix reports whether id is a statement inside a hotfix wrapper.
func (p *Patch) IsInHotfix(id NodeID) bool {
	n, ok := p.nodes[id]
	if !ok || n.Parent == NoNode {
		return false
	}
	return p.nodes[n.Parent].Kind == KindHotfixWrapper
}

// HasLockedAncestor reports whether id or any ancestor is a locked category.
func (p *Patch) HasLockedAncestor(id NodeID) bool {
	for cur := id; cur != NoNode; {
		n, ok := p.nodes[cur]
		if !ok {
			return false
		}
		if n.Kind == KindCategory && n.Locked {
			return true
		}
		cur = n.Parent
	}
	return false
}

// MUTAncestor returns the nearest strict ancestor that is a mutually
// exclusive category, or NoNode.
func (p *Patch) MUTAncestor(id NodeID) NodeID {
	for _, a := range p.Ancestors(id) {
		if n := p.nodes[a]; n.Kind == KindCategory && n.MutuallyExclusive {
			return a
		}
	}
	return NoNode
}

// IsTopLevelMods reports whether id is a category named "mods" directly
// under the root.
func (p *Patch) IsTopLevelMods(id NodeID) bool {
	n, ok := p.nodes[id]
	return ok && n.Kind == KindCategory && n.Parent == p.root && n.Name == ModsCategoryName
}

// SkipChildren can be returned by a Walk callback to skip the children of
// the current element.
var SkipChildren = errors.New("skip children")

// Walk visits id and its descendants in pre-order (document order).
func (p *Patch) Walk(id NodeID, fn func(n *Node) error) error {
	n, ok := p.nodes[id]
	if !ok {
		return fmt.Errorf("%w: #%d", ErrNotFound, id)
	}
	return p.walk(n, fn)
}

func (p *Patch) walk(n *Node, fn func(n *Node) error) error {
	if err := fn(n); err != nil {
		if err == SkipChildren {
			return nil
		}
		return err
	}
	for _, c := range n.Children {
		if err := p.walk(p.nodes[c], fn); err != nil {
			return err
		}
	}
	return nil
}

// Statements returns the statement leaves under id in document order.
func (p *Patch) Statements(id NodeID) []NodeID {
	var out []NodeID
	_ = p.Walk(id, func(n *Node) error {
		if n.Kind.IsStatement() {
			out = append(out, n.ID)
		}
		return nil
	})
	return out
}

// GetNumberOfLeafDescendants counts statements and comments under id.
func (p *Patch) GetNumberOfLeafDescendants(id NodeID) int {
	count := 0
	_ = p.Walk(id, func(n *Node) error {
		if n.Kind.IsLeaf() {
			count++
		}
		return nil
	})
	return count
}

// GetNumberOfCommandsDescendants counts statements under id, comments excluded.
func (p *Patch) GetNumberOfCommandsDescendants(id NodeID) int {
	return len(p.Statements(id))
}

// GetNumberOfHotfixDescendants counts statements inside hotfix wrappers under id.
func (p *Patch) GetNumberOfHotfixDescendants(id NodeID) int {
	count := 0
	_ = p.Walk(id, func(n *Node) error {
		if n.Kind.IsStatement() && p.IsInHotfix(n.ID) {
			count++
		}
		return nil
	})
	return count
}

// Outline renders the subtree under id as an indented listing, one element
// per line. Selected statements are marked with [x].
func (p *Patch) Outline(id NodeID) string {
	var sb strings.Builder
	var rec func(id NodeID, depth int)
	rec = func(id NodeID, depth int) {
		n := p.nodes[id]
		sb.WriteString(strings.Repeat("  ", depth))
		switch {
		case n.Kind.IsStatement() && n.Selected:
			sb.WriteString("[x] ")
		case n.Kind.IsStatement():
			sb.WriteString("[ ] ")
		case n.Kind == KindCategory && n.MutuallyExclusive:
			sb.WriteString("(MUT) ")
		}
		if n.Kind == KindCategory && n.Locked {
			sb.WriteString("(locked) ")
		}
		sb.WriteString(n.Code())
		sb.WriteByte('\n')
		for _, c := range n.Children {
			rec(c, depth+1)
		}
	}
	if _, ok := p.nodes[id]; ok {
		rec(id, 0)
	}
	return sb.String()
}
