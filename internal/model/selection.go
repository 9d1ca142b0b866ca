package model

// branchOf returns the direct child of anc that contains id.
func (p *Patch) branchOf(anc, id NodeID) NodeID {
	cur := id
	for cur != NoNode {
		n := p.nodes[cur]
		if n.Parent == anc {
			return cur
		}
		cur = n.Parent
	}
	return NoNode
}

func (p *Patch) hasSelectedLeaf(id NodeID) bool {
	for _, s := range p.Statements(id) {
		if p.nodes[s].Selected {
			return true
		}
	}
	return false
}

// selectedBranch returns the first child of the MUT category m that holds a
// selected leaf, or NoNode.
func (p *Patch) selectedBranch(m NodeID) NodeID {
	for _, c := range p.nodes[m].Children {
		if p.hasSelectedLeaf(c) {
			return c
		}
	}
	return NoNode
}

// setLeaves sets the selected bit on every statement under id and returns
// the statements whose bit actually changed.
func (p *Patch) setLeaves(id NodeID, selected bool) []NodeID {
	var changed []NodeID
	for _, s := range p.Statements(id) {
		if n := p.nodes[s]; n.Selected != selected {
			n.Selected = selected
			changed = append(changed, s)
		}
	}
	return changed
}

func (p *Patch) enforceMUTAfterInsert(id NodeID) []NodeID {
	m := p.MUTAncestor(id)
	if m == NoNode || !p.hasSelectedLeaf(id) {
		return nil
	}
	mine := p.branchOf(m, id)
	for _, c := range p.nodes[m].Children {
		if c != mine && p.hasSelectedLeaf(c) {
			return p.setLeaves(id, false)
		}
	}
	return nil
}

// SetSelected sets the selected bit of a statement, or of every statement
// under a container. Selecting inside a mutually exclusive category
// deselects the other branches; selecting a container that holds mutually
// exclusive categories only selects one branch of each (the branch that was
// already selected, otherwise the first).
func (p *Patch) SetSelected(id NodeID, selected bool) error {
	const op = "select"
	n, ok := p.nodes[id]
	if !ok {
		return notFound(op, id)
	}
	if n.Kind == KindComment {
		return structural(op, id, "comments cannot be selected")
	}
	if p.HasLockedAncestor(id) {
		return structural(op, id, "element is locked")
	}

	var changed []NodeID
	if !selected {
		changed = p.setLeaves(id, false)
	} else {
		// Pick the surviving branch of every MUT category in the subtree
		// before touching any bit.
		keep := map[NodeID]NodeID{}
		_ = p.Walk(id, func(c *Node) error {
			if c.Kind == KindCategory && c.MutuallyExclusive && len(c.Children) > 0 {
				b := p.selectedBranch(c.ID)
				if b == NoNode {
					b = c.Children[0]
				}
				keep[c.ID] = b
			}
			return nil
		})
		_ = p.Walk(id, func(c *Node) error {
			if c.Kind == KindCategory && c.MutuallyExclusive {
				for _, b := range c.Children {
					if b == keep[c.ID] {
						changed = append(changed, p.setLeaves(b, true)...)
					} else {
						changed = append(changed, p.setLeaves(b, false)...)
					}
				}
				return SkipChildren
			}
			if c.Kind.IsStatement() && !c.Selected {
				c.Selected = true
				changed = append(changed, c.ID)
			}
			return nil
		})
		if m := p.MUTAncestor(id); m != NoNode {
			mine := p.branchOf(m, id)
			for _, b := range p.nodes[m].Children {
				if b != mine {
					changed = append(changed, p.setLeaves(b, false)...)
				}
			}
		}
	}

	if len(changed) == 0 {
		return nil
	}
	p.syncCurrentProfile(changed)
	p.emit(Event{Op: OpSelection, ID: id, IDs: changed})
	return nil
}

// SetLocked toggles the lock of a category. A category inside a locked
// ancestor cannot change its own lock.
func (p *Patch) SetLocked(id NodeID, locked bool) error {
	const op = "lock"
	n, ok := p.nodes[id]
	if !ok {
		return notFound(op, id)
	}
	if n.Kind != KindCategory {
		return structural(op, id, "only categories can be locked")
	}
	if n.Parent != NoNode && p.HasLockedAncestor(n.Parent) {
		return structural(op, id, "an ancestor category is locked")
	}
	if n.Locked == locked {
		return nil
	}
	n.Locked = locked
	p.emit(Event{Op: OpEdited, ID: id})
	return nil
}

// CanBeMutuallyExclusive reports why id cannot be turned into a mutually
// exclusive category, or "" when it can.
func (p *Patch) CanBeMutuallyExclusive(id NodeID) string {
	n, ok := p.nodes[id]
	switch {
	case !ok:
		return "unknown element"
	case n.Kind != KindCategory:
		return "only categories can be mutually exclusive"
	case id == p.root:
		return "the root category cannot be mutually exclusive"
	case p.IsTopLevelMods(id):
		return "the top-level mods category cannot be mutually exclusive"
	case len(n.Children) == 0:
		return "category is empty"
	case p.MUTAncestor(id) != NoNode:
		return "an ancestor is already mutually exclusive"
	}
	for _, c := range n.Children {
		if p.nodes[c].Kind != KindCategory {
			return "all children must be categories"
		}
		if p.subtreeHasMUT(c) {
			return "a descendant is already mutually exclusive"
		}
	}
	return ""
}

// SetMutuallyExclusive toggles the MUT flag of a category. Enabling it keeps
// the first branch holding selected leaves and deselects the others.
func (p *Patch) SetMutuallyExclusive(id NodeID, mut bool) error {
	const op = "mutually exclusive"
	n, err := p.editable(op, id)
	if err != nil {
		return err
	}
	if n.Kind != KindCategory {
		return structural(op, id, "only categories can be mutually exclusive")
	}
	if n.MutuallyExclusive == mut {
		return nil
	}
	if mut {
		if reason := p.CanBeMutuallyExclusive(id); reason != "" {
			return structural(op, id, "%s", reason)
		}
	}
	n.MutuallyExclusive = mut
	var changed []NodeID
	if mut {
		keep := p.selectedBranch(id)
		for _, b := range n.Children {
			if b != keep {
				changed = append(changed, p.setLeaves(b, false)...)
			}
		}
	}
	p.emit(Event{Op: OpEdited, ID: id})
	if len(changed) > 0 {
		p.syncCurrentProfile(changed)
		p.emit(Event{Op: OpSelection, ID: id, IDs: changed})
	}
	return nil
}

// fixInvalidMUT deselects every leaf of a MUT category that has more than
// one selected branch.
func (p *Patch) fixInvalidMUT() []NodeID {
	var changed []NodeID
	_ = p.Walk(p.root, func(n *Node) error {
		if n.Kind != KindCategory || !n.MutuallyExclusive {
			return nil
		}
		branches := 0
		for _, c := range n.Children {
			if p.hasSelectedLeaf(c) {
				branches++
			}
		}
		if branches > 1 {
			changed = append(changed, p.setLeaves(n.ID, false)...)
		}
		return SkipChildren
	})
	return changed
}
