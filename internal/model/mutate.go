package model

import (
	"fmt"
	"slices"
	"strings"
)

// --- validation ---

func (p *Patch) checkText(field, value string) error {
	if f := p.constants.FindForbidden(value); f != "" {
		return &ValidationError{Field: field, Value: value, Reason: fmt.Sprintf("contains forbidden text %q", f)}
	}
	return nil
}

func (p *Patch) checkCategoryName(name string) error {
	if problem := p.constants.CategoryNameProblem(name); problem != "" {
		return &ValidationError{Field: "name", Value: name, Reason: problem}
	}
	return nil
}

func (p *Patch) checkToken(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Value: value, Reason: "must not be empty"}
	}
	if strings.ContainsAny(value, " \t\r\n") {
		return &ValidationError{Field: field, Value: value, Reason: "must not contain whitespace"}
	}
	return p.checkText(field, value)
}

func (p *Patch) checkStatement(object, field, value string) error {
	if err := p.checkToken("object", object); err != nil {
		return err
	}
	if err := p.checkToken("field", field); err != nil {
		return err
	}
	if strings.ContainsAny(value, "\r\n") {
		return &ValidationError{Field: "value", Value: value, Reason: "must be a single line"}
	}
	return p.checkText("value", value)
}

// ValidateStatement reports whether a set statement with these parts could
// be created in p. It only reads the constants and is safe to call from any
// goroutine.
func (p *Patch) ValidateStatement(object, field, value string) error {
	return p.checkStatement(object, field, value)
}

func (p *Patch) checkHotfix(name string, t HotfixType, param string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "hotfix name", Value: name, Reason: "must not be empty"}
	}
	if err := p.checkText("hotfix name", name); err != nil {
		return err
	}
	switch t {
	case HotfixPatch:
		if param != "" {
			return &ValidationError{Field: "parameter", Value: param, Reason: "patch hotfixes take no parameter"}
		}
	case HotfixLevel:
		if !p.constants.ValidLevel(param) {
			return &ValidationError{Field: "parameter", Value: param, Reason: "not an allowed level"}
		}
	case HotfixOnDemand:
		if !p.constants.ValidPackage(param) {
			return &ValidationError{Field: "parameter", Value: param, Reason: "not an allowed on-demand package"}
		}
	default:
		return &ValidationError{Field: "hotfix type", Value: t.String(), Reason: "unknown hotfix type"}
	}
	return nil
}

// --- factories (detached elements) ---

// NewCategory creates a detached category.
func (p *Patch) NewCategory(name string) (NodeID, error) {
	if err := p.checkCategoryName(name); err != nil {
		return NoNode, err
	}
	n := p.alloc(KindCategory)
	n.Name = name
	return n.ID, nil
}

// NewSetCommand creates a detached, selected set statement.
func (p *Patch) NewSetCommand(object, field, value string) (NodeID, error) {
	if err := p.checkStatement(object, field, value); err != nil {
		return NoNode, err
	}
	n := p.alloc(KindSetCommand)
	n.Object, n.Field, n.Value, n.Selected = object, field, value, true
	return n.ID, nil
}

// NewSetCMPCommand creates a detached, selected set_cmp statement. It can
// only be inserted into a hotfix wrapper.
func (p *Patch) NewSetCMPCommand(object, field, compare, value string) (NodeID, error) {
	if err := p.checkStatement(object, field, value); err != nil {
		return NoNode, err
	}
	if err := p.checkText("compare value", compare); err != nil {
		return NoNode, err
	}
	n := p.alloc(KindSetCMPCommand)
	n.Object, n.Field, n.CompareValue, n.Value, n.Selected = object, field, compare, value, true
	return n.ID, nil
}

// NewStatement parses code and creates the matching detached statement.
func (p *Patch) NewStatement(code string) (NodeID, error) {
	st, err := ParseStatement(code)
	if err != nil {
		return NoNode, err
	}
	if st.Kind == KindSetCMPCommand {
		return p.NewSetCMPCommand(st.Object, st.Field, st.CompareValue, st.Value)
	}
	return p.NewSetCommand(st.Object, st.Field, st.Value)
}

// NewComment creates a detached comment.
func (p *Patch) NewComment(text string) (NodeID, error) {
	if err := p.checkText("comment", text); err != nil {
		return NoNode, err
	}
	n := p.alloc(KindComment)
	n.Text = text
	return n.ID, nil
}

// NewHotfixWrapper creates a detached, empty hotfix wrapper.
func (p *Patch) NewHotfixWrapper(name string, t HotfixType, param string) (NodeID, error) {
	if err := p.checkHotfix(name, t, param); err != nil {
		return NoNode, err
	}
	n := p.alloc(KindHotfixWrapper)
	n.Name, n.HotfixType, n.Parameter = name, t, param
	return n.ID, nil
}

// --- structure ---

func (p *Patch) subtreeHasMUT(id NodeID) bool {
	found := false
	_ = p.Walk(id, func(n *Node) error {
		if n.Kind == KindCategory && n.MutuallyExclusive {
			found = true
		}
		return nil
	})
	return found
}

func (p *Patch) checkInsert(op string, id, parent NodeID, index int) error {
	n, ok := p.nodes[id]
	if !ok {
		return notFound(op, id)
	}
	pn, ok := p.nodes[parent]
	if !ok {
		return notFound(op, parent)
	}
	switch {
	case id == p.root:
		return structural(op, id, "the root category cannot be moved")
	case n.Parent != NoNode:
		return structural(op, id, "element already has a parent")
	case p.IsAncestor(id, parent):
		return structural(op, id, "element cannot be inserted into its own subtree")
	case !pn.Kind.IsContainer():
		return structural(op, id, "a %s cannot contain children", pn.Kind)
	case pn.Kind == KindHotfixWrapper && !n.Kind.IsStatement():
		return structural(op, id, "hotfix wrappers only contain statements")
	case pn.Kind == KindCategory && n.Kind == KindSetCMPCommand:
		return structural(op, id, "set_cmp statements are only valid inside hotfixes")
	case p.HasLockedAncestor(parent):
		return structural(op, id, "target category is locked")
	case pn.Kind == KindCategory && pn.MutuallyExclusive && n.Kind != KindCategory:
		return structural(op, id, "mutually exclusive categories only contain categories")
	}
	if p.subtreeHasMUT(id) && ((pn.Kind == KindCategory && pn.MutuallyExclusive) || p.MUTAncestor(parent) != NoNode) {
		return structural(op, id, "mutually exclusive categories cannot be nested")
	}
	if index > len(pn.Children) {
		return structural(op, id, "index %d out of range [0, %d]", index, len(pn.Children))
	}
	return nil
}

func (p *Patch) attach(id, parent NodeID, index int) {
	pn := p.nodes[parent]
	if index < 0 || index >= len(pn.Children) {
		pn.Children = append(pn.Children, id)
	} else {
		pn.Children = slices.Insert(pn.Children, index, id)
	}
	p.nodes[id].Parent = parent
}

func (p *Patch) detach(id NodeID) (parent NodeID, index int) {
	n := p.nodes[id]
	parent = n.Parent
	pn := p.nodes[parent]
	index = slices.Index(pn.Children, id)
	pn.Children = slices.Delete(pn.Children, index, index+1)
	n.Parent = NoNode
	return parent, index
}

// InsertElementInto attaches a detached element under parent at index
// (index < 0 appends). Inserting a branch with selected leaves next to an
// already selected branch of a mutually exclusive category deselects the
// new branch.
//
// Inserting into a hotfix wrapper that was detached because its last
// statement was removed puts the wrapper back where it was as well.
func (p *Patch) InsertElementInto(id, parent NodeID, index int) error {
	const op = "insert"
	if err := p.checkInsert(op, id, parent, index); err != nil {
		return err
	}
	top := id
	sl, revive := p.vacated[parent]
	if revive {
		if _, ok := p.nodes[sl.parent]; !ok || p.nodes[parent].Parent != NoNode {
			revive = false
		}
	}
	if revive {
		sl.index = min(sl.index, len(p.nodes[sl.parent].Children))
		if err := p.checkInsert(op, parent, sl.parent, sl.index); err != nil {
			return err
		}
		top = parent
	}

	p.attach(id, parent, index)
	if revive {
		delete(p.vacated, parent)
		p.attach(parent, sl.parent, sl.index)
	}
	delete(p.vacated, id)
	p.enforceMUTAfterInsert(top)
	p.syncCurrentProfile(p.Statements(top))
	p.emit(Event{Op: OpInserted, ID: top})
	return nil
}

// dropEmptyWrapper detaches w when it is a hotfix wrapper left without
// statements and remembers its position.
func (p *Patch) dropEmptyWrapper(w NodeID) {
	wn := p.nodes[w]
	if wn.Kind != KindHotfixWrapper || len(wn.Children) > 0 || wn.Parent == NoNode {
		return
	}
	grand, index := p.detach(w)
	p.vacated[w] = slot{parent: grand, index: index}
	p.emit(Event{Op: OpRemoved, ID: w, OldParent: grand})
}

// RemoveElementFromParentCategory detaches id from its parent. The element
// stays in the arena and can be inserted again; its leaves are dropped from
// every profile. A hotfix wrapper left empty is detached as well;
// inserting the statement back into it restores the wrapper.
func (p *Patch) RemoveElementFromParentCategory(id NodeID) error {
	const op = "remove"
	n, ok := p.nodes[id]
	if !ok {
		return notFound(op, id)
	}
	if id == p.root {
		return structural(op, id, "the root category cannot be removed")
	}
	if n.Parent == NoNode {
		return structural(op, id, "element has no parent")
	}
	if p.HasLockedAncestor(n.Parent) {
		return structural(op, id, "parent category is locked")
	}
	parent, _ := p.detach(id)
	p.purgeProfiles(id)
	p.emit(Event{Op: OpRemoved, ID: id, OldParent: parent})
	p.dropEmptyWrapper(parent)
	return nil
}

// MoveElement moves an attached element under parent at index, where index
// refers to the children of parent after the element was taken out. A
// statement moved out of a hotfix wrapper into a category is wrapped in a new
// hotfix wrapper with the same metadata. On error nothing changes.
func (p *Patch) MoveElement(id, parent NodeID, index int) error {
	const op = "move"
	n, ok := p.nodes[id]
	if !ok {
		return notFound(op, id)
	}
	if _, ok := p.nodes[parent]; !ok {
		return notFound(op, parent)
	}
	if id == p.root || n.Parent == NoNode {
		return structural(op, id, "only attached elements can be moved")
	}
	if p.HasLockedAncestor(n.Parent) {
		return structural(op, id, "source category is locked")
	}

	oldParent, oldIndex := p.detach(id)
	moved := id
	var wrapper NodeID
	if p.nodes[oldParent].Kind == KindHotfixWrapper && p.nodes[parent].Kind == KindCategory {
		src := p.nodes[oldParent]
		w := p.alloc(KindHotfixWrapper)
		w.Name, w.HotfixType, w.Parameter = src.Name, src.HotfixType, src.Parameter
		p.attach(id, w.ID, -1)
		wrapper, moved = w.ID, w.ID
	}

	if err := p.checkInsert(op, moved, parent, index); err != nil {
		if wrapper != NoNode {
			p.detach(id)
			delete(p.nodes, wrapper)
		}
		p.attach(id, oldParent, oldIndex)
		return err
	}
	p.attach(moved, parent, index)
	p.enforceMUTAfterInsert(moved)
	p.syncCurrentProfile(p.Statements(moved))

	p.emit(Event{Op: OpRemoved, ID: id, OldParent: oldParent})
	p.emit(Event{Op: OpInserted, ID: moved})
	p.dropEmptyWrapper(oldParent)
	return nil
}

// IntroduceCategoryAsParentOfElements creates a category named name at the
// position of the first of ids and moves ids into it, keeping their tree
// order. Statements inside hotfix wrappers are taken along with their
// wrapper. All elements must share the same parent category.
func (p *Patch) IntroduceCategoryAsParentOfElements(ids []NodeID, name string) (NodeID, error) {
	const op = "introduce category"
	if err := p.checkCategoryName(name); err != nil {
		return NoNode, err
	}
	if len(ids) == 0 {
		return NoNode, structural(op, NoNode, "no elements given")
	}

	var lifted []NodeID
	for _, id := range ids {
		n, ok := p.nodes[id]
		if !ok {
			return NoNode, notFound(op, id)
		}
		if n.Parent != NoNode && p.nodes[n.Parent].Kind == KindHotfixWrapper {
			id = n.Parent
		}
		if !slices.Contains(lifted, id) {
			lifted = append(lifted, id)
		}
	}

	parent := p.nodes[lifted[0]].Parent
	for _, id := range lifted {
		if id == p.root {
			return NoNode, structural(op, id, "the root category cannot be moved")
		}
		if p.nodes[id].Parent != parent || parent == NoNode {
			return NoNode, structural(op, id, "elements must share the same parent category")
		}
	}
	if p.nodes[parent].Kind != KindCategory {
		return NoNode, structural(op, parent, "parent is not a category")
	}
	if p.HasLockedAncestor(parent) {
		return NoNode, structural(op, parent, "parent category is locked")
	}

	pn := p.nodes[parent]
	slices.SortFunc(lifted, func(a, b NodeID) int {
		return slices.Index(pn.Children, a) - slices.Index(pn.Children, b)
	})
	position := slices.Index(pn.Children, lifted[0])

	cat := p.alloc(KindCategory)
	cat.Name = name
	for _, id := range lifted {
		p.detach(id)
		p.attach(id, cat.ID, -1)
	}
	p.attach(cat.ID, parent, position)
	p.emit(Event{Op: OpInserted, ID: cat.ID})
	return cat.ID, nil
}

// Discard deletes a detached subtree from the arena.
func (p *Patch) Discard(id NodeID) error {
	const op = "discard"
	n, ok := p.nodes[id]
	if !ok {
		return notFound(op, id)
	}
	if id == p.root || n.Parent != NoNode {
		return structural(op, id, "only detached elements can be discarded")
	}
	p.purgeProfiles(id)
	var ids []NodeID
	_ = p.Walk(id, func(n *Node) error {
		ids = append(ids, n.ID)
		return nil
	})
	for _, d := range ids {
		delete(p.nodes, d)
		delete(p.vacated, d)
	}
	return nil
}

// --- edits ---

func (p *Patch) editable(op string, id NodeID) (*Node, error) {
	n, ok := p.nodes[id]
	if !ok {
		return nil, notFound(op, id)
	}
	if p.HasLockedAncestor(id) {
		return nil, structural(op, id, "element is locked")
	}
	return n, nil
}

// Rename changes the name of a category or hotfix wrapper.
func (p *Patch) Rename(id NodeID, name string) error {
	const op = "rename"
	n, err := p.editable(op, id)
	if err != nil {
		return err
	}
	switch n.Kind {
	case KindCategory:
		if id == p.root {
			return structural(op, id, "the root category cannot be renamed")
		}
		if err := p.checkCategoryName(name); err != nil {
			return err
		}
	case KindHotfixWrapper:
		if err := p.checkHotfix(name, n.HotfixType, n.Parameter); err != nil {
			return err
		}
	default:
		return structural(op, id, "a %s has no name", n.Kind)
	}
	n.Name = name
	p.emit(Event{Op: OpEdited, ID: id})
	return nil
}

// EditStatement replaces the object, field and value of a statement.
func (p *Patch) EditStatement(id NodeID, object, field, value string) error {
	const op = "edit statement"
	n, err := p.editable(op, id)
	if err != nil {
		return err
	}
	if !n.Kind.IsStatement() {
		return structural(op, id, "a %s is not a statement", n.Kind)
	}
	if err := p.checkStatement(object, field, value); err != nil {
		return err
	}
	n.Object, n.Field, n.Value = object, field, value
	p.emit(Event{Op: OpEdited, ID: id})
	return nil
}

// SetCompareValue replaces the expected previous value of a set_cmp statement.
func (p *Patch) SetCompareValue(id NodeID, compare string) error {
	const op = "edit compare value"
	n, err := p.editable(op, id)
	if err != nil {
		return err
	}
	if n.Kind != KindSetCMPCommand {
		return structural(op, id, "a %s has no compare value", n.Kind)
	}
	if err := p.checkText("compare value", compare); err != nil {
		return err
	}
	n.CompareValue = compare
	p.emit(Event{Op: OpEdited, ID: id})
	return nil
}

// EditComment replaces the text of a comment.
func (p *Patch) EditComment(id NodeID, text string) error {
	const op = "edit comment"
	n, err := p.editable(op, id)
	if err != nil {
		return err
	}
	if n.Kind != KindComment {
		return structural(op, id, "a %s is not a comment", n.Kind)
	}
	if err := p.checkText("comment", text); err != nil {
		return err
	}
	n.Text = text
	p.emit(Event{Op: OpEdited, ID: id})
	return nil
}

// SetHotfixMeta changes the type and parameter of a hotfix wrapper.
func (p *Patch) SetHotfixMeta(id NodeID, t HotfixType, param string) error {
	const op = "edit hotfix"
	n, err := p.editable(op, id)
	if err != nil {
		return err
	}
	if n.Kind != KindHotfixWrapper {
		return structural(op, id, "a %s is not a hotfix wrapper", n.Kind)
	}
	if err := p.checkHotfix(n.Name, t, param); err != nil {
		return err
	}
	n.HotfixType, n.Parameter = t, param
	p.emit(Event{Op: OpEdited, ID: id})
	return nil
}

func sortRank(k Kind) int {
	switch k {
	case KindCategory:
		return 0
	case KindHotfixWrapper:
		return 1
	case KindComment:
		return 3
	default:
		return 2
	}
}

// Sort orders the children of a category: categories by name, then hotfix
// wrappers by name, then statements by code. Comments go last and keep their
// relative order.
func (p *Patch) Sort(id NodeID) error {
	const op = "sort"
	n, err := p.editable(op, id)
	if err != nil {
		return err
	}
	if n.Kind != KindCategory {
		return structural(op, id, "only categories can be sorted")
	}
	slices.SortStableFunc(n.Children, func(a, b NodeID) int {
		na, nb := p.nodes[a], p.nodes[b]
		if ra, rb := sortRank(na.Kind), sortRank(nb.Kind); ra != rb {
			return ra - rb
		}
		if na.Kind == KindComment {
			return 0
		}
		if c := strings.Compare(strings.ToLower(na.Code()), strings.ToLower(nb.Code())); c != 0 {
			return c
		}
		return strings.Compare(na.Code(), nb.Code())
	})
	p.emit(Event{Op: OpReordered, ID: id})
	return nil
}
