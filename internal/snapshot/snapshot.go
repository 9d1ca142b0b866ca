// Package snapshot converts a patch to and from the api schema types and
// stores it through a billy filesystem as JSON, YAML or TOML.
package snapshot

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/openblcmm/blcmm/api"
	"github.com/openblcmm/blcmm/internal/config"
	"github.com/openblcmm/blcmm/internal/model"
)

// Export renders the attached tree of p and its profiles.
func Export(p *model.Patch) *api.Patch {
	doc := &api.Patch{
		Version:        api.SchemaVersion,
		GameType:       p.GameType(),
		CurrentProfile: p.CurrentProfile(),
		Root:           exportElement(p, p.Root()),
	}
	for _, name := range p.Profiles() {
		pr, _ := p.Profile(name)
		ids := pr.IDs()
		sel := make([]uint32, len(ids))
		for i, id := range ids {
			sel[i] = uint32(id)
		}
		doc.Profiles = append(doc.Profiles, api.Profile{Name: name, Selected: sel})
	}
	return doc
}

func exportElement(p *model.Patch, id model.NodeID) api.Element {
	n, _ := p.Node(id)
	el := api.Element{ID: uint32(id), Kind: n.Kind.String()}
	switch n.Kind {
	case model.KindCategory:
		el.Name, el.Locked, el.MutuallyExclusive = n.Name, n.Locked, n.MutuallyExclusive
	case model.KindHotfixWrapper:
		el.Name, el.HotfixType, el.Parameter = n.Name, n.HotfixType.String(), n.Parameter
	case model.KindSetCommand, model.KindSetCMPCommand:
		el.Object, el.Field, el.CompareValue, el.Value = n.Object, n.Field, n.CompareValue, n.Value
		el.Selected = n.Selected
	case model.KindComment:
		el.Text = n.Text
	}
	for _, c := range n.Children {
		el.Children = append(el.Children, exportElement(p, c))
	}
	return el
}

// importer rebuilds a patch. Structure goes in first; selection, mutual
// exclusion and locks are applied afterwards so that none of them rejects
// or rewrites a later step.
type importer struct {
	p          *model.Patch
	ids        map[uint32]model.NodeID
	mut        []model.NodeID
	locked     []model.NodeID
	unselected []model.NodeID
}

// Import builds a new patch from doc. constants may be nil for the defaults.
func Import(doc *api.Patch, constants *config.Constants) (*model.Patch, error) {
	if doc.Version != "" && doc.Version != api.SchemaVersion {
		return nil, fmt.Errorf("unsupported snapshot version %q", doc.Version)
	}
	if k, err := model.ParseKind(doc.Root.Kind); err != nil || k != model.KindCategory {
		return nil, fmt.Errorf("snapshot root must be a category, got %q", doc.Root.Kind)
	}

	im := &importer{
		p:   model.NewPatch(doc.GameType, constants),
		ids: make(map[uint32]model.NodeID),
	}
	root := im.p.Root()
	im.ids[doc.Root.ID] = root
	for _, c := range doc.Root.Children {
		if err := im.element(c, root); err != nil {
			return nil, err
		}
	}
	if doc.Root.Locked {
		im.locked = append(im.locked, root)
	}
	if err := im.finish(doc); err != nil {
		return nil, err
	}
	im.p.MarkSaved()
	return im.p, nil
}

func (im *importer) element(el api.Element, parent model.NodeID) error {
	kind, err := model.ParseKind(el.Kind)
	if err != nil {
		return fmt.Errorf("element %d: %w", el.ID, err)
	}

	var id model.NodeID
	switch kind {
	case model.KindCategory:
		id, err = im.p.NewCategory(el.Name)
		if el.MutuallyExclusive {
			defer func() { im.mut = append(im.mut, id) }()
		}
		if el.Locked {
			// post-order, so inner locks are set before outer ones
			defer func() { im.locked = append(im.locked, id) }()
		}
	case model.KindHotfixWrapper:
		var t model.HotfixType
		if t, err = model.ParseHotfixType(el.HotfixType); err == nil {
			id, err = im.p.NewHotfixWrapper(el.Name, t, el.Parameter)
		}
	case model.KindSetCommand, model.KindSetCMPCommand:
		switch {
		case el.Object == "":
			id, err = im.p.NewStatement(el.Code)
		case kind == model.KindSetCMPCommand:
			id, err = im.p.NewSetCMPCommand(el.Object, el.Field, el.CompareValue, el.Value)
		default:
			id, err = im.p.NewSetCommand(el.Object, el.Field, el.Value)
		}
		if err == nil && !el.Selected {
			im.unselected = append(im.unselected, id)
		}
	case model.KindComment:
		id, err = im.p.NewComment(el.Text)
	}
	if err != nil {
		return fmt.Errorf("element %d: %w", el.ID, err)
	}

	// Wrappers are filled before they are attached: an empty wrapper may
	// not be part of the tree.
	if kind == model.KindHotfixWrapper {
		for _, c := range el.Children {
			if err := im.element(c, id); err != nil {
				return err
			}
		}
	}
	if err := im.p.InsertElementInto(id, parent, -1); err != nil {
		return fmt.Errorf("element %d: %w", el.ID, err)
	}
	if _, dup := im.ids[el.ID]; dup {
		return fmt.Errorf("element %d: duplicate id", el.ID)
	}
	im.ids[el.ID] = id
	if kind == model.KindCategory {
		for _, c := range el.Children {
			if err := im.element(c, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (im *importer) finish(doc *api.Patch) error {
	for _, id := range im.unselected {
		if err := im.p.SetSelected(id, false); err != nil {
			return err
		}
	}
	for _, id := range im.mut {
		if reason := im.p.CanBeMutuallyExclusive(id); reason != "" {
			log.Warn("dropping mutually exclusive flag", "element", id, "reason", reason)
			continue
		}
		if err := im.p.SetMutuallyExclusive(id, true); err != nil {
			return err
		}
	}

	for _, pr := range doc.Profiles {
		sel := make([]model.NodeID, 0, len(pr.Selected))
		for _, old := range pr.Selected {
			if id, ok := im.ids[old]; ok {
				sel = append(sel, id)
			}
		}
		if err := im.p.RestoreProfile(pr.Name, sel); err != nil {
			return fmt.Errorf("profile %q: %w", pr.Name, err)
		}
	}
	if doc.CurrentProfile != "" {
		if err := im.p.SetCurrentProfile(doc.CurrentProfile); err != nil {
			return err
		}
	}
	if len(doc.Profiles) > 0 && !slices.ContainsFunc(doc.Profiles, func(pr api.Profile) bool { return pr.Name == "default" }) {
		if err := im.p.DeleteProfile("default"); err != nil {
			return err
		}
	}

	for _, id := range im.locked {
		if err := im.p.SetLocked(id, true); err != nil {
			return err
		}
	}
	return nil
}
