package model

import (
	"github.com/RoaringBitmap/roaring"
)

// Profile is a named snapshot of which statements are selected, keyed by
// NodeID.
type Profile struct {
	Name     string
	selected *roaring.Bitmap
}

func newProfile(name string) *Profile {
	return &Profile{Name: name, selected: roaring.New()}
}

// Contains reports whether the statement id is selected in the profile.
func (pr *Profile) Contains(id NodeID) bool {
	return pr.selected.Contains(uint32(id))
}

// Len returns the number of selected statements in the profile.
func (pr *Profile) Len() int {
	return int(pr.selected.GetCardinality())
}

// IDs returns the selected statements in ascending ID order.
func (pr *Profile) IDs() []NodeID {
	out := make([]NodeID, 0, pr.selected.GetCardinality())
	it := pr.selected.Iterator()
	for it.HasNext() {
		out = append(out, NodeID(it.Next()))
	}
	return out
}

func (p *Patch) profileIndex(name string) int {
	for i, pr := range p.profiles {
		if pr.Name == name {
			return i
		}
	}
	return -1
}

func (p *Patch) checkProfileName(name string) error {
	if name == "" {
		return &ValidationError{Field: "profile", Value: name, Reason: "must not be empty"}
	}
	if err := p.checkText("profile", name); err != nil {
		return err
	}
	if p.profileIndex(name) >= 0 {
		return &ValidationError{Field: "profile", Value: name, Reason: "a profile with this name already exists"}
	}
	return nil
}

// Profiles returns the profile names in creation order.
func (p *Patch) Profiles() []string {
	names := make([]string, len(p.profiles))
	for i, pr := range p.profiles {
		names[i] = pr.Name
	}
	return names
}

// Profile returns the named profile.
func (p *Patch) Profile(name string) (*Profile, bool) {
	if i := p.profileIndex(name); i >= 0 {
		return p.profiles[i], true
	}
	return nil, false
}

// CurrentProfile returns the name of the active profile.
func (p *Patch) CurrentProfile() string {
	return p.profiles[p.current].Name
}

// CreateProfile snapshots the current selection under name and makes it the
// current profile.
func (p *Patch) CreateProfile(name string) error {
	if err := p.checkProfileName(name); err != nil {
		return err
	}
	pr := newProfile(name)
	for _, s := range p.Statements(p.root) {
		if p.nodes[s].Selected {
			pr.selected.Add(uint32(s))
		}
	}
	p.profiles = append(p.profiles, pr)
	p.current = len(p.profiles) - 1
	p.changed = true
	return nil
}

// RestoreProfile adds a profile with the given selection without applying
// it, replacing the selection of an existing profile of the same name. Used
// when loading a patch from storage.
func (p *Patch) RestoreProfile(name string, selected []NodeID) error {
	i := p.profileIndex(name)
	if i < 0 {
		if err := p.checkProfileName(name); err != nil {
			return err
		}
	}
	pr := newProfile(name)
	for _, id := range selected {
		if n, ok := p.nodes[id]; ok && n.Kind.IsStatement() {
			pr.selected.Add(uint32(id))
		}
	}
	if i >= 0 {
		p.profiles[i] = pr
		return nil
	}
	p.profiles = append(p.profiles, pr)
	return nil
}

// RenameProfile renames a profile.
func (p *Patch) RenameProfile(oldName, newName string) error {
	i := p.profileIndex(oldName)
	if i < 0 {
		return &ValidationError{Field: "profile", Value: oldName, Reason: "no such profile"}
	}
	if oldName == newName {
		return nil
	}
	if err := p.checkProfileName(newName); err != nil {
		return err
	}
	p.profiles[i].Name = newName
	p.changed = true
	return nil
}

// SetCurrentProfile makes name the current profile and applies its
// selection to every statement in the tree. Mutually exclusive categories
// left with more than one selected branch are fully deselected.
func (p *Patch) SetCurrentProfile(name string) error {
	i := p.profileIndex(name)
	if i < 0 {
		return &ValidationError{Field: "profile", Value: name, Reason: "no such profile"}
	}
	p.current = i
	p.applyProfile()
	return nil
}

func (p *Patch) applyProfile() {
	pr := p.profiles[p.current]
	var changed []NodeID
	for _, s := range p.Statements(p.root) {
		n := p.nodes[s]
		if want := pr.Contains(s); n.Selected != want {
			n.Selected = want
			changed = append(changed, s)
		}
	}
	changed = append(changed, p.fixInvalidMUT()...)
	p.syncCurrentProfile(changed)
	p.emit(Event{Op: OpSelection, ID: p.root, IDs: changed})
}

// DeleteProfile removes a profile. The last profile cannot be deleted. When
// the current profile is deleted, the previous one (or else the next one)
// becomes current and is applied.
func (p *Patch) DeleteProfile(name string) error {
	i := p.profileIndex(name)
	if i < 0 {
		return &ValidationError{Field: "profile", Value: name, Reason: "no such profile"}
	}
	if len(p.profiles) == 1 {
		return structural("delete profile", NoNode, "the last profile cannot be deleted")
	}
	wasCurrent := i == p.current
	p.profiles = append(p.profiles[:i], p.profiles[i+1:]...)
	switch {
	case wasCurrent && i > 0:
		p.current = i - 1
	case wasCurrent:
		p.current = 0
	case p.current > i:
		p.current--
	}
	if wasCurrent {
		p.applyProfile()
	} else {
		p.changed = true
	}
	return nil
}

// syncCurrentProfile records the selected bit of ids in the current profile.
// Detached statements are not recorded.
func (p *Patch) syncCurrentProfile(ids []NodeID) {
	pr := p.profiles[p.current]
	for _, id := range ids {
		n, ok := p.nodes[id]
		if !ok || !n.Kind.IsStatement() {
			continue
		}
		if n.Selected && p.Attached(id) {
			pr.selected.Add(uint32(id))
		} else {
			pr.selected.Remove(uint32(id))
		}
	}
}

// purgeProfiles drops every statement under id from all profiles.
func (p *Patch) purgeProfiles(id NodeID) {
	gone := roaring.New()
	for _, s := range p.Statements(id) {
		gone.Add(uint32(s))
	}
	if gone.IsEmpty() {
		return
	}
	for _, pr := range p.profiles {
		pr.selected.AndNot(gone)
	}
}
