package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPatch_RootAndDefaultProfile(t *testing.T) {
	p := NewPatch("TPS", nil)

	root, err := p.Node(p.Root())
	require.NoError(t, err)
	assert.Equal(t, KindCategory, root.Kind)
	assert.Equal(t, RootName, root.Name)
	assert.Equal(t, NoNode, root.Parent)
	assert.Equal(t, "TPS", p.GameType())
	assert.Equal(t, []string{"default"}, p.Profiles())
	assert.Equal(t, "default", p.CurrentProfile())
	assert.False(t, p.Changed())
}

func TestPatch_NodeNotFound(t *testing.T) {
	p := NewPatch("BL2", nil)
	_, err := p.Node(999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPatch_InsertMarksChangedAndNotifies(t *testing.T) {
	b := newBuilder(t)
	rec := &recorder{}
	b.p.Subscribe(rec)

	id, err := b.p.NewSetCommand("Obj1", "Field1", "A")
	require.NoError(t, err)
	assert.False(t, b.p.Changed(), "creating a detached element is not a change")

	require.NoError(t, b.p.InsertElementInto(id, b.p.Root(), -1))
	assert.True(t, b.p.Changed())
	require.Len(t, rec.events, 1)
	assert.Equal(t, OpInserted, rec.events[0].Op)
	assert.Equal(t, id, rec.events[0].ID)

	b.p.MarkSaved()
	assert.False(t, b.p.Changed())
}

func TestPatch_Counts(t *testing.T) {
	b := newBuilder(t)
	mods := b.cat(b.p.Root(), "mods")
	a := b.cat(mods, "A")
	b.set(a, "set Obj1 Field1 1")
	b.comment(a, "a note")
	b.hotfix(a, "fix", HotfixLevel, "None", "set Obj2 Field2 2", "set Obj3 Field3 3")

	assert.Equal(t, 4, b.p.GetNumberOfLeafDescendants(mods))
	assert.Equal(t, 3, b.p.GetNumberOfCommandsDescendants(mods))
	assert.Equal(t, 2, b.p.GetNumberOfHotfixDescendants(mods))
	assert.Equal(t, 0, b.p.GetNumberOfCommandsDescendants(b.cat(mods, "empty")))
}

func TestPatch_WalkDocumentOrder(t *testing.T) {
	b := newBuilder(t)
	c := b.cat(b.p.Root(), "c")
	s1 := b.set(c, "set A f 1")
	_, hs := b.hotfix(c, "h", HotfixPatch, "", "set B f 2")
	s3 := b.set(b.p.Root(), "set C f 3")

	assert.Equal(t, []NodeID{s1, hs[0], s3}, b.p.Statements(b.p.Root()))
}

func TestPatch_WalkSkipChildren(t *testing.T) {
	b := newBuilder(t)
	c := b.cat(b.p.Root(), "c")
	b.set(c, "set A f 1")

	var seen []NodeID
	err := b.p.Walk(b.p.Root(), func(n *Node) error {
		seen = append(seen, n.ID)
		if n.ID == c {
			return SkipChildren
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []NodeID{b.p.Root(), c}, seen)
}

func TestPatch_WalkPropagatesError(t *testing.T) {
	b := newBuilder(t)
	b.set(b.p.Root(), "set A f 1")
	boom := errors.New("boom")
	err := b.p.Walk(b.p.Root(), func(n *Node) error {
		if n.Kind.IsStatement() {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestNode_Code(t *testing.T) {
	b := newBuilder(t)
	s := b.set(b.p.Root(), "set GD_Foo.Bar BaseValueConstant 1.5")
	w, hs := b.hotfix(b.p.Root(), "fix", HotfixLevel, "Glacial_P", "set_cmp Obj Field (A=1, B=2) 3")
	od, _ := b.hotfix(b.p.Root(), "maya", HotfixOnDemand, "GD_Siren_Streaming", "set Obj Field 3")
	anyLevel, _ := b.hotfix(b.p.Root(), "any", HotfixLevel, "None", "set Obj Field 3")
	patch, _ := b.hotfix(b.p.Root(), "global", HotfixPatch, "", "set Obj Field 3")

	assert.Equal(t, "set GD_Foo.Bar BaseValueConstant 1.5", b.node(s).Code())
	assert.Equal(t, "set_cmp Obj Field (A=1, B=2) 3", b.node(hs[0]).Code())
	assert.Equal(t, "fix (in Glacial)", b.node(w).Code())
	assert.Equal(t, "maya (with Maya)", b.node(od).Code())
	assert.Equal(t, "any (in any level)", b.node(anyLevel).Code())
	assert.Equal(t, "global (hotfix)", b.node(patch).Code())
}

func TestPatch_Outline(t *testing.T) {
	b := newBuilder(t)
	c := b.cat(b.p.Root(), "Cat")
	s := b.set(c, "set A f 1")
	require.NoError(t, b.p.SetSelected(s, false))
	b.set(c, "set B f 2")

	want := "root\n  Cat\n    [ ] set A f 1\n    [x] set B f 2\n"
	assert.Equal(t, want, b.p.Outline(b.p.Root()))
}

func TestKind_ParseRoundTrip(t *testing.T) {
	for k := KindCategory; k <= KindHotfixWrapper; k++ {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("folder")
	assert.Error(t, err)
}

func TestParseHotfixType(t *testing.T) {
	cases := map[string]HotfixType{
		"patch":                   HotfixPatch,
		"SparkLevelPatchEntry":    HotfixLevel,
		"ondemand":                HotfixOnDemand,
		"SparkOnDemandPatchEntry": HotfixOnDemand,
	}
	for in, want := range cases {
		got, err := ParseHotfixType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseHotfixType("weekly")
	assert.Error(t, err)
}

func TestParseSeverity(t *testing.T) {
	got, err := ParseSeverity("Warning")
	require.NoError(t, err)
	assert.Equal(t, SeverityWarning, got)

	got, err = ParseSeverity("syntax-error")
	require.NoError(t, err)
	assert.Equal(t, SeveritySyntaxError, got)

	_, err = ParseSeverity("fatal")
	assert.Error(t, err)
}
