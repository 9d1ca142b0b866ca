package snapshot

import (
	"bytes"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openblcmm/blcmm/api"
	"github.com/openblcmm/blcmm/internal/model"
)

type tree struct {
	t *testing.T
	p *model.Patch
}

func (tr *tree) cat(parent model.NodeID, name string) model.NodeID {
	tr.t.Helper()
	id, err := tr.p.NewCategory(name)
	require.NoError(tr.t, err)
	require.NoError(tr.t, tr.p.InsertElementInto(id, parent, -1))
	return id
}

func (tr *tree) set(parent model.NodeID, code string) model.NodeID {
	tr.t.Helper()
	id, err := tr.p.NewStatement(code)
	require.NoError(tr.t, err)
	require.NoError(tr.t, tr.p.InsertElementInto(id, parent, -1))
	return id
}

// samplePatch has a locked category, a mutually exclusive category, a
// hotfix, a comment, an unselected statement and two profiles.
func samplePatch(t *testing.T) *model.Patch {
	t.Helper()
	tr := &tree{t: t, p: model.NewPatch("BL2", nil)}
	p := tr.p

	mod := tr.cat(p.Root(), "Mod")
	tr.set(mod, "set Pkg.A Damage 1")
	off := tr.set(mod, "set Pkg.A Accuracy 2")
	c, err := p.NewComment("tweaks the gun")
	require.NoError(t, err)
	require.NoError(t, p.InsertElementInto(c, mod, -1))
	w, err := p.NewHotfixWrapper("fix", model.HotfixLevel, "Town_P")
	require.NoError(t, err)
	hs, err := p.NewStatement("set_cmp Pkg.B Title old new")
	require.NoError(t, err)
	require.NoError(t, p.InsertElementInto(hs, w, -1))
	require.NoError(t, p.InsertElementInto(w, mod, -1))

	choice := tr.cat(p.Root(), "Choice")
	tr.set(tr.cat(choice, "One"), "set Pkg.O Value 1")
	tr.set(tr.cat(choice, "Two"), "set Pkg.O Value 2")

	require.NoError(t, p.SetSelected(off, false))
	require.NoError(t, p.SetMutuallyExclusive(choice, true))
	require.NoError(t, p.CreateProfile("alt"))
	require.NoError(t, p.SetSelected(hs, false))
	require.NoError(t, p.SetLocked(mod, true))
	return p
}

func TestExport(t *testing.T) {
	p := samplePatch(t)
	doc := Export(p)

	assert.Equal(t, api.SchemaVersion, doc.Version)
	assert.Equal(t, "BL2", doc.GameType)
	assert.Equal(t, "alt", doc.CurrentProfile)
	require.Len(t, doc.Profiles, 2)
	assert.Equal(t, "default", doc.Profiles[0].Name)

	require.Len(t, doc.Root.Children, 2)
	mod := doc.Root.Children[0]
	assert.Equal(t, "category", mod.Kind)
	assert.True(t, mod.Locked)
	require.Len(t, mod.Children, 4)
	assert.Equal(t, api.Element{ID: mod.Children[1].ID, Kind: "set", Object: "Pkg.A", Field: "Accuracy", Value: "2"}, mod.Children[1])
	assert.Equal(t, "tweaks the gun", mod.Children[2].Text)
	hotfix := mod.Children[3]
	assert.Equal(t, "hotfix", hotfix.Kind)
	assert.Equal(t, "level", hotfix.HotfixType)
	assert.Equal(t, "Town_P", hotfix.Parameter)
	require.Len(t, hotfix.Children, 1)
	assert.Equal(t, "set_cmp", hotfix.Children[0].Kind)
	assert.Equal(t, "old", hotfix.Children[0].CompareValue)
	assert.Equal(t, "new", hotfix.Children[0].Value)
	assert.True(t, doc.Root.Children[1].MutuallyExclusive)
}

func TestImport_RestoresPatch(t *testing.T) {
	p := samplePatch(t)
	q, err := Import(Export(p), nil)
	require.NoError(t, err)

	assert.Equal(t, p.Outline(p.Root()), q.Outline(q.Root()))
	assert.Equal(t, p.Profiles(), q.Profiles())
	assert.Equal(t, "alt", q.CurrentProfile())
	assert.False(t, q.Changed())

	for _, name := range p.Profiles() {
		want, _ := p.Profile(name)
		got, ok := q.Profile(name)
		require.True(t, ok)
		assert.Equal(t, want.Len(), got.Len(), name)
	}
}

func TestImport_DropsDefaultProfileWhenAbsent(t *testing.T) {
	doc := &api.Patch{
		CurrentProfile: "only",
		Profiles:       []api.Profile{{Name: "only", Selected: []uint32{2}}},
		Root: api.Element{ID: 1, Kind: "category", Name: "root", Children: []api.Element{
			{ID: 2, Kind: "set", Code: "set A B 1", Selected: true},
			{ID: 3, Kind: "set", Code: "set A C 1", Selected: true},
		}},
	}
	p, err := Import(doc, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, p.Profiles())

	// Applying the profile deselects the statement it does not list.
	children := p.Children(p.Root())
	require.Len(t, children, 2)
	second, err := p.Node(children[1])
	require.NoError(t, err)
	assert.False(t, second.Selected)
}

func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  api.Patch
	}{
		{"version", api.Patch{Version: "99", Root: api.Element{Kind: "category"}}},
		{"root kind", api.Patch{Root: api.Element{Kind: "comment"}}},
		{"unknown kind", api.Patch{Root: api.Element{Kind: "category", Children: []api.Element{{ID: 2, Kind: "bogus"}}}}},
		{"set_cmp outside hotfix", api.Patch{Root: api.Element{Kind: "category", Children: []api.Element{
			{ID: 2, Kind: "set_cmp", Code: "set_cmp A B 1 2"},
		}}}},
		{"forbidden text", api.Patch{Root: api.Element{Kind: "category", Children: []api.Element{
			{ID: 2, Kind: "comment", Text: "<code>"},
		}}}},
		{"duplicate id", api.Patch{Root: api.Element{ID: 1, Kind: "category", Children: []api.Element{
			{ID: 2, Kind: "comment", Text: "a"},
			{ID: 2, Kind: "comment", Text: "b"},
		}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import(&tt.doc, nil)
			assert.Error(t, err)
		})
	}
}

func TestSaveLoad(t *testing.T) {
	for _, name := range []string{"patch.json", "mods/patch.yaml", "patch.toml", "patch.json.zst"} {
		t.Run(name, func(t *testing.T) {
			fs := memfs.New()
			p := samplePatch(t)
			require.True(t, p.Changed())
			require.NoError(t, Save(fs, name, p))
			assert.False(t, p.Changed())

			q, err := Load(fs, name, nil)
			require.NoError(t, err)
			assert.Equal(t, p.Outline(p.Root()), q.Outline(q.Root()))
			assert.Equal(t, p.CurrentProfile(), q.CurrentProfile())
		})
	}
}

func TestSaveLoad_KeepsValueWhitespace(t *testing.T) {
	for _, name := range []string{"patch.json", "patch.yaml", "patch.toml"} {
		t.Run(name, func(t *testing.T) {
			p := model.NewPatch("BL2", nil)
			s, err := p.NewSetCommand("Pkg.Msg", "Text", "  padded  ")
			require.NoError(t, err)
			require.NoError(t, p.InsertElementInto(s, p.Root(), -1))
			w, err := p.NewHotfixWrapper("fix", model.HotfixPatch, "")
			require.NoError(t, err)
			hs, err := p.NewSetCMPCommand("Pkg.Msg", "Title", " old", "new ")
			require.NoError(t, err)
			require.NoError(t, p.InsertElementInto(hs, w, -1))
			require.NoError(t, p.InsertElementInto(w, p.Root(), -1))

			fs := memfs.New()
			require.NoError(t, Save(fs, name, p))
			q, err := Load(fs, name, nil)
			require.NoError(t, err)

			children := q.Children(q.Root())
			require.Len(t, children, 2)
			n, err := q.Node(children[0])
			require.NoError(t, err)
			assert.Equal(t, "  padded  ", n.Value)

			inner := q.Children(children[1])
			require.Len(t, inner, 1)
			n, err = q.Node(inner[0])
			require.NoError(t, err)
			assert.Equal(t, model.KindSetCMPCommand, n.Kind)
			assert.Equal(t, " old", n.CompareValue)
			assert.Equal(t, "new ", n.Value)
		})
	}
}

func TestImport_CodeShorthand(t *testing.T) {
	doc := &api.Patch{Root: api.Element{ID: 1, Kind: "category", Children: []api.Element{
		{ID: 2, Kind: "set", Code: "set A B 1", Selected: true},
	}}}
	p, err := Import(doc, nil)
	require.NoError(t, err)
	children := p.Children(p.Root())
	require.Len(t, children, 1)
	n, err := p.Node(children[0])
	require.NoError(t, err)
	assert.Equal(t, "set A B 1", n.Code())
}

func TestFormatFor(t *testing.T) {
	f, err := FormatFor("a/B.YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	f, err = FormatFor("x.toml.zst")
	require.NoError(t, err)
	assert.Equal(t, FormatTOML, f)

	_, err = FormatFor("x.blcm")
	assert.Error(t, err)
}

func TestEncode_JSONShape(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Export(samplePatch(t)), FormatJSON))
	out := buf.String()
	assert.Contains(t, out, `"mutually_exclusive": true`)
	assert.Contains(t, out, `"hotfix_type": "level"`)
	assert.NotContains(t, out, `"text": ""`)
	assert.Contains(t, out, `"object": "Pkg.A"`)
	assert.NotContains(t, out, `"code"`)
}
