package invert

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openblcmm/blcmm/internal/dictionary"
	"github.com/openblcmm/blcmm/internal/model"
)

func dump(class, object string, props ...string) dictionary.Dump {
	text := "*** Property dump for object '" + class + " " + object + "' ***\n" +
		"=== " + class + " properties ===\n"
	for _, p := range props {
		text += "  " + p + "\n"
	}
	return dictionary.Dump{Object: object, Class: class, Text: text}
}

// extraClasses maps objects to classes that have no dump for them.
type extraClasses struct {
	*dictionary.MemoryDictionary
	extra map[string]string
}

func (d extraClasses) ObjectClass(ctx context.Context, object string) (string, bool, error) {
	if c, ok := d.extra[strings.ToLower(object)]; ok {
		return c, true, nil
	}
	return d.MemoryDictionary.ObjectClass(ctx, object)
}

type fixture struct {
	t *testing.T
	p *model.Patch
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{t: t, p: model.NewPatch("BL2", nil)}
}

func (f *fixture) cat(parent model.NodeID, name string) model.NodeID {
	f.t.Helper()
	id, err := f.p.NewCategory(name)
	require.NoError(f.t, err)
	require.NoError(f.t, f.p.InsertElementInto(id, parent, -1))
	return id
}

func (f *fixture) set(parent model.NodeID, code string) model.NodeID {
	f.t.Helper()
	id, err := f.p.NewStatement(code)
	require.NoError(f.t, err)
	require.NoError(f.t, f.p.InsertElementInto(id, parent, -1))
	return id
}

func (f *fixture) hotfix(parent model.NodeID, name string, typ model.HotfixType, param string, codes ...string) model.NodeID {
	f.t.Helper()
	w, err := f.p.NewHotfixWrapper(name, typ, param)
	require.NoError(f.t, err)
	for _, c := range codes {
		id, err := f.p.NewStatement(c)
		require.NoError(f.t, err)
		require.NoError(f.t, f.p.InsertElementInto(id, w, -1))
	}
	require.NoError(f.t, f.p.InsertElementInto(w, parent, -1))
	return w
}

func (f *fixture) node(id model.NodeID) *model.Node {
	f.t.Helper()
	n, err := f.p.Node(id)
	require.NoError(f.t, err)
	return n
}

func codes(stmts []Statement) []string {
	out := make([]string, len(stmts))
	for i, s := range stmts {
		out[i] = s.Code()
	}
	return out
}

func TestPlan_Fallback(t *testing.T) {
	f := newFixture(t)
	mod := f.cat(f.p.Root(), "Mod")
	f.set(mod, "set Obj1 Damage 10")
	obj2 := f.set(mod, "set Obj2 FieldX 3")

	dict := dictionary.NewMemory(dump("Skill", "Obj1", "Damage=5"))
	res, err := Plan(context.Background(), f.p, mod, dict, Options{})
	require.NoError(t, err)

	assert.Equal(t, "Mod", res.Name)
	assert.Equal(t, []string{"set Obj1 Damage 5"}, codes(res.Inverted))
	require.Len(t, res.Uninverted, 1)
	u := res.Uninverted[0]
	assert.Equal(t, "set Obj2 FieldX 3", u.Code())
	assert.Equal(t, obj2, u.Source)
	require.NotNil(t, u.Ambiguity)
	assert.Equal(t, ReasonNoClass, u.Ambiguity.Reason)
	assert.Contains(t, u.Ambiguity.Error(), "Obj2")
}

func TestPlan_Reasons(t *testing.T) {
	f := newFixture(t)
	mod := f.cat(f.p.Root(), "Mod")
	f.set(mod, "set Pkg.Gun WeaponDamage.Nope 1")
	f.set(mod, "set Pkg.Gun Parts[5] X")
	f.set(mod, "set Pkg.Gun Missing 1")
	f.set(mod, "set Pkg.Ghost Damage 1")
	f.set(mod, "set Pkg.Broken Damage 1")
	f.set(mod, "set pkg.gun Parts[1] Y")

	mem := dictionary.NewMemory(
		dump("Weapon", "Pkg.Gun", "WeaponDamage=(BaseValueConstant=1.0)", "Parts=(A,B)"),
		dictionary.Dump{Object: "Pkg.Broken", Class: "Weapon", Text: "not a dump"},
	)
	dict := extraClasses{MemoryDictionary: mem, extra: map[string]string{"pkg.ghost": "Weapon"}}

	res, err := Plan(context.Background(), f.p, mod, dict, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"set Pkg.Gun Parts[1] B"}, codes(res.Inverted))
	reasons := make(map[string]string)
	for _, s := range res.Uninverted {
		require.NotNil(t, s.Ambiguity)
		reasons[s.Code()] = s.Ambiguity.Reason
	}
	assert.Equal(t, map[string]string{
		"set Pkg.Gun WeaponDamage.Nope 1": ReasonFieldNotFound,
		"set Pkg.Gun Parts[5] X":          ReasonIndexOutOfRange,
		"set Pkg.Gun Missing 1":           ReasonFieldNotFound,
		"set Pkg.Ghost Damage 1":          ReasonNoDump,
		"set Pkg.Broken Damage 1":         ReasonMalformedDump,
	}, reasons)
}

func TestPlan_MissingAsEmpty(t *testing.T) {
	f := newFixture(t)
	mod := f.cat(f.p.Root(), "Mod")
	f.set(mod, "set Pkg.Gun Missing 1")
	f.set(mod, "set Pkg.Gun WeaponDamage.Nope 1")

	dict := dictionary.NewMemory(dump("Weapon", "Pkg.Gun", "WeaponDamage=(BaseValueConstant=1.0)"))
	res, err := Plan(context.Background(), f.p, mod, dict, Options{MissingAsEmpty: true})
	require.NoError(t, err)

	require.Len(t, res.Inverted, 1)
	assert.Equal(t, "Missing", res.Inverted[0].Field)
	assert.Equal(t, "", res.Inverted[0].Value)
	assert.Equal(t, []string{"set Pkg.Gun WeaponDamage.Nope 1"}, codes(res.Uninverted))
}

func TestPlan_HotfixesKeepWrapper(t *testing.T) {
	f := newFixture(t)
	mod := f.cat(f.p.Root(), "Mod")
	f.hotfix(mod, "fix", model.HotfixLevel, "Town_P", "set Pkg.Gun Damage 10")
	f.hotfix(mod, "cmp", model.HotfixPatch, "", "set_cmp Pkg.Lost Damage 1 2")

	dict := dictionary.NewMemory(dump("Weapon", "Pkg.Gun", "Damage=4"))
	res, err := Plan(context.Background(), f.p, mod, dict, Options{})
	require.NoError(t, err)

	require.Len(t, res.Inverted, 1)
	inv := res.Inverted[0]
	assert.Equal(t, "set Pkg.Gun Damage 4", inv.Code())
	assert.Equal(t, &Wrapper{Name: "fix", Type: model.HotfixLevel, Parameter: "Town_P"}, inv.Wrapper)

	require.Len(t, res.Uninverted, 1)
	un := res.Uninverted[0]
	assert.Equal(t, model.KindSetCMPCommand, un.Kind)
	assert.Equal(t, "set_cmp Pkg.Lost Damage 1 2", un.Code())
	assert.Equal(t, &Wrapper{Name: "cmp", Type: model.HotfixPatch}, un.Wrapper)
}

func TestPlan_UsesDictionaryObjectName(t *testing.T) {
	f := newFixture(t)
	mod := f.cat(f.p.Root(), "Mod")
	f.set(mod, "set pkg.gun damage 10")

	dict := dictionary.NewMemory(dump("Weapon", "Pkg.Gun", "Damage=4"))
	res, err := Plan(context.Background(), f.p, mod, dict, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"set Pkg.Gun damage 4"}, codes(res.Inverted))
}

func TestPlan_Deterministic(t *testing.T) {
	f := newFixture(t)
	mod := f.cat(f.p.Root(), "Mod")
	sub := f.cat(mod, "Sub")
	var dumps []dictionary.Dump
	for _, c := range []string{"A", "B", "C", "D"} {
		for _, o := range []string{"1", "2", "3"} {
			obj := "Pkg." + c + o
			dumps = append(dumps, dump("Class"+c, obj, "Value="+o))
			f.set(sub, "set "+obj+" Value 0")
			f.set(mod, "set "+obj+" Other 0")
		}
	}
	dict := dictionary.NewMemory(dumps...)

	one, err := Plan(context.Background(), f.p, mod, dict, Options{Workers: 1})
	require.NoError(t, err)
	many, err := Plan(context.Background(), f.p, mod, dict, Options{Workers: 4})
	require.NoError(t, err)
	assert.Equal(t, one, many)
	assert.Len(t, one.Inverted, 12)
	assert.Len(t, one.Uninverted, 12)
	assert.Equal(t, "set Pkg.A1 Value 1", one.Inverted[0].Code())
}

func TestPlan_Errors(t *testing.T) {
	f := newFixture(t)
	mod := f.cat(f.p.Root(), "Mod")
	stmt := f.set(mod, "set Pkg.Gun Damage 1")
	dict := dictionary.NewMemory(dump("Weapon", "Pkg.Gun", "Damage=4"))

	_, err := Plan(context.Background(), f.p, stmt, dict, Options{})
	var se *model.StructuralError
	assert.ErrorAs(t, err, &se)

	_, err = Plan(context.Background(), f.p, 9999, dict, Options{})
	assert.ErrorIs(t, err, model.ErrNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Plan(ctx, f.p, mod, dict, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApply(t *testing.T) {
	f := newFixture(t)
	mods := f.cat(f.p.Root(), "mods")
	mod := f.cat(mods, "Mod")
	after := f.cat(mods, "After")
	f.set(mod, "set Pkg.Gun Damage 10")
	f.set(mod, "set Pkg.Gun Accuracy 2")
	f.hotfix(mod, "fix", model.HotfixOnDemand, "GD_Siren", "set Pkg.Gun Title x")
	f.set(mod, "set Pkg.Nope Damage 1")
	before := f.p.Outline(mod)

	dict := dictionary.NewMemory(dump("Weapon", "Pkg.Gun", "Damage=4", "Accuracy=0.5", `Title="Gun"`))
	res, err := Plan(context.Background(), f.p, mod, dict, Options{})
	require.NoError(t, err)

	top, err := Apply(f.p, mod, res)
	require.NoError(t, err)

	assert.Equal(t, before, f.p.Outline(mod), "source category must be untouched")
	assert.Equal(t, []model.NodeID{mod, top, after}, f.p.Children(mods))
	assert.Equal(t, "Mod's inversion", f.node(top).Name)

	buckets := f.p.Children(top)
	require.Len(t, buckets, 2)
	assert.Equal(t, UninvertedBucketName, f.node(buckets[0]).Name)
	assert.Equal(t, InvertedBucketName, f.node(buckets[1]).Name)

	un := f.p.Children(buckets[0])
	require.Len(t, un, 1)
	assert.Equal(t, "set Pkg.Nope Damage 1", f.node(un[0]).Code())

	inv := f.p.Children(buckets[1])
	require.Len(t, inv, 3)
	w := f.node(inv[0])
	assert.Equal(t, model.KindHotfixWrapper, w.Kind)
	assert.Equal(t, "fix", w.Name)
	assert.Equal(t, model.HotfixOnDemand, w.HotfixType)
	assert.Equal(t, "GD_Siren", w.Parameter)
	require.Len(t, w.Children, 1)
	assert.Equal(t, `set Pkg.Gun Title "Gun"`, f.node(w.Children[0]).Code())
	assert.Equal(t, "set Pkg.Gun Accuracy 0.5", f.node(inv[1]).Code())
	assert.Equal(t, "set Pkg.Gun Damage 4", f.node(inv[2]).Code())
	assert.True(t, f.node(inv[2]).Selected)
}

func TestApply_EmptyBucketsOmitted(t *testing.T) {
	f := newFixture(t)
	mod := f.cat(f.p.Root(), "Mod")
	f.set(mod, "set Pkg.Gun Damage 10")

	dict := dictionary.NewMemory(dump("Weapon", "Pkg.Gun", "Damage=4"))
	res, err := Plan(context.Background(), f.p, mod, dict, Options{})
	require.NoError(t, err)
	top, err := Apply(f.p, mod, res)
	require.NoError(t, err)

	buckets := f.p.Children(top)
	require.Len(t, buckets, 1)
	assert.Equal(t, InvertedBucketName, f.node(buckets[0]).Name)

	empty, err := Apply(f.p, mod, &Result{Name: "Mod"})
	require.NoError(t, err)
	assert.Empty(t, f.p.Children(empty))
}

func TestApply_Root(t *testing.T) {
	f := newFixture(t)
	f.cat(f.p.Root(), "A")
	f.set(f.p.Root(), "set Pkg.Gun Damage 10")

	dict := dictionary.NewMemory()
	res, err := Plan(context.Background(), f.p, f.p.Root(), dict, Options{})
	require.NoError(t, err)
	top, err := Apply(f.p, f.p.Root(), res)
	require.NoError(t, err)

	children := f.p.Children(f.p.Root())
	assert.Equal(t, top, children[len(children)-1])
	assert.Equal(t, model.RootName+InversionSuffix, f.node(top).Name)
}

func TestApply_RejectedStatementLeavesTreeUnchanged(t *testing.T) {
	f := newFixture(t)
	mod := f.cat(f.p.Root(), "Mod")
	f.set(mod, "set Pkg.Gun Damage 10")
	before := f.p.Outline(f.p.Root())
	f.p.MarkSaved()

	res := &Result{
		Name:     "Mod",
		Inverted: []Statement{{Kind: model.KindSetCommand, Object: "Pkg.Gun", Field: "Damage", Value: "<code>"}},
	}
	_, err := Apply(f.p, mod, res)
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, before, f.p.Outline(f.p.Root()))
	assert.False(t, f.p.Changed())
}

func TestApply_FailureKeepsExistingChanges(t *testing.T) {
	f := newFixture(t)
	mod := f.cat(f.p.Root(), "Mod")
	f.set(mod, "set Pkg.Gun Damage 10")
	require.True(t, f.p.Changed())

	res := &Result{
		Name:     "Mod",
		Inverted: []Statement{{Kind: model.KindSetCommand, Object: "Pkg.Gun", Field: "Damage", Value: "<code>"}},
	}
	_, err := Apply(f.p, mod, res)
	require.Error(t, err)
	assert.True(t, f.p.Changed())
}

func TestPlan_UnwritableDumpValue(t *testing.T) {
	f := newFixture(t)
	mod := f.cat(f.p.Root(), "Mod")
	gun := f.set(mod, "set Pkg.Gun Damage 10")
	f.set(mod, "set Pkg.Gun Ammo 3")

	dict := dictionary.NewMemory(dump("Weapon", "Pkg.Gun", "Damage=<code>", "Ammo=7"))
	res, err := Plan(context.Background(), f.p, mod, dict, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"set Pkg.Gun Ammo 7"}, codes(res.Inverted))
	require.Len(t, res.Uninverted, 1)
	u := res.Uninverted[0]
	assert.Equal(t, gun, u.Source)
	assert.Equal(t, "set Pkg.Gun Damage 10", u.Code())
	require.NotNil(t, u.Ambiguity)
	assert.Equal(t, ReasonInvalidValue, u.Ambiguity.Reason)

	top, err := Apply(f.p, mod, res)
	require.NoError(t, err)
	assert.NotEqual(t, model.NoNode, top)
}
