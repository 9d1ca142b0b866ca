package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// builder assembles small trees for tests.
type builder struct {
	t *testing.T
	p *Patch
}

func newBuilder(t *testing.T) *builder {
	t.Helper()
	return &builder{t: t, p: NewPatch("BL2", nil)}
}

func (b *builder) cat(parent NodeID, name string) NodeID {
	b.t.Helper()
	id, err := b.p.NewCategory(name)
	require.NoError(b.t, err)
	require.NoError(b.t, b.p.InsertElementInto(id, parent, -1))
	return id
}

func (b *builder) set(parent NodeID, code string) NodeID {
	b.t.Helper()
	id, err := b.p.NewStatement(code)
	require.NoError(b.t, err)
	require.NoError(b.t, b.p.InsertElementInto(id, parent, -1))
	return id
}

func (b *builder) comment(parent NodeID, text string) NodeID {
	b.t.Helper()
	id, err := b.p.NewComment(text)
	require.NoError(b.t, err)
	require.NoError(b.t, b.p.InsertElementInto(id, parent, -1))
	return id
}

func (b *builder) hotfix(parent NodeID, name string, typ HotfixType, param string, codes ...string) (NodeID, []NodeID) {
	b.t.Helper()
	w, err := b.p.NewHotfixWrapper(name, typ, param)
	require.NoError(b.t, err)
	var ids []NodeID
	for _, c := range codes {
		id, err := b.p.NewStatement(c)
		require.NoError(b.t, err)
		require.NoError(b.t, b.p.InsertElementInto(id, w, -1))
		ids = append(ids, id)
	}
	require.NoError(b.t, b.p.InsertElementInto(w, parent, -1))
	return w, ids
}

func (b *builder) node(id NodeID) *Node {
	b.t.Helper()
	n, err := b.p.Node(id)
	require.NoError(b.t, err)
	return n
}

type recorder struct {
	events []Event
}

func (r *recorder) PatchChanged(_ *Patch, ev Event) {
	r.events = append(r.events, ev)
}
