package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfiles_SwitchRestoresSelection(t *testing.T) {
	b := newBuilder(t)
	s1 := b.set(b.p.Root(), "set A f 1")
	s2 := b.set(b.p.Root(), "set B f 1")

	require.NoError(t, b.p.CreateProfile("lite"))
	assert.Equal(t, "lite", b.p.CurrentProfile())
	require.NoError(t, b.p.SetSelected(s2, false))

	require.NoError(t, b.p.SetCurrentProfile("default"))
	assert.True(t, b.node(s1).Selected)
	assert.True(t, b.node(s2).Selected)

	require.NoError(t, b.p.SetCurrentProfile("lite"))
	assert.True(t, b.node(s1).Selected)
	assert.False(t, b.node(s2).Selected)

	lite, ok := b.p.Profile("lite")
	require.True(t, ok)
	assert.Equal(t, []NodeID{s1}, lite.IDs())
	assert.Equal(t, 1, lite.Len())
}

func TestProfiles_NameRules(t *testing.T) {
	b := newBuilder(t)

	requireValidation(t, b.p.CreateProfile(""))
	requireValidation(t, b.p.CreateProfile("default"))
	requireValidation(t, b.p.CreateProfile("x<code>"))
	require.NoError(t, b.p.CreateProfile("second"))
	requireValidation(t, b.p.RenameProfile("second", "default"))
	requireValidation(t, b.p.RenameProfile("missing", "other"))
	require.NoError(t, b.p.RenameProfile("second", "renamed"))
	require.NoError(t, b.p.RenameProfile("renamed", "renamed"))

	assert.Equal(t, []string{"default", "renamed"}, b.p.Profiles())
	requireValidation(t, b.p.SetCurrentProfile("missing"))
}

func TestProfiles_Delete(t *testing.T) {
	b := newBuilder(t)
	s := b.set(b.p.Root(), "set A f 1")

	requireStructural(t, b.p.DeleteProfile("default"))

	require.NoError(t, b.p.CreateProfile("off"))
	require.NoError(t, b.p.SetSelected(s, false))
	require.NoError(t, b.p.CreateProfile("third"))
	require.NoError(t, b.p.SetCurrentProfile("off"))

	// deleting the current profile falls back to the previous one
	require.NoError(t, b.p.DeleteProfile("off"))
	assert.Equal(t, "default", b.p.CurrentProfile())
	assert.True(t, b.node(s).Selected)

	require.NoError(t, b.p.DeleteProfile("third"))
	assert.Equal(t, []string{"default"}, b.p.Profiles())
	requireValidation(t, b.p.DeleteProfile("third"))
}

func TestProfiles_DeleteFirstFallsForward(t *testing.T) {
	b := newBuilder(t)
	b.set(b.p.Root(), "set A f 1")
	require.NoError(t, b.p.CreateProfile("second"))
	require.NoError(t, b.p.SetCurrentProfile("default"))

	require.NoError(t, b.p.DeleteProfile("default"))
	assert.Equal(t, "second", b.p.CurrentProfile())
}

func TestRestoreProfile_InvalidMUTIsCleared(t *testing.T) {
	b, _, a, bb := mutTree(t)

	require.NoError(t, b.p.RestoreProfile("both", []NodeID{a, bb, 9999}))
	pr, ok := b.p.Profile("both")
	require.True(t, ok)
	assert.Equal(t, 2, pr.Len(), "unknown ids are ignored")

	require.NoError(t, b.p.SetCurrentProfile("both"))
	assert.False(t, b.node(a).Selected)
	assert.False(t, b.node(bb).Selected)
	assert.Equal(t, 0, pr.Len())
}
