package dictionary

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dumpText(class, object string, props ...string) string {
	var sb strings.Builder
	sb.WriteString("*** Property dump for object '" + class + " " + object + "' ***\n")
	sb.WriteString("=== " + class + " properties ===\n")
	for _, p := range props {
		sb.WriteString("  " + p + "\n")
	}
	return sb.String()
}

func collect(t *testing.T, d Dictionary, class string) []string {
	t.Helper()
	var out []string
	require.NoError(t, d.StreamDumpsOfClass(context.Background(), class, func(dump Dump) error {
		out = append(out, dump.Object)
		return nil
	}))
	return out
}

func TestReadDumps(t *testing.T) {
	text := "log noise\n" +
		dumpText("Skill", "Pkg.B", "Value=1") +
		dumpText("Skill", "Pkg.A", "Value=2")

	var got []Dump
	require.NoError(t, ReadDumps(strings.NewReader(text), func(d Dump) error {
		got = append(got, d)
		return nil
	}))
	require.Len(t, got, 2)
	assert.Equal(t, "Pkg.B", got[0].Object)
	assert.Equal(t, "Skill", got[0].Class)
	assert.NotContains(t, got[0].Text, "log noise")
	assert.NotContains(t, got[0].Text, "Pkg.A")

	o, err := ParseObject(got[1].Text)
	require.NoError(t, err)
	v, err := o.Field("Value")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	stop := errors.New("stop")
	err = ReadDumps(strings.NewReader(text), func(Dump) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestMemoryDictionary(t *testing.T) {
	m := NewMemory(
		Dump{Object: "Pkg.B", Class: "Skill", Text: dumpText("Skill", "Pkg.B")},
		Dump{Object: "Pkg.A", Class: "Skill", Text: dumpText("Skill", "Pkg.A")},
		Dump{Object: "Pkg.W", Class: "Weapon", Text: dumpText("Weapon", "Pkg.W")},
	)
	m.AddClass("EmptyClass")
	ctx := context.Background()

	class, ok, err := m.ObjectClass(ctx, "pkg.b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Skill", class)

	_, ok, err = m.ObjectClass(ctx, "Pkg.Missing")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []string{"Pkg.A", "Pkg.B"}, collect(t, m, "skill"))
	assert.Empty(t, collect(t, m, "EmptyClass"))

	for name, want := range map[string]bool{"Skill": true, "emptyclass": true, "Pkg.A": false} {
		got, err := m.IsClass(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}

	// Re-adding an object moves it to its new class.
	m.Add(Dump{Object: "PKG.A", Class: "Weapon"})
	assert.Equal(t, []string{"Pkg.B"}, collect(t, m, "Skill"))
	assert.Equal(t, []string{"PKG.A", "Pkg.W"}, collect(t, m, "Weapon"))
	assert.Equal(t, 3, m.Len())
}

func TestMemoryDictionary_Cancelled(t *testing.T) {
	m := NewMemory(Dump{Object: "Pkg.A", Class: "Skill"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.StreamDumpsOfClass(ctx, "Skill", func(Dump) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSQLiteDictionary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.db")
	b, err := NewBuilder(path)
	require.NoError(t, err)
	require.NoError(t, b.Add(Dump{Object: "Pkg.B", Class: "Skill", Text: dumpText("Skill", "Pkg.B", "Value=1")}))
	require.NoError(t, b.Add(Dump{Object: "Pkg.A", Class: "Skill", Text: dumpText("Skill", "Pkg.A", "Value=2")}))
	require.NoError(t, b.Add(Dump{Object: "Pkg.W", Class: "Weapon", Text: dumpText("Weapon", "Pkg.W")}))
	require.NoError(t, b.AddClass("EmptyClass"))
	assert.ErrorIs(t, b.Add(Dump{Object: "NoClass"}), ErrMalformedDump)
	assert.Equal(t, 3, b.Count())
	require.NoError(t, b.Close())

	d, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	ctx := context.Background()

	class, ok, err := d.ObjectClass(ctx, "PKG.A")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Skill", class)

	_, ok, err = d.ObjectClass(ctx, "Pkg.Missing")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []string{"Pkg.A", "Pkg.B"}, collect(t, d, "SKILL"))

	var text string
	require.NoError(t, d.StreamDumpsOfClass(ctx, "Skill", func(dump Dump) error {
		if dump.Object == "Pkg.A" {
			text = dump.Text
		}
		return nil
	}))
	o, err := ParseObject(text)
	require.NoError(t, err)
	v, err := o.Field("value")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	ok, err = d.IsClass("emptyclass")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = d.IsClass("Pkg.A")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenSQLite_RejectsOtherDatabases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	_, err := OpenSQLite(path)
	assert.Error(t, err)
}

func TestBuildFromDumps(t *testing.T) {
	fs := memfs.New()

	plain := dumpText("Skill", "Pkg.A", "Value=1") + dumpText("Skill", "Pkg.B", "Value=2")
	require.NoError(t, util.WriteFile(fs, "dumps/skills.dump", []byte(plain), 0o644))

	var zbuf bytes.Buffer
	enc, err := zstd.NewWriter(&zbuf)
	require.NoError(t, err)
	_, err = enc.Write([]byte(dumpText("Weapon", "Pkg.W", "Damage=5")))
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	require.NoError(t, util.WriteFile(fs, "dumps/nested/weapons.dump.zst", zbuf.Bytes(), 0o644))

	var gbuf bytes.Buffer
	gz := gzip.NewWriter(&gbuf)
	_, err = gz.Write([]byte(dumpText("Item", "Pkg.I")))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, util.WriteFile(fs, "dumps/items.txt.gz", gbuf.Bytes(), 0o644))

	require.NoError(t, util.WriteFile(fs, "dumps/readme.md", []byte("ignored"), 0o644))

	m := NewMemory()
	stats, err := BuildFromDumps(context.Background(), fs, "dumps", MemorySink{m})
	require.NoError(t, err)
	assert.Equal(t, BuildStats{Files: 3, Dumps: 4}, stats)
	assert.Equal(t, 4, m.Len())

	class, ok, err := m.ObjectClass(context.Background(), "pkg.w")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Weapon", class)
}

func TestBuildFromDumps_IntoSQLite(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "d/a.dump", []byte(dumpText("Skill", "Pkg.A")), 0o644))

	path := filepath.Join(t.TempDir(), "dict.db")
	b, err := NewBuilder(path)
	require.NoError(t, err)
	stats, err := BuildFromDumps(context.Background(), fs, "d", b)
	require.NoError(t, err)
	require.NoError(t, b.Close())
	assert.Equal(t, 1, stats.Dumps)

	d, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	assert.Equal(t, []string{"Pkg.A"}, collect(t, d, "Skill"))
}

func TestBuildFromDumps_Cancelled(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "d/a.dump", []byte(dumpText("Skill", "Pkg.A")), 0o644))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := BuildFromDumps(ctx, fs, "d", MemorySink{NewMemory()})
	assert.ErrorIs(t, err, context.Canceled)
}
