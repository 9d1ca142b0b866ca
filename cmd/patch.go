package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/openblcmm/blcmm/internal/config"
	"github.com/openblcmm/blcmm/internal/dictionary"
	"github.com/openblcmm/blcmm/internal/model"
	"github.com/openblcmm/blcmm/internal/properties"
	"github.com/openblcmm/blcmm/internal/snapshot"
)

// fileFS returns a filesystem rooted at the directory of path and the name
// of path inside it.
func fileFS(path string) (billy.Filesystem, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return osfs.New(filepath.Dir(abs)), filepath.Base(abs), nil
}

func loadPatch(path string, constants *config.Constants) (*model.Patch, error) {
	fs, name, err := fileFS(path)
	if err != nil {
		return nil, err
	}
	return snapshot.Load(fs, name, constants)
}

func savePatch(path string, p *model.Patch) error {
	fs, name, err := fileFS(path)
	if err != nil {
		return err
	}
	return snapshot.Save(fs, name, p)
}

// openDictionary opens the SQLite dictionary at path. An empty path yields
// nil and no error.
func openDictionary(path string) (*dictionary.SQLiteDictionary, error) {
	if path == "" {
		return nil, nil
	}
	return dictionary.OpenSQLite(path)
}

// annotate attaches a fresh engine to p. dict may be nil.
func annotate(p *model.Patch, constants *config.Constants, dict *dictionary.SQLiteDictionary) *properties.Engine {
	opts := []properties.Option{properties.WithConstants(constants)}
	if dict != nil {
		opts = append(opts, properties.WithClassIndex(dict))
	}
	e := properties.New(opts...)
	e.Attach(p)
	return e
}

// findCategory resolves a slash separated path of category names below the
// root. An empty path is the root.
func findCategory(p *model.Patch, path string) (model.NodeID, error) {
	cur := p.Root()
	for _, name := range strings.Split(strings.Trim(path, "/"), "/") {
		if name == "" {
			continue
		}
		next := model.NoNode
		for _, c := range p.Children(cur) {
			n, err := p.Node(c)
			if err == nil && n.Kind == model.KindCategory && n.Name == name {
				next = c
				break
			}
		}
		if next == model.NoNode {
			return model.NoNode, fmt.Errorf("no category %q in %q", name, path)
		}
		cur = next
	}
	return cur, nil
}
