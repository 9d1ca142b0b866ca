package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/klauspost/compress/zstd"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/openblcmm/blcmm/api"
	"github.com/openblcmm/blcmm/internal/config"
	"github.com/openblcmm/blcmm/internal/model"
)

// Format is a snapshot encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// zstdSuffix marks a compressed snapshot, e.g. "mod.json.zst".
const zstdSuffix = ".zst"

// FormatFor picks the format from a file name. A trailing .zst is ignored.
func FormatFor(name string) (Format, error) {
	name = strings.TrimSuffix(strings.ToLower(name), zstdSuffix)
	switch path.Ext(name) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unknown snapshot format for %q (want .json, .yaml or .toml)", name)
}

// Encode writes doc to w.
func Encode(w io.Writer, doc *api.Patch, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOML:
		return toml.NewEncoder(w).Encode(doc)
	}
	return fmt.Errorf("unknown snapshot format %q", f)
}

// Decode reads a document from r.
func Decode(r io.Reader, f Format) (*api.Patch, error) {
	var doc api.Patch
	var err error
	switch f {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&doc)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&doc)
	case FormatTOML:
		err = toml.NewDecoder(r).Decode(&doc)
	default:
		return nil, fmt.Errorf("unknown snapshot format %q", f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s snapshot: %w", f, err)
	}
	return &doc, nil
}

// Save writes p to name on fs in the format its extension selects, then
// marks p as saved.
func Save(fs billy.Filesystem, name string, p *model.Patch) error {
	f, err := FormatFor(name)
	if err != nil {
		return err
	}
	if dir := path.Dir(name); dir != "." && dir != "/" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	file, err := fs.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}

	var w io.Writer = file
	var enc *zstd.Encoder
	if strings.HasSuffix(strings.ToLower(name), zstdSuffix) {
		if enc, err = zstd.NewWriter(file); err != nil {
			_ = file.Close()
			return fmt.Errorf("creating zstd encoder: %w", err)
		}
		w = enc
	}
	if err := Encode(w, Export(p), f); err != nil {
		_ = file.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			_ = file.Close()
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	p.MarkSaved()
	return nil
}

// Load reads a patch from name on fs. constants may be nil for the defaults.
func Load(fs billy.Filesystem, name string, constants *config.Constants) (*model.Patch, error) {
	f, err := FormatFor(name)
	if err != nil {
		return nil, err
	}
	file, err := fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = file.Close() }() // safe to ignore

	var r io.Reader = file
	if strings.HasSuffix(strings.ToLower(name), zstdSuffix) {
		dec, err := zstd.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer dec.Close()
		r = dec
	}
	doc, err := Decode(r, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	p, err := Import(doc, constants)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return p, nil
}
