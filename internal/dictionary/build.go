package dictionary

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Sink receives parsed dumps. Builder and MemoryDictionary both qualify
// through the adapters below.
type Sink interface {
	Add(d Dump) error
}

// MemorySink adapts a MemoryDictionary to Sink.
type MemorySink struct{ *MemoryDictionary }

// Add implements Sink.
func (m MemorySink) Add(d Dump) error {
	m.MemoryDictionary.Add(d)
	return nil
}

// dumpExtensions are the file suffixes BuildFromDumps reads.
var dumpExtensions = []string{".dump", ".txt", ".dump.zst", ".txt.zst", ".dump.gz", ".txt.gz"}

// BuildStats summarises a BuildFromDumps run.
type BuildStats struct {
	Files int
	Dumps int
}

// BuildFromDumps reads every dump file under dir on fs, in path order, and
// adds each dump to sink. Files may be plain text or zstd/gzip compressed.
// ctx is checked between files.
func BuildFromDumps(ctx context.Context, fs billy.Filesystem, dir string, sink Sink) (BuildStats, error) {
	var files []string
	err := util.Walk(fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && isDumpFile(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return BuildStats{}, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(files)

	var stats BuildStats
	for _, p := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		n, err := readDumpFile(fs, p, sink)
		stats.Dumps += n
		if err != nil {
			return stats, fmt.Errorf("%s: %w", p, err)
		}
		stats.Files++
		log.Debug("dump file loaded", "path", p, "dumps", n)
	}
	return stats, nil
}

func isDumpFile(p string) bool {
	name := strings.ToLower(path.Base(p))
	for _, ext := range dumpExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func readDumpFile(fs billy.Filesystem, p string, sink Sink) (int, error) {
	f, err := fs.Open(p)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }() // safe to ignore

	var r io.Reader = f
	switch strings.ToLower(path.Ext(p)) {
	case ".zst":
		dec, err := zstd.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer dec.Close()
		r = dec
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("creating gzip reader: %w", err)
		}
		defer func() { _ = gz.Close() }() // safe to ignore
		r = gz
	}

	n := 0
	err = ReadDumps(r, func(d Dump) error {
		if err := sink.Add(d); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}
