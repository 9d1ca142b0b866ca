// Package dictionary is the read-only object dictionary consulted when a
// patch is inverted: it maps object names to classes and yields the property
// dump of every object of a class.
package dictionary

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Dump is the raw property dump of one object.
type Dump struct {
	Object string
	Class  string
	Text   string
}

// Dictionary is the lookup interface used by inversion and the class-aware
// checkers. Object and class names are matched case-insensitively.
type Dictionary interface {
	// ObjectClass returns the class of object; ok is false when the object
	// is unknown.
	ObjectClass(ctx context.Context, object string) (class string, ok bool, err error)
	// StreamDumpsOfClass calls fn for every dump of class, in object name
	// order. It stops at the first error returned by fn and checks ctx
	// between dumps.
	StreamDumpsOfClass(ctx context.Context, class string, fn func(Dump) error) error
	// IsClass reports whether name is a known class.
	IsClass(name string) (bool, error)
}

// ReadDumps splits r into individual dumps at each header line and calls fn
// for each of them. Text before the first header is ignored.
func ReadDumps(r io.Reader, fn func(Dump) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		cur  *Dump
		body strings.Builder
	)
	flush := func() error {
		if cur == nil {
			return nil
		}
		cur.Text = body.String()
		body.Reset()
		return fn(*cur)
	}
	for sc.Scan() {
		line := sc.Text()
		if class, object, ok := ParseHeader(line); ok {
			if err := flush(); err != nil {
				return err
			}
			cur = &Dump{Object: object, Class: class}
		}
		if cur != nil {
			body.WriteString(line)
			body.WriteByte('\n')
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan dumps: %w", err)
	}
	return flush()
}
