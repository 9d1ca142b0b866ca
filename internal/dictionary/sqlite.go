package dictionary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS objects (
	name TEXT PRIMARY KEY,
	object TEXT NOT NULL,
	class TEXT NOT NULL,
	dump TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS classes (
	name TEXT PRIMARY KEY,
	class TEXT NOT NULL
) WITHOUT ROWID;
`

// Builder writes dumps into a dictionary database in batched transactions.
type Builder struct {
	db         *sql.DB
	tx         *sql.Tx
	stmtObject *sql.Stmt
	stmtClass  *sql.Stmt
	batchSize  int
	count      int
	total      int
	mu         sync.Mutex
}

// NewBuilder creates (or extends) the database at dbPath.
func NewBuilder(dbPath string) (*Builder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Bulk load; durability comes from the final commit.
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	b := &Builder{db: db, batchSize: 5000}
	if err := b.beginTx(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Builder) beginTx() error {
	var err error
	b.tx, err = b.db.Begin()
	if err != nil {
		return err
	}
	b.stmtObject, err = b.tx.Prepare(`INSERT OR REPLACE INTO objects (name, object, class, dump) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	b.stmtClass, err = b.tx.Prepare(`INSERT OR IGNORE INTO classes (name, class) VALUES (?, ?)`)
	return err
}

func (b *Builder) commitTx() error {
	if b.stmtObject != nil {
		_ = b.stmtObject.Close()
	}
	if b.stmtClass != nil {
		_ = b.stmtClass.Close()
	}
	return b.tx.Commit()
}

// Add writes one dump.
func (b *Builder) Add(d Dump) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if d.Object == "" || d.Class == "" {
		return fmt.Errorf("%w: dump without object or class", ErrMalformedDump)
	}
	if _, err := b.stmtObject.Exec(strings.ToLower(d.Object), d.Object, d.Class, d.Text); err != nil {
		return fmt.Errorf("insert %s: %w", d.Object, err)
	}
	if err := b.addClass(d.Class); err != nil {
		return err
	}

	b.total++
	b.count++
	if b.count >= b.batchSize {
		if err := b.commitTx(); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		if err := b.beginTx(); err != nil {
			return fmt.Errorf("begin batch: %w", err)
		}
		b.count = 0
	}
	return nil
}

// AddClass registers a class name, e.g. one that has no objects.
func (b *Builder) AddClass(class string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addClass(class)
}

func (b *Builder) addClass(class string) error {
	if _, err := b.stmtClass.Exec(strings.ToLower(class), class); err != nil {
		return fmt.Errorf("insert class %s: %w", class, err)
	}
	return nil
}

// Count returns the number of dumps written so far.
func (b *Builder) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Close commits the last batch, indexes the table and closes the database.
func (b *Builder) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.commitTx(); err != nil {
		_ = b.db.Close()
		return err
	}
	// Created after the bulk load for speed.
	if _, err := b.db.Exec(`CREATE INDEX IF NOT EXISTS idx_objects_class ON objects(lower(class), name)`); err != nil {
		log.Warn("dictionary index creation failed", "err", err)
	}
	return b.db.Close()
}

// SQLiteDictionary serves lookups from a database written by Builder.
type SQLiteDictionary struct {
	db *sql.DB
}

// OpenSQLite opens a dictionary database for reading.
func OpenSQLite(dbPath string) (*SQLiteDictionary, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// query_only is per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA query_only = ON"); err != nil {
		_ = db.Close()
		return nil, err
	}
	var n int
	if err := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name IN ('objects', 'classes')`).Scan(&n); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("inspect %s: %w", dbPath, err)
	}
	if n != 2 {
		_ = db.Close()
		return nil, fmt.Errorf("%s is not a dictionary database", dbPath)
	}
	return &SQLiteDictionary{db: db}, nil
}

// Close releases the database.
func (s *SQLiteDictionary) Close() error { return s.db.Close() }

// ObjectClass implements Dictionary.
func (s *SQLiteDictionary) ObjectClass(ctx context.Context, object string) (string, bool, error) {
	var class string
	err := s.db.QueryRowContext(ctx, `SELECT class FROM objects WHERE name = ?`, strings.ToLower(object)).Scan(&class)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup %s: %w", object, err)
	}
	return class, true, nil
}

// StreamDumpsOfClass implements Dictionary. Only one dump is held in memory
// at a time.
func (s *SQLiteDictionary) StreamDumpsOfClass(ctx context.Context, class string, fn func(Dump) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT object, class, dump FROM objects WHERE lower(class) = ? ORDER BY name`, strings.ToLower(class))
	if err != nil {
		return fmt.Errorf("query class %s: %w", class, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var d Dump
		if err := rows.Scan(&d.Object, &d.Class, &d.Text); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	return rows.Err()
}

// IsClass implements Dictionary.
func (s *SQLiteDictionary) IsClass(name string) (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT count(*) FROM classes WHERE name = ?`, strings.ToLower(name)).Scan(&n); err != nil {
		return false, fmt.Errorf("lookup class %s: %w", name, err)
	}
	return n > 0, nil
}

var _ Dictionary = (*SQLiteDictionary)(nil)
