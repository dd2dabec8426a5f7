package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migrations upgrade a database one user_version at a time. migrations[i]
// moves a database from version i to i+1. A database created from the
// current schema.sql still runs them all, so each must be idempotent.
var migrations = []struct {
	name  string
	apply func(db *sql.DB) error
}{
	{
		name: "doc_seq_indexes",
		apply: execSQL(`
			CREATE INDEX IF NOT EXISTS idx_updates_doc_seq ON updates(doc_id, seq);
			CREATE INDEX IF NOT EXISTS idx_snapshots_doc_seq ON snapshots(doc_id, seq);
		`),
	},
	{
		name: "op_ids",
		apply: addColumns("ops", []column{
			{"actor", "TEXT NOT NULL DEFAULT ''"},
			{"target", "TEXT"},
			{"ref", "TEXT"},
			{"targets", "TEXT"},
		}),
	},
}

type column struct{ name, decl string }

func execSQL(query string) func(*sql.DB) error {
	return func(db *sql.DB) error {
		_, err := db.Exec(query)
		return err
	}
}

// addColumns adds the columns table is missing.
func addColumns(table string, cols []column) func(*sql.DB) error {
	return func(db *sql.DB) error {
		existing := make(map[string]bool)
		rows, err := db.Query("SELECT name FROM pragma_table_info(?)", table)
		if err != nil {
			return err
		}
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return err
			}
			existing[name] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, c := range cols {
			if existing[c.name] {
				continue
			}
			// table and columns are constants, never user input.
			if _, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, c.name, c.decl)); err != nil {
				return fmt.Errorf("add %s.%s: %w", table, c.name, err)
			}
		}
		return nil
	}
}

var currentSchemaVersion = len(migrations)

// pragmas are applied to every connection. The op log is append-heavy and
// read back in bulk, so WAL with NORMAL sync is enough.
var pragmas = []struct{ name, value string }{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// IDGenerator produces row ids for snapshots and updates.
type IDGenerator interface {
	Generate() string
}

type uuidV7 struct{}

func (uuidV7) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Store persists mirror snapshots and the op log of each document.
type Store struct {
	db  *sql.DB
	ids IDGenerator
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the UUIDv7 row ids.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// Open opens (or creates) the database at path and brings its schema up to
// date. ":memory:" gives a private in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection: sqlite allows a single writer, and an in-memory
	// database only lives as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", path, err)
	}
	if err := prepare(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare %s: %w", path, err)
	}

	s := &Store{db: db, ids: uuidV7{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func prepare(db *sql.DB) error {
	for _, p := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("pragma %s: %w", p.name, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return migrate(db)
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for ; version < len(migrations); version++ {
		m := migrations[version]
		if err := m.apply(db); err != nil {
			return fmt.Errorf("migration %d (%s): %w", version+1, m.name, err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// verifyPragma reports whether pragma name currently reads as want.
func (s *Store) verifyPragma(name, want string) error {
	var got string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if got != want {
		return fmt.Errorf("%s = %q, want %q", name, got, want)
	}
	return nil
}
