package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// connSettings run on the single journal connection right after it opens.
var connSettings = [...]struct{ name, value string }{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// migration upgrades a journal whose user_version is below version.
type migration struct {
	version int
	stmt    string
}

// migrations are applied in order after schema.sql. The last entry's version
// is the version stamped on every journal this package opens.
var migrations = []migration{
	{version: 1, stmt: `CREATE INDEX IF NOT EXISTS idx_failures_seq ON failures(seq)`},
}

// Store is the journal database.
type Store struct {
	db *sql.DB
}

// Open opens the journal at path, creating the file when it is missing.
// Opening an existing journal upgrades it in place.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	// SQLite has one writer; a single connection also keeps the pragmas below
	// in effect for every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := prepare(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the journal. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	db := s.db
	s.db = nil
	return db.Close()
}

func prepare(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("connect journal: %w", err)
	}
	for _, setting := range connSettings {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", setting.name, setting.value)); err != nil {
			return fmt.Errorf("set %s: %w", setting.name, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return migrate(db)
}

func migrate(db *sql.DB) error {
	var have int
	if err := db.QueryRow("PRAGMA user_version").Scan(&have); err != nil {
		return fmt.Errorf("read journal version: %w", err)
	}

	for _, m := range migrations {
		if have >= m.version {
			continue
		}
		if _, err := db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migrate journal to v%d: %w", m.version, err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			return fmt.Errorf("stamp journal v%d: %w", m.version, err)
		}
		have = m.version
	}
	return nil
}

// pragma reads back a connection setting.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value, nil
}
