// Package sqlite implements memory persistence and FTS5 lexical search on SQLite.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database handle
type DB struct {
	SQL *sql.DB
}

// New opens (or creates) a SQLite database at the given path and
// initializes the schema with FTS5 support.
func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	d := &DB{SQL: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

func (d *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			category TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			importance INTEGER NOT NULL DEFAULT 3,
			branch_flow TEXT,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_project ON memories(project)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_category ON memories(category)`,
		// FTS5 virtual table indexing title and content; joined back to
		// memories by id for filters and full rows.
		`CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
			title,
			content,
			id UNINDEXED,
			tokenize='porter unicode61'
		)`,
	}

	for _, stmt := range stmts {
		if _, err := d.SQL.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 60)], err)
		}
	}

	return nil
}

// Close closes the database handle
func (d *DB) Close() error {
	return d.SQL.Close()
}
