// Package sqlite implements the repository interfaces on an embedded SQLite
// database. modernc.org/sqlite is a pure Go driver, so tests can run against
// ":memory:" databases without CGo or an external server.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements the repository interfaces.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for an ephemeral database in tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads during writes. The schema declares no
	// foreign keys: project references on items may dangle, and dangling
	// references classify as uncategorized.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Always defer this next to New.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                   TEXT PRIMARY KEY,
			email                TEXT NOT NULL UNIQUE,
			display_name         TEXT NOT NULL DEFAULT '',
			profile_url          TEXT NOT NULL DEFAULT '',
			role                 TEXT NOT NULL DEFAULT 'free',
			is_admin             INTEGER NOT NULL DEFAULT 0,
			password_hash        TEXT NOT NULL DEFAULT '',
			theme                TEXT NOT NULL DEFAULT 'light',
			font_size            INTEGER NOT NULL DEFAULT 14,
			temp_premium         INTEGER NOT NULL DEFAULT 0,
			temp_premium_expiry  INTEGER NOT NULL DEFAULT 0,
			created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// Items are a single table discriminated by kind. Variant payloads:
	// content/language for snippets, content for notes, entries (JSON) for
	// checklists. Tags are a JSON array so json_each can match membership.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS items (
			id          TEXT PRIMARY KEY,
			kind        TEXT NOT NULL,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			tags        TEXT NOT NULL DEFAULT '[]',
			project_id  TEXT,
			user_id     TEXT NOT NULL,
			content     TEXT NOT NULL DEFAULT '',
			language    TEXT NOT NULL DEFAULT '',
			entries     TEXT NOT NULL DEFAULT '[]',
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_items_owner_kind_updated
			ON items(user_id, kind, updated_at);
		CREATE INDEX IF NOT EXISTS idx_items_owner_kind_project
			ON items(user_id, kind, project_id);
	`)
	if err != nil {
		return fmt.Errorf("creating items table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS projects (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			user_id     TEXT NOT NULL,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_projects_user_id ON projects(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating projects table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS backups (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL,
			file_name    TEXT NOT NULL,
			timestamp    DATETIME NOT NULL,
			download_url TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_backups_user_id ON backups(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating backups table: %w", err)
	}

	return nil
}
