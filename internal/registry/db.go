// Package registry provides persistent storage for the vm/account/
// account_vm/lease tables (spec.md §4.4). Uses pure-Go SQLite
// (modernc.org/sqlite, no cgo) with WAL mode and an ordered, versioned
// migration runner, both kept from the teacher's internal/registry/db.go.
package registry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database backing a node's registry.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at dbPath and runs any
// pending migrations before returning. Per spec.md §4.4, the daemon must do
// this before accepting requests.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	rdb := &DB{db: db}
	if err := rdb.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return rdb, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// migrations is the ordered list of schema versions. Each entry is applied
// exactly once, tracked in schema_migrations.
var migrations = []string{
	// v1: vm, account, account_vm, lease — spec.md §4.4.
	`
	CREATE TABLE IF NOT EXISTS vm (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid        TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL UNIQUE,
		definition  TEXT NOT NULL,
		created_at  TEXT NOT NULL DEFAULT (datetime('now')),
		updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS account (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS account_vm (
		account_id INTEGER NOT NULL REFERENCES account(id) ON DELETE CASCADE,
		vm_id      INTEGER NOT NULL REFERENCES vm(id) ON DELETE CASCADE,
		PRIMARY KEY (account_id, vm_id)
	);

	CREATE TABLE IF NOT EXISTS lease (
		id    INTEGER PRIMARY KEY AUTOINCREMENT,
		vm_id INTEGER NOT NULL REFERENCES vm(id) ON DELETE CASCADE,
		ip    TEXT NOT NULL
	);
	`,
}

func (d *DB) migrate() error {
	if _, err := d.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return err
	}

	for version, stmt := range migrations {
		var applied int
		row := d.db.QueryRow(`SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, version)
		if err := row.Scan(&applied); err != nil {
			return err
		}
		if applied > 0 {
			continue
		}

		tx, err := d.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
