package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "memory_entries: tiered entry mirror",
		SQL: `
CREATE TABLE memory_entries (
    id            INTEGER PRIMARY KEY,
    tier          TEXT NOT NULL CHECK (tier IN ('working', 'disk', 'archived')),
    position      INTEGER NOT NULL,
    key           TEXT NOT NULL,
    value         BLOB NOT NULL,
    encoding      TEXT NOT NULL DEFAULT 'raw' CHECK (encoding IN ('raw', 'zstd')),
    importance    INTEGER NOT NULL DEFAULT 50 CHECK (importance BETWEEN 0 AND 100),
    last_accessed INTEGER NOT NULL DEFAULT 0,
    updated_at    INTEGER NOT NULL
);

CREATE UNIQUE INDEX idx_entries_tier_position ON memory_entries(tier, position);
CREATE INDEX idx_entries_key ON memory_entries(key);
`,
	},
	{
		Version:     2,
		Description: "paging_runs: history of paging checks that migrated or failed",
		SQL: `
CREATE TABLE paging_runs (
    run_id         TEXT PRIMARY KEY,
    iteration      INTEGER NOT NULL,
    threshold      INTEGER NOT NULL,
    target         INTEGER NOT NULL,
    start_size     INTEGER NOT NULL,
    end_size       INTEGER NOT NULL,
    migrated       INTEGER NOT NULL DEFAULT 0,
    reached_target INTEGER NOT NULL DEFAULT 0,
    created_at     INTEGER NOT NULL
);

CREATE INDEX idx_paging_runs_created ON paging_runs(created_at DESC);
`,
	},
	{
		Version:     3,
		Description: "sweeps: maintenance sweep history",
		SQL: `
CREATE TABLE sweeps (
    run_id     TEXT PRIMARY KEY,
    kind       TEXT NOT NULL CHECK (kind IN ('expired', 'duplicates', 'optimize')),
    iteration  INTEGER NOT NULL,
    removed    INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
