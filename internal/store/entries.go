package store

import (
	"fmt"
	"time"

	"github.com/lazypower/strata/internal/memory"
)

func encodingFor(t memory.Tier) string {
	if t == memory.Archived {
		return encodingZstd
	}
	return encodingRaw
}

// SaveEntries replaces the persisted mirror with entries. Order within each
// tier is kept via the position column.
func (db *DB) SaveEntries(entries []memory.Entry) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin save entries: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM memory_entries"); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO memory_entries (tier, position, key, value, encoding, importance, last_accessed, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert entry: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	positions := make(map[memory.Tier]int)
	for i := range entries {
		e := &entries[i]
		enc := encodingFor(e.Tier)
		value, err := encodeValue(enc, e.Value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", e.Key, err)
		}
		pos := positions[e.Tier]
		positions[e.Tier]++
		if _, err := stmt.Exec(e.Tier.String(), pos, e.Key, value, enc,
			memory.ClampImportance(e.Importance), e.LastAccessed, now); err != nil {
			return fmt.Errorf("insert entry %s: %w", e.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit entries: %w", err)
	}
	return nil
}

// LoadEntries returns the persisted entries, Working first, each tier in
// its stored order.
func (db *DB) LoadEntries() ([]memory.Entry, error) {
	rows, err := db.Query(`
		SELECT tier, key, value, encoding, importance, last_accessed
		FROM memory_entries
		ORDER BY CASE tier WHEN 'working' THEN 0 WHEN 'disk' THEN 1 ELSE 2 END, position`)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	defer rows.Close()

	var entries []memory.Entry
	for rows.Next() {
		var (
			e         memory.Entry
			tier, enc string
			raw       []byte
		)
		if err := rows.Scan(&tier, &e.Key, &raw, &enc, &e.Importance, &e.LastAccessed); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.Tier, err = memory.ParseTier(tier); err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Key, err)
		}
		if e.Value, err = decodeValue(enc, raw); err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Key, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountEntries returns the number of persisted entries per tier name.
func (db *DB) CountEntries() (map[string]int, error) {
	rows, err := db.Query("SELECT tier, COUNT(*) FROM memory_entries GROUP BY tier")
	if err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[tier] = n
	}
	return counts, rows.Err()
}
