package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lazypower/strata/internal/memory"
)

// PagingRun is a recorded paging check.
type PagingRun struct {
	RunID         string `json:"run_id"`
	Iteration     uint64 `json:"iteration"`
	Threshold     uint64 `json:"threshold"`
	Target        uint64 `json:"target"`
	StartSize     uint64 `json:"start_size"`
	EndSize       uint64 `json:"end_size"`
	Migrated      int    `json:"migrated"`
	ReachedTarget bool   `json:"reached_target"`
	CreatedAt     int64  `json:"created_at"`
}

// RecordPagingRun stores the outcome of a paging check.
func (db *DB) RecordPagingRun(iteration uint64, out memory.PagingOutcome) (*PagingRun, error) {
	run := &PagingRun{
		RunID:         uuid.NewString(),
		Iteration:     iteration,
		Threshold:     out.Threshold,
		Target:        out.Target,
		StartSize:     out.StartSize,
		EndSize:       out.EndSize,
		Migrated:      out.Migrated,
		ReachedTarget: out.ReachedTarget,
		CreatedAt:     time.Now().UnixMilli(),
	}
	_, err := db.Exec(`
		INSERT INTO paging_runs (run_id, iteration, threshold, target, start_size, end_size, migrated, reached_target, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Iteration, run.Threshold, run.Target, run.StartSize, run.EndSize,
		run.Migrated, boolToInt(run.ReachedTarget), run.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("record paging run: %w", err)
	}
	return run, nil
}

// RecentPagingRuns returns up to limit runs, newest first.
func (db *DB) RecentPagingRuns(limit int) ([]PagingRun, error) {
	rows, err := db.Query(`
		SELECT run_id, iteration, threshold, target, start_size, end_size, migrated, reached_target, created_at
		FROM paging_runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent paging runs: %w", err)
	}
	defer rows.Close()

	var runs []PagingRun
	for rows.Next() {
		var r PagingRun
		var reached int
		if err := rows.Scan(&r.RunID, &r.Iteration, &r.Threshold, &r.Target, &r.StartSize,
			&r.EndSize, &r.Migrated, &reached, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan paging run: %w", err)
		}
		r.ReachedTarget = reached != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Sweep kinds.
const (
	SweepExpired    = "expired"
	SweepDuplicates = "duplicates"
	SweepOptimize   = "optimize"
)

// Sweep is a recorded maintenance sweep.
type Sweep struct {
	RunID     string `json:"run_id"`
	Kind      string `json:"kind"`
	Iteration uint64 `json:"iteration"`
	Removed   int    `json:"removed"`
	CreatedAt int64  `json:"created_at"`
}

// RecordSweep stores a maintenance sweep.
func (db *DB) RecordSweep(kind string, iteration uint64, removed int) (*Sweep, error) {
	s := &Sweep{
		RunID:     uuid.NewString(),
		Kind:      kind,
		Iteration: iteration,
		Removed:   removed,
		CreatedAt: time.Now().UnixMilli(),
	}
	_, err := db.Exec(
		"INSERT INTO sweeps (run_id, kind, iteration, removed, created_at) VALUES (?, ?, ?, ?, ?)",
		s.RunID, s.Kind, s.Iteration, s.Removed, s.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("record %s sweep: %w", kind, err)
	}
	return s, nil
}

// RecentSweeps returns up to limit sweeps, newest first.
func (db *DB) RecentSweeps(limit int) ([]Sweep, error) {
	rows, err := db.Query(`
		SELECT run_id, kind, iteration, removed, created_at
		FROM sweeps
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent sweeps: %w", err)
	}
	defer rows.Close()

	var sweeps []Sweep
	for rows.Next() {
		var s Sweep
		if err := rows.Scan(&s.RunID, &s.Kind, &s.Iteration, &s.Removed, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sweep: %w", err)
		}
		sweeps = append(sweeps, s)
	}
	return sweeps, rows.Err()
}

// LastSweep returns the most recent sweep of kind, or nil if none ran.
func (db *DB) LastSweep(kind string) (*Sweep, error) {
	var s Sweep
	err := db.QueryRow(`
		SELECT run_id, kind, iteration, removed, created_at
		FROM sweeps WHERE kind = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1`, kind,
	).Scan(&s.RunID, &s.Kind, &s.Iteration, &s.Removed, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last %s sweep: %w", kind, err)
	}
	return &s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
