package store

import (
	"testing"

	"github.com/lazypower/strata/internal/memory"
)

func TestRecordPagingRun(t *testing.T) {
	db := testDB(t)

	run, err := db.RecordPagingRun(7, memory.PagingOutcome{
		Migrated: 3, ReachedTarget: true, Threshold: 100, Target: 80, StartSize: 150, EndSize: 67,
	})
	if err != nil {
		t.Fatalf("RecordPagingRun: %v", err)
	}
	if run.RunID == "" {
		t.Error("RunID empty")
	}
	if _, err := db.RecordPagingRun(8, memory.PagingOutcome{Threshold: 100, Target: 80, StartSize: 120, EndSize: 110}); err != nil {
		t.Fatalf("RecordPagingRun: %v", err)
	}

	runs, err := db.RecentPagingRuns(10)
	if err != nil {
		t.Fatalf("RecentPagingRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].Iteration != 8 {
		t.Errorf("newest run iteration = %d, want 8", runs[0].Iteration)
	}
	if runs[1].Migrated != 3 || !runs[1].ReachedTarget || runs[1].EndSize != 67 {
		t.Errorf("first run = %+v", runs[1])
	}

	limited, err := db.RecentPagingRuns(1)
	if err != nil {
		t.Fatalf("RecentPagingRuns: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d runs", len(limited))
	}
}

func TestRecordSweep(t *testing.T) {
	db := testDB(t)

	last, err := db.LastSweep(SweepExpired)
	if err != nil {
		t.Fatalf("LastSweep: %v", err)
	}
	if last != nil {
		t.Errorf("LastSweep on empty db = %+v, want nil", last)
	}

	if _, err := db.RecordSweep(SweepExpired, 10, 4); err != nil {
		t.Fatalf("RecordSweep: %v", err)
	}
	if _, err := db.RecordSweep(SweepDuplicates, 11, 1); err != nil {
		t.Fatalf("RecordSweep: %v", err)
	}
	if _, err := db.RecordSweep("bogus", 11, 1); err == nil {
		t.Error("expected CHECK failure for unknown kind")
	}

	last, err = db.LastSweep(SweepExpired)
	if err != nil {
		t.Fatalf("LastSweep: %v", err)
	}
	if last == nil || last.Removed != 4 || last.Iteration != 10 {
		t.Errorf("LastSweep = %+v, want removed 4 at iteration 10", last)
	}

	sweeps, err := db.RecentSweeps(10)
	if err != nil {
		t.Fatalf("RecentSweeps: %v", err)
	}
	if len(sweeps) != 2 {
		t.Errorf("got %d sweeps, want 2", len(sweeps))
	}
}
