// Package engine wraps the tiered memory store with locking, persistence,
// metrics and maintenance.
//
// Maintenance runs in three independent ways.
//
// Paging (memory.Migrator, Engine.Page):
//   - triggered when Working exceeds the paging threshold
//   - demotes lowest-scoring Working entries to Disk until Working fits in
//     80% of the threshold or no scored candidates remain
//   - a run that moved anything flips the agent phase back to thinking
//
// Expiry (Engine.SweepExpired):
//   - removes entries not accessed for more than expiry_age iterations
//   - importance >= 80 is exempt
//   - runs on server startup and every sweep_interval via StartSweepTimer
//
// Duplicates and optimize (Engine.SweepDuplicates, Engine.Optimize) run on
// demand only.
package engine
