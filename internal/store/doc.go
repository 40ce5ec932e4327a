// Package store provides SQLite-backed persistence for runs and tasks.
//
// Tables:
//   - runs: one row per participant run with its seed, sequence fingerprint
//     and a JSON summary
//   - step_results: sealed results keyed by (run_id, seq)
//   - interactions: recorded inputs keyed by (run_id, seq, idx)
//   - tasks: reusable timelines stored as canonical JSON
//
// All reads order by seq then idx, so a loaded run replays in the order the
// engine sealed it.
//
// Store implements results.Sink and compiler.TaskLookup.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
