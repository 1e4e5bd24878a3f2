// Package store provides the storage backends behind a datastack root
// context.
//
// A Backend fetches records, commits change sets atomically and reports the
// highest stored seq so the logical clock can resume after a restart. This
// package holds the interface and the SQLite backend, which serves both the
// durable-file medium and (opened on ":memory:") the memory-only medium. The
// bbolt flat-file backend lives in store/boltstore.
//
// # Storage Layout
//
// Every entity instance is one row of the objects table:
//
//	objects(id TEXT PRIMARY KEY, entity TEXT, seq INTEGER, data TEXT)
//
// data holds the attribute map as canonical JSON (ir.MarshalObject).
// Updates are JSON merge patches applied with json_patch.
//
// # Critical Patterns
//
// Deterministic Query Results
//   - All queries end with: ORDER BY ..., seq ASC, id ASC COLLATE BINARY
//   - seq is a logical clock assigned at insert, NEVER a timestamp
//
// Atomic Commits
//   - A ChangeSet is applied in one transaction or not at all
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - Single connection: one writer, and one shared database for :memory:
package store
