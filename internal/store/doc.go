// Package store is a SQLite journal of the events processed by the engine.
//
// The journal is an audit log of the event stream: one row per processed event
// keyed by its turn sequence number, plus one row per failed effect. Namespace
// state snapshots are never written; a restarted process starts from its
// initial accumulator.
//
// # Ordering
//
// Rows are keyed by seq INTEGER from the engine's logical clock, never by wall
// time. Every read is ORDER BY seq ASC, so two reads of the same journal return
// identical results.
//
// # Payloads
//
// Event arguments are stored as canonical JSON (ir.MarshalCanonical). Integers
// are read back as int64 to avoid float64 precision loss.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000ms
//   - foreign_keys=ON
//   - a single open connection (SQLite allows one writer)
package store
