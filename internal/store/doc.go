// Package store provides the SQLite-backed event journal.
//
// Every event the processor handles is appended with its outcome (applied,
// skipped or failed), the acting user and its receive time. The journal is
// append-only and ordered by seq, the processor's logical clock. Replaying
// it into a fresh workspace rebuilds the shared state.
//
// # Critical Patterns
//
// Logical time:
//   - All ordering uses seq INTEGER, NEVER received_at
//   - Every query that returns entries orders by seq ASC
//
// Canonical envelopes:
//   - The event envelope is stored as RFC 8785 canonical JSON, so the
//     stored text hashes to the stored event_id
//
// Idempotent appends:
//   - INSERT ... ON CONFLICT(seq) DO NOTHING; a second append of the same
//     seq is ignored
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
