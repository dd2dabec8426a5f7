// Package store provides SQLite-backed durable storage for mirrored
// documents.
//
// Two append-only logs are kept per document id:
//   - Snapshots: full plain-value states as canonical JSON
//   - Updates: the mirror ops each snapshot produced or each remote replica
//     delivered, in the order they were applied, with their element ids
//
// Ordering uses a per-document seq assigned on insert, never timestamps.
// Replaying the update log in seq order onto an empty mirror rebuilds the
// document (see Replay).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
