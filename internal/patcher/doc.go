// Package patcher keeps a mirror tree in step with plain snapshots.
//
// Create builds a fresh, detached mirror fragment from a plain value.
// Update patches an existing mirror in place so that it materializes to a
// new snapshot while reusing as much of the existing tree as possible:
// untouched elements keep their ids, so remote ops that address them keep
// applying. Apply and ApplyUpdate merge ops from other replicas through
// mirror.Doc.Integrate.
//
// # Contracts
//
// Single structural edit per call: when a snapshot array grows or shrinks,
// Update inserts or deletes exactly one element at the first differing
// index. Callers must not batch several structural array edits between two
// Update calls; if they do, the positional scan can attribute the edit to
// the wrong element and the mirror ends up one edit away from the snapshot.
//
// Map keys are never deleted by omission: a key present in the mirror but
// absent from (or Undefined in) the snapshot keeps its old value. Deletions
// must reach the mirror through an explicit Map.Delete.
//
// Text is replaced wholesale when its content differs, not diffed by
// character.
package patcher
