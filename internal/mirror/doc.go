// Package mirror implements the replicated tree that mirrors a plain value.
//
// A tree is made of four element kinds: Map (named children), Sequence
// (ordered children), Text (character content) and Scalar (an unmanaged
// plain value). Container nodes created on their own are detached; once
// inserted under a Doc root they are integrated and every further mutation
// is recorded as an Op stamped with an ID: the doc's Lamport time plus its
// actor.
//
// Every map entry, sequence item and text rune carries the id of the op
// that created it. Sequences and text are replicated growable arrays:
// inserts anchor on the id of the slot they follow and deletes leave
// tombstones. Map keys are last-writer-wins by op id. Doc.Integrate merges
// an op from another replica by those ids, so replicas that exchange their
// ops in causal order converge.
//
// Thread-safety: none. A Doc and its nodes are owned by a single goroutine
// (see internal/session for the loop that owns them).
package mirror
