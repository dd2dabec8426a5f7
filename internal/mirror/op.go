package mirror

import (
	"fmt"
	"strings"

	"github.com/roach88/coedit/internal/value"
)

// OpKind identifies a mutating primitive.
type OpKind string

const (
	OpMapSet     OpKind = "map_set"
	OpMapDelete  OpKind = "map_delete"
	OpSeqInsert  OpKind = "seq_insert"
	OpSeqDelete  OpKind = "seq_delete"
	OpTextInsert OpKind = "text_insert"
	OpTextDelete OpKind = "text_delete"
)

// Op is one recorded mutation of an integrated node.
//
// ID stamps the op; it is also the id of the first slot the op creates.
// Target is the id of the mutated container, zero for a root map, which is
// then named by Path[0]. Inserts carry Ref, the slot they follow (zero for
// the head), and deletes carry Targets, the slots they remove. Key is set
// for map ops.
//
// Path, Index and Count locate the edit as the recording replica saw it.
// They are for display only: replicas merge by id.
//
// Value holds the inserted content, materialized: the new map value, an
// Array of inserted sequence items, or the inserted String.
type Op struct {
	ID      ID          `json:"id"`
	Kind    OpKind      `json:"kind"`
	Target  ID          `json:"target,omitzero"`
	Ref     ID          `json:"ref,omitzero"`
	Targets []ID        `json:"targets,omitempty"`
	Path    []string    `json:"path"`
	Key     string      `json:"key,omitempty"`
	Index   int         `json:"index,omitempty"`
	Count   int         `json:"count,omitempty"`
	Value   value.Value `json:"-"`
}

// Seq returns the Lamport timestamp of the op.
func (o Op) Seq() int64 {
	return o.ID.Seq
}

// String renders the op for logs and CLI output.
func (o Op) String() string {
	target := strings.Join(o.Path, ".")
	switch o.Kind {
	case OpMapSet, OpMapDelete:
		return fmt.Sprintf("#%d %s %s[%q]", o.ID.Seq, o.Kind, target, o.Key)
	default:
		return fmt.Sprintf("#%d %s %s@%d+%d", o.ID.Seq, o.Kind, target, o.Index, o.Count)
	}
}

// Update groups the ops of one transaction.
type Update struct {
	// Origin tags who caused the change, e.g. "local" or "remote".
	Origin string
	Ops    []Op
}
