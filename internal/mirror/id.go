package mirror

import (
	"cmp"
	"fmt"

	"github.com/roach88/coedit/internal/value"
)

// ID names one op, or one slot created by an op: a map entry, a sequence
// item, a text rune or a container node.
//
// Seq is the Lamport timestamp of the op and Actor the document that
// recorded it, so (Seq, Actor) is unique per op. Off tells apart the slots
// a single op creates, numbered in pre-order from 0.
type ID struct {
	Seq   int64  `json:"seq"`
	Actor string `json:"actor"`
	Off   int    `json:"off,omitempty"`
}

// IsZero reports whether id is unset. Root maps have the zero ID.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Compare orders ids by Seq, then Actor, then Off.
func (id ID) Compare(other ID) int {
	if c := cmp.Compare(id.Seq, other.Seq); c != 0 {
		return c
	}
	if c := cmp.Compare(id.Actor, other.Actor); c != 0 {
		return c
	}
	return cmp.Compare(id.Off, other.Off)
}

// Less reports whether id sorts before other.
func (id ID) Less(other ID) bool {
	return id.Compare(other) < 0
}

func (id ID) String() string {
	if id.Off == 0 {
		return fmt.Sprintf("%d@%s", id.Seq, id.Actor)
	}
	return fmt.Sprintf("%d@%s+%d", id.Seq, id.Actor, id.Off)
}

// stamper hands out the slot ids of one op in pre-order.
type stamper struct {
	doc  *Doc
	base ID
	off  int
}

func newStamper(doc *Doc, op ID) *stamper {
	return &stamper{doc: doc, base: op}
}

func (s *stamper) next() ID {
	id := s.base
	id.Off = s.off
	s.off++
	return id
}

// element gives e's container node the slot id and stamps its content.
// Tombstones left from an earlier life of the subtree are dropped: only
// live content is part of the op value, so only live content gets ids.
func (s *stamper) element(e Element, slot ID) {
	switch el := e.(type) {
	case *Map:
		el.id = slot
		s.doc.index[slot] = el
		el.compact()
		for _, k := range el.Keys() {
			ent := el.entries[k]
			ent.id = s.next()
			s.element(ent.el, ent.id)
		}
	case *Sequence:
		el.id = slot
		s.doc.index[slot] = el
		el.items.compact()
		for i := range el.items.slots {
			it := &el.items.slots[i]
			it.id = s.next()
			s.element(it.val, it.id)
		}
	case *Text:
		el.id = slot
		s.doc.index[slot] = el
		el.runes.compact()
		for i := range el.runes.slots {
			el.runes.slots[i].id = s.next()
		}
	}
}

// fromValue builds a detached element with the same shape Materialize
// produces, so stamping it yields the ids the recording doc assigned.
func fromValue(v value.Value) Element {
	switch val := v.(type) {
	case value.String:
		return NewText(string(val))
	case value.Array:
		seq := NewSequence()
		for _, item := range val {
			child := fromValue(item)
			adopt(seq, "", child)
			seq.items.push(child)
		}
		return seq
	case value.Object:
		m := NewMap()
		for k, item := range val {
			child := fromValue(item)
			adopt(m, k, child)
			m.entries[k] = &mapEntry{el: child}
		}
		return m
	default:
		return Scalar{V: v}
	}
}
