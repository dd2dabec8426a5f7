package mirror

import (
	"fmt"

	"github.com/roach88/coedit/internal/value"
)

// Sequence is a mirror node holding an ordered list of children.
type Sequence struct {
	node
	items rga[Element]
}

func (*Sequence) mirrorElement() {}

func (s *Sequence) base() *node { return &s.node }

func (s *Sequence) childKey(child Element) (string, bool) {
	i, ok := s.items.indexOf(func(e Element) bool { return e == child })
	if !ok {
		return "", false
	}
	return indexKey(i), true
}

// NewSequence creates an empty detached sequence.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Len returns the number of elements.
func (s *Sequence) Len() int {
	return s.items.Len()
}

// Get returns the element at index i. It panics if i is out of range.
func (s *Sequence) Get(i int) Element {
	return s.items.at(i)
}

// Elements returns a copy of the element list.
func (s *Sequence) Elements() []Element {
	return s.items.values()
}

// Insert places elems before index i (i == Len() appends).
func (s *Sequence) Insert(i int, elems ...Element) {
	if i < 0 || i > s.items.Len() {
		panic(fmt.Sprintf("mirror: sequence insert index %d out of range [0,%d]", i, s.items.Len()))
	}
	if len(elems) == 0 {
		return
	}
	for _, e := range elems {
		adopt(s, "", e)
	}
	if s.doc == nil {
		s.items.insertDetached(i, elems...)
		return
	}

	id := s.doc.tick()
	ref := s.items.ref(i)
	st := newStamper(s.doc, id)
	run := make([]slot[Element], len(elems))
	inserted := make(value.Array, len(elems))
	for j, e := range elems {
		run[j].id = st.next()
		run[j].val = e
		st.element(e, run[j].id)
		inserted[j] = Materialize(e)
	}
	// A fresh local id sorts after every slot, so this cannot fail.
	_ = s.items.integrate(ref, run)
	s.doc.record(Op{
		ID:     id,
		Kind:   OpSeqInsert,
		Target: s.id,
		Ref:    ref,
		Path:   pathOf(&s.node, s),
		Index:  i,
		Count:  len(elems),
		Value:  inserted,
	})
}

// Push appends elems.
func (s *Sequence) Push(elems ...Element) {
	s.Insert(s.items.Len(), elems...)
}

// Delete removes n elements starting at index i.
func (s *Sequence) Delete(i, n int) {
	if i < 0 || n < 0 || i+n > s.items.Len() {
		panic(fmt.Sprintf("mirror: sequence delete [%d,%d) out of range [0,%d]", i, i+n, s.items.Len()))
	}
	if n == 0 {
		return
	}
	if s.doc == nil {
		for _, e := range s.items.removeDetached(i, n) {
			release(e)
		}
		return
	}

	targets := s.items.ids(i, n)
	removed, _ := s.items.remove(targets)
	for _, e := range removed {
		release(e)
	}
	s.doc.record(Op{
		ID:      s.doc.tick(),
		Kind:    OpSeqDelete,
		Target:  s.id,
		Targets: targets,
		Path:    pathOf(&s.node, s),
		Index:   i,
		Count:   n,
	})
}

func (s *Sequence) integrate(d *Doc, op Op) error {
	switch op.Kind {
	case OpSeqInsert:
		items, ok := op.Value.(value.Array)
		if !ok {
			return fmt.Errorf("inserted value is %s, want array", value.KindOf(op.Value))
		}
		st := newStamper(d, op.ID)
		run := make([]slot[Element], len(items))
		for j, item := range items {
			e := fromValue(item)
			run[j].id = st.next()
			run[j].val = e
			st.element(e, run[j].id)
		}
		if err := s.items.integrate(op.Ref, run); err != nil {
			return err
		}
		for _, it := range run {
			adopt(s, "", it.val)
		}
		return nil

	case OpSeqDelete:
		removed, err := s.items.remove(op.Targets)
		if err != nil {
			return err
		}
		for _, e := range removed {
			release(e)
		}
		return nil

	default:
		return fmt.Errorf("sequence cannot apply %s", op.Kind)
	}
}
