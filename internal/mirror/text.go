package mirror

import (
	"fmt"

	"github.com/roach88/coedit/internal/value"
)

// Text is a mirror node holding character content, indexed by rune.
type Text struct {
	node
	runes rga[rune]
}

func (*Text) mirrorElement() {}

func (t *Text) base() *node { return &t.node }

func (*Text) childKey(Element) (string, bool) { return "", false }

// NewText creates a detached text node with initial content.
func NewText(s string) *Text {
	t := &Text{}
	t.runes.push([]rune(s)...)
	return t
}

// String returns the current content.
func (t *Text) String() string {
	return string(t.runes.values())
}

// Len returns the content length in runes.
func (t *Text) Len() int {
	return t.runes.Len()
}

// Insert places s before rune index i.
func (t *Text) Insert(i int, s string) {
	if i < 0 || i > t.runes.Len() {
		panic(fmt.Sprintf("mirror: text insert index %d out of range [0,%d]", i, t.runes.Len()))
	}
	r := []rune(s)
	if len(r) == 0 {
		return
	}
	if t.doc == nil {
		t.runes.insertDetached(i, r...)
		return
	}

	id := t.doc.tick()
	ref := t.runes.ref(i)
	_ = t.runes.integrate(ref, runeRun(id, r))
	t.doc.record(Op{
		ID:     id,
		Kind:   OpTextInsert,
		Target: t.id,
		Ref:    ref,
		Path:   pathOf(&t.node, t),
		Index:  i,
		Count:  len(r),
		Value:  value.String(s),
	})
}

// Delete removes n runes starting at index i.
func (t *Text) Delete(i, n int) {
	if i < 0 || n < 0 || i+n > t.runes.Len() {
		panic(fmt.Sprintf("mirror: text delete [%d,%d) out of range [0,%d]", i, i+n, t.runes.Len()))
	}
	if n == 0 {
		return
	}
	if t.doc == nil {
		t.runes.removeDetached(i, n)
		return
	}

	targets := t.runes.ids(i, n)
	_, _ = t.runes.remove(targets)
	t.doc.record(Op{
		ID:      t.doc.tick(),
		Kind:    OpTextDelete,
		Target:  t.id,
		Targets: targets,
		Path:    pathOf(&t.node, t),
		Index:   i,
		Count:   n,
	})
}

func (t *Text) integrate(_ *Doc, op Op) error {
	switch op.Kind {
	case OpTextInsert:
		s, ok := op.Value.(value.String)
		if !ok {
			return fmt.Errorf("inserted value is %s, want string", value.KindOf(op.Value))
		}
		return t.runes.integrate(op.Ref, runeRun(op.ID, []rune(string(s))))

	case OpTextDelete:
		_, err := t.runes.remove(op.Targets)
		return err

	default:
		return fmt.Errorf("text cannot apply %s", op.Kind)
	}
}

// runeRun stamps the runes of one insert.
func runeRun(op ID, r []rune) []slot[rune] {
	run := make([]slot[rune], len(r))
	for k, c := range r {
		run[k] = slot[rune]{id: ID{Seq: op.Seq, Actor: op.Actor, Off: k}, val: c}
	}
	return run
}
