package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/coedit/internal/value"
)

// replica is a doc plus the local ops it has not sent yet.
type replica struct {
	doc *Doc
	out []Op
}

func newReplica(actor string) *replica {
	r := &replica{doc: NewDoc(WithActor(actor))}
	r.doc.OnUpdate(func(u Update) {
		if u.Origin != "remote" {
			r.out = append(r.out, u.Ops...)
		}
	})
	return r
}

// sendTo integrates every op r recorded since the last send into other.
func (r *replica) sendTo(t *testing.T, other *replica) {
	t.Helper()
	for _, op := range r.out {
		_, err := other.doc.Integrate(op)
		require.NoError(t, err, op.String())
	}
	r.out = nil
}

func (r *replica) state() value.Value {
	return Materialize(r.doc.Map("r"))
}

func requireConverged(t *testing.T, a, b *replica, want any) {
	t.Helper()
	require.True(t, value.Equal(a.state(), b.state()),
		"replicas diverged: a=%v b=%v", value.ToGo(a.state()), value.ToGo(b.state()))
	assert.True(t, value.Equal(value.MustFromGo(want), a.state()),
		"got %v", value.ToGo(a.state()))
}

func TestConcurrentSequenceInsertAtHead(t *testing.T) {
	a, b := newReplica("a"), newReplica("b")
	a.doc.Map("r").Set("list", NewSequence())
	a.sendTo(t, b)

	listA, _ := a.doc.Map("r").Get("list")
	listB, _ := b.doc.Map("r").Get("list")
	listA.(*Sequence).Insert(0, Scalar{V: value.String("a")})
	listB.(*Sequence).Insert(0, Scalar{V: value.String("b")})
	a.sendTo(t, b)
	b.sendTo(t, a)

	// Equal seqs: the greater actor goes first.
	requireConverged(t, a, b, map[string]any{"list": []any{"b", "a"}})
}

func TestConcurrentTextInsertAtSamePosition(t *testing.T) {
	a, b := newReplica("a"), newReplica("b")
	a.doc.Map("r").Set("t", NewText("ac"))
	a.sendTo(t, b)

	ta, _ := a.doc.Map("r").Get("t")
	tb, _ := b.doc.Map("r").Get("t")
	ta.(*Text).Insert(1, "b")
	tb.(*Text).Insert(1, "X")
	a.sendTo(t, b)
	b.sendTo(t, a)

	requireConverged(t, a, b, map[string]any{"t": "aXbc"})
}

func TestInsertAfterConcurrentlyDeletedRune(t *testing.T) {
	a, b := newReplica("a"), newReplica("b")
	a.doc.Map("r").Set("t", NewText("abc"))
	a.sendTo(t, b)

	ta, _ := a.doc.Map("r").Get("t")
	tb, _ := b.doc.Map("r").Get("t")
	ta.(*Text).Delete(1, 1)
	tb.(*Text).Insert(2, "z")
	a.sendTo(t, b)
	b.sendTo(t, a)

	requireConverged(t, a, b, map[string]any{"t": "azc"})
}

func TestConcurrentSequenceDeletes(t *testing.T) {
	a, b := newReplica("a"), newReplica("b")
	seq := NewSequence()
	seq.Push(Scalar{V: value.Number(1)}, Scalar{V: value.Number(2)}, Scalar{V: value.Number(3)})
	a.doc.Map("r").Set("list", seq)
	a.sendTo(t, b)

	listB, _ := b.doc.Map("r").Get("list")
	seq.Delete(0, 2)
	listB.(*Sequence).Delete(1, 1)
	listB.(*Sequence).Push(Scalar{V: value.Number(4)})
	a.sendTo(t, b)
	b.sendTo(t, a)

	requireConverged(t, a, b, map[string]any{"list": []any{3, 4}})
}

func TestMapLastWriterWins(t *testing.T) {
	a, b := newReplica("a"), newReplica("b")
	a.doc.Map("r").SetScalar("k", value.Number(1))
	a.sendTo(t, b)

	a.doc.Map("r").SetScalar("k", value.Number(2))
	b.doc.Map("r").SetScalar("k", value.Number(3))
	a.sendTo(t, b)
	b.sendTo(t, a)
	requireConverged(t, a, b, map[string]any{"k": 3})

	// A set racing a delete: the greater id wins either way round.
	a.doc.Map("r").Delete("k")
	b.doc.Map("r").SetScalar("k", value.Number(4))
	a.sendTo(t, b)
	b.sendTo(t, a)
	requireConverged(t, a, b, map[string]any{"k": 4})

	b.doc.Map("r").Delete("k")
	a.doc.Map("r").SetScalar("k", value.Number(5))
	a.sendTo(t, b)
	b.sendTo(t, a)
	requireConverged(t, a, b, map[string]any{})
}

func TestEditInsideConcurrentlyReplacedChild(t *testing.T) {
	a, b := newReplica("a"), newReplica("b")
	old := NewMap()
	old.SetScalar("x", value.Number(1))
	a.doc.Map("r").Set("k", old)
	a.sendTo(t, b)

	a.doc.Map("r").Set("k", NewMap())
	inner, _ := b.doc.Map("r").Get("k")
	inner.(*Map).SetScalar("y", value.Number(2))
	a.sendTo(t, b)
	b.sendTo(t, a)

	requireConverged(t, a, b, map[string]any{"k": map[string]any{}})
}

func TestNestedFragmentIdsMatchAcrossReplicas(t *testing.T) {
	a, b := newReplica("a"), newReplica("b")
	m := NewMap()
	seq := NewSequence()
	seq.Push(NewText("hi"), Scalar{V: value.Number(1)})
	m.Set("list", seq)
	m.SetScalar("n", value.Null{})
	m.SetScalar("gone", value.Undefined{})
	a.doc.Map("r").Set("doc", m)
	a.sendTo(t, b)

	seq.Get(0).(*Text).Insert(2, "!")
	seq.Delete(1, 1)
	m.Set("extra", NewText("e"))
	a.sendTo(t, b)

	docB, _ := b.doc.Map("r").Get("doc")
	listB, _ := docB.(*Map).Get("list")
	listB.(*Sequence).Get(0).(*Text).Insert(0, ">")
	b.sendTo(t, a)

	requireConverged(t, a, b, map[string]any{
		"doc": map[string]any{"list": []any{">hi!"}, "n": nil, "extra": "e"},
	})
}

func TestIntegrateSkipsDuplicates(t *testing.T) {
	a, b := newReplica("a"), newReplica("b")
	a.doc.Map("r").SetScalar("k", value.Number(1))
	op := a.out[0]

	ok, err := b.doc.Integrate(op)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = b.doc.Integrate(op)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), b.doc.Applied("a"))

	// Echoes of a doc's own ops are skipped too.
	ok, err = a.doc.Integrate(op)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIntegrateEmitsRemoteUpdate(t *testing.T) {
	a := newReplica("a")
	a.doc.Map("r").SetScalar("k", value.Number(1))

	b := NewDoc(WithActor("b"))
	updates := collect(b)
	_, err := b.Integrate(a.out[0])
	require.NoError(t, err)

	require.Len(t, *updates, 1)
	assert.Equal(t, "remote", (*updates)[0].Origin)
	assert.Equal(t, a.out[0].ID, (*updates)[0].Ops[0].ID)
}

func TestIntegrateAdvancesClock(t *testing.T) {
	d := NewDoc(WithActor("b"))
	_, err := d.Integrate(Op{
		ID:    ID{Seq: 10, Actor: "a"},
		Kind:  OpMapSet,
		Path:  []string{"r"},
		Key:   "k",
		Value: value.Number(1),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), d.Seq())

	updates := collect(d)
	d.Map("r").SetScalar("k", value.Number(2))
	assert.Equal(t, int64(11), (*updates)[0].Ops[0].Seq())
	assert.True(t, value.Equal(value.Number(2), Materialize(d.Map("r")).(value.Object)["k"]))
}

func TestIntegrateRejects(t *testing.T) {
	d := NewDoc(WithActor("b"))
	d.Map("r").Set("list", NewSequence())
	d.Map("r").Set("text", NewText("hi"))
	list, _ := d.Map("r").Get("list")
	text, _ := d.Map("r").Get("text")
	listID := list.(*Sequence).ID()
	textID := text.(*Text).ID()
	unknown := ID{Seq: 99, Actor: "z"}

	tests := []struct {
		name    string
		op      Op
		unknown bool
	}{
		{name: "no id", op: Op{Kind: OpMapSet, Path: []string{"r"}}},
		{name: "no target or root", op: Op{ID: ID{Seq: 1, Actor: "a"}, Kind: OpMapSet}},
		{name: "nested path without target", op: Op{ID: ID{Seq: 1, Actor: "a"}, Kind: OpMapSet, Path: []string{"r", "list"}}},
		{name: "unknown target", op: Op{ID: ID{Seq: 1, Actor: "a"}, Kind: OpSeqInsert, Target: unknown, Value: value.Array{}}, unknown: true},
		{name: "unknown ref", op: Op{ID: ID{Seq: 1, Actor: "a"}, Kind: OpSeqInsert, Target: listID, Ref: unknown, Value: value.Array{value.Null{}}}, unknown: true},
		{name: "unknown delete", op: Op{ID: ID{Seq: 1, Actor: "a"}, Kind: OpTextDelete, Target: textID, Targets: []ID{unknown}}, unknown: true},
		{name: "map op on sequence", op: Op{ID: ID{Seq: 1, Actor: "a"}, Kind: OpMapSet, Target: listID, Key: "k"}},
		{name: "seq insert not array", op: Op{ID: ID{Seq: 1, Actor: "a"}, Kind: OpSeqInsert, Target: listID, Value: value.Number(1)}},
		{name: "text insert not string", op: Op{ID: ID{Seq: 1, Actor: "a"}, Kind: OpTextInsert, Target: textID, Value: value.Number(1)}},
		{name: "unknown kind", op: Op{ID: ID{Seq: 1, Actor: "a"}, Kind: "bogus", Path: []string{"r"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Integrate(tt.op)
			require.Error(t, err)
			if tt.unknown {
				assert.ErrorIs(t, err, ErrUnknownID)
			}
			assert.Equal(t, int64(0), d.Applied("a"), "failed ops are not marked applied")
		})
	}
}

func TestIDOrder(t *testing.T) {
	ids := []ID{
		{Seq: 1, Actor: "b"},
		{Seq: 1, Actor: "b", Off: 2},
		{Seq: 2, Actor: "a"},
	}
	for i := 1; i < len(ids); i++ {
		assert.True(t, ids[i-1].Less(ids[i]), "%s < %s", ids[i-1], ids[i])
		assert.False(t, ids[i].Less(ids[i-1]))
	}
	assert.Equal(t, "1@b+2", ids[1].String())
	assert.Equal(t, "2@a", ids[2].String())
	assert.True(t, ID{}.IsZero())
}

func TestDefaultActorIsUnique(t *testing.T) {
	a, b := NewDoc(), NewDoc()
	assert.NotEmpty(t, a.Actor())
	assert.NotEqual(t, a.Actor(), b.Actor())
}
