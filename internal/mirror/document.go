package mirror

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Doc owns a set of named root maps and records every mutation made to
// nodes integrated under them.
type Doc struct {
	actor string
	clock *Clock
	roots map[string]*Map
	// index resolves the target of remote ops. Entries are never removed:
	// a concurrent op may still address a node this replica detached.
	index map[ID]container
	// applied is the highest op seq integrated per actor.
	applied   map[string]int64
	tx        *Update
	observers map[int]func(Update)
	nextObs   int
}

// Option configures a Doc.
type Option func(*Doc)

// WithActor sets the actor id stamped on every op the doc records.
// Defaults to a fresh UUIDv7. Replicas of one document must use distinct
// actors.
func WithActor(actor string) Option {
	return func(d *Doc) { d.actor = actor }
}

// WithClock stamps ops from clock. Used when resuming from a stored
// sequence number.
func WithClock(clock *Clock) Option {
	return func(d *Doc) { d.clock = clock }
}

// NewDoc creates an empty document.
func NewDoc(opts ...Option) *Doc {
	d := &Doc{
		clock:     NewClock(),
		roots:     make(map[string]*Map),
		index:     make(map[ID]container),
		applied:   make(map[string]int64),
		observers: make(map[int]func(Update)),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.actor == "" {
		d.actor = uuid.Must(uuid.NewV7()).String()
	}
	return d
}

// Actor returns the actor id of the ops this doc records.
func (d *Doc) Actor() string {
	return d.actor
}

// Map returns the root map with the given name, creating it on first use.
func (d *Doc) Map(name string) *Map {
	if m, ok := d.roots[name]; ok {
		return m
	}
	m := NewMap()
	m.doc = d
	m.name = name
	d.roots[name] = m
	return m
}

// Roots returns the names of existing root maps in sorted order.
func (d *Doc) Roots() []string {
	names := make([]string, 0, len(d.roots))
	for name := range d.roots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Seq returns the Lamport time of the doc: the highest op seq it recorded
// or integrated.
func (d *Doc) Seq() int64 {
	return d.clock.Current()
}

// Applied returns the highest seq integrated from actor.
func (d *Doc) Applied(actor string) int64 {
	return d.applied[actor]
}

// Transact runs fn and delivers every op it records as one Update.
// Nested calls join the outermost transaction. Observers are not called
// when fn records nothing.
func (d *Doc) Transact(origin string, fn func()) {
	if d.tx != nil {
		fn()
		return
	}
	d.tx = &Update{Origin: origin}
	defer func() {
		tx := d.tx
		d.tx = nil
		if len(tx.Ops) > 0 {
			d.emit(*tx)
		}
	}()
	fn()
}

// OnUpdate registers fn to receive every Update. The returned function
// unregisters it.
func (d *Doc) OnUpdate(fn func(Update)) (cancel func()) {
	id := d.nextObs
	d.nextObs++
	d.observers[id] = fn
	return func() {
		delete(d.observers, id)
	}
}

// Integrate merges an op recorded by another replica (or by an earlier
// life of this one). Ops must arrive in causal order: an op naming an id
// not yet seen fails with ErrUnknownID. An op already integrated is
// skipped and Integrate returns false.
//
// Integrated ops reach observers unchanged, with origin "remote" outside
// Transact.
func (d *Doc) Integrate(op Op) (bool, error) {
	if op.ID.Seq <= 0 || op.ID.Actor == "" {
		return false, fmt.Errorf("integrate %s: op has no id", op)
	}
	if op.ID.Seq <= d.applied[op.ID.Actor] {
		return false, nil
	}
	target, err := d.resolve(op)
	if err != nil {
		return false, fmt.Errorf("integrate %s: %w", op, err)
	}
	if err := target.integrate(d, op); err != nil {
		return false, fmt.Errorf("integrate %s: %w", op, err)
	}
	d.applied[op.ID.Actor] = op.ID.Seq
	d.clock.Observe(op.ID.Seq)
	d.deliver("remote", op)
	return true, nil
}

func (d *Doc) resolve(op Op) (container, error) {
	if !op.Target.IsZero() {
		c, ok := d.index[op.Target]
		if !ok {
			return nil, fmt.Errorf("target %s: %w", op.Target, ErrUnknownID)
		}
		return c, nil
	}
	switch len(op.Path) {
	case 0:
		return nil, errors.New("op has neither target nor root")
	case 1:
		return d.Map(op.Path[0]), nil
	default:
		return nil, errors.New("nested op has no target")
	}
}

// tick stamps a new local op.
func (d *Doc) tick() ID {
	seq := d.clock.Next()
	d.applied[d.actor] = seq
	return ID{Seq: seq, Actor: d.actor}
}

// record adds a stamped local op to the running transaction, or emits it
// as a single-op update when called outside Transact.
func (d *Doc) record(op Op) {
	d.deliver("local", op)
}

func (d *Doc) deliver(origin string, op Op) {
	if d.tx != nil {
		d.tx.Ops = append(d.tx.Ops, op)
		return
	}
	d.emit(Update{Origin: origin, Ops: []Op{op}})
}

func (d *Doc) emit(u Update) {
	ids := make([]int, 0, len(d.observers))
	for id := range d.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if fn, ok := d.observers[id]; ok {
			fn(u)
		}
	}
}
