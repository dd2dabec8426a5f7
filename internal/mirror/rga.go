package mirror

import (
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownID is returned when an op names an id the document has not
// seen: the op was delivered before the op that created its target.
var ErrUnknownID = errors.New("unknown id")

// slot is one element of a replicated list. Deleted slots stay in place as
// tombstones so later inserts can still anchor on them.
type slot[T any] struct {
	id      ID
	val     T
	deleted bool
}

// rga is a replicated growable array: an ordered list of id-stamped slots.
// A run of slots is inserted right after its reference slot, past any
// slots with a greater id. Since ids are Lamport stamped, concurrent inserts
// at one position end up in the same order on every replica.
type rga[T any] struct {
	slots []slot[T]
	live  int
}

// Len returns the number of live slots.
func (l *rga[T]) Len() int {
	return l.live
}

// raw returns the slot index of the i-th live slot, or -1.
func (l *rga[T]) raw(i int) int {
	if i < 0 {
		return -1
	}
	for j := range l.slots {
		if l.slots[j].deleted {
			continue
		}
		if i == 0 {
			return j
		}
		i--
	}
	return -1
}

func (l *rga[T]) at(i int) T {
	j := l.raw(i)
	if j < 0 {
		panic(fmt.Sprintf("mirror: index %d out of range [0,%d)", i, l.live))
	}
	return l.slots[j].val
}

func (l *rga[T]) values() []T {
	out := make([]T, 0, l.live)
	for _, s := range l.slots {
		if !s.deleted {
			out = append(out, s.val)
		}
	}
	return out
}

// indexOf returns the live index of the first live slot match accepts.
func (l *rga[T]) indexOf(match func(T) bool) (int, bool) {
	i := 0
	for _, s := range l.slots {
		if s.deleted {
			continue
		}
		if match(s.val) {
			return i, true
		}
		i++
	}
	return 0, false
}

// ref returns the id of the live slot before live index i, zero for the
// head of the list.
func (l *rga[T]) ref(i int) ID {
	if i == 0 {
		return ID{}
	}
	return l.slots[l.raw(i-1)].id
}

// ids returns the ids of n live slots starting at live index i.
func (l *rga[T]) ids(i, n int) []ID {
	out := make([]ID, 0, n)
	for j := l.raw(i); j < len(l.slots) && len(out) < n; j++ {
		if !l.slots[j].deleted {
			out = append(out, l.slots[j].id)
		}
	}
	return out
}

func (l *rga[T]) find(id ID) int {
	for j := range l.slots {
		if l.slots[j].id == id {
			return j
		}
	}
	return -1
}

// push appends an unstamped slot. Only used while building detached nodes.
func (l *rga[T]) push(vals ...T) {
	for _, v := range vals {
		l.slots = append(l.slots, slot[T]{val: v})
	}
	l.live += len(vals)
}

// insertDetached places vals before live index i without ids.
func (l *rga[T]) insertDetached(i int, vals ...T) {
	j := len(l.slots)
	if i < l.live {
		j = l.raw(i)
	}
	run := make([]slot[T], len(vals))
	for k, v := range vals {
		run[k] = slot[T]{val: v}
	}
	l.slots = slices.Insert(l.slots, j, run...)
	l.live += len(vals)
}

// integrate inserts run after the slot named ref (the head when ref is
// zero). The run's ids must share one op, so they all compare the same way
// against any other slot.
func (l *rga[T]) integrate(ref ID, run []slot[T]) error {
	if len(run) == 0 {
		return nil
	}
	pos := 0
	if !ref.IsZero() {
		j := l.find(ref)
		if j < 0 {
			return fmt.Errorf("insert after %s: %w", ref, ErrUnknownID)
		}
		pos = j + 1
	}
	for pos < len(l.slots) && run[0].id.Less(l.slots[pos].id) {
		pos++
	}
	l.slots = slices.Insert(l.slots, pos, run...)
	l.live += len(run)
	return nil
}

// remove tombstones the slots named by ids and returns the values that were
// live. Removing an already deleted slot is a no-op. Nothing is removed
// when any id is unknown.
func (l *rga[T]) remove(ids []ID) ([]T, error) {
	at := make([]int, len(ids))
	for k, id := range ids {
		j := l.find(id)
		if j < 0 {
			return nil, fmt.Errorf("delete %s: %w", id, ErrUnknownID)
		}
		at[k] = j
	}
	var removed []T
	var zero T
	for _, j := range at {
		if l.slots[j].deleted {
			continue
		}
		removed = append(removed, l.slots[j].val)
		l.slots[j].val = zero
		l.slots[j].deleted = true
		l.live--
	}
	return removed, nil
}

// removeDetached drops n live slots at live index i outright.
func (l *rga[T]) removeDetached(i, n int) []T {
	removed := make([]T, 0, n)
	for n > 0 {
		j := l.raw(i)
		removed = append(removed, l.slots[j].val)
		l.slots = slices.Delete(l.slots, j, j+1)
		l.live--
		n--
	}
	return removed
}

// compact drops tombstones.
func (l *rga[T]) compact() {
	l.slots = slices.DeleteFunc(l.slots, func(s slot[T]) bool { return s.deleted })
}
