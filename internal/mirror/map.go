package mirror

import (
	"fmt"
	"sort"

	"github.com/roach88/coedit/internal/value"
)

// mapEntry is the current winner for one key. A nil el is a deletion that
// is kept so an older concurrent set cannot revive the key.
type mapEntry struct {
	id ID
	el Element
}

// Map is a mirror node holding named children. Key order carries no meaning.
// Concurrent writes to one key resolve to the op with the greatest id.
type Map struct {
	node
	entries map[string]*mapEntry
}

func (*Map) mirrorElement() {}

func (m *Map) base() *node { return &m.node }

func (m *Map) childKey(child Element) (string, bool) {
	for k, ent := range m.entries {
		if ent.el != nil && ent.el == child {
			return k, true
		}
	}
	return "", false
}

// NewMap creates an empty detached map.
func NewMap() *Map {
	return &Map{entries: make(map[string]*mapEntry)}
}

// Len returns the number of entries.
func (m *Map) Len() int {
	n := 0
	for _, ent := range m.entries {
		if ent.el != nil {
			n++
		}
	}
	return n
}

// Get returns the child stored under key.
func (m *Map) Get(key string) (Element, bool) {
	ent, ok := m.entries[key]
	if !ok || ent.el == nil {
		return nil, false
	}
	return ent.el, true
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Keys returns the keys in sorted order.
func (m *Map) Keys() []string {
	keys := make([]string, 0, len(m.entries))
	for k, ent := range m.entries {
		if ent.el != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Set stores e under key, replacing (and detaching) any previous child.
// Container elements must be detached; setting an already integrated node
// panics.
func (m *Map) Set(key string, e Element) {
	if old, ok := m.Get(key); ok {
		release(old)
	}
	adopt(m, key, e)
	if m.doc == nil {
		m.entries[key] = &mapEntry{el: e}
		return
	}
	id := m.doc.tick()
	st := newStamper(m.doc, id)
	st.element(e, st.next())
	m.entries[key] = &mapEntry{id: id, el: e}
	m.doc.record(Op{
		ID:     id,
		Kind:   OpMapSet,
		Target: m.id,
		Path:   pathOf(&m.node, m),
		Key:    key,
		Value:  Materialize(e),
	})
}

// SetScalar is a shorthand for Set(key, Scalar{V: v}).
func (m *Map) SetScalar(key string, v value.Value) {
	m.Set(key, Scalar{V: v})
}

// Delete removes key. Deleting a missing key records nothing.
func (m *Map) Delete(key string) {
	old, ok := m.Get(key)
	if !ok {
		return
	}
	release(old)
	if m.doc == nil {
		delete(m.entries, key)
		return
	}
	id := m.doc.tick()
	m.entries[key] = &mapEntry{id: id}
	m.doc.record(Op{
		ID:     id,
		Kind:   OpMapDelete,
		Target: m.id,
		Path:   pathOf(&m.node, m),
		Key:    key,
	})
}

// integrate applies a remote set or delete if it wins over the key's
// current entry. A losing set is still stamped so later ops addressing its
// subtree resolve.
func (m *Map) integrate(d *Doc, op Op) error {
	var el Element
	switch op.Kind {
	case OpMapSet:
		el = fromValue(op.Value)
		st := newStamper(d, op.ID)
		st.element(el, st.next())
	case OpMapDelete:
	default:
		return fmt.Errorf("map cannot apply %s", op.Kind)
	}

	if cur, ok := m.entries[op.Key]; ok && !cur.id.Less(op.ID) {
		return nil
	}
	if old, ok := m.Get(op.Key); ok {
		release(old)
	}
	if el != nil {
		adopt(m, op.Key, el)
	}
	m.entries[op.Key] = &mapEntry{id: op.ID, el: el}
	return nil
}

// compact drops deletion markers and Undefined members, which stored op
// values omit. Only valid while the map is detached.
func (m *Map) compact() {
	for k, ent := range m.entries {
		if ent.el == nil || value.KindOf(Materialize(ent.el)) == value.KindUndefined {
			delete(m.entries, k)
		}
	}
}
