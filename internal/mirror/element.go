package mirror

import (
	"strconv"

	"github.com/roach88/coedit/internal/value"
)

// Element is a sealed interface over the mirror variants:
// *Map, *Sequence, *Text and Scalar.
type Element interface {
	mirrorElement()
}

// Scalar carries a plain value the mirror does not manage: numbers,
// booleans, null, undefined and opaque references. It is never a String,
// Array or Object.
type Scalar struct {
	V value.Value
}

func (Scalar) mirrorElement() {}

// container is implemented by the node kinds that hold children.
type container interface {
	Element
	base() *node
	childKey(child Element) (string, bool)
	integrate(d *Doc, op Op) error
}

// node is the bookkeeping shared by Map, Sequence and Text.
type node struct {
	doc    *Doc
	parent container
	// name is the root name for root maps, the key for map children.
	name string
	// id is the slot the node was inserted into; zero for roots and for
	// nodes that were never integrated.
	id ID
}

// Doc returns the document the node is integrated into, or nil if detached.
func (n *node) Doc() *Doc {
	return n.doc
}

// ID returns the slot id the node was integrated under.
func (n *node) ID() ID {
	return n.id
}

// Attached reports whether the node is integrated into a document.
func (n *node) Attached() bool {
	return n.doc != nil
}

func baseOf(e Element) *node {
	switch el := e.(type) {
	case *Map:
		return &el.node
	case *Sequence:
		return &el.node
	case *Text:
		return &el.node
	default:
		return nil
	}
}

// adopt makes child a member of parent. The child must be detached.
func adopt(parent container, name string, child Element) {
	n := baseOf(child)
	if n == nil {
		return
	}
	if n.parent != nil || n.doc != nil {
		panic("mirror: element is already integrated")
	}
	n.parent = parent
	n.name = name
	setDoc(child, parent.base().doc)
}

// release detaches child from its parent and document.
func release(child Element) {
	n := baseOf(child)
	if n == nil {
		return
	}
	n.parent = nil
	n.name = ""
	setDoc(child, nil)
}

// setDoc propagates document membership through a subtree.
func setDoc(e Element, d *Doc) {
	switch el := e.(type) {
	case *Map:
		el.doc = d
		for _, ent := range el.entries {
			if ent.el != nil {
				setDoc(ent.el, d)
			}
		}
	case *Sequence:
		el.doc = d
		for _, child := range el.items.values() {
			setDoc(child, d)
		}
	case *Text:
		el.doc = d
	}
}

// pathOf returns the location of n from its root: root name first, then map
// keys and sequence indices. Paths are for display; ops address their
// target by id.
func pathOf(n *node, self Element) []string {
	var rev []string
	cur, curEl := n, self
	for cur.parent != nil {
		key, ok := cur.parent.childKey(curEl)
		if !ok {
			break
		}
		rev = append(rev, key)
		curEl = cur.parent
		cur = cur.parent.base()
	}
	if cur.name != "" {
		rev = append(rev, cur.name)
	}
	path := make([]string, len(rev))
	for i := range rev {
		path[i] = rev[len(rev)-1-i]
	}
	return path
}

func indexKey(i int) string {
	return strconv.Itoa(i)
}

// Materialize converts a mirror element back into a plain value.
// A nil element materializes to Undefined.
func Materialize(e Element) value.Value {
	switch el := e.(type) {
	case nil:
		return value.Undefined{}
	case Scalar:
		if el.V == nil {
			return value.Undefined{}
		}
		return el.V
	case *Text:
		return value.String(el.String())
	case *Sequence:
		items := el.items.values()
		arr := make(value.Array, len(items))
		for i, child := range items {
			arr[i] = Materialize(child)
		}
		return arr
	case *Map:
		obj := make(value.Object, len(el.entries))
		for k, ent := range el.entries {
			if ent.el != nil {
				obj[k] = Materialize(ent.el)
			}
		}
		return obj
	default:
		return value.Undefined{}
	}
}
