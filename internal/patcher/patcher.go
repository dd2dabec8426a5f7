package patcher

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/coedit/internal/mirror"
	"github.com/roach88/coedit/internal/value"
)

// ErrIncompatible is returned by SyncRoot when a snapshot cannot be patched
// into a root map. Update itself signals incompatibility with false.
var ErrIncompatible = errors.New("incompatible patch")

// Create converts a plain value into a fresh, detached mirror fragment.
//
// Strings become Text, arrays Sequence (Undefined elements dropped), objects
// Map (Undefined members skipped). Every other kind is returned unchanged
// as a Scalar. Go values with no plain form fail with a *value.ShapeError.
func Create(v any) (mirror.Element, error) {
	pv, err := value.FromGo(v)
	if err != nil {
		return nil, err
	}
	return build(pv), nil
}

// build converts an already classified value. It cannot fail.
func build(v value.Value) mirror.Element {
	switch val := v.(type) {
	case value.String:
		return mirror.NewText(string(val))
	case value.Array:
		seq := mirror.NewSequence()
		for _, elem := range val {
			if value.KindOf(elem) == value.KindUndefined {
				continue
			}
			seq.Push(build(elem))
		}
		return seq
	case value.Object:
		m := mirror.NewMap()
		for _, k := range val.SortedKeys() {
			elem := val[k]
			if value.KindOf(elem) == value.KindUndefined {
				continue
			}
			m.Set(k, build(elem))
		}
		return m
	default:
		if v == nil {
			return mirror.Scalar{V: value.Undefined{}}
		}
		return mirror.Scalar{V: v}
	}
}

// fragment is build with a Null placeholder where build would produce
// Undefined, for positions in a sequence that must hold something.
func fragment(v value.Value) mirror.Element {
	if value.KindOf(v) == value.KindUndefined {
		return mirror.Scalar{V: value.Null{}}
	}
	return build(v)
}

// Update patches existing in place so that it materializes to next.
//
// It returns false when the two are structurally incompatible (either side
// null or undefined, next is a scalar, or the shapes differ); the caller must
// then replace existing with Create(next). The only error is a
// *value.ShapeError from classifying next.
func Update(existing mirror.Element, next any) (bool, error) {
	nv, err := value.FromGo(next)
	if err != nil {
		return false, err
	}
	return update(existing, nv), nil
}

func update(existing mirror.Element, next value.Value) bool {
	if existing == nil || value.IsNullish(next) || value.IsScalar(next) {
		return false
	}

	switch old := existing.(type) {
	case *mirror.Text:
		s, ok := next.(value.String)
		if !ok {
			return false
		}
		return updateText(old, string(s))
	case *mirror.Sequence:
		arr, ok := next.(value.Array)
		if !ok {
			return false
		}
		updateSequence(old, arr)
		return true
	case *mirror.Map:
		obj, ok := next.(value.Object)
		if !ok {
			return false
		}
		updateMap(old, obj)
		return true
	default:
		// Scalars are never patched in place.
		return false
	}
}

func updateText(t *mirror.Text, s string) bool {
	if t.String() == s {
		return true
	}
	t.Delete(0, t.Len())
	t.Insert(0, s)
	return true
}

// updateSequence applies at most one structural edit when lengths differ,
// or per-index patches when they match.
func updateSequence(seq *mirror.Sequence, arr value.Array) {
	oldLen, newLen := seq.Len(), len(arr)

	switch {
	case newLen < oldLen:
		i := firstDifference(seq, arr, newLen)
		seq.Delete(i, 1)

	case newLen > oldLen:
		i := firstDifference(seq, arr, oldLen)
		seq.Insert(i, fragment(arr[i]))

	default:
		for i := 0; i < newLen; i++ {
			child := seq.Get(i)
			if elementMatches(mirror.Materialize(child), arr[i]) {
				continue
			}
			if update(child, arr[i]) {
				continue
			}
			seq.Delete(i, 1)
			seq.Insert(i, fragment(arr[i]))
		}
	}
}

// firstDifference scans the first limit positions for the first index where
// the mirror and the snapshot disagree. It returns limit if they agree on
// the whole prefix, i.e. the edit happened at the end.
func firstDifference(seq *mirror.Sequence, arr value.Array, limit int) int {
	for i := 0; i < limit; i++ {
		if !elementMatches(mirror.Materialize(seq.Get(i)), arr[i]) {
			return i
		}
	}
	return limit
}

// updateMap patches every key whose value changed. Keys missing from obj
// are left untouched (see package documentation).
func updateMap(m *mirror.Map, obj value.Object) {
	for _, k := range obj.SortedKeys() {
		nv := obj[k]
		if value.KindOf(nv) == value.KindUndefined {
			continue
		}
		child, has := m.Get(k)
		if has && matches(mirror.Materialize(child), nv) {
			continue
		}
		if has && update(child, nv) {
			continue
		}
		m.Set(k, build(nv))
	}
}

// Sync brings parent[key] in step with next, the way an application
// assigns a field: scalars are stored directly, containers are patched in
// place and replaced wholesale when Update reports incompatibility.
// It records nothing when parent[key] already materializes to next.
func Sync(parent *mirror.Map, key string, next any) error {
	nv, err := value.FromGo(next)
	if err != nil {
		return fmt.Errorf("sync %q: %w", key, err)
	}

	child, has := parent.Get(key)
	if has && matches(mirror.Materialize(child), nv) {
		return nil
	}
	if value.KindOf(nv) == value.KindUndefined {
		// Omission never deletes.
		return nil
	}
	if has && update(child, nv) {
		return nil
	}

	if has {
		slog.Debug("mirror fragment replaced",
			"key", key,
			"kind", value.KindOf(nv).String(),
		)
	}
	parent.Set(key, build(nv))
	return nil
}

// SyncRoot patches the named root map of doc towards snapshot inside a
// single transaction tagged origin. snapshot must classify as an object.
func SyncRoot(doc *mirror.Doc, root, origin string, snapshot any) error {
	nv, err := value.FromGo(snapshot)
	if err != nil {
		return fmt.Errorf("sync root %q: %w", root, err)
	}
	obj, ok := nv.(value.Object)
	if !ok {
		return fmt.Errorf("sync root %q: snapshot is %s, want object: %w", root, value.KindOf(nv), ErrIncompatible)
	}

	m := doc.Map(root)
	doc.Transact(origin, func() {
		updateMap(m, obj)
	})
	return nil
}

// matches reports whether a materialized mirror value already represents
// want. It is value.Equal except that, inside sequences, the Null
// placeholder Update writes for an Undefined element counts as that element.
func matches(got, want value.Value) bool {
	switch w := want.(type) {
	case value.Array:
		g, ok := got.(value.Array)
		if !ok || len(g) != len(w) {
			return false
		}
		for i := range w {
			if !elementMatches(g[i], w[i]) {
				return false
			}
		}
		return true
	case value.Object:
		g, ok := got.(value.Object)
		if !ok {
			return false
		}
		for k, wv := range w {
			if value.KindOf(wv) == value.KindUndefined {
				continue
			}
			gv, has := g[k]
			if !has || !matches(gv, wv) {
				return false
			}
		}
		for k, gv := range g {
			if value.KindOf(gv) == value.KindUndefined {
				continue
			}
			if wv, has := w[k]; !has || value.KindOf(wv) == value.KindUndefined {
				return false
			}
		}
		return true
	default:
		return value.Equal(got, want)
	}
}

func elementMatches(got, want value.Value) bool {
	if value.KindOf(want) == value.KindUndefined {
		return value.KindOf(got) == value.KindNull
	}
	return matches(got, want)
}
