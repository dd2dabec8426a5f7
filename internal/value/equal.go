package value

import "math"

// Equal reports whether a and b are deeply equal plain values.
//
// Object members whose value is Undefined are treated as absent, so
// {"a": Undefined} equals {}. Array elements are compared positionally with
// no such allowance. Number compares NaN equal to NaN so that patching a
// snapshot containing NaN stays idempotent.
func Equal(a, b Value) bool {
	ka, kb := KindOf(a), KindOf(b)
	if ka != kb {
		return false
	}

	switch ka {
	case KindUndefined, KindNull:
		return true
	case KindBool:
		return a.(Bool) == b.(Bool)
	case KindNumber:
		x, y := float64(a.(Number)), float64(b.(Number))
		return x == y || (math.IsNaN(x) && math.IsNaN(y))
	case KindOpaque:
		return a.(Opaque).ID == b.(Opaque).ID
	case KindString:
		return a.(String) == b.(String)
	case KindArray:
		return equalArrays(a.(Array), b.(Array))
	case KindObject:
		return equalObjects(a.(Object), b.(Object))
	default:
		return false
	}
}

func equalArrays(a, b Array) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalObjects(a, b Object) bool {
	for k, av := range a {
		if KindOf(av) == KindUndefined {
			continue
		}
		bv, ok := b[k]
		if !ok || !Equal(av, bv) {
			return false
		}
	}
	for k, bv := range b {
		if KindOf(bv) == KindUndefined {
			continue
		}
		if _, ok := a[k]; !ok {
			return false
		}
	}
	return true
}

// Prune returns a copy of v with every Undefined object member removed and
// every Undefined array element dropped. It is the shape a mirror round trip
// is expected to produce.
func Prune(v Value) Value {
	switch val := v.(type) {
	case Array:
		out := make(Array, 0, len(val))
		for _, elem := range val {
			if KindOf(elem) == KindUndefined {
				continue
			}
			out = append(out, Prune(elem))
		}
		return out
	case Object:
		out := make(Object, len(val))
		for k, elem := range val {
			if KindOf(elem) == KindUndefined {
				continue
			}
			out[k] = Prune(elem)
		}
		return out
	default:
		return v
	}
}
