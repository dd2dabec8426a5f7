package value

import (
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface representing a plain snapshot value.
// Only Undefined, Null, Bool, Number, Opaque, String, Array and Object
// implement it.
type Value interface {
	plainValue() // Sealed - only these types implement it
}

// Undefined marks an absent value. It is dropped from arrays and objects
// when a mirror is built and never survives a round trip.
type Undefined struct{}

func (Undefined) plainValue() {}

// Null represents an explicit null.
type Null struct{}

func (Null) plainValue() {}

// Bool represents a boolean.
type Bool bool

func (Bool) plainValue() {}

// Number represents any numeric value. All Go integer and float kinds
// collapse into Number at the boundary.
type Number float64

func (Number) plainValue() {}

// Opaque is a scalar the mirror passes through without looking inside:
// function references, symbols, handles. Two Opaques are equal when their
// IDs are equal.
type Opaque struct {
	ID string
}

func (Opaque) plainValue() {}

// String represents character content.
type String string

func (String) plainValue() {}

// Array represents an ordered list of values.
type Array []Value

func (Array) plainValue() {}

// Object represents a map of string keys to values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) plainValue() {}

// Kind is the variant tag of a Value.
type Kind int

const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindNumber
	KindOpaque
	KindString
	KindArray
	KindObject
)

var kindNames = [...]string{
	KindUndefined: "undefined",
	KindNull:      "null",
	KindBool:      "bool",
	KindNumber:    "number",
	KindOpaque:    "opaque",
	KindString:    "string",
	KindArray:     "array",
	KindObject:    "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// KindOf returns the variant tag of v. A nil interface is Undefined.
func KindOf(v Value) Kind {
	switch v.(type) {
	case nil, Undefined:
		return KindUndefined
	case Null:
		return KindNull
	case Bool:
		return KindBool
	case Number:
		return KindNumber
	case Opaque:
		return KindOpaque
	case String:
		return KindString
	case Array:
		return KindArray
	case Object:
		return KindObject
	default:
		return KindUndefined
	}
}

// IsScalar reports whether v is one of the kinds the mirror never wraps.
func IsScalar(v Value) bool {
	switch KindOf(v) {
	case KindString, KindArray, KindObject:
		return false
	default:
		return true
	}
}

// IsNullish reports whether v is Null or Undefined.
func IsNullish(v Value) bool {
	k := KindOf(v)
	return k == KindNull || k == KindUndefined
}

// Symbol creates an Opaque value with the given identity.
func Symbol(id string) Opaque {
	return Opaque{ID: id}
}

// Pair is a key-value pair for ordered Object construction.
type Pair struct {
	Key   string
	Value Value
}

// O is a shorthand for Pair.
// Example: ObjectOf(O("name", String("op1")), O("x", Number(3)))
func O(key string, v Value) Pair {
	return Pair{Key: key, Value: v}
}

// ObjectOf creates an Object from pairs.
func ObjectOf(pairs ...Pair) Object {
	obj := make(Object, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// ArrayOf creates an Array from values.
func ArrayOf(vals ...Value) Array {
	return Array(vals)
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 byte order, which differs for some inputs.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	if len(a16) < len(b16) {
		return -1
	}
	if len(a16) > len(b16) {
		return 1
	}
	return 0
}
