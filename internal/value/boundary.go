package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// FromGo classifies an arbitrary Go value into the closed Value variant set.
//
// This is the single place where Go runtime kinds are inspected. Accepted:
// nil (Null), Value, bool, every integer and float kind, json.Number,
// string, []any, []string, []Value, map[string]any, map[string]string and
// func values of any signature (wrapped as Opaque). Everything else - structs, pointers,
// channels, typed maps - fails with a *ShapeError.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Array:
		return fromValues(val)
	case Object:
		return fromValueMap(val)
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Number(val), nil
	case int8:
		return Number(val), nil
	case int16:
		return Number(val), nil
	case int32:
		return Number(val), nil
	case int64:
		return Number(val), nil
	case uint:
		return Number(val), nil
	case uint8:
		return Number(val), nil
	case uint16:
		return Number(val), nil
	case uint32:
		return Number(val), nil
	case uint64:
		return Number(val), nil
	case float32:
		return Number(val), nil
	case float64:
		return Number(val), nil
	case json.Number:
		f, err := strconv.ParseFloat(string(val), 64)
		if err != nil {
			return nil, fmt.Errorf("number %q: %w", val, err)
		}
		return Number(f), nil
	case []Value:
		return fromValues(val)
	case []string:
		arr := make(Array, len(val))
		for i, s := range val {
			arr[i] = String(s)
		}
		return arr, nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			pv, err := FromGo(elem)
			if err != nil {
				return nil, within(strconv.Itoa(i), err)
			}
			arr[i] = pv
		}
		return arr, nil
	case map[string]string:
		obj := make(Object, len(val))
		for k, s := range val {
			obj[k] = String(s)
		}
		return obj, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			pv, err := FromGo(elem)
			if err != nil {
				return nil, within(k, err)
			}
			obj[k] = pv
		}
		return obj, nil
	default:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Func {
			return Opaque{ID: fmt.Sprintf("func:%#x", rv.Pointer())}, nil
		}
		return nil, &ShapeError{GoType: fmt.Sprintf("%T", v)}
	}
}

// MustFromGo is FromGo for test fixtures and literals. It panics on error.
func MustFromGo(v any) Value {
	pv, err := FromGo(v)
	if err != nil {
		panic(err)
	}
	return pv
}

func fromValues(vals []Value) (Array, error) {
	arr := make(Array, len(vals))
	for i, elem := range vals {
		if elem == nil {
			arr[i] = Undefined{}
			continue
		}
		pv, err := FromGo(elem)
		if err != nil {
			return nil, within(strconv.Itoa(i), err)
		}
		arr[i] = pv
	}
	return arr, nil
}

func fromValueMap(m map[string]Value) (Object, error) {
	obj := make(Object, len(m))
	for k, elem := range m {
		if elem == nil {
			obj[k] = Undefined{}
			continue
		}
		pv, err := FromGo(elem)
		if err != nil {
			return nil, within(k, err)
		}
		obj[k] = pv
	}
	return obj, nil
}

// FromJSON decodes a JSON document into a Value.
// Numbers keep full precision through json.Number before becoming Number.
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return FromGo(raw)
}

// ToGo converts v into the generic Go form produced by encoding/json:
// nil, bool, float64, string, []any, map[string]any. Undefined object
// members are omitted; Undefined array elements become nil. Opaque values
// are returned as their ID string.
func ToGo(v Value) any {
	switch val := v.(type) {
	case nil, Undefined, Null:
		return nil
	case Bool:
		return bool(val)
	case Number:
		return float64(val)
	case Opaque:
		return val.ID
	case String:
		return string(val)
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			if KindOf(elem) == KindUndefined {
				continue
			}
			out[k] = ToGo(elem)
		}
		return out
	default:
		return nil
	}
}
