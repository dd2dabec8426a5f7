package value

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	// Compile-time check via assignment
	var _ Value = Undefined{}
	var _ Value = Null{}
	var _ Value = Bool(true)
	var _ Value = Number(4.5)
	var _ Value = Symbol("s")
	var _ Value = String("x")
	var _ Value = Array{String("a"), Number(1)}
	var _ Value = Object{"k": String("v")}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		v    Value
		want Kind
	}{
		{nil, KindUndefined},
		{Undefined{}, KindUndefined},
		{Null{}, KindNull},
		{Bool(false), KindBool},
		{Number(0), KindNumber},
		{Symbol("x"), KindOpaque},
		{String(""), KindString},
		{Array{}, KindArray},
		{Object{}, KindObject},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.v))
		})
	}
}

func TestIsScalar(t *testing.T) {
	assert.True(t, IsScalar(Number(1)))
	assert.True(t, IsScalar(Bool(true)))
	assert.True(t, IsScalar(Null{}))
	assert.True(t, IsScalar(Undefined{}))
	assert.True(t, IsScalar(Symbol("fn")))
	assert.False(t, IsScalar(String("s")))
	assert.False(t, IsScalar(Array{}))
	assert.False(t, IsScalar(Object{}))
}

func TestObjectSortedKeys(t *testing.T) {
	obj := Object{
		"zebra":  String("z"),
		"apple":  String("a"),
		"banana": String("b"),
	}
	assert.Equal(t, []string{"apple", "banana", "zebra"}, obj.SortedKeys())
}

func TestObjectSortedKeysUTF16Order(t *testing.T) {
	// U+FF61 sorts before U+1F600 in UTF-8 but after it in UTF-16,
	// because the emoji encodes as a surrogate pair starting at 0xD83D.
	obj := Object{"\U0001F600": Null{}, "\uFF61": Null{}}
	assert.Equal(t, []string{"\U0001F600", "\uFF61"}, obj.SortedKeys())
}

func TestFromGo(t *testing.T) {
	v, err := FromGo(map[string]any{
		"name":  "op1",
		"x":     3,
		"y":     2.5,
		"tags":  []string{"a", "b"},
		"attrs": map[string]string{"k": "v"},
		"ok":    true,
		"none":  nil,
		"list":  []any{int64(1), "two"},
	})
	require.NoError(t, err)

	want := Object{
		"name":  String("op1"),
		"x":     Number(3),
		"y":     Number(2.5),
		"tags":  Array{String("a"), String("b")},
		"attrs": Object{"k": String("v")},
		"ok":    Bool(true),
		"none":  Null{},
		"list":  Array{Number(1), String("two")},
	}
	assert.True(t, Equal(want, v), "got %#v", v)
}

func TestFromGoFuncIsOpaque(t *testing.T) {
	fn := func(int) string { return "" }

	a, err := FromGo(fn)
	require.NoError(t, err)
	b, err := FromGo(fn)
	require.NoError(t, err)

	assert.Equal(t, KindOpaque, KindOf(a))
	assert.True(t, Equal(a, b), "same func should map to the same opaque id")
}

func TestFromGoUnsupportedShape(t *testing.T) {
	type point struct{ X, Y int }

	_, err := FromGo(map[string]any{
		"nodes": []any{"a", point{1, 2}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedShape)
	assert.True(t, IsUnsupportedShape(err))

	var se *ShapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{"nodes", "1"}, se.Path)
	assert.Contains(t, se.GoType, "point")
	assert.Contains(t, err.Error(), "nodes.1")
}

func TestFromGoRejectsChannels(t *testing.T) {
	_, err := FromGo(make(chan int))
	assert.ErrorIs(t, err, ErrUnsupportedShape)
}

func TestFromJSON(t *testing.T) {
	v, err := FromJSON([]byte(`{"a":[1,"x",null,true],"b":{"c":1.25}}`))
	require.NoError(t, err)

	want := Object{
		"a": Array{Number(1), String("x"), Null{}, Bool(true)},
		"b": Object{"c": Number(1.25)},
	}
	assert.True(t, Equal(want, v))
}

func TestFromJSONInvalid(t *testing.T) {
	_, err := FromJSON([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestToGoMatchesEncodingJSON(t *testing.T) {
	raw := []byte(`{"a":[1,"x",null,true],"b":{"c":1.25}}`)
	v, err := FromJSON(raw)
	require.NoError(t, err)

	var want any
	require.NoError(t, json.Unmarshal(raw, &want))
	assert.Equal(t, want, ToGo(v))
}

func TestToGoDropsUndefinedMembers(t *testing.T) {
	got := ToGo(Object{"a": Undefined{}, "b": Number(1)})
	assert.Equal(t, map[string]any{"b": float64(1)}, got)
}
