package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"null", Null{}, `null`},
		{"bool", Bool(true), `true`},
		{"integral number", Number(3), `3`},
		{"negative", Number(-12), `-12`},
		{"fraction", Number(2.5), `2.5`},
		{"large", Number(1e21), `1e+21`},
		{"string", String("op1"), `"op1"`},
		{"sorted keys", Object{"b": Number(1), "a": Number(2)}, `{"a":2,"b":1}`},
		{"undefined member omitted", Object{"a": Undefined{}, "b": Null{}}, `{"b":null}`},
		{"undefined element is null", Array{Undefined{}, Number(1)}, `[null,1]`},
		{"no html escaping", String("<a&b>"), `"<a&b>"`},
		{"go map", map[string]any{"z": []any{"x"}, "a": 1}, `{"a":1,"z":["x"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to the precomposed U+00E9
	got, err := MarshalCanonical(String("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(got))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	got, err := MarshalCanonical(String("a\u2028b\u2029c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(got))

	// A literal backslash followed by u2028 text must stay escaped
	got, err = MarshalCanonical(String(`a\u2028b`))
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(got))
}

func TestMarshalCanonicalRejects(t *testing.T) {
	_, err := MarshalCanonical(Number(math.Inf(1)))
	assert.Error(t, err)

	_, err = MarshalCanonical(Number(math.NaN()))
	assert.Error(t, err)

	_, err = MarshalCanonical(Array{Symbol("fn")})
	assert.Error(t, err)

	_, err = MarshalCanonical(struct{}{})
	assert.ErrorIs(t, err, ErrUnsupportedShape)
}
