package parser

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceNumber(t *testing.T) {
	v, err := coerce(" 30 ", TypeNumber)
	require.NoError(t, err)
	assert.Equal(t, 30, v, "integral values parse as int")

	v, err = coerce("3.14", TypeNumber)
	require.NoError(t, err)
	assert.Equal(t, 3.14, v)

	v, err = coerce("-12", TypeNumber)
	require.NoError(t, err)
	assert.Equal(t, -12, v)

	_, err = coerce("twelve", TypeNumber)
	assert.Error(t, err)
}

func TestCoerceBoolean(t *testing.T) {
	for _, raw := range []string{"true", "True", "TRUE"} {
		v, err := coerce(raw, TypeBoolean)
		require.NoError(t, err)
		assert.Equal(t, true, v)
	}

	v, err := coerce("False", TypeBoolean)
	require.NoError(t, err)
	assert.Equal(t, false, v)

	_, err = coerce("yes", TypeBoolean)
	assert.Error(t, err, "only true/false are booleans")
}

func TestCoerceArray_StrictJSON(t *testing.T) {
	v, err := coerce(`[1, "two", true]`, TypeArray)
	require.NoError(t, err)
	assert.Equal(t, []any{1, "two", true}, v, "integral numbers parse as int on every strategy")

	v, err = coerce(`[1.5, 2]`, TypeArray)
	require.NoError(t, err)
	assert.Equal(t, []any{1.5, 2}, v)
}

func TestCoerceArray_Empty(t *testing.T) {
	v, err := coerce("", TypeArray)
	require.NoError(t, err)
	assert.Equal(t, []any{}, v)
}

func TestCoerceArray_TrailingComma(t *testing.T) {
	v, err := coerce(`["a", "b",]`, TypeArray)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, v)
}

func TestCoerceArray_SingleQuotes(t *testing.T) {
	v, err := coerce(`['alpha', 'beta']`, TypeArray)
	require.NoError(t, err)
	assert.Equal(t, []any{"alpha", "beta"}, v)
}

func TestCoerceArray_TopLevelSplit(t *testing.T) {
	// Unquoted words are not JSON; the depth-aware splitter recovers them.
	v, err := coerce(`[alpha, beta, 3]`, TypeArray)
	require.NoError(t, err)
	assert.Equal(t, []any{"alpha", "beta", 3}, v)
}

func TestCoerceArray_NestedBracketsSplit(t *testing.T) {
	v, err := coerce(`[[1, 2], [3, 4]]`, TypeArray)
	require.NoError(t, err)
	arr, ok := v.([]any)
	require.True(t, ok)
	assert.Len(t, arr, 2)
}

func TestCoerceArray_NewlineFallback(t *testing.T) {
	v, err := coerce("apple\nbanana\n- cherry\n", TypeArray)
	require.NoError(t, err)
	assert.Equal(t, []any{"apple", "banana", "cherry"}, v)
}

func TestCoerceObject_JSON(t *testing.T) {
	v, err := coerce(`{"name": "Ada", "age": 36, "score": 0.5}`, TypeObject)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ada", "age": 36, "score": 0.5}, v)
}

func TestCoerceObject_TaggedContent(t *testing.T) {
	v, err := coerce(`<name type="string">Ada<age type="number">36`, TypeObject)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ada", "age": 36}, v)
}

func TestCoerceObject_Empty(t *testing.T) {
	v, err := coerce("  ", TypeObject)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, v)
}

func TestCoerceNull(t *testing.T) {
	v, err := coerce("anything", TypeNull)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestInfer(t *testing.T) {
	assert.Equal(t, 7, infer("7"))
	assert.Equal(t, 2.5, infer("2.5"))
	assert.Equal(t, true, infer("true"))
	assert.Equal(t, false, infer("False"))
	assert.Nil(t, infer("null"))
	assert.Equal(t, "hello world", infer("  hello world "))
	assert.Equal(t, []any{1, 2}, infer("[1, 2]"))
	assert.Equal(t, map[string]any{"k": "v"}, infer(`{"k": "v"}`))
}

func TestCoerceArray_ReparseStable(t *testing.T) {
	// Whichever strategy recovered the array, serializing it back to
	// JSON and coercing again must reproduce the same values.
	inputs := []string{
		`[alpha, 2]`,
		`[1, "two", true]`,
		`['a', 'b', 3,]`,
		`[1, 2.5, [3, 4], {"n": 5}]`,
		"apple\n7\n- cherry\n",
	}
	for _, in := range inputs {
		first, err := coerce(in, TypeArray)
		require.NoError(t, err, "input %q", in)

		data, err := json.Marshal(first)
		require.NoError(t, err, "input %q", in)

		second, err := coerce(string(data), TypeArray)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, first, second, "input %q", in)
	}
}
