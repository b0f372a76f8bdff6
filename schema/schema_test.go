package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func characterSchema() *Schema {
	return New().
		String("name", "the character's full name").
		Number("age", "age in years").
		Array("traits", "3-5 personality traits").
		Boolean("villain", "whether the character is a villain").Optional().
		Build()
}

func TestBuilder_FieldOrder(t *testing.T) {
	s := characterSchema()
	fields := s.Fields()
	require.Len(t, fields, 4)
	assert.Equal(t, "name", fields[0].Name)
	assert.Equal(t, "age", fields[1].Name)
	assert.Equal(t, "traits", fields[2].Name)
	assert.Equal(t, "villain", fields[3].Name)
	assert.True(t, fields[3].Optional)
	assert.Equal(t, Boolean, fields[3].Type)
}

func TestBuilder_Example(t *testing.T) {
	s := New().Array("tags", "tags").Example(`["go", "llm"]`).Build()
	assert.Equal(t, `["go", "llm"]`, s.Fields()[0].Example)
}

func TestValidate_OK(t *testing.T) {
	err := characterSchema().Validate(map[string]any{
		"name":   "Ada",
		"age":    30,
		"traits": []any{"curious"},
	})
	assert.NoError(t, err, "optional field may be absent")
}

func TestValidate_MissingRequired(t *testing.T) {
	err := characterSchema().Validate(map[string]any{
		"name":   "Ada",
		"traits": []any{"curious"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "age", verr.Field)
}

func TestValidate_TypeMismatch(t *testing.T) {
	err := characterSchema().Validate(map[string]any{
		"name":   "Ada",
		"age":    "thirty",
		"traits": []any{"curious"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "age", verr.Field)
}

func TestValidate_NumberAcceptsIntAndFloat(t *testing.T) {
	s := New().Number("n", "").Build()
	assert.NoError(t, s.Validate(map[string]any{"n": 1}))
	assert.NoError(t, s.Validate(map[string]any{"n": int64(1)}))
	assert.NoError(t, s.Validate(map[string]any{"n": 1.5}))
	assert.Error(t, s.Validate(map[string]any{"n": "1"}))
}

func TestValidate_OptionalPresentStillTypeChecked(t *testing.T) {
	err := characterSchema().Validate(map[string]any{
		"name":    "Ada",
		"age":     30,
		"traits":  []any{"curious"},
		"villain": "no",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDescribe(t *testing.T) {
	out := characterSchema().Describe("response")

	assert.Contains(t, out, "- name (string, required): the character's full name")
	assert.Contains(t, out, "- villain (boolean, optional)")
	assert.Contains(t, out, "<response>")
	assert.Contains(t, out, "</response>")
	assert.Contains(t, out, `<age type="number">42`)
}
