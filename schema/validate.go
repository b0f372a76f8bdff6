package schema

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrValidation is the sentinel wrapped by every validation failure.
var ErrValidation = errors.New("schema: validation failed")

// ValidationError reports which field failed and why.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema: field %q: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Validate checks parsed fields against the schema. Required fields
// must be present and every present field must match its declared
// type. The first failure is returned.
func (s *Schema) Validate(fields map[string]any) error {
	for _, f := range s.fields {
		val, ok := fields[f.Name]
		if !ok {
			if f.Optional {
				continue
			}
			return &ValidationError{Field: f.Name, Message: "missing required field"}
		}
		if err := checkType(f, val); err != nil {
			return err
		}
	}
	return nil
}

func checkType(f Field, val any) error {
	switch f.Type {
	case String:
		if _, ok := val.(string); !ok {
			return typeErr(f, val)
		}
	case Number:
		switch val.(type) {
		case int, int64, float64:
		default:
			return typeErr(f, val)
		}
	case Boolean:
		if _, ok := val.(bool); !ok {
			return typeErr(f, val)
		}
	case Array:
		if val == nil || reflect.TypeOf(val).Kind() != reflect.Slice {
			return typeErr(f, val)
		}
	case Object:
		if _, ok := val.(map[string]any); !ok {
			return typeErr(f, val)
		}
	case Null:
		if val != nil {
			return typeErr(f, val)
		}
	}
	return nil
}

func typeErr(f Field, val any) error {
	return &ValidationError{
		Field:   f.Name,
		Message: fmt.Sprintf("expected %s, got %T (%v)", f.Type, val, val),
	}
}
