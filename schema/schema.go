package schema

// FieldType is the declared primitive type of a tagged field.
type FieldType string

// Field types supported by the tagged-field wire grammar.
const (
	String  FieldType = "string"
	Number  FieldType = "number"
	Boolean FieldType = "boolean"
	Array   FieldType = "array"
	Object  FieldType = "object"
	Null    FieldType = "null"
)

// Field describes one expected field in a structured response.
type Field struct {
	// Name is the tag name of the field.
	Name string

	// Type is the declared primitive type.
	Type FieldType

	// Description is a short hint included in prompts.
	Description string

	// Example is a one-line example of the field's content in the
	// tagged-field syntax. When empty a per-type default is used.
	Example string

	// Optional marks the field as not required during validation.
	Optional bool
}

// Schema is an ordered list of expected fields. Order is preserved so
// prompt descriptions read the way the author wrote them.
type Schema struct {
	fields []Field
}

// Fields returns the schema's fields in declaration order.
func (s *Schema) Fields() []Field {
	return s.fields
}

// Builder constructs a Schema with a fluent API.
//
//	s := schema.New().
//	    String("name", "the character's full name").
//	    Number("age", "age in years").
//	    Array("traits", "3-5 personality traits").
//	    Build()
type Builder struct {
	fields []Field
}

// New creates a schema builder.
func New() *Builder {
	return &Builder{}
}

// String adds a string field.
func (b *Builder) String(name, description string) *Builder {
	return b.add(name, String, description)
}

// Number adds a number field.
func (b *Builder) Number(name, description string) *Builder {
	return b.add(name, Number, description)
}

// Boolean adds a boolean field.
func (b *Builder) Boolean(name, description string) *Builder {
	return b.add(name, Boolean, description)
}

// Array adds an array field. Array content must be a single-line
// JSON-like literal.
func (b *Builder) Array(name, description string) *Builder {
	return b.add(name, Array, description)
}

// Object adds an object field.
func (b *Builder) Object(name, description string) *Builder {
	return b.add(name, Object, description)
}

// Optional marks the most recently added field as optional.
func (b *Builder) Optional() *Builder {
	if len(b.fields) > 0 {
		b.fields[len(b.fields)-1].Optional = true
	}
	return b
}

// Example sets a one-line example for the most recently added field.
func (b *Builder) Example(example string) *Builder {
	if len(b.fields) > 0 {
		b.fields[len(b.fields)-1].Example = example
	}
	return b
}

// Build returns the finished schema.
func (b *Builder) Build() *Schema {
	fields := make([]Field, len(b.fields))
	copy(fields, b.fields)
	return &Schema{fields: fields}
}

func (b *Builder) add(name string, typ FieldType, description string) *Builder {
	b.fields = append(b.fields, Field{Name: name, Type: typ, Description: description})
	return b
}
