package schema

import (
	"fmt"
	"strings"
)

// defaultExamples provide per-type example content for prompt snippets.
var defaultExamples = map[FieldType]string{
	String:  "some text",
	Number:  "42",
	Boolean: "true",
	Array:   `["first", "second"]`,
	Object:  `<inner type="string">value`,
	Null:    "null",
}

// Describe renders a human-readable field list for inclusion in a
// prompt: one line per field with its name, type, requiredness and
// description, followed by a complete example response in the
// tagged-field syntax.
func (s *Schema) Describe(container string) string {
	var b strings.Builder
	b.WriteString("Respond with the following fields, each opened by a tag carrying\n")
	b.WriteString("its name and type. A field's value runs until the next tag; do not\n")
	b.WriteString("close field tags. Arrays must be single-line JSON literals.\n\nFields:\n")

	for _, f := range s.fields {
		req := "required"
		if f.Optional {
			req = "optional"
		}
		fmt.Fprintf(&b, "- %s (%s, %s)", f.Name, f.Type, req)
		if f.Description != "" {
			fmt.Fprintf(&b, ": %s", f.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nExample:\n")
	b.WriteString("<" + container + ">\n")
	for _, f := range s.fields {
		ex := f.Example
		if ex == "" {
			ex = defaultExamples[f.Type]
		}
		fmt.Fprintf(&b, "<%s type=%q>%s\n", f.Name, f.Type, ex)
	}
	b.WriteString("</" + container + ">")
	return b.String()
}
