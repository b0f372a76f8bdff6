// Package schema describes the expected shape of a structured model
// response in the tagged-field wire grammar.
//
// A Schema is built fluently, validated against parsed fields, and
// rendered into prompt text so the model knows exactly which fields to
// emit:
//
//	s := schema.New().
//	    String("title", "chapter title").
//	    Array("beats", "3-5 plot beats").Example(`["setup", "turn"]`).
//	    Number("pages", "estimated page count").Optional().
//	    Build()
//
//	if err := s.Validate(fields); err != nil { ... }
//	prompt += s.Describe("response")
package schema
