package parser

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Declared field types in the wire grammar.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
	TypeNull    = "null"
)

// coerce converts raw field content to the declared type. An empty or
// unknown type falls back to best-effort inference.
func coerce(raw, typ string) (any, error) {
	switch typ {
	case TypeString:
		return strings.TrimSpace(raw), nil
	case TypeNumber:
		return coerceNumber(raw)
	case TypeBoolean:
		return coerceBool(raw)
	case TypeArray:
		return coerceArray(raw)
	case TypeObject:
		return coerceObject(raw)
	case TypeNull:
		return nil, nil
	default:
		return infer(raw), nil
	}
}

// coerceNumber parses integral values as int and everything else as
// float64.
func coerceNumber(raw string) (any, error) {
	s := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("parser: not a number: %q", s)
}

// coerceBool accepts case-insensitive true/false only.
func coerceBool(raw string) (any, error) {
	s := strings.TrimSpace(raw)
	if strings.EqualFold(s, "true") {
		return true, nil
	}
	if strings.EqualFold(s, "false") {
		return false, nil
	}
	return nil, fmt.Errorf("parser: not a boolean: %q", s)
}

// coerceArray tries progressively looser strategies: strict JSON,
// lenient cleanup, depth-aware manual tokenizing, and finally
// newline-separated values.
func coerceArray(raw string) (any, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return []any{}, nil
	}

	var arr []any
	if err := json.Unmarshal([]byte(s), &arr); err == nil {
		normalizeNumbers(arr)
		return arr, nil
	}

	if cleaned := cleanupArrayLiteral(s); cleaned != s {
		if err := json.Unmarshal([]byte(cleaned), &arr); err == nil {
			normalizeNumbers(arr)
			return arr, nil
		}
	}

	if strings.HasPrefix(s, "[") {
		if vals, ok := splitTopLevel(s); ok {
			out := make([]any, 0, len(vals))
			for _, v := range vals {
				out = append(out, infer(unquote(v)))
			}
			return out, nil
		}
	}

	// Newline-separated fallback.
	var out []any
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ","))
		line = strings.TrimPrefix(line, "- ")
		if line == "" || line == "[" || line == "]" {
			continue
		}
		out = append(out, infer(unquote(line)))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("parser: not an array: %q", s)
	}
	return out, nil
}

// cleanupArrayLiteral removes trailing commas and swaps single quotes
// for double quotes when the literal uses no double quotes at all.
func cleanupArrayLiteral(s string) string {
	out := s
	if strings.Contains(out, "'") && !strings.Contains(out, `"`) {
		out = strings.ReplaceAll(out, "'", `"`)
	}
	for _, closer := range []string{"]", "}"} {
		for {
			idx := lastCommaBefore(out, closer)
			if idx < 0 {
				break
			}
			out = out[:idx] + out[idx+1:]
		}
	}
	return out
}

// lastCommaBefore finds a comma followed only by whitespace and the
// given closer, i.e. a trailing comma.
func lastCommaBefore(s, closer string) int {
	for i := 0; i < len(s); i++ {
		if s[i] != ',' {
			continue
		}
		j := i + 1
		for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
			j++
		}
		if j < len(s) && string(s[j]) == closer {
			return i
		}
	}
	return -1
}

// splitTopLevel splits a bracketed literal on top-level commas,
// respecting nested brackets and quoted strings. Returns false if the
// literal is not bracket-delimited.
func splitTopLevel(s string) ([]string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' {
		return nil, false
	}
	inner := s[1:]
	if strings.HasSuffix(inner, "]") {
		inner = inner[:len(inner)-1]
	}

	var (
		parts   []string
		depth   int
		quote   byte
		start   int
		escaped bool
	)
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if quote != 0 {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '[', '{', '(':
			depth++
		case ']', '}', ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(inner[start:]); tail != "" {
		parts = append(parts, tail)
	}
	return parts, true
}

// unquote strips one layer of matching single or double quotes.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// coerceObject recursively applies the field grammar to the inner
// content, falling back to a JSON object literal.
func coerceObject(raw string) (any, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return map[string]any{}, nil
	}
	if strings.Contains(s, `type="`) {
		return parseFields(s), nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		normalizeNumbers(obj)
		return obj, nil
	}
	return nil, fmt.Errorf("parser: not an object: %q", s)
}

// normalizeNumbers rewrites integral float64 values as int, in place,
// recursing into nested arrays and objects. encoding/json decodes all
// numbers as float64; the inference strategies produce int for integral
// content, so without this the same value would coerce differently
// depending on which strategy recovered it.
func normalizeNumbers(v any) {
	switch t := v.(type) {
	case []any:
		for i, e := range t {
			if n, ok := integral(e); ok {
				t[i] = n
			} else {
				normalizeNumbers(e)
			}
		}
	case map[string]any:
		for k, e := range t {
			if n, ok := integral(e); ok {
				t[k] = n
			} else {
				normalizeNumbers(e)
			}
		}
	}
}

// integral reports whether v is a float64 holding an exact integer
// value representable as int.
func integral(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || f < -1<<53 || f > 1<<53 {
		return 0, false
	}
	return int(f), true
}

// infer guesses a value's type when the marker declared none.
func infer(raw string) any {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return ""
	case strings.EqualFold(s, "true"):
		return true
	case strings.EqualFold(s, "false"):
		return false
	case strings.EqualFold(s, "null"):
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if strings.HasPrefix(s, "<") && strings.Contains(s, `type="`) {
		return parseFields(s)
	}
	if strings.HasPrefix(s, "[") {
		if arr, err := coerceArray(s); err == nil {
			return arr
		}
	}
	if strings.HasPrefix(s, "{") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(s), &obj); err == nil {
			normalizeNumbers(obj)
			return obj
		}
	}
	return s
}
