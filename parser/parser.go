// Package parser extracts typed fields from a tag-delimited text
// protocol, incrementally as chunks arrive or in one pass over a
// complete blob.
//
// The grammar is deliberately closer-free: a container marker such as
// <response> opens the payload, fields open with a self-describing
// marker carrying a name and a declared type, e.g.
//
//	<age type="number">30
//
// and a field's content is everything up to the next field marker or
// the container close marker. Because fields never require a matching
// close marker, the parser can stream without lookahead: it only ever
// needs to recognize the next open marker.
//
// Chunk boundaries may fall anywhere, including mid-marker. A suspected
// partial marker at the end of the buffer is held back until more text
// arrives.
package parser

import (
	"regexp"
	"strings"
)

// DefaultContainer is the container tag name used when none is configured.
const DefaultContainer = "response"

// maxConsecutiveErrors is the number of consecutive field errors
// tolerated before the parser resynchronizes to the next marker.
const maxConsecutiveErrors = 3

// fieldOpenRe matches a field open marker at the start of the input:
// a tag name followed by zero or more key="value" attributes.
var fieldOpenRe = regexp.MustCompile(`^<([A-Za-z_][A-Za-z0-9_]*)((?:\s+[A-Za-z_]+="[^"]*")*)\s*>`)

// attrRe extracts key="value" attribute pairs from a marker.
var attrRe = regexp.MustCompile(`([A-Za-z_]+)="([^"]*)"`)

// state enumerates the parser's streaming states.
type state int

const (
	// stateAwaitContainer: the container open marker has not been seen yet.
	stateAwaitContainer state = iota

	// stateAwaitField: inside the container, before or between fields,
	// with no field currently accumulating.
	stateAwaitField

	// stateField: accumulating content for an open field.
	stateField

	// stateResync: too many consecutive field errors; discarding input
	// until the next recognizable field marker.
	stateResync
)

// Result is the outcome of a Push or Finish call. Only a Result with
// Done set is authoritative; earlier results are best-effort snapshots.
type Result struct {
	// Done is true once the container close marker has been consumed.
	Done bool

	// Fields holds the typed values extracted so far. Repeated field
	// names collapse into a []any preserving occurrence order.
	Fields map[string]any
}

// pendingField is the field currently accumulating content.
type pendingField struct {
	name    string
	typ     string
	content strings.Builder
}

// Parser incrementally parses one streamed response.
// It is not safe for concurrent use; create one per model call.
type Parser struct {
	container string
	open      string
	close     string

	st       state
	buf      string
	field    *pendingField
	fields   map[string]any
	errCount int
	done     bool
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithContainer sets the container tag name (default "response").
func WithContainer(name string) ParserOption {
	return func(p *Parser) {
		p.container = name
	}
}

// New creates a parser for a single streamed response.
func New(opts ...ParserOption) *Parser {
	p := &Parser{
		container: DefaultContainer,
		fields:    make(map[string]any),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.open = "<" + p.container + ">"
	p.close = "</" + p.container + ">"
	return p
}

// Push feeds the next chunk to the parser. It returns nil until the
// container open marker has been seen; afterwards it returns the
// best-effort result built so far, with Done set once the container
// close marker is consumed. Further pushes after Done return the same
// final result.
func (p *Parser) Push(chunk string) *Result {
	if p.done {
		return p.result()
	}
	p.buf += chunk

	if p.st == stateAwaitContainer {
		idx := strings.Index(p.buf, p.open)
		if idx < 0 {
			// Keep only a tail that could still be a partial open marker.
			if keep := len(p.open) - 1; len(p.buf) > keep {
				p.buf = p.buf[len(p.buf)-keep:]
			}
			return nil
		}
		p.buf = p.buf[idx+len(p.open):]
		p.st = stateAwaitField
	}

	p.scan()
	return p.result()
}

// Finish finalizes parsing when the stream ends without a close marker.
// The in-progress field, if any, is committed with the content seen so
// far. The returned result is marked Done.
func (p *Parser) Finish() *Result {
	if !p.done {
		if p.st == stateField {
			p.field.content.WriteString(p.buf)
			p.buf = ""
			p.commitField()
		}
		p.done = true
	}
	return p.result()
}

// scan consumes as much of the buffer as possible, transitioning
// between fields as markers are recognized. Unconsumable tails
// (suspected partial markers) are left in the buffer.
func (p *Parser) scan() {
	for {
		lt := strings.IndexByte(p.buf, '<')
		if lt < 0 {
			p.consumeContent(p.buf)
			p.buf = ""
			return
		}

		rest := p.buf[lt:]

		if strings.HasPrefix(rest, p.close) {
			p.consumeContent(p.buf[:lt])
			p.commitField()
			p.buf = ""
			p.done = true
			return
		}
		if len(rest) < len(p.close) && strings.HasPrefix(p.close, rest) {
			// Possible partial close marker; wait for more input.
			p.consumeContent(p.buf[:lt])
			p.buf = rest
			return
		}

		if m := fieldOpenRe.FindStringSubmatch(rest); m != nil {
			p.consumeContent(p.buf[:lt])
			p.commitField()
			p.startField(m[1], typeAttr(m[2]))
			p.buf = rest[len(m[0]):]
			continue
		}

		if !strings.ContainsRune(rest, '>') {
			// Could be a field marker split across chunks; hold it back.
			p.consumeContent(p.buf[:lt])
			p.buf = rest
			return
		}

		// A literal '<' inside field content. Consume it and keep scanning.
		p.consumeContent(p.buf[:lt+1])
		p.buf = p.buf[lt+1:]
	}
}

// consumeContent appends text to the current field. Outside a field
// (between markers, or while resynchronizing) the text is discarded.
func (p *Parser) consumeContent(text string) {
	if p.st == stateField && text != "" {
		p.field.content.WriteString(text)
	}
}

// startField opens a new field. While resynchronizing, reaching a
// recognizable marker is the recovery point.
func (p *Parser) startField(name, typ string) {
	p.field = &pendingField{name: name, typ: typ}
	p.st = stateField
}

// commitField coerces and stores the in-progress field, if any.
// Coercion failures count toward the resynchronization threshold;
// successful commits reset it.
func (p *Parser) commitField() {
	if p.field == nil {
		return
	}
	f := p.field
	p.field = nil
	p.st = stateAwaitField

	val, err := coerce(f.content.String(), f.typ)
	if err != nil {
		p.errCount++
		if p.errCount >= maxConsecutiveErrors {
			p.st = stateResync
			p.errCount = 0
		}
		return
	}
	p.errCount = 0
	addField(p.fields, f.name, val)
}

// result builds a snapshot of the fields extracted so far, including
// the raw content of the in-progress field.
func (p *Parser) result() *Result {
	out := make(map[string]any, len(p.fields)+1)
	for k, v := range p.fields {
		out[k] = v
	}
	if p.field != nil {
		addField(out, p.field.name, strings.TrimSpace(p.field.content.String()))
	}
	return &Result{Done: p.done, Fields: out}
}

// addField stores a value, collapsing repeated names into a []any that
// preserves occurrence order.
func addField(fields map[string]any, name string, val any) {
	existing, ok := fields[name]
	if !ok {
		fields[name] = val
		return
	}
	if arr, ok := existing.([]any); ok {
		fields[name] = append(arr, val)
		return
	}
	fields[name] = []any{existing, val}
}

// typeAttr extracts the type attribute from a marker's attribute text.
func typeAttr(attrs string) string {
	for _, m := range attrRe.FindAllStringSubmatch(attrs, -1) {
		if m[1] == "type" {
			return m[2]
		}
	}
	return ""
}
