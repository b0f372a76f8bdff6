package parser

import "strings"

// Parse applies the field-scanning grammar to a complete text blob in
// one pass. It is used for repair round-trips and for providers that
// return the whole response as a single string.
//
// The container markers are optional in batch mode: when present, only
// the text between them is considered; when absent, the whole blob is
// scanned for fields.
func Parse(text string, opts ...ParserOption) map[string]any {
	p := New(opts...)
	body := text
	if idx := strings.Index(body, p.open); idx >= 0 {
		body = body[idx+len(p.open):]
	}
	if idx := strings.Index(body, p.close); idx >= 0 {
		body = body[:idx]
	}
	return parseFields(body)
}

// parseFields scans text for field markers and coerces each field's
// content. It is also applied recursively to object-typed field
// content.
func parseFields(text string) map[string]any {
	fields := make(map[string]any)

	locs := fieldOpenIndexes(text)
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1].start
		}
		content := text[loc.contentStart:end]
		val, err := coerce(content, loc.typ)
		if err != nil {
			continue
		}
		addField(fields, loc.name, val)
	}
	return fields
}

// fieldLoc records where a field marker was found.
type fieldLoc struct {
	start        int
	contentStart int
	name         string
	typ          string
}

// fieldOpenIndexes finds every field open marker in text.
func fieldOpenIndexes(text string) []fieldLoc {
	var locs []fieldLoc
	for i := 0; i < len(text); {
		lt := strings.IndexByte(text[i:], '<')
		if lt < 0 {
			break
		}
		pos := i + lt
		if m := fieldOpenRe.FindStringSubmatch(text[pos:]); m != nil {
			locs = append(locs, fieldLoc{
				start:        pos,
				contentStart: pos + len(m[0]),
				name:         m[1],
				typ:          typeAttr(m[2]),
			})
			i = pos + len(m[0])
			continue
		}
		i = pos + 1
	}
	return locs
}
