// Package stream implements the incremental scanner that splits a streamed
// model reply into one structured header block followed by free text.
//
// Replies are expected to open with a directive block:
//
//	<METADATA>
//	action: talking
//	emotion: happy
//	speed: 1.0
//	safetyDetected: false
//	</METADATA>
//	...free text...
//
// The block body is normally line-delimited key: value pairs; a JSON object
// body inside the same delimiters is also accepted. Deltas may split the
// delimiters at any byte boundary.
package stream

import (
	"encoding/json"
	"strconv"
	"strings"
)

const (
	openDelimiter  = "<METADATA>"
	closeDelimiter = "</METADATA>"
)

// Header is the parsed directive block. Numeric values are float64, booleans
// stay as the strings the model emitted; use the typed accessors. Unknown
// keys pass through untouched.
type Header struct {
	Fields map[string]any
}

// String returns the field as a string, or def when absent or non-string.
func (h *Header) String(key, def string) string {
	if h == nil {
		return def
	}
	if v, ok := h.Fields[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Float returns the field as a float64, or def when absent.
func (h *Header) Float(key string, def float64) float64 {
	if h == nil {
		return def
	}
	switch v := h.Fields[key].(type) {
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// Bool reports whether the field is truthy. Accepts a native bool (JSON
// header body) or the string "true" (line-delimited body).
func (h *Header) Bool(key string) bool {
	if h == nil {
		return false
	}
	switch v := h.Fields[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	}
	return false
}

// Event is one parser output: exactly one of Header or Text is set.
type Event struct {
	Header *Header
	Text   string
}

// Parser consumes text deltas in arrival order. Until the closing delimiter
// is seen everything is buffered; afterwards deltas pass straight through as
// text events.
type Parser struct {
	buf        strings.Builder
	headerDone bool
	// trimLead is set after the header event until the first non-whitespace
	// byte of the reply text, so the gap between the closing delimiter and
	// the text is stripped no matter how chunks split it.
	trimLead bool
}

// NewParser returns a parser positioned before the header block.
func NewParser() *Parser {
	return &Parser{}
}

// Feed consumes one delta and returns the events it completes. Empty deltas
// are no-ops.
func (p *Parser) Feed(chunk string) []Event {
	if chunk == "" {
		return nil
	}
	if p.headerDone {
		if p.trimLead {
			chunk = strings.TrimLeft(chunk, " \t\r\n")
			if chunk == "" {
				return nil
			}
			p.trimLead = false
		}
		return []Event{{Text: chunk}}
	}

	p.buf.WriteString(chunk)
	buffered := p.buf.String()

	end := strings.Index(buffered, closeDelimiter)
	if end == -1 {
		return nil
	}

	p.headerDone = true
	p.buf.Reset()

	header, ok := parseHeaderBlock(buffered[:end+len(closeDelimiter)])
	if !ok {
		// Unparseable block: degrade to plain text, delimiters included.
		return []Event{{Text: buffered}}
	}

	events := []Event{{Header: header}}
	rest := strings.TrimLeft(buffered[end+len(closeDelimiter):], " \t\r\n")
	if rest != "" {
		events = append(events, Event{Text: rest})
	} else {
		p.trimLead = true
	}
	return events
}

// Close flushes the parser at end of stream. If no closing delimiter was ever
// seen the whole buffer degrades to a single text event.
func (p *Parser) Close() []Event {
	if p.headerDone || p.buf.Len() == 0 {
		return nil
	}
	buffered := p.buf.String()
	p.buf.Reset()
	p.headerDone = true
	return []Event{{Text: buffered}}
}

// parseHeaderBlock extracts key/value pairs from the delimited region.
func parseHeaderBlock(block string) (*Header, bool) {
	body := strings.ReplaceAll(block, openDelimiter, "")
	body = strings.ReplaceAll(body, closeDelimiter, "")
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, false
	}

	if strings.HasPrefix(body, "{") {
		fields := make(map[string]any)
		if err := json.Unmarshal([]byte(body), &fields); err == nil {
			return &Header{Fields: fields}, true
		}
		// Fall through: some models emit JSON-ish bodies that still split
		// cleanly as key: value lines.
	}

	fields := make(map[string]any)
	for _, line := range strings.Split(body, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			fields[key] = f
		} else {
			fields[key] = value
		}
	}
	if len(fields) == 0 {
		return nil, false
	}
	return &Header{Fields: fields}, true
}
