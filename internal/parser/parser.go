// Package parser turns raw model output into caller-facing values:
// a field mapping for the parse path, a boolean for the filter path.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON locates the structured payload inside raw model output.
// Models wrap JSON in prose or markdown code fences often enough that a
// straight Unmarshal is not good enough. Returns the payload substring
// or the trimmed input when no object/array boundary is found.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Fenced block wins: ```json ... ``` or plain ``` ... ```
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			// drop the language tag line ("json", "JSON", or empty)
			tag := strings.TrimSpace(rest[:nl])
			if tag == "" || strings.EqualFold(tag, "json") {
				rest = rest[nl+1:]
			}
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			if inner := strings.TrimSpace(rest[:end]); inner != "" {
				s = inner
			}
		}
	}

	// First balanced object or array, so surrounding prose is ignored.
	for _, open := range []byte{'{', '['} {
		if payload, ok := balanced(s, open); ok {
			return payload
		}
	}
	return s
}

// balanced scans for the first balanced {...} or [...] span, skipping
// brackets inside string literals.
func balanced(s string, open byte) (string, bool) {
	var close byte
	switch open {
	case '{':
		close = '}'
	case '[':
		close = ']'
	}
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// ParseFields decodes raw model output into a field mapping. Numbers are
// kept as json.Number so integers survive the round trip.
func ParseFields(raw string) (map[string]any, error) {
	payload := ExtractJSON(raw)
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return fields, nil
}

// ParseBool normalizes raw model output to a boolean judgement. Accepts
// bare tokens (true/false, yes/no, 1/0, any case) and the same wrapped in
// a JSON payload, e.g. {"result": true}.
func ParseBool(raw string) (bool, error) {
	token := strings.ToLower(strings.TrimSpace(ExtractJSON(raw)))
	token = strings.Trim(token, `"'.`)

	switch token {
	case "true", "yes", "1":
		return true, nil
	case "false", "no", "0":
		return false, nil
	}

	// A JSON object with a single boolean-ish value also counts.
	var m map[string]any
	if err := json.Unmarshal([]byte(token), &m); err == nil && len(m) == 1 {
		for _, v := range m {
			switch t := v.(type) {
			case bool:
				return t, nil
			case string:
				return ParseBool(t)
			}
		}
	}

	return false, fmt.Errorf("unrecognized boolean token %q", token)
}
