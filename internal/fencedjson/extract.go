// Package fencedjson recovers a JSON object from model output that may be
// wrapped in markdown fences or surrounded by prose.
package fencedjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"
)

// ErrParseFailure is returned when no JSON object can be recovered.
var ErrParseFailure = errors.New("no JSON object could be recovered")

var (
	leadingFence  = regexp.MustCompile("(?i)^\\s*(?:```|~~~)(?:json)?\\s*")
	trailingFence = regexp.MustCompile("\\s*(?:```|~~~)\\s*$")
)

// strategy tries to recover an object from already fence-stripped text.
type strategy struct {
	name string
	fn   func(string) (map[string]any, bool)
}

var strategies = []strategy{
	{name: "strict", fn: parseObject},
	{name: "brace_span", fn: parseBraceSpan},
}

// Extract returns the first JSON object recovered from raw. It never panics;
// on failure the error wraps ErrParseFailure.
func Extract(raw string) (map[string]any, error) {
	obj, _, err := ExtractWithStrategy(raw)
	return obj, err
}

// ExtractWithStrategy is Extract that also names the strategy that succeeded.
func ExtractWithStrategy(raw string) (map[string]any, string, error) {
	cleaned := StripFences(raw)
	if cleaned == "" {
		return nil, "", ErrParseFailure
	}
	for _, s := range strategies {
		if obj, ok := s.fn(cleaned); ok {
			return obj, s.name, nil
		}
	}
	return nil, "", ErrParseFailure
}

// StripFences removes leading and trailing code-fence markers (repeatedly,
// so nested fences unwrap) and trims the result.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	for {
		next := leadingFence.ReplaceAllString(s, "")
		next = strings.TrimSpace(trailingFence.ReplaceAllString(next, ""))
		if next == s {
			return s
		}
		s = next
	}
}

func parseObject(s string) (map[string]any, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s[0] != '{' {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	// Reject trailing content after the first value.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	if !ok || obj == nil {
		return nil, false
	}
	return obj, true
}

func parseBraceSpan(s string) (map[string]any, bool) {
	b := []byte(s)
	start := bytes.IndexByte(b, '{')
	end := bytes.LastIndexByte(b, '}')
	if start < 0 || end <= start {
		return nil, false
	}
	return parseObject(string(b[start : end+1]))
}
