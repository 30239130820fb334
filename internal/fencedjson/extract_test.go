package fencedjson

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustDirect(t *testing.T, raw string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		t.Fatalf("direct decode: %v", err)
	}
	return out
}

func TestExtract_FenceVariantsMatchDirectParse(t *testing.T) {
	t.Parallel()

	bodies := []string{
		`{"title":"X"}`,
		`{"title":"ICP: fintech","painPoints":[{"pain":"manual reconciliation","severity":"high"}],"score":4.5}`,
		"{\n  \"title\": \"multi\\nline\",\n  \"nested\": {\"a\": [1, 2, 3]}\n}",
	}
	wraps := []struct {
		name string
		fn   func(string) string
	}{
		{"bare", func(s string) string { return s }},
		{"fenced", func(s string) string { return "```\n" + s + "\n```" }},
		{"fenced_json_label", func(s string) string { return "```json\n" + s + "\n```" }},
		{"fenced_upper_label", func(s string) string { return "  ```JSON " + s + " ```  " }},
		{"tilde_fence", func(s string) string { return "~~~json\n" + s + "\n~~~" }},
		{"nested", func(s string) string { return "```json\n```json\n" + s + "\n```\n```" }},
	}

	for _, body := range bodies {
		want := mustDirect(t, body)
		for _, w := range wraps {
			got, err := Extract(w.fn(body))
			if err != nil {
				t.Fatalf("%s: Extract: %v", w.name, err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("%s: mismatch (-want +got):\n%s", w.name, diff)
			}
		}
	}
}

func TestExtract_FencedScenario(t *testing.T) {
	t.Parallel()

	got, name, err := ExtractWithStrategy("```json\n{\"title\":\"X\"}\n```")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"title": "X"}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if name != "strict" {
		t.Fatalf("strategy=%q, want strict", name)
	}
}

func TestExtract_ProseWrapped(t *testing.T) {
	t.Parallel()

	cases := []string{
		`Here you go: {"title":"X"} Hope that helps!`,
		"Sure! Below is the document.\n\n```json\n{\"title\":\"X\"}\n```\nLet me know if you need changes.",
		`{"title":"X"} trailing words`,
	}
	for _, raw := range cases {
		got, name, err := ExtractWithStrategy(raw)
		if err != nil {
			t.Fatalf("Extract(%q): %v", raw, err)
		}
		if diff := cmp.Diff(map[string]any{"title": "X"}, got); diff != "" {
			t.Fatalf("Extract(%q) mismatch (-want +got):\n%s", raw, diff)
		}
		if name != "brace_span" {
			t.Fatalf("Extract(%q) strategy=%q, want brace_span", raw, name)
		}
	}
}

func TestExtract_PreservesNumbers(t *testing.T) {
	t.Parallel()

	got, err := Extract(`{"mrr": 10000, "growth": 0.15}`)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if n, ok := got["mrr"].(json.Number); !ok || n.String() != "10000" {
		t.Fatalf("mrr=%#v, want json.Number 10000", got["mrr"])
	}
}

func TestExtract_Failures(t *testing.T) {
	t.Parallel()

	cases := []string{
		"",
		"   ",
		"I could not generate that document.",
		"```json\n```",
		`["title", "X"]`,
		`42`,
		`"just a string"`,
		`{"title": "unterminated`,
		`} backwards {`,
		`{"a":1} and {"b":2}`,
	}
	for _, raw := range cases {
		got, err := Extract(raw)
		if !errors.Is(err, ErrParseFailure) {
			t.Fatalf("Extract(%q) err=%v, want ErrParseFailure (got %v)", raw, err, got)
		}
		if got != nil {
			t.Fatalf("Extract(%q)=%v, want nil", raw, got)
		}
	}
}

func TestStripFences(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"```json\n{}\n```":         "{}",
		"no fences":                "no fences",
		"  ```\n```\nx\n```\n```": "x",
	}
	for in, want := range cases {
		if got := StripFences(in); got != want {
			t.Fatalf("StripFences(%q)=%q, want %q", in, got, want)
		}
	}
}
