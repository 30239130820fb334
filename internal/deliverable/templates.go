package deliverable

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var templatesYAML []byte

// Template is the synthesis instruction for one deliverable type.
type Template struct {
	Intro  string   `yaml:"intro"`
	Note   string   `yaml:"note"`
	Schema string   `yaml:"schema"`
	Rules  []string `yaml:"rules"`
}

type templateCatalog struct {
	Templates map[Type]Template `yaml:"templates"`
}

var loadCatalog = sync.OnceValues(func() (map[Type]Template, error) {
	var c templateCatalog
	if err := yaml.Unmarshal(templatesYAML, &c); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	for t, tpl := range c.Templates {
		if !t.Valid() {
			return nil, fmt.Errorf("template for unknown deliverable type %q", t)
		}
		if strings.TrimSpace(tpl.Intro) == "" || strings.TrimSpace(tpl.Schema) == "" {
			return nil, fmt.Errorf("template %q: missing intro or schema", t)
		}
	}
	if _, ok := c.Templates[DefaultType]; !ok {
		return nil, fmt.Errorf("missing default template %q", DefaultType)
	}
	return c.Templates, nil
})

// TemplateFor returns the instruction template of t, falling back to the
// default template for types without one.
func TemplateFor(t Type) (Template, error) {
	catalog, err := loadCatalog()
	if err != nil {
		return Template{}, err
	}
	if tpl, ok := catalog[t]; ok {
		return tpl, nil
	}
	return catalog[DefaultType], nil
}

// Render builds the system prompt for the synthesis pass with facts embedded
// as indented JSON.
func (tpl Template) Render(facts map[string]any) (string, error) {
	if facts == nil {
		facts = map[string]any{}
	}
	ctx, err := json.MarshalIndent(facts, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode context: %w", err)
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(tpl.Intro))
	b.WriteString("\n\nContext gathered from the conversation:\n")
	b.Write(ctx)
	if note := strings.TrimSpace(tpl.Note); note != "" {
		b.WriteString("\n\n")
		b.WriteString(note)
	}
	b.WriteString("\n\nReturn a JSON object with this EXACT structure (no markdown fences, no extra text):\n")
	b.WriteString(strings.TrimSpace(tpl.Schema))
	b.WriteString("\n\nRULES:\n")
	for _, rule := range tpl.Rules {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(rule)
		b.WriteString("\n")
	}
	b.WriteString("- Return ONLY valid JSON. No markdown, no explanation.")
	return b.String(), nil
}
