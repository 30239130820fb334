package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/edgealpha/artifact-agent/internal/completion"
	"github.com/edgealpha/artifact-agent/internal/deliverable"
	"github.com/edgealpha/artifact-agent/internal/fencedjson"
)

const (
	synthesizeMaxTokens   = 3000
	synthesizeTemperature = 0.4

	synthesizeInstruction = "Generate the deliverable now. Return ONLY valid JSON, no markdown fences, no explanation text."
)

// synthesize runs the second generation pass and returns the raw completion.
func (p *Pipeline) synthesize(ctx context.Context, facts FactMap, t deliverable.Type) (string, error) {
	tpl, err := deliverable.TemplateFor(t)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	prompt, err := tpl.Render(facts)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	raw, err := p.client.Generate(ctx, []completion.Message{
		{Role: completion.RoleSystem, Content: prompt},
		{Role: completion.RoleUser, Content: synthesizeInstruction},
	}, completion.Options{
		MaxTokens:   synthesizeMaxTokens,
		Temperature: synthesizeTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	return raw, nil
}

// parseDocument recovers the generated document. It never retries: a
// malformed completion fails the run.
func (p *Pipeline) parseDocument(raw string, t deliverable.Type) (Document, error) {
	fields, strategy, err := fencedjson.ExtractWithStrategy(raw)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrGenerationMalformed, err)
	}
	if strategy != "strict" {
		p.log.Debug("recovered document from noisy completion", "deliverable_type", t, "strategy", strategy)
	}

	// Shape drift is tolerated; the stored document is what the model produced.
	doc := Document{Fields: fields}
	typed, err := deliverable.Decode(t, fields)
	if err != nil {
		p.log.Warn("generated document does not match schema", "deliverable_type", t, "error", err)
		doc.Title, _ = fields["title"].(string)
	} else {
		doc.Typed = typed
		doc.Title = typed.DocumentTitle()
	}

	doc.Title = strings.TrimSpace(doc.Title)
	if doc.Title == "" {
		doc.Title = t.DefaultTitle()
	}
	return doc, nil
}
