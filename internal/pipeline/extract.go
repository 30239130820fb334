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
	extractMaxTokens   = 800
	extractTemperature = 0.2

	// summaryFallbackRunes bounds the raw-transcript fact used when
	// extraction yields nothing usable.
	summaryFallbackRunes = 2000
	summaryFactKey       = "conversationSummary"
)

func renderTranscript(turns []ConversationTurn) string {
	parts := make([]string, 0, len(turns))
	for _, turn := range turns {
		speaker := "Agent"
		if turn.Role == TurnUser {
			speaker = "Founder"
		}
		parts = append(parts, speaker+": "+turn.Content)
	}
	return strings.Join(parts, "\n\n")
}

func extractionMessages(t deliverable.Type, transcript string) []completion.Message {
	system := fmt.Sprintf(`You are extracting structured context from a conversation between a startup founder and an AI advisor.
The goal is to extract all relevant facts needed to generate a %s.

Conversation:
%s

Extract every relevant fact mentioned: product description, target market, company stage, financials, team, customers, competitors, goals, challenges, etc.
Return a JSON object with key-value pairs. Use descriptive keys. Only include information explicitly mentioned in the conversation.
Return ONLY valid JSON. No markdown, no explanation.`, deliverable.ContextLabel(t), transcript)

	return []completion.Message{
		{Role: completion.RoleSystem, Content: system},
		{Role: completion.RoleUser, Content: "Extract all relevant facts from the conversation above."},
	}
}

func summaryFallback(transcript string) FactMap {
	r := []rune(transcript)
	if len(r) > summaryFallbackRunes {
		r = r[:summaryFallbackRunes]
	}
	return FactMap{summaryFactKey: string(r)}
}

// extractContext runs the first generation pass. It degrades to the summary
// fallback instead of failing; only caller cancellation is returned.
func (p *Pipeline) extractContext(ctx context.Context, turns []ConversationTurn, t deliverable.Type) (FactMap, error) {
	transcript := renderTranscript(turns)

	raw, err := p.client.Generate(ctx, extractionMessages(t, transcript), completion.Options{
		MaxTokens:   extractMaxTokens,
		Temperature: extractTemperature,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.log.Warn("context extraction failed; using transcript summary", "deliverable_type", t, "error", err)
		return summaryFallback(transcript), nil
	}

	facts, err := fencedjson.Extract(raw)
	if err != nil {
		p.log.Warn("context extraction returned no JSON object; using transcript summary", "deliverable_type", t, "raw_len", len(raw))
		return summaryFallback(transcript), nil
	}
	return FactMap(facts), nil
}
