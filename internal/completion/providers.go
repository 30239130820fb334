package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
	oshared "github.com/openai/openai-go/shared"
)

func newBackend(providerType string, baseURL string, apiKey string, headers map[string]string, maxRetries int) (backend, error) {
	providerType = strings.ToLower(strings.TrimSpace(providerType))
	baseURL = strings.TrimSpace(baseURL)
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("missing provider api key")
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	switch providerType {
	case "openai", "openai_compatible":
		if providerType == "openai_compatible" && baseURL == "" {
			return nil, errors.New("base_url is required for openai_compatible")
		}
		opts := []ooption.RequestOption{
			ooption.WithAPIKey(strings.TrimSpace(apiKey)),
			ooption.WithMaxRetries(maxRetries),
		}
		if baseURL != "" {
			opts = append(opts, ooption.WithBaseURL(baseURL))
		}
		for k, v := range headers {
			opts = append(opts, ooption.WithHeader(k, v))
		}
		return &openAIBackend{client: openai.NewClient(opts...)}, nil
	case "anthropic":
		opts := []aoption.RequestOption{
			aoption.WithAPIKey(strings.TrimSpace(apiKey)),
			aoption.WithMaxRetries(maxRetries),
		}
		if baseURL != "" {
			opts = append(opts, aoption.WithBaseURL(baseURL))
		}
		for k, v := range headers {
			opts = append(opts, aoption.WithHeader(k, v))
		}
		return &anthropicBackend{client: anthropic.NewClient(opts...)}, nil
	default:
		return nil, fmt.Errorf("unsupported provider type %q", providerType)
	}
}

type openAIBackend struct {
	client openai.Client
}

func (b *openAIBackend) complete(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       oshared.ChatModel(model),
		Messages:    buildOpenAIMessages(messages),
		MaxTokens:   openai.Int(int64(opts.MaxTokens)),
		Temperature: openai.Float(opts.Temperature),
	}
	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func buildOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

type anthropicBackend struct {
	client anthropic.Client
}

func (b *anthropicBackend) complete(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	system, rest := splitSystem(messages)
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(opts.MaxTokens),
		Messages:    buildAnthropicMessages(rest),
		Temperature: anthropic.Float(opts.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}
	if msg == nil {
		return "", nil
	}
	var out strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(tb.Text)
		}
	}
	return out.String(), nil
}

func buildAnthropicMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages)+1)
	for _, m := range messages {
		txt := strings.TrimSpace(m.Content)
		if txt == "" {
			continue
		}
		if m.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(txt)))
			continue
		}
		out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(txt)))
	}
	if len(out) == 0 {
		out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock("Continue.")))
	}
	return out
}

func apiStatusCode(err error) (int, bool) {
	var oerr *openai.Error
	if errors.As(err, &oerr) && oerr != nil {
		return oerr.StatusCode, true
	}
	var aerr *anthropic.Error
	if errors.As(err, &aerr) && aerr != nil {
		return aerr.StatusCode, true
	}
	return 0, false
}
