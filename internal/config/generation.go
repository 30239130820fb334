package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// GenerationConfig configures the text-generation service used by both
// generation passes.
//
// Notes:
//   - Secrets (api keys) must never be stored in this config. Keys are managed via secrets.json
//     or the environment variables named by api_key_env / fallback_api_key_env.
//   - Field names are snake_case to match the rest of the config surface.
type GenerationConfig struct {
	// Providers is the provider registry.
	//
	// Exactly one provider model must be marked as default via models[].is_default.
	Providers []Provider `json:"providers,omitempty"`

	// TimeoutSeconds bounds each generation call. Defaults to 90.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`

	// MaxRetries is the SDK transport retry count for transient failures.
	// Defaults to 2.
	MaxRetries *int `json:"max_retries,omitempty"`
}

type Provider struct {
	// ID is a stable internal id used to key secrets.
	ID string `json:"id"`

	// Name is a human-friendly display name.
	Name string `json:"name,omitempty"`

	// Type is one of: "openai" | "anthropic" | "openai_compatible".
	Type string `json:"type"`

	// BaseURL overrides the provider endpoint (example: "https://openrouter.ai/api/v1").
	// When empty, provider defaults apply (except openai_compatible where base_url is required).
	BaseURL string `json:"base_url,omitempty"`

	// APIKeyEnv and FallbackAPIKeyEnv name environment variables that
	// override the keys stored in secrets.json.
	APIKeyEnv         string `json:"api_key_env,omitempty"`
	FallbackAPIKeyEnv string `json:"fallback_api_key_env,omitempty"`

	// Headers are sent with every request (attribution headers for OpenRouter).
	Headers map[string]string `json:"headers,omitempty"`

	Models []ProviderModel `json:"models,omitempty"`
}

type ProviderModel struct {
	// ModelName is the provider's model id. It may contain "/" (OpenRouter routes).
	ModelName string `json:"model_name"`

	// IsDefault marks the single default model across all providers.
	IsDefault bool `json:"is_default,omitempty"`
}

const (
	ProviderOpenAI           = "openai"
	ProviderAnthropic        = "anthropic"
	ProviderOpenAICompatible = "openai_compatible"
)

const (
	defaultGenerationTimeoutSeconds = 90
	maxGenerationTimeoutSeconds     = 600
	defaultGenerationMaxRetries     = 2
	maxGenerationMaxRetries         = 5
)

// DefaultGenerationConfig routes generation through OpenRouter.
func DefaultGenerationConfig() *GenerationConfig {
	return &GenerationConfig{
		Providers: []Provider{
			{
				ID:                "openrouter",
				Name:              "OpenRouter",
				Type:              ProviderOpenAICompatible,
				BaseURL:           "https://openrouter.ai/api/v1",
				APIKeyEnv:         "OPENROUTER_API_KEY",
				FallbackAPIKeyEnv: "OPENROUTER_API_KEY_FALLBACK",
				Headers: map[string]string{
					"HTTP-Referer": "https://edgealpha.ai",
					"X-Title":      "Edge Alpha Agents",
				},
				Models: []ProviderModel{{ModelName: "anthropic/claude-3.5-haiku", IsDefault: true}},
			},
		},
	}
}

func (c *GenerationConfig) Validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if c.TimeoutSeconds < 0 || c.TimeoutSeconds > maxGenerationTimeoutSeconds {
		return fmt.Errorf("invalid timeout_seconds %d (must be in [0,%d])", c.TimeoutSeconds, maxGenerationTimeoutSeconds)
	}
	if c.MaxRetries != nil && (*c.MaxRetries < 0 || *c.MaxRetries > maxGenerationMaxRetries) {
		return fmt.Errorf("invalid max_retries %d (must be in [0,%d])", *c.MaxRetries, maxGenerationMaxRetries)
	}

	if len(c.Providers) == 0 {
		return errors.New("missing providers")
	}
	seen := make(map[string]struct{}, len(c.Providers))
	defaultCount := 0
	for i := range c.Providers {
		p := c.Providers[i]
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return fmt.Errorf("providers[%d]: missing id", i)
		}
		if strings.Contains(id, "/") {
			return fmt.Errorf("providers[%d]: invalid id %q (must not contain /)", i, id)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("providers[%d]: duplicate id %q", i, id)
		}
		seen[id] = struct{}{}

		t := strings.TrimSpace(p.Type)
		switch t {
		case ProviderOpenAI, ProviderAnthropic, ProviderOpenAICompatible:
		default:
			return fmt.Errorf("providers[%d]: invalid type %q", i, t)
		}

		baseURL := strings.TrimSpace(p.BaseURL)
		if t == ProviderOpenAICompatible && baseURL == "" {
			return fmt.Errorf("providers[%d]: base_url is required for openai_compatible", i)
		}
		if baseURL != "" {
			u, err := url.Parse(baseURL)
			if err != nil || u == nil {
				return fmt.Errorf("providers[%d]: invalid base_url: %w", i, err)
			}
			scheme := strings.ToLower(strings.TrimSpace(u.Scheme))
			if scheme != "http" && scheme != "https" {
				return fmt.Errorf("providers[%d]: invalid base_url scheme %q", i, u.Scheme)
			}
			if strings.TrimSpace(u.Host) == "" {
				return fmt.Errorf("providers[%d]: invalid base_url host", i)
			}
		}

		if len(p.Models) == 0 {
			return fmt.Errorf("providers[%d]: missing models", i)
		}
		modelNames := make(map[string]struct{}, len(p.Models))
		for j := range p.Models {
			m := p.Models[j]
			name := strings.TrimSpace(m.ModelName)
			if name == "" {
				return fmt.Errorf("providers[%d].models[%d]: missing model_name", i, j)
			}
			if _, ok := modelNames[name]; ok {
				return fmt.Errorf("providers[%d].models[%d]: duplicate model_name %q", i, j, name)
			}
			modelNames[name] = struct{}{}
			if m.IsDefault {
				defaultCount++
			}
		}
	}

	if defaultCount == 0 {
		return errors.New("missing default model (providers[].models[].is_default)")
	}
	if defaultCount > 1 {
		return errors.New("multiple default models (providers[].models[].is_default)")
	}
	return nil
}

// DefaultModel returns the provider and model name marked as default.
//
// It assumes Validate() has passed. When config is invalid/incomplete, it returns ok=false.
func (c *GenerationConfig) DefaultModel() (Provider, string, bool) {
	if c == nil {
		return Provider{}, "", false
	}
	for _, p := range c.Providers {
		if strings.TrimSpace(p.ID) == "" {
			continue
		}
		for _, m := range p.Models {
			if !m.IsDefault {
				continue
			}
			if mn := strings.TrimSpace(m.ModelName); mn != "" {
				return p, mn, true
			}
		}
	}
	return Provider{}, "", false
}

// ResolveModel finds a model by wire id (<provider_id>/<model_name>). The
// model name itself may contain "/".
func (c *GenerationConfig) ResolveModel(modelID string) (Provider, string, bool) {
	if c == nil {
		return Provider{}, "", false
	}
	pid, mn, ok := strings.Cut(strings.TrimSpace(modelID), "/")
	pid = strings.TrimSpace(pid)
	mn = strings.TrimSpace(mn)
	if !ok || pid == "" || mn == "" {
		return Provider{}, "", false
	}
	for _, p := range c.Providers {
		if strings.TrimSpace(p.ID) != pid {
			continue
		}
		for _, m := range p.Models {
			if strings.TrimSpace(m.ModelName) == mn {
				return p, mn, true
			}
		}
		return Provider{}, "", false
	}
	return Provider{}, "", false
}

func (c *GenerationConfig) EffectiveTimeout() time.Duration {
	if c == nil || c.TimeoutSeconds <= 0 {
		return defaultGenerationTimeoutSeconds * time.Second
	}
	return time.Duration(min(c.TimeoutSeconds, maxGenerationTimeoutSeconds)) * time.Second
}

func (c *GenerationConfig) EffectiveMaxRetries() int {
	if c == nil || c.MaxRetries == nil || *c.MaxRetries < 0 {
		return defaultGenerationMaxRetries
	}
	return min(*c.MaxRetries, maxGenerationMaxRetries)
}
