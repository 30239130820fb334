package config

import (
	"testing"
	"time"
)

func TestGenerationConfigValidate_RequiresProviderModels(t *testing.T) {
	t.Parallel()

	cfg := &GenerationConfig{
		Providers: []Provider{
			{ID: "openai", Name: "OpenAI", Type: "openai", BaseURL: "https://api.openai.com/v1"},
		},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for missing providers[].models[]")
	}
}

func TestGenerationConfigValidate_RequiresDefaultModel(t *testing.T) {
	t.Parallel()

	cfg := &GenerationConfig{
		Providers: []Provider{
			{
				ID:     "openai",
				Type:   "openai",
				Models: []ProviderModel{{ModelName: "gpt-4o-mini"}},
			},
		},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for missing default model")
	}
}

func TestGenerationConfigValidate_RejectsMultipleDefaults(t *testing.T) {
	t.Parallel()

	cfg := &GenerationConfig{
		Providers: []Provider{
			{
				ID:     "openai",
				Type:   "openai",
				Models: []ProviderModel{{ModelName: "gpt-4o-mini", IsDefault: true}, {ModelName: "gpt-4o", IsDefault: true}},
			},
		},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for multiple default models")
	}
}

func TestGenerationConfigValidate_Rejects(t *testing.T) {
	t.Parallel()

	retries := 9
	cases := map[string]*GenerationConfig{
		"compatible without base_url": {Providers: []Provider{{ID: "or", Type: "openai_compatible", Models: []ProviderModel{{ModelName: "m", IsDefault: true}}}}},
		"bad scheme":                  {Providers: []Provider{{ID: "or", Type: "openai", BaseURL: "ftp://x", Models: []ProviderModel{{ModelName: "m", IsDefault: true}}}}},
		"slash in id":                 {Providers: []Provider{{ID: "a/b", Type: "openai", Models: []ProviderModel{{ModelName: "m", IsDefault: true}}}}},
		"unknown type":                {Providers: []Provider{{ID: "x", Type: "cohere", Models: []ProviderModel{{ModelName: "m", IsDefault: true}}}}},
		"timeout too large":           {TimeoutSeconds: 601, Providers: DefaultGenerationConfig().Providers},
		"retries too large":           {MaxRetries: &retries, Providers: DefaultGenerationConfig().Providers},
	}
	for name, cfg := range cases {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: Validate err=nil", name)
		}
	}
}

func TestDefaultGenerationConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultGenerationConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	p, model, ok := cfg.DefaultModel()
	if !ok || p.ID != "openrouter" || model != "anthropic/claude-3.5-haiku" {
		t.Fatalf("DefaultModel=%q %q %v", p.ID, model, ok)
	}
	if p.Headers["X-Title"] != "Edge Alpha Agents" || p.APIKeyEnv != "OPENROUTER_API_KEY" {
		t.Fatalf("provider=%+v", p)
	}
	if cfg.EffectiveTimeout() != 90*time.Second || cfg.EffectiveMaxRetries() != 2 {
		t.Fatalf("timeout=%v retries=%d", cfg.EffectiveTimeout(), cfg.EffectiveMaxRetries())
	}

	p, model, ok = cfg.ResolveModel("openrouter/anthropic/claude-3.5-haiku")
	if !ok || p.ID != "openrouter" || model != "anthropic/claude-3.5-haiku" {
		t.Fatalf("ResolveModel=%q %q %v", p.ID, model, ok)
	}
	if _, _, ok := cfg.ResolveModel("openrouter/gpt-4o"); ok {
		t.Fatalf("ResolveModel accepted a model outside the allow-list")
	}
}
