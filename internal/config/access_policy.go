package config

import (
	"fmt"
	"strings"
)

const accessPolicySchemaVersionV1 = 1

const (
	// AccessTrusted accepts the owner id carried in the request body. Use it
	// only behind a proxy that has already authenticated the caller.
	AccessTrusted = "trusted"
	// AccessBearerToken derives the owner from an Authorization bearer token
	// registered in secrets.json.
	AccessBearerToken = "bearer_token"
)

// AccessPolicy decides how the HTTP surface establishes caller identity.
type AccessPolicy struct {
	SchemaVersion int `json:"schema_version"`

	Mode string `json:"mode"`

	// AllowAnonymous lets callers without identity generate documents that
	// are returned but never persisted.
	AllowAnonymous bool `json:"allow_anonymous,omitempty"`
}

func defaultAccessPolicy() *AccessPolicy {
	return &AccessPolicy{SchemaVersion: accessPolicySchemaVersionV1, Mode: AccessBearerToken}
}

func (p *AccessPolicy) Validate() error {
	if p == nil {
		return nil
	}
	if p.SchemaVersion != accessPolicySchemaVersionV1 {
		return fmt.Errorf("unsupported schema_version: %d", p.SchemaVersion)
	}
	switch p.Mode {
	case AccessTrusted, AccessBearerToken:
	default:
		return fmt.Errorf("invalid mode %q", p.Mode)
	}
	return nil
}

// EffectiveAccessPolicy returns the configured policy or the default
// (bearer tokens, no anonymous runs).
func (c *Config) EffectiveAccessPolicy() AccessPolicy {
	if c == nil || c.AccessPolicy == nil {
		return *defaultAccessPolicy()
	}
	return *c.AccessPolicy
}

func ParseAccessPolicyPreset(preset string) (*AccessPolicy, error) {
	p := strings.ToLower(strings.TrimSpace(preset))
	p = strings.ReplaceAll(p, "-", "_")

	switch p {
	case "", "token", AccessBearerToken:
		return defaultAccessPolicy(), nil
	case "token_or_anonymous":
		return &AccessPolicy{SchemaVersion: accessPolicySchemaVersionV1, Mode: AccessBearerToken, AllowAnonymous: true}, nil
	case AccessTrusted:
		return &AccessPolicy{SchemaVersion: accessPolicySchemaVersionV1, Mode: AccessTrusted, AllowAnonymous: true}, nil
	default:
		return nil, fmt.Errorf("unknown access policy preset: %q", preset)
	}
}

// NormalizeBearerToken accepts either a raw token or an Authorization
// header value ("Bearer <token>").
func NormalizeBearerToken(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	parts := strings.Fields(s)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return s
}
