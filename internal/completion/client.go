// Package completion wraps the external text-generation service.
package completion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

const (
	defaultTimeout   = 90 * time.Second
	defaultMaxTokens = 500
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Options are per-call generation parameters.
type Options struct {
	MaxTokens int
	// Temperature is clamped to [0,1].
	Temperature float64
}

// Client sends an ordered message list and returns a single completion.
type Client interface {
	Generate(ctx context.Context, messages []Message, opts Options) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, messages []Message, opts Options) (string, error)

func (f ClientFunc) Generate(ctx context.Context, messages []Message, opts Options) (string, error) {
	return f(ctx, messages, opts)
}

// ErrTimeout is returned when a generation call exceeds its time bound.
var ErrTimeout = errors.New("completion timed out")

// ServiceError is a non-timeout failure reported by the generation service.
type ServiceError struct {
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("completion service error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("completion service error: %v", e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// backend is one authenticated connection to a provider API.
type backend interface {
	complete(ctx context.Context, model string, messages []Message, opts Options) (string, error)
}

// Config describes how to reach the generation service.
type Config struct {
	// ProviderType is one of: "openai" | "anthropic" | "openai_compatible".
	ProviderType string
	BaseURL      string
	Model        string

	APIKey string
	// FallbackAPIKey is used once when the primary key is rejected with HTTP 402.
	FallbackAPIKey string

	// Headers are extra request headers (OpenRouter attribution headers, for example).
	Headers map[string]string

	Timeout    time.Duration
	MaxRetries int

	Logger *slog.Logger
}

// Service is the production Client.
type Service struct {
	log      *slog.Logger
	model    string
	timeout  time.Duration
	primary  backend
	fallback backend
}

func New(cfg Config) (*Service, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("missing model")
	}
	primaryKey := strings.TrimSpace(cfg.APIKey)
	fallbackKey := strings.TrimSpace(cfg.FallbackAPIKey)
	if primaryKey == "" && fallbackKey == "" {
		return nil, errors.New("no provider api key configured")
	}
	if primaryKey == "" {
		primaryKey, fallbackKey = fallbackKey, ""
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	primary, err := newBackend(cfg.ProviderType, cfg.BaseURL, primaryKey, cfg.Headers, cfg.MaxRetries)
	if err != nil {
		return nil, err
	}
	s := &Service{
		log:     logger,
		model:   model,
		timeout: timeout,
		primary: primary,
	}
	if fallbackKey != "" && fallbackKey != primaryKey {
		fb, err := newBackend(cfg.ProviderType, cfg.BaseURL, fallbackKey, cfg.Headers, cfg.MaxRetries)
		if err != nil {
			return nil, err
		}
		s.fallback = fb
	}
	return s, nil
}

func (s *Service) Generate(ctx context.Context, messages []Message, opts Options) (string, error) {
	if s == nil || s.primary == nil {
		return "", errors.New("completion service not initialized")
	}
	if len(messages) == 0 {
		return "", errors.New("missing messages")
	}
	opts = normalizeOptions(opts)

	out, err := s.call(ctx, s.primary, messages, opts)
	if err == nil {
		return out, nil
	}
	var se *ServiceError
	if s.fallback != nil && errors.As(err, &se) && se.StatusCode == 402 {
		s.log.Warn("primary completion key hit its limit, switching to fallback key")
		return s.call(ctx, s.fallback, messages, opts)
	}
	return "", err
}

func (s *Service) call(ctx context.Context, b backend, messages []Message, opts Options) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	out, err := b.complete(callCtx, s.model, messages, opts)
	if err != nil {
		err = classifyError(ctx, callCtx, err)
		s.log.Warn("completion failed", "model", s.model, "elapsed_ms", time.Since(started).Milliseconds(), "error", err)
		return "", err
	}
	s.log.Debug("completion done", "model", s.model, "elapsed_ms", time.Since(started).Milliseconds(), "chars", len(out))
	return out, nil
}

func classifyError(parent context.Context, callCtx context.Context, err error) error {
	if parentErr := parent.Err(); parentErr != nil {
		return parentErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if status, ok := apiStatusCode(err); ok {
		return &ServiceError{StatusCode: status, Err: err}
	}
	return &ServiceError{Err: err}
}

func normalizeOptions(opts Options) Options {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature < 0 {
		opts.Temperature = 0
	}
	if opts.Temperature > 1 {
		opts.Temperature = 1
	}
	return opts
}

// splitSystem separates system instructions from the conversational messages.
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if txt := strings.TrimSpace(m.Content); txt != "" {
				system = append(system, txt)
			}
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
