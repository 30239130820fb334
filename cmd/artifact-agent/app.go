package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/edgealpha/artifact-agent/internal/activitylog"
	"github.com/edgealpha/artifact-agent/internal/completion"
	"github.com/edgealpha/artifact-agent/internal/config"
	"github.com/edgealpha/artifact-agent/internal/pipeline"
	"github.com/edgealpha/artifact-agent/internal/settings"
	"github.com/edgealpha/artifact-agent/internal/store"
)

// app is the wiring shared by every command that touches agent state.
type app struct {
	cfg     *config.Config
	paths   config.Paths
	log     *slog.Logger
	secrets *settings.SecretsStore

	db *store.DB
}

func loadApp(f *rootFlags, logOut io.Writer) (*app, error) {
	cfgPath := filepath.Clean(f.configPath)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w (run `artifact-agent config init` first)", cfgPath, err)
	}

	format := cfg.LogFormat
	if strings.TrimSpace(f.logFormat) != "" {
		format = f.logFormat
	}
	level := cfg.LogLevel
	if strings.TrimSpace(f.logLevel) != "" {
		level = f.logLevel
	}
	logger, err := newLogger(logOut, format, level)
	if err != nil {
		return nil, err
	}

	paths := cfg.Paths(cfgPath)
	return &app{
		cfg:     cfg,
		paths:   paths,
		log:     logger,
		secrets: settings.NewSecretsStore(paths.SecretsPath),
	}, nil
}

func (a *app) openStore() error {
	if a.db != nil {
		return nil
	}
	db, err := store.Open(a.paths.DBPath)
	if err != nil {
		return fmt.Errorf("open store %s: %w", a.paths.DBPath, err)
	}
	a.db = db
	return nil
}

func (a *app) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// completionService builds the LLM client for modelID (<provider_id>/<model>),
// or for the configured default model when modelID is empty.
func (a *app) completionService(modelID string) (*completion.Service, error) {
	var (
		p     config.Provider
		model string
		ok    bool
	)
	if strings.TrimSpace(modelID) == "" {
		p, model, ok = a.cfg.Generation.DefaultModel()
	} else {
		p, model, ok = a.cfg.Generation.ResolveModel(modelID)
	}
	if !ok {
		if modelID == "" {
			return nil, errors.New("no default generation model configured")
		}
		return nil, fmt.Errorf("unknown model %q", modelID)
	}

	keys, err := a.secrets.ResolveProviderKeys(p.ID, p.APIKeyEnv, p.FallbackAPIKeyEnv)
	if err != nil {
		return nil, fmt.Errorf("resolve api keys for %s: %w", p.ID, err)
	}
	svc, err := completion.New(completion.Config{
		ProviderType:   p.Type,
		BaseURL:        p.BaseURL,
		Model:          model,
		APIKey:         keys.APIKey,
		FallbackAPIKey: keys.FallbackAPIKey,
		Headers:        p.Headers,
		Timeout:        a.cfg.Generation.EffectiveTimeout(),
		MaxRetries:     a.cfg.Generation.EffectiveMaxRetries(),
		Logger:         a.log.With("component", "completion", "provider", p.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("init provider %s: %w", p.ID, err)
	}
	return svc, nil
}

// activityDispatcher writes to the activity table and, when configured, to
// the rotated JSONL mirror under the state dir.
func (a *app) activityDispatcher() (*activitylog.Dispatcher, error) {
	writers := []activitylog.Writer{activitylog.NewStoreWriter(a.db)}
	if al := a.cfg.ActivityLog; al != nil && al.FileMirror {
		fw, err := activitylog.NewFileWriter(activitylog.FileOptions{
			Logger:     a.log,
			StateDir:   a.paths.StateDir,
			MaxBytes:   al.MaxBytes,
			MaxBackups: al.MaxBackups,
		})
		if err != nil {
			return nil, fmt.Errorf("init activity mirror: %w", err)
		}
		writers = append(writers, fw)
	}
	return activitylog.NewDispatcher(activitylog.Options{Logger: a.log.With("component", "activity")}, writers...), nil
}

func (a *app) pipeline(modelID string, sink activitylog.Sink) (*pipeline.Pipeline, error) {
	if err := a.openStore(); err != nil {
		return nil, err
	}
	svc, err := a.completionService(modelID)
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Options{
		Logger:     a.log.With("component", "pipeline"),
		Completion: svc,
		Store:      a.db,
		Activity:   sink,
	})
}

func newLogger(w io.Writer, format string, level string) (*slog.Logger, error) {
	var h slog.Handler

	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		lvl = slog.LevelInfo
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level: %s", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		h = slog.NewJSONHandler(w, opts)
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}

	return slog.New(h), nil
}
