package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultListenAddr = "127.0.0.1:8787"
	dbFileName        = "artifacts.sqlite"
	secretsFileName   = "secrets.json"
)

// Config is the on-disk configuration for artifact-agent.
//
// NOTE: API keys and caller tokens never live here; they are kept in
// secrets.json next to the state directory.
type Config struct {
	// ListenAddr is the HTTP listen address for `serve`.
	ListenAddr string `json:"listen_addr,omitempty"`

	// StateDir holds the database, secrets and activity log mirror.
	// If empty, the directory of the config file is used.
	StateDir string `json:"state_dir,omitempty"`
	// DBPath overrides <state_dir>/artifacts.sqlite.
	DBPath string `json:"db_path,omitempty"`

	Generation *GenerationConfig `json:"generation"`

	// AccessPolicy controls how the caller identity is established.
	AccessPolicy *AccessPolicy `json:"access_policy,omitempty"`

	ActivityLog *ActivityLogConfig `json:"activity_log,omitempty"`

	// LogFormat is "json" or "text".
	LogFormat string `json:"log_format,omitempty"`
	// LogLevel is "debug|info|warn|error".
	LogLevel string `json:"log_level,omitempty"`
}

type ActivityLogConfig struct {
	// FileMirror also appends entries to <state_dir>/activity/events.jsonl.
	FileMirror bool `json:"file_mirror,omitempty"`
	// MaxBytes is the rotation threshold of the mirror file.
	MaxBytes int64 `json:"max_bytes,omitempty"`
	// MaxBackups is the number of rotated mirror files kept.
	MaxBackups int `json:"max_backups,omitempty"`
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if addr := strings.TrimSpace(c.ListenAddr); addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("invalid listen_addr %q: %w", addr, err)
		}
	}
	if c.Generation == nil {
		return errors.New("missing generation")
	}
	if err := c.Generation.Validate(); err != nil {
		return fmt.Errorf("invalid generation: %w", err)
	}
	if c.AccessPolicy != nil {
		if err := c.AccessPolicy.Validate(); err != nil {
			return fmt.Errorf("invalid access_policy: %w", err)
		}
	}
	if c.ActivityLog != nil && (c.ActivityLog.MaxBytes < 0 || c.ActivityLog.MaxBackups < 0) {
		return errors.New("invalid activity_log limits")
	}
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid log_format %q", c.LogFormat)
	}
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}

func (c *Config) EffectiveListenAddr() string {
	if c == nil || strings.TrimSpace(c.ListenAddr) == "" {
		return defaultListenAddr
	}
	return strings.TrimSpace(c.ListenAddr)
}

// Paths are the resolved on-disk locations for one config file.
type Paths struct {
	StateDir    string `json:"state_dir"`
	DBPath      string `json:"db_path"`
	SecretsPath string `json:"secrets_path"`
}

func (c *Config) Paths(configPath string) Paths {
	stateDir := ""
	if c != nil {
		stateDir = strings.TrimSpace(c.StateDir)
	}
	if stateDir == "" {
		stateDir = filepath.Dir(filepath.Clean(configPath))
	}
	p := Paths{
		StateDir:    filepath.Clean(stateDir),
		DBPath:      filepath.Join(stateDir, dbFileName),
		SecretsPath: filepath.Join(stateDir, secretsFileName),
	}
	if c != nil && strings.TrimSpace(c.DBPath) != "" {
		p.DBPath = filepath.Clean(strings.TrimSpace(c.DBPath))
	}
	return p
}

// DefaultConfigPath returns the default config path:
//
//	~/.artifact-agent/config.json
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return "artifact-agent.config.json"
	}
	return filepath.Join(home, ".artifact-agent", "config.json")
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	// Write atomically.
	tmp := path + ".tmp"
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
