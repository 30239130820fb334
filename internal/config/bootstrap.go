package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

type BootstrapArgs struct {
	ConfigPath string

	ListenAddr string
	StateDir   string
	LogFormat  string
	LogLevel   string

	// AccessPolicyPreset is an optional preset used to write access_policy into the config.
	// If empty, bootstrap preserves the existing access_policy when possible, otherwise uses defaults.
	AccessPolicyPreset string

	// Force overwrites an existing config instead of merging into it.
	Force bool
}

// BootstrapConfig writes a config file with defaults filled in and returns
// its path. An existing config keeps its generation providers and access
// policy unless Force is set.
func BootstrapConfig(args BootstrapArgs) (writtenPath string, err error) {
	cfgPath := strings.TrimSpace(args.ConfigPath)
	if cfgPath == "" {
		cfgPath = DefaultConfigPath()
	}

	var prev *Config
	if !args.Force {
		c, loadErr := Load(cfgPath)
		switch {
		case loadErr == nil:
			prev = c
		case errors.Is(loadErr, os.ErrNotExist):
		default:
			return "", loadErr
		}
	}

	cfg := &Config{
		ListenAddr: strings.TrimSpace(args.ListenAddr),
		StateDir:   strings.TrimSpace(args.StateDir),
		LogFormat:  strings.TrimSpace(args.LogFormat),
		LogLevel:   strings.TrimSpace(args.LogLevel),
		Generation: DefaultGenerationConfig(),
	}
	if prev != nil {
		// Keep the user's provider setup and other fields the flags did not set.
		cfg.Generation = prev.Generation
		cfg.ActivityLog = prev.ActivityLog
		cfg.DBPath = prev.DBPath
		if cfg.ListenAddr == "" {
			cfg.ListenAddr = prev.ListenAddr
		}
		if cfg.StateDir == "" {
			cfg.StateDir = prev.StateDir
		}
		if cfg.LogFormat == "" {
			cfg.LogFormat = prev.LogFormat
		}
		if cfg.LogLevel == "" {
			cfg.LogLevel = prev.LogLevel
		}
	}

	// Write access_policy explicitly so users can audit how callers are identified.
	if strings.TrimSpace(args.AccessPolicyPreset) != "" {
		p, err := ParseAccessPolicyPreset(args.AccessPolicyPreset)
		if err != nil {
			return "", err
		}
		cfg.AccessPolicy = p
	} else if prev != nil && prev.AccessPolicy != nil {
		cfg.AccessPolicy = prev.AccessPolicy
	} else {
		cfg.AccessPolicy = defaultAccessPolicy()
	}

	if err := Save(cfgPath, cfg); err != nil {
		return "", err
	}
	return filepath.Clean(cfgPath), nil
}
