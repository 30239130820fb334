package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/edgealpha/artifact-agent/internal/config"
)

func newConfigCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the agent config",
	}

	var args config.BootstrapArgs
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with defaults filled in",
		Long: `Writes the config file. An existing config keeps its providers, access
policy and activity log settings unless --force is given.

Access presets: bearer_token (default), token_or_anonymous, trusted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			args.ConfigPath = f.configPath
			if args.LogFormat == "" {
				args.LogFormat = f.logFormat
			}
			if args.LogLevel == "" {
				args.LogLevel = f.logLevel
			}
			out, err := config.BootstrapConfig(args)
			if err != nil {
				return fmt.Errorf("bootstrap failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okLabel("Config written:"), filepath.Clean(out))
			return nil
		},
	}
	initCmd.Flags().StringVar(&args.ListenAddr, "listen", "", "HTTP listen address (host:port)")
	initCmd.Flags().StringVar(&args.StateDir, "state-dir", "", "State directory (default: config file directory)")
	initCmd.Flags().StringVar(&args.AccessPolicyPreset, "access", "", "Access policy preset (empty: keep existing)")
	initCmd.Flags().BoolVar(&args.Force, "force", false, "Overwrite instead of merging into an existing config")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective config and resolved paths",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath := filepath.Clean(f.configPath)
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			return writeJSONTo(cmd.OutOrStdout(), struct {
				Config     *config.Config      `json:"config"`
				Paths      config.Paths        `json:"paths"`
				ListenAddr string              `json:"effective_listen_addr"`
				Access     config.AccessPolicy `json:"effective_access_policy"`
			}{
				Config:     cfg,
				Paths:      cfg.Paths(cfgPath),
				ListenAddr: cfg.EffectiveListenAddr(),
				Access:     cfg.EffectiveAccessPolicy(),
			})
		},
	}

	cmd.AddCommand(initCmd, show)
	return cmd
}
