package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edgealpha/artifact-agent/internal/config"
)

type rootFlags struct {
	configPath string
	logFormat  string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "artifact-agent",
		Short: "Generate founder deliverables from advisor conversations",
		Long: "artifact-agent extracts facts from an advisor conversation, synthesizes a\n" +
			"structured deliverable with an LLM and records it with score and evidence credit.",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version: fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime),
	}
	cmd.PersistentFlags().StringVar(&f.configPath, "config", config.DefaultConfigPath(), "Config file path")
	cmd.PersistentFlags().StringVar(&f.logFormat, "log-format", "", "Log format override: json|text")
	cmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "Log level override: debug|info|warn|error")

	cmd.AddCommand(
		newConfigCmd(f),
		newSecretsCmd(f),
		newServeCmd(f),
		newGenerateCmd(f),
		newArtifactsCmd(f),
		newScoreCmd(f),
		newTypesCmd(),
	)
	return cmd
}
