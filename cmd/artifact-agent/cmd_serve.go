package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgealpha/artifact-agent/internal/lockfile"
	"github.com/edgealpha/artifact-agent/internal/server"
)

const activityDrainTimeout = 15 * time.Second

func newServeCmd(f *rootFlags) *cobra.Command {
	var (
		listen string
		model  string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the generation API over HTTP",
		Long: `Starts the HTTP API:

  POST /api/agents/generate    run one generation
  GET  /api/artifacts          list the caller's artifacts
  GET  /api/artifacts/{id}     read one artifact
  GET  /healthz

Only one serve process may own a state directory at a time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), f, listen, model)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address override (host:port)")
	cmd.Flags().StringVar(&model, "model", "", "Model override (<provider_id>/<model_name>)")
	return cmd
}

func runServe(ctx context.Context, f *rootFlags, listen string, model string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(f, os.Stdout)
	if err != nil {
		return err
	}

	lk, err := lockfile.AcquireStateDir(a.paths.StateDir)
	if err != nil {
		return fmt.Errorf("acquire state lock (%s): %w", a.paths.StateDir, err)
	}
	defer func() { _ = lk.Release() }()

	if err := a.openStore(); err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	activity, err := a.activityDispatcher()
	if err != nil {
		return err
	}
	p, err := a.pipeline(model, activity)
	if err != nil {
		return err
	}

	addr := a.cfg.EffectiveListenAddr()
	if strings.TrimSpace(listen) != "" {
		addr = strings.TrimSpace(listen)
	}
	srv, err := server.New(server.Options{
		Logger:    a.log.With("component", "server"),
		Addr:      addr,
		Generator: p,
		Artifacts: a.db,
		Tokens:    a.secrets,
		Access:    a.cfg.EffectiveAccessPolicy(),
		Version:   Version,
	})
	if err != nil {
		return err
	}

	a.log.Info("artifact agent starting",
		"version", Version,
		"state_dir", a.paths.StateDir,
		"access_mode", a.cfg.EffectiveAccessPolicy().Mode,
	)

	runErr := srv.Run(ctx)

	// Shutdown waited for in-flight handlers, so every activity entry has
	// been recorded; let the tail land before the store closes.
	drainCtx, cancel := context.WithTimeout(context.Background(), activityDrainTimeout)
	defer cancel()
	if err := activity.Close(drainCtx); err != nil {
		a.log.Warn("activity log drain incomplete", "error", err)
	}
	return runErr
}
