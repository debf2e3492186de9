// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ManuGH/getprobe/internal/config"
	"github.com/ManuGH/getprobe/internal/daemon"
	"github.com/ManuGH/getprobe/internal/health"
	"github.com/ManuGH/getprobe/internal/log"
	"github.com/ManuGH/getprobe/internal/version"
	"github.com/spf13/cobra"
)

func newRunCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduled probe and the ops server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), g)
		},
	}
}

func runDaemon(parent context.Context, g *globalFlags) error {
	if parent == nil {
		parent = context.Background()
	}

	// Safe defaults until config is loaded.
	log.Configure(log.Config{Level: g.logLevel, Service: "getprobe", Version: version.Version})
	logger := log.WithComponent("main")

	cfg, loader, err := g.load()
	if err != nil {
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "config.load_failed").
			Str(log.FieldPath, g.resolvedConfigPath()).
			Msg("failed to load configuration")
		return &exitError{code: 1, err: err}
	}
	configureLogging(cfg, os.Stdout)
	logger = log.WithComponent("main")

	source := "env+defaults"
	if loader.Path() != "" {
		source = "file"
	}
	logger.Info().
		Str(log.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("config_source", source).
		Str("addr", cfg.Server.ListenAddr).
		Msg("starting getprobe")
	logger.Info().Msgf("→ GetApp: %s (auth: %v)", config.MaskURL(cfg.BaseURL), !cfg.Credentials.Empty())
	logger.Info().Msgf("→ Schedule: %s (run on start: %v)", cfg.Schedule, cfg.RunOnStart)
	logger.Info().Msgf("→ History: %s", cfg.History.Backend)

	ctx, stop := daemon.WaitForShutdown(parent)
	defer stop()

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "startup.check_failed").
			Msg("startup checks failed, verify configuration and permissions")
		return &exitError{code: 1, err: err}
	}

	holder := config.NewHolder(cfg, loader)
	rt, err := daemon.Build(ctx, holder, version.Version, daemon.Options{})
	if err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "startup.build_failed").Msg("failed to assemble runtime")
		return &exitError{code: 1, err: err}
	}

	if err := rt.App.Run(ctx); !daemon.IsCleanExit(err) {
		logger.Error().Err(err).Str(log.FieldEvent, "daemon.failed").Msg("daemon failed")
		return &exitError{code: 1, err: fmt.Errorf("daemon: %w", err)}
	}

	logger.Info().Msg("server exiting")
	return nil
}
