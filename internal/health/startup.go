// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ManuGH/getprobe/internal/config"
	"github.com/ManuGH/getprobe/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the filesystem the probe writes to before
// the first run is scheduled.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if cfg.Logging.File != "" {
		if err := checkWritableDir(logger, filepath.Dir(cfg.Logging.File)); err != nil {
			return fmt.Errorf("log file directory check failed: %w", err)
		}
	}

	switch cfg.History.Backend {
	case config.HistorySQLite:
		if err := checkWritableDir(logger, filepath.Dir(cfg.History.Path)); err != nil {
			return fmt.Errorf("history directory check failed: %w", err)
		}
	case config.HistoryBadger:
		if err := ensureDir(cfg.History.Path); err != nil {
			return fmt.Errorf("history directory check failed: %w", err)
		}
		if err := checkWritableDir(logger, cfg.History.Path); err != nil {
			return fmt.Errorf("history directory check failed: %w", err)
		}
	}

	if cfg.History.StatusFile != "" {
		if err := checkWritableDir(logger, filepath.Dir(cfg.History.StatusFile)); err != nil {
			return fmt.Errorf("status file directory check failed: %w", err)
		}
	}

	if cfg.Contract.SpecPath != "" {
		if err := checkFileReadable(cfg.Contract.SpecPath); err != nil {
			return fmt.Errorf("contract spec check failed: %w", err)
		}
		logger.Info().Str("path", cfg.Contract.SpecPath).Msg("contract spec is readable")
	}

	if cfg.Credentials.Empty() {
		logger.Warn().Msg("GETAPP_USERNAME or GETAPP_PASSWORD not set; every run will fail at login")
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func ensureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

func checkWritableDir(logger zerolog.Logger, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("directory is writable")
	return nil
}

func checkFileReadable(path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return err
	}
	return f.Close()
}
