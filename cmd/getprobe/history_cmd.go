// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ManuGH/getprobe/internal/config"
	"github.com/ManuGH/getprobe/internal/history"
	"github.com/ManuGH/getprobe/internal/persistence/sqlite"
	"github.com/spf13/cobra"
)

func newHistoryCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded probe runs",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List the most recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := g.load()
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			if cfg.History.Backend == config.HistoryMemory {
				return &exitError{code: 2, err: errors.New("history backend is memory; nothing is persisted between processes")}
			}
			return listHistory(cmd.Context(), cmd.OutOrStdout(), cfg.History, limit)
		},
	}
	list.Flags().IntVar(&limit, "limit", 10, "number of runs to show")
	cmd.AddCommand(list)

	var (
		path string
		full bool
	)
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check SQLite history integrity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				cfg, _, err := g.load()
				if err != nil {
					return &exitError{code: 2, err: err}
				}
				if cfg.History.Backend != config.HistorySQLite {
					return &exitError{code: 2, err: fmt.Errorf("verify requires the sqlite backend (configured: %s) or --path", cfg.History.Backend)}
				}
				path = cfg.History.Path
			}
			mode := sqlite.VerifyQuick
			if full {
				mode = sqlite.VerifyFull
			}
			return verifyHistory(cmd.Context(), cmd.OutOrStdout(), path, mode)
		},
	}
	verify.Flags().StringVar(&path, "path", "", "SQLite database file (defaults to history.path)")
	verify.Flags().BoolVar(&full, "full", false, "run a full integrity_check instead of quick_check")
	cmd.AddCommand(verify)

	return cmd
}

func listHistory(ctx context.Context, w io.Writer, cfg config.HistoryConfig, limit int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := history.New(ctx, cfg)
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("open history: %w", err)}
	}
	defer func() { _ = store.Close() }()

	runs, err := store.Recent(ctx, limit)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "no runs recorded")
		return nil
	}
	for _, rep := range runs {
		status := "PASS"
		if !rep.Passed {
			status = "FAIL " + rep.FailedStep
		}
		_, _ = fmt.Fprintf(w, "%s  %-36s  %-8s  %s\n",
			rep.StartedAt.Format("2006-01-02T15:04:05Z07:00"), rep.ID, rep.Trigger, strings.TrimSpace(status))
	}
	return nil
}

func verifyHistory(ctx context.Context, w io.Writer, path, mode string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	_, _ = fmt.Fprintf(w, "🔍 Verifying integrity of %s (mode: %s)...\n", path, mode)

	issues, err := sqlite.VerifyIntegrity(ctx, path, mode)
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("verification interrupted by system error: %w", err)}
	}
	if issues != nil {
		_, _ = fmt.Fprintln(w, "🚨 CORRUPTION DETECTED!")
		for _, issue := range issues {
			_, _ = fmt.Fprintf(w, "  - %s\n", issue)
		}
		return &exitError{code: 1}
	}

	_, _ = fmt.Fprintln(w, "✅ Integrity Verified: ok")
	return nil
}
