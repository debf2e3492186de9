// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ManuGH/getprobe/internal/config"
	"github.com/ManuGH/getprobe/internal/contract"
	"github.com/ManuGH/getprobe/internal/getapp"
	"github.com/ManuGH/getprobe/internal/history"
	"github.com/ManuGH/getprobe/internal/jobs"
	"github.com/ManuGH/getprobe/internal/log"
	"github.com/ManuGH/getprobe/internal/probe"
	"github.com/spf13/cobra"
)

func newOnceCmd(g *globalFlags) *cobra.Command {
	var (
		asJSON  bool
		persist bool
	)
	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run the probe scenario once and exit non-zero on failure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := g.load()
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			// stdout carries the report.
			configureLogging(cfg, cmd.ErrOrStderr())
			defer func() { _ = log.Close() }()

			rep, err := runOnce(cmd.Context(), cfg, persist)
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			if err := printReport(cmd.OutOrStdout(), rep, asJSON); err != nil {
				return err
			}
			if !rep.Passed {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run report as JSON")
	cmd.Flags().BoolVar(&persist, "persist", true, "record the run in the configured history and status file")
	return cmd
}

func runOnce(ctx context.Context, cfg config.AppConfig, persist bool) (probe.Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	deps := jobs.Deps{Config: func() config.AppConfig { return cfg }}

	if cfg.Contract.SpecPath != "" {
		v, err := contract.Load(ctx, cfg.Contract.SpecPath)
		if err != nil {
			return probe.Report{}, fmt.Errorf("load contract: %w", err)
		}
		deps.Validator = v
	}
	deps.Breaker = getapp.NewBreaker(cfg.Client.BreakerThreshold, cfg.Client.BreakerReset)

	if persist {
		store, err := history.New(ctx, cfg.History)
		if err != nil {
			return probe.Report{}, fmt.Errorf("open history: %w", err)
		}
		defer func() { _ = store.Close() }()
		deps.Sinks = append(deps.Sinks, store)
		if cfg.History.StatusFile != "" {
			deps.Sinks = append(deps.Sinks, history.Snapshot{Path: cfg.History.StatusFile})
		}
	}

	return jobs.NewProbe(deps).Run(ctx, probe.TriggerCLI), nil
}

func printReport(w io.Writer, rep probe.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	for _, s := range rep.Steps {
		mark := "✅"
		if !s.Passed {
			mark = "❌"
		}
		line := fmt.Sprintf("%s %-28s %6dms", mark, s.Name, s.DurationMS)
		if s.Reason != "" {
			line += "  " + s.Reason
		}
		_, _ = fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
	_, _ = fmt.Fprintln(w, rep.Summary())
	return nil
}
