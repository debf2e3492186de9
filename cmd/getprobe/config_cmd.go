// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ManuGH/getprobe/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate configuration (defaults + file + env)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, _, err := g.load(); err != nil {
				return &exitError{code: 1, err: fmt.Errorf("configuration error: %w", err)}
			}
			source := g.resolvedConfigPath()
			if source == "" {
				source = "environment"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid\n", source)
			return nil
		},
	})

	var format string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, loader, err := g.load()
			if err != nil {
				return &exitError{code: 1, err: fmt.Errorf("configuration error: %w", err)}
			}
			if keys := loader.EnvOverrides(); len(keys) > 0 {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "# environment overrides: %s\n", strings.Join(keys, ", "))
			}
			if err := writeConfig(cmd.OutOrStdout(), cfg.Redacted(), format); err != nil {
				return &exitError{code: 2, err: err}
			}
			return nil
		},
	}
	show.Flags().StringVar(&format, "format", "yaml", "output format: yaml or json")
	cmd.AddCommand(show)

	return cmd
}

func writeConfig(w io.Writer, cfg config.AppConfig, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encode YAML: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encode JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (use yaml or json)", format)
	}
}
