// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/getprobe/internal/history"
	"github.com/spf13/cobra"
)

// healthcheckOptions drive the container HEALTHCHECK. With a status file the
// check is offline: it passes when the last recorded run is recent enough.
type healthcheckOptions struct {
	mode       string
	host       string
	port       int
	timeout    time.Duration
	statusFile string
	maxAge     time.Duration
}

func newHealthcheckCmd() *cobra.Command {
	o := &healthcheckOptions{}
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the local ops server (for container health checks)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := o.resolveMode(cmd.Flags().Changed("mode")); err != nil {
				return &exitError{code: 2, err: err}
			}
			if err := runHealthcheck(o, time.Now()); err != nil {
				return &exitError{code: 1, err: err}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Healthcheck successful (%s)\n", o.mode)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.mode, "mode", "ready", "healthcheck mode: ready (default), live or file")
	f.StringVar(&o.host, "host", "localhost", "ops server host")
	f.IntVar(&o.port, "port", 8000, "ops server port")
	f.DurationVar(&o.timeout, "timeout", 5*time.Second, "check timeout")
	f.StringVar(&o.statusFile, "status-file", "", "status file to check (implies --mode file)")
	f.DurationVar(&o.maxAge, "max-age", 15*time.Minute, "maximum age of the last run in file mode")
	return cmd
}

// resolveMode makes --status-file select file mode unless another mode was
// asked for explicitly, which is rejected.
func (o *healthcheckOptions) resolveMode(modeSet bool) error {
	if o.statusFile == "" || o.mode == "file" {
		return nil
	}
	if modeSet {
		return fmt.Errorf("--status-file cannot be combined with --mode %s", o.mode)
	}
	o.mode = "file"
	return nil
}

func runHealthcheck(o *healthcheckOptions, now time.Time) error {
	switch o.mode {
	case "file":
		return checkStatusFile(o.statusFile, o.maxAge, now)
	case "ready", "live":
	default:
		return fmt.Errorf("unknown mode %q (supported: ready, live, file)", o.mode)
	}

	path := "/healthz"
	if o.mode == "ready" {
		path = "/readyz"
	}
	url := fmt.Sprintf("http://%s:%d%s", o.host, o.port, path)
	client := http.Client{Timeout: o.timeout}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("healthcheck failed (network): %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck failed (status): %s", resp.Status)
	}
	return nil
}

func checkStatusFile(path string, maxAge time.Duration, now time.Time) error {
	if path == "" {
		return errors.New("--status-file is required in file mode")
	}
	rep, err := history.ReadSnapshot(path)
	if err != nil {
		return fmt.Errorf("read status file: %w", err)
	}
	if age := now.Sub(rep.FinishedAt); maxAge > 0 && age > maxAge {
		return fmt.Errorf("last run %s finished %s ago (max %s)", rep.ID, age.Truncate(time.Second), maxAge)
	}
	return nil
}
