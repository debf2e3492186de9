// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command getprobe runs the GetApp end-to-end probe on a cron schedule and
// exposes its results on the ops port.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ManuGH/getprobe/internal/config"
	"github.com/ManuGH/getprobe/internal/log"
	"github.com/ManuGH/getprobe/internal/version"
	"github.com/spf13/cobra"
)

// EnvConfigPath names the YAML config file when --config is not given.
const EnvConfigPath = "GETPROBE_CONFIG"

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

type globalFlags struct {
	configPath string
	envFile    string
	logLevel   string
}

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				fmt.Fprintln(os.Stderr, "Error:", ee.err)
			}
			return ee.code
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "getprobe",
		Short:         "Synthetic end-to-end probe for the GetApp API",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), g)
		},
	}
	root.SetVersionTemplate(version.String() + "\n")

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "path to config file (YAML); defaults to $"+EnvConfigPath)
	pf.StringVar(&g.envFile, "env-file", "", "load KEY=VALUE pairs from a dotenv file before reading configuration")
	pf.StringVar(&g.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newRunCmd(g),
		newOnceCmd(g),
		newHealthcheckCmd(),
		newConfigCmd(g),
		newHistoryCmd(g),
		newVersionCmd(),
	)
	return root
}

func (g *globalFlags) resolvedConfigPath() string {
	if p := strings.TrimSpace(g.configPath); p != "" {
		return p
	}
	return strings.TrimSpace(os.Getenv(EnvConfigPath))
}

// load reads the env file and configuration with precedence
// ENV > File > Defaults and returns the loader for hot reload.
func (g *globalFlags) load() (config.AppConfig, *config.Loader, error) {
	if err := config.LoadEnvFile(g.envFile, g.envFile != ""); err != nil {
		return config.AppConfig{}, nil, err
	}
	loader := config.NewLoader(g.resolvedConfigPath(), version.Version)
	loader.SetLogLevelOverride(g.logLevel)
	cfg, err := loader.Load()
	if err != nil {
		return cfg, loader, err
	}
	return cfg, loader, nil
}

func configureLogging(cfg config.AppConfig, out io.Writer) {
	log.Configure(log.Config{
		Level:   cfg.Logging.Level,
		Output:  out,
		File:    cfg.Logging.File,
		Service: "getprobe",
		Version: version.Version,
	})
}
