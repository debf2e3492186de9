// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/ManuGH/getprobe/internal/schedule"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks the configuration and reports all problems at once.
// Missing credentials are deliberately not a validation error: each run
// reports them as a login failure.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, err := schedule.Parse(cfg.Schedule); err != nil {
		add("schedule: %w", err)
	}

	if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("baseURL: %q is not an absolute URL", cfg.BaseURL)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("baseURL: unsupported scheme %q", u.Scheme)
	}

	if cfg.Server.ListenAddr == "" {
		add("server.listenAddr: must not be empty")
	} else if _, err := cfg.Server.Port(); err != nil {
		add("server.listenAddr: %w", err)
	}
	if cfg.Server.TriggerLimit < 0 {
		add("server.triggerLimit: must be >= 0, got %d", cfg.Server.TriggerLimit)
	}

	if cfg.Client.Timeout <= 0 {
		add("client.timeout: must be positive, got %s", cfg.Client.Timeout)
	}
	if cfg.Client.RateLimit < 0 {
		add("client.rateLimit: must be >= 0, got %g", cfg.Client.RateLimit)
	}

	if cfg.Probe.PollAttempts <= 0 {
		add("probe.pollAttempts: must be positive, got %d", cfg.Probe.PollAttempts)
	}
	if cfg.Probe.PollInterval < 0 {
		add("probe.pollInterval: must be >= 0, got %s", cfg.Probe.PollInterval)
	}
	if cfg.Probe.StatusUpdates < 0 {
		add("probe.statusUpdates: must be >= 0, got %d", cfg.Probe.StatusUpdates)
	}
	if cfg.Probe.StatusUpdateInterval < 0 {
		add("probe.statusUpdateInterval: must be >= 0, got %s", cfg.Probe.StatusUpdateInterval)
	}
	if cfg.Probe.DevicePrefix == "" {
		add("probe.devicePrefix: must not be empty")
	}

	switch cfg.History.Backend {
	case HistoryMemory:
	case HistorySQLite, HistoryBadger:
		if cfg.History.Path == "" {
			add("history.path: required for backend %q", cfg.History.Backend)
		}
	default:
		add("history.backend: unknown backend %q (supported: memory, sqlite, badger)", cfg.History.Backend)
	}
	if cfg.History.Limit <= 0 {
		add("history.limit: must be positive, got %d", cfg.History.Limit)
	}

	if cfg.Lock.Enabled() && cfg.Lock.TTL <= 0 {
		add("lock.ttl: must be positive when a redis address is set")
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Exporter != "grpc" && cfg.Tracing.Exporter != "http" {
			add("tracing.exporter: unsupported exporter %q (supported: grpc, http)", cfg.Tracing.Exporter)
		}
		if cfg.Tracing.Endpoint == "" {
			add("tracing.endpoint: required when tracing is enabled")
		}
	}
	if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
		add("tracing.samplingRate: must be within [0,1], got %g", cfg.Tracing.SamplingRate)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
