// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	levelOverride   string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty configPath means
// environment-only configuration.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the configuration file path, if any.
func (l *Loader) Path() string { return l.configPath }

// SetLogLevelOverride pins logging.level for this and every later Load, so a
// command-line level survives hot reloads.
func (l *Loader) SetLogLevelOverride(level string) {
	l.levelOverride = strings.TrimSpace(level)
}

// EnvOverrides returns the sorted names of the environment variables that
// were set during the last Load and therefore override file and defaults.
func (l *Loader) EnvOverrides() []string {
	var keys []string
	for key := range l.ConsumedEnvKeys {
		if _, ok := os.LookupEnv(key); ok {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys
}

// Load loads configuration with precedence: ENV > File > Defaults, then validates it.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	if l.levelOverride != "" {
		cfg.Logging.Level = l.levelOverride
	}
	normalize(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadFile decodes the YAML file on top of cfg. Unknown keys are rejected.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied config path
	if err != nil {
		return err
	}
	data = []byte(os.ExpandEnv(string(data)))

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.BaseURL = l.envString(EnvBaseURL, cfg.BaseURL)
	cfg.Schedule = l.envString(EnvSchedule, cfg.Schedule)
	cfg.RunOnStart = l.envBool(EnvRunOnStart, cfg.RunOnStart)
	cfg.Environment = l.envString(EnvEnvironment, cfg.Environment)
	cfg.Credentials.Username = l.envString(EnvUsername, cfg.Credentials.Username)
	cfg.Credentials.Password = l.envString(EnvPassword, cfg.Credentials.Password)

	cfg.Server.ListenAddr = l.envString(EnvListenAddr, cfg.Server.ListenAddr)
	cfg.Server.ShutdownTimeout = l.envDuration(EnvShutdownTimeout, cfg.Server.ShutdownTimeout)
	cfg.Server.TriggerLimit = l.envInt(EnvTriggerLimit, cfg.Server.TriggerLimit)

	// GETPROBE_LOG_LEVEL wins over the generic LOG_LEVEL.
	cfg.Logging.Level = l.envString("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Level = l.envString(EnvLogLevel, cfg.Logging.Level)
	if v, ok := l.envLookup(EnvLogFile); ok {
		// An explicitly empty value disables the log file.
		cfg.Logging.File = v
	}

	cfg.Client.Timeout = l.envDuration(EnvRequestTimeout, cfg.Client.Timeout)
	cfg.Client.RateLimit = l.envFloat(EnvRateLimit, cfg.Client.RateLimit)
	cfg.Client.BreakerThreshold = l.envInt(EnvBreakerThreshold, cfg.Client.BreakerThreshold)
	cfg.Client.BreakerReset = l.envDuration(EnvBreakerReset, cfg.Client.BreakerReset)

	cfg.Probe.PollAttempts = l.envInt(EnvPollAttempts, cfg.Probe.PollAttempts)
	cfg.Probe.PollInterval = l.envDuration(EnvPollInterval, cfg.Probe.PollInterval)
	cfg.Probe.StatusUpdates = l.envInt(EnvStatusUpdates, cfg.Probe.StatusUpdates)
	cfg.Probe.StatusUpdateInterval = l.envDuration(EnvStatusUpdateInterval, cfg.Probe.StatusUpdateInterval)
	cfg.Probe.DevicePrefix = l.envString(EnvDevicePrefix, cfg.Probe.DevicePrefix)

	cfg.History.Backend = l.envString(EnvHistoryBackend, cfg.History.Backend)
	cfg.History.Path = l.envString(EnvHistoryPath, cfg.History.Path)
	cfg.History.Limit = l.envInt(EnvHistoryLimit, cfg.History.Limit)
	cfg.History.StatusFile = l.envString(EnvStatusFile, cfg.History.StatusFile)

	cfg.Lock.RedisAddr = l.envString(EnvRedisAddr, cfg.Lock.RedisAddr)
	cfg.Lock.RedisPassword = l.envString(EnvRedisPassword, cfg.Lock.RedisPassword)
	cfg.Lock.RedisDB = l.envInt(EnvRedisDB, cfg.Lock.RedisDB)
	cfg.Lock.TTL = l.envDuration(EnvLockTTL, cfg.Lock.TTL)

	cfg.Contract.SpecPath = l.envString(EnvContractSpec, cfg.Contract.SpecPath)
	cfg.Contract.Strict = l.envBool(EnvContractStrict, cfg.Contract.Strict)

	cfg.Tracing.Enabled = l.envBool(EnvTracingEnabled, cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = l.envString(EnvTracingExporter, cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = l.envString(EnvTracingEndpoint, cfg.Tracing.Endpoint)
	cfg.Tracing.SamplingRate = l.envFloat(EnvTracingSamplingRate, cfg.Tracing.SamplingRate)
}

func normalize(cfg *AppConfig) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Schedule = strings.TrimSpace(cfg.Schedule)
	cfg.History.Backend = strings.ToLower(strings.TrimSpace(cfg.History.Backend))
	cfg.Tracing.Exporter = strings.ToLower(strings.TrimSpace(cfg.Tracing.Exporter))
}

// Wrapper methods for consumed key tracking

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envLookup(key string) (string, bool) {
	l.ConsumedEnvKeys[key] = struct{}{}
	return os.LookupEnv(key)
}
