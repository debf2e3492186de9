// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads and validates getprobe configuration.
//
// Precedence is ENV > YAML file > defaults. The original probe environment
// variables (BASE_URL, TEST_SCHEDULE, GETAPP_USERNAME, GETAPP_PASSWORD) are
// honoured unchanged; everything else lives under the GETPROBE_ prefix.
package config

import "time"

// Defaults.
const (
	DefaultBaseURL      = "https://api-getapp-dev.apps.sr.eastus.aroapp.io"
	DefaultSchedule     = "*/5 * * * *"
	DefaultListenAddr   = ":8000"
	DefaultLogFile      = "api_tests.log"
	DefaultDevicePrefix = "getprobe"
)

// Environment variable names.
const (
	EnvBaseURL              = "BASE_URL"
	EnvSchedule             = "TEST_SCHEDULE"
	EnvUsername             = "GETAPP_USERNAME"
	EnvPassword             = "GETAPP_PASSWORD"
	EnvRunOnStart           = "GETPROBE_RUN_ON_START"
	EnvListenAddr           = "GETPROBE_LISTEN_ADDR"
	EnvShutdownTimeout      = "GETPROBE_SHUTDOWN_TIMEOUT"
	EnvTriggerLimit         = "GETPROBE_TRIGGER_LIMIT"
	EnvLogLevel             = "GETPROBE_LOG_LEVEL"
	EnvLogFile              = "GETPROBE_LOG_FILE"
	EnvRequestTimeout       = "GETPROBE_REQUEST_TIMEOUT"
	EnvRateLimit            = "GETPROBE_RATE_LIMIT"
	EnvBreakerThreshold     = "GETPROBE_BREAKER_THRESHOLD"
	EnvBreakerReset         = "GETPROBE_BREAKER_RESET"
	EnvPollAttempts         = "GETPROBE_POLL_ATTEMPTS"
	EnvPollInterval         = "GETPROBE_POLL_INTERVAL"
	EnvStatusUpdates        = "GETPROBE_STATUS_UPDATES"
	EnvStatusUpdateInterval = "GETPROBE_STATUS_UPDATE_INTERVAL"
	EnvDevicePrefix         = "GETPROBE_DEVICE_PREFIX"
	EnvHistoryBackend       = "GETPROBE_HISTORY_BACKEND"
	EnvHistoryPath          = "GETPROBE_HISTORY_PATH"
	EnvHistoryLimit         = "GETPROBE_HISTORY_LIMIT"
	EnvStatusFile           = "GETPROBE_STATUS_FILE"
	EnvRedisAddr            = "GETPROBE_REDIS_ADDR"
	EnvRedisPassword        = "GETPROBE_REDIS_PASSWORD"
	EnvRedisDB              = "GETPROBE_REDIS_DB"
	EnvLockTTL              = "GETPROBE_LOCK_TTL"
	EnvContractSpec         = "GETPROBE_CONTRACT_SPEC"
	EnvContractStrict       = "GETPROBE_CONTRACT_STRICT"
	EnvTracingEnabled       = "GETPROBE_TRACING_ENABLED"
	EnvTracingExporter      = "GETPROBE_TRACING_EXPORTER"
	EnvTracingEndpoint      = "GETPROBE_TRACING_ENDPOINT"
	EnvTracingSamplingRate  = "GETPROBE_TRACING_SAMPLING_RATE"
	EnvEnvironment          = "GETPROBE_ENVIRONMENT"
)

// History backends.
const (
	HistoryMemory = "memory"
	HistorySQLite = "sqlite"
	HistoryBadger = "badger"
)

// AppConfig is the complete runtime configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	BaseURL     string      `yaml:"baseURL"`
	Schedule    string      `yaml:"schedule"`
	RunOnStart  bool        `yaml:"runOnStart"`
	Environment string      `yaml:"environment"`
	Credentials Credentials `yaml:"credentials"`

	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Client   ClientConfig   `yaml:"client"`
	Probe    ProbeConfig    `yaml:"probe"`
	History  HistoryConfig  `yaml:"history"`
	Lock     LockConfig     `yaml:"lock"`
	Contract ContractConfig `yaml:"contract"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// Credentials authenticate the probe against /api/login.
type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Empty reports whether either credential is missing.
func (c Credentials) Empty() bool {
	return c.Username == "" || c.Password == ""
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ClientConfig tunes the outbound GetApp client.
type ClientConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	RateLimit        float64       `yaml:"rateLimit"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// ProbeConfig tunes the scenario.
type ProbeConfig struct {
	PollAttempts         int           `yaml:"pollAttempts"`
	PollInterval         time.Duration `yaml:"pollInterval"`
	StatusUpdates        int           `yaml:"statusUpdates"`
	StatusUpdateInterval time.Duration `yaml:"statusUpdateInterval"`
	DevicePrefix         string        `yaml:"devicePrefix"`
}

// HistoryConfig selects where run reports are kept.
type HistoryConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	Limit      int    `yaml:"limit"`
	StatusFile string `yaml:"statusFile"`
}

// LockConfig enables a Redis lock so that only one replica probes per tick.
type LockConfig struct {
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDB"`
	TTL           time.Duration `yaml:"ttl"`
}

// Enabled reports whether a Redis address is configured.
func (l LockConfig) Enabled() bool { return l.RedisAddr != "" }

// ContractConfig points at an OpenAPI document used to validate responses.
type ContractConfig struct {
	SpecPath string `yaml:"specPath"`
	Strict   bool   `yaml:"strict"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// Defaults returns the configuration used when neither file nor environment set a value.
func Defaults() AppConfig {
	return AppConfig{
		BaseURL:     DefaultBaseURL,
		Schedule:    DefaultSchedule,
		RunOnStart:  true,
		Environment: "dev",
		Server:      DefaultServerConfig(),
		Logging: LoggingConfig{
			Level: "info",
			File:  DefaultLogFile,
		},
		Client: ClientConfig{
			Timeout:          30 * time.Second,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Probe: ProbeConfig{
			PollAttempts:         30,
			PollInterval:         2 * time.Second,
			StatusUpdates:        5,
			StatusUpdateInterval: 2 * time.Second,
			DevicePrefix:         DefaultDevicePrefix,
		},
		History: HistoryConfig{
			Backend: HistoryMemory,
			Limit:   100,
		},
		Lock: LockConfig{
			TTL: 10 * time.Minute,
		},
		Tracing: TracingConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
