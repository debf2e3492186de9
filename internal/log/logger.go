// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config captures options for configuring the global logger.
type Config struct {
	Level   string    // optional log level ("debug", "info", etc.)
	Output  io.Writer // optional writer (defaults to os.Stdout)
	File    string    // optional file that receives a copy of every entry
	Service string    // optional service name attached to every log entry
	Version string    // optional build version attached to every log entry
}

var (
	mu         sync.RWMutex
	base       zerolog.Logger
	configured bool
	fileCloser io.Closer
)

// Configure (re)initialises the global zerolog logger. Calling it again
// replaces the previous configuration and closes a previously opened log file.
func Configure(cfg Config) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	} else if env := os.Getenv("LOG_LEVEL"); env != "" {
		if parsed, err := zerolog.ParseLevel(env); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	writer := cfg.Output
	if writer == nil {
		writer = os.Stdout
	}

	var (
		file    *os.File
		fileErr error
	)
	if cfg.File != "" {
		file, fileErr = os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if fileErr == nil {
			writer = zerolog.MultiLevelWriter(writer, file)
		}
	}

	service := cfg.Service
	if service == "" {
		service = os.Getenv("LOG_SERVICE")
		if service == "" {
			service = "getprobe"
		}
	}
	version := cfg.Version
	if version == "" {
		version = os.Getenv("VERSION")
	}

	l := zerolog.New(writer).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()

	mu.Lock()
	prev := fileCloser
	base = l
	configured = true
	fileCloser = nil
	if file != nil {
		fileCloser = file
	}
	mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	if fileErr != nil {
		l.Warn().Err(fileErr).Str(FieldEvent, "log.file_open_failed").Str(FieldPath, cfg.File).
			Msg("log file unavailable, logging to output only")
	}
}

// Close releases the log file opened by Configure, if any.
func Close() error {
	mu.Lock()
	c := fileCloser
	fileCloser = nil
	mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Close()
}

func logger() zerolog.Logger {
	mu.RLock()
	if configured {
		l := base
		mu.RUnlock()
		return l
	}
	mu.RUnlock()
	Configure(Config{})
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Base returns the configured base logger instance.
func Base() zerolog.Logger {
	return logger()
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return logger().With().Str(FieldComponent, component).Logger()
}

// SetLevel changes the global level in place. An empty level means info.
func SetLevel(level string) error {
	level = strings.TrimSpace(level)
	if level == "" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return nil
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(parsed)
	return nil
}
