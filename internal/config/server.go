// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"net"
	"time"
)

// ServerConfig holds the ops HTTP server settings (metrics, health, run API).
type ServerConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	MaxHeaderBytes  int           `yaml:"maxHeaderBytes"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// TriggerLimit is the number of manual run triggers accepted per minute and client IP.
	TriggerLimit int `yaml:"triggerLimit"`
}

// DefaultServerConfig returns the ops server defaults. Port 8000 is the
// metrics port scraped by existing Prometheus jobs.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:      DefaultListenAddr,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 10 * time.Second,
		TriggerLimit:    6,
	}
}

// Port extracts the numeric port from ListenAddr.
func (s ServerConfig) Port() (string, error) {
	_, port, err := net.SplitHostPort(s.ListenAddr)
	if err != nil {
		return "", fmt.Errorf("parse listen address %q: %w", s.ListenAddr, err)
	}
	if port == "" {
		return "", fmt.Errorf("listen address %q has no port", s.ListenAddr)
	}
	return port, nil
}
