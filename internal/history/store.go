// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package history persists probe run reports.
package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/getprobe/internal/config"
	"github.com/ManuGH/getprobe/internal/probe"
)

// ErrNotFound is returned by Last before any run was saved.
var ErrNotFound = errors.New("history: no runs recorded")

// DefaultLimit is used when a store is created with a non-positive limit.
const DefaultLimit = 100

// Store keeps the most recent run reports. Implementations are safe for
// concurrent use and discard the oldest reports beyond their limit.
type Store interface {
	Save(ctx context.Context, rep probe.Report) error
	// Recent returns up to n reports, newest first.
	Recent(ctx context.Context, n int) ([]probe.Report, error)
	Last(ctx context.Context) (probe.Report, error)
	Ping(ctx context.Context) error
	Close() error
}

// New opens the backend selected by cfg.
func New(ctx context.Context, cfg config.HistoryConfig) (Store, error) {
	switch cfg.Backend {
	case config.HistoryMemory, "":
		return NewMemory(cfg.Limit), nil
	case config.HistorySQLite:
		return OpenSQLite(ctx, cfg.Path, cfg.Limit)
	case config.HistoryBadger:
		return OpenBadger(cfg.Path, cfg.Limit)
	default:
		return nil, fmt.Errorf("unknown history backend: %s", cfg.Backend)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

func clampN(n, limit int) int {
	if n <= 0 || n > limit {
		return limit
	}
	return n
}
