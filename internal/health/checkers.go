// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ManuGH/getprobe/internal/history"
	"github.com/ManuGH/getprobe/internal/probe"
	"github.com/ManuGH/getprobe/internal/resilience"
)

// StaleIntervals is how many schedule intervals may pass without a finished
// run before the probe reports itself unhealthy.
const StaleIntervals = 3

// FileChecker checks that a file exists and is not empty.
type FileChecker struct {
	name string
	path string
}

// NewFileChecker creates a checker for file existence
func NewFileChecker(name, path string) *FileChecker {
	return &FileChecker{name: name, path: path}
}

func (c *FileChecker) Name() string { return c.name }

func (c *FileChecker) Check(context.Context) CheckResult {
	if c.path == "" {
		return CheckResult{Status: StatusHealthy, Message: "not configured (optional)"}
	}

	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			// Written after the first run; absence alone is not a failure.
			return CheckResult{Status: StatusDegraded, Error: "file not found", Message: c.path}
		}
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "expected file, got directory"}
	}
	if info.Size() == 0 {
		return CheckResult{Status: StatusDegraded, Message: "file is empty"}
	}
	return CheckResult{Status: StatusHealthy, Message: "file exists and readable"}
}

// LastRunSource returns the most recent run report.
type LastRunSource interface {
	Last(ctx context.Context) (probe.Report, error)
}

// LastRunChecker reports on the most recent probe run.
//
// No run yet or a failed run is degraded: the probe itself works and the
// failure belongs to the API under test. A run older than StaleIntervals
// schedule intervals is unhealthy because the probe stopped probing.
type LastRunChecker struct {
	source   LastRunSource
	interval func() time.Duration
	now      func() time.Time
}

// NewLastRunChecker creates a checker for the last probe run. interval
// returns the current schedule interval and follows config reloads.
func NewLastRunChecker(source LastRunSource, interval func() time.Duration) *LastRunChecker {
	return &LastRunChecker{source: source, interval: interval, now: time.Now}
}

func (c *LastRunChecker) Name() string { return "last_run" }

func (c *LastRunChecker) Check(ctx context.Context) CheckResult {
	rep, err := c.source.Last(ctx)
	if errors.Is(err, history.ErrNotFound) {
		return CheckResult{Status: StatusDegraded, Message: "no run recorded yet"}
	}
	if err != nil {
		return CheckResult{Status: StatusDegraded, Message: "run history unavailable", Error: err.Error()}
	}

	if iv := c.interval(); iv > 0 {
		age := c.now().Sub(rep.FinishedAt)
		if age > StaleIntervals*iv {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: fmt.Sprintf("last run finished %s ago", age.Truncate(time.Second)),
			}
		}
	}

	if !rep.Passed {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("last run %s failed at step %s", rep.ID, rep.FailedStep),
			Error:   rep.Error,
		}
	}
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("last run %s passed", rep.ID)}
}

// BreakerChecker reports the GetApp circuit breaker state.
type BreakerChecker struct {
	breaker *resilience.CircuitBreaker
}

// NewBreakerChecker creates a checker over cb.
func NewBreakerChecker(cb *resilience.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{breaker: cb}
}

func (c *BreakerChecker) Name() string { return "circuit_breaker" }

func (c *BreakerChecker) Check(context.Context) CheckResult {
	state := c.breaker.State()
	if state == resilience.StateClosed {
		return CheckResult{Status: StatusHealthy, Message: string(state)}
	}
	return CheckResult{Status: StatusDegraded, Message: string(state)}
}

// Pinger is a dependency reachable with a single round trip.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker marks a dependency unhealthy when Ping fails.
type PingChecker struct {
	name    string
	pinger  Pinger
	timeout time.Duration
}

// NewPingChecker creates a checker that pings p with a two second budget.
func NewPingChecker(name string, p Pinger) *PingChecker {
	return &PingChecker{name: name, pinger: p, timeout: 2 * time.Second}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.pinger.Ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "reachable"}
}
