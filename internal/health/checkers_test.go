// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/getprobe/internal/config"
	"github.com/ManuGH/getprobe/internal/history"
	"github.com/ManuGH/getprobe/internal/probe"
	"github.com/ManuGH/getprobe/internal/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errSource struct{ err error }

func (e errSource) Last(context.Context) (probe.Report, error) { return probe.Report{}, e.err }

// lastRunAt returns a checker over a store holding rep (if non-nil), judged at now.
func lastRunAt(t *testing.T, rep *probe.Report, now time.Time, interval time.Duration) *LastRunChecker {
	t.Helper()
	store := history.NewMemory(4)
	if rep != nil {
		require.NoError(t, store.Save(context.Background(), *rep))
	}
	c := NewLastRunChecker(store, func() time.Duration { return interval })
	c.now = func() time.Time { return now }
	return c
}

func TestLastRunChecker_States(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	const every = 5 * time.Minute
	limit := StaleIntervals * every

	cases := map[string]struct {
		rep     *probe.Report
		want    Status
		message string
	}{
		"no run recorded": {
			want: StatusDegraded, message: "no run recorded yet",
		},
		"recent pass": {
			rep:  &probe.Report{ID: "r1", Passed: true, FinishedAt: now.Add(-every)},
			want: StatusHealthy, message: "last run r1 passed",
		},
		"recent failure at import": {
			rep:  &probe.Report{ID: "r2", FailedStep: probe.StepImportStatus, Error: "import finished with status Error", FinishedAt: now.Add(-every)},
			want: StatusDegraded, message: "last run r2 failed at step " + probe.StepImportStatus,
		},
		"pass exactly three intervals old": {
			rep:  &probe.Report{ID: "r3", Passed: true, FinishedAt: now.Add(-limit)},
			want: StatusHealthy, message: "last run r3 passed",
		},
		"pass three missed intervals old": {
			rep:  &probe.Report{ID: "r4", Passed: true, FinishedAt: now.Add(-limit - time.Minute)},
			want: StatusUnhealthy, message: "last run finished 16m0s ago",
		},
		"stale failure reports staleness": {
			rep:  &probe.Report{ID: "r5", FailedStep: probe.StepLogin, FinishedAt: now.Add(-time.Hour)},
			want: StatusUnhealthy, message: "last run finished 1h0m0s ago",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := lastRunAt(t, tc.rep, now, every).Check(context.Background())
			assert.Equal(t, tc.want, got.Status)
			assert.Equal(t, tc.message, got.Message)
		})
	}
}

func TestLastRunChecker_FailedRunCarriesError(t *testing.T) {
	now := time.Now()
	rep := &probe.Report{ID: "r6", FailedStep: probe.StepLogin, Error: "401 Unauthorized", FinishedAt: now}
	got := lastRunAt(t, rep, now, time.Minute).Check(context.Background())
	assert.Equal(t, "401 Unauthorized", got.Error)
}

func TestLastRunChecker_HistoryErrorIsDegraded(t *testing.T) {
	c := NewLastRunChecker(errSource{err: errors.New("disk gone")}, func() time.Duration { return time.Minute })
	assert.Equal(t, "last_run", c.Name())

	got := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, got.Status)
	assert.Equal(t, "run history unavailable", got.Message)
	assert.Equal(t, "disk gone", got.Error)
}

func TestLastRunChecker_IntervalFollowsReload(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := history.NewMemory(1)
	require.NoError(t, store.Save(context.Background(), probe.Report{ID: "r7", Passed: true, FinishedAt: now.Add(-20 * time.Minute)}))

	var (
		mu       sync.Mutex
		interval = 5 * time.Minute
	)
	c := NewLastRunChecker(store, func() time.Duration {
		mu.Lock()
		defer mu.Unlock()
		return interval
	})
	c.now = func() time.Time { return now }
	assert.Equal(t, StatusUnhealthy, c.Check(context.Background()).Status)

	mu.Lock()
	interval = time.Hour
	mu.Unlock()
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status, "an hourly schedule tolerates a 20 minute old run")

	mu.Lock()
	interval = 0
	mu.Unlock()
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status, "without an interval a run never goes stale")
}

type steppingClock struct{ t time.Time }

func (c *steppingClock) Now() time.Time { return c.t }

func TestBreakerChecker_FollowsBreakerState(t *testing.T) {
	clock := &steppingClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	cb := resilience.NewCircuitBreaker("health-breaker", 1, time.Minute, resilience.WithClock(clock))
	c := NewBreakerChecker(cb)
	assert.Equal(t, "circuit_breaker", c.Name())

	assert.Equal(t, CheckResult{Status: StatusHealthy, Message: "closed"}, c.Check(context.Background()))

	_ = cb.Execute(func() error { return errors.New("GetApp 503") })
	assert.Equal(t, CheckResult{Status: StatusDegraded, Message: "open"}, c.Check(context.Background()))

	clock.t = clock.t.Add(2 * time.Minute)
	var duringTrial CheckResult
	require.NoError(t, cb.Execute(func() error {
		duringTrial = c.Check(context.Background())
		return nil
	}))
	assert.Equal(t, CheckResult{Status: StatusDegraded, Message: "half-open"}, duringTrial)
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status, "a successful trial closes the breaker")
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingChecker(t *testing.T) {
	up := NewPingChecker("history", pingFunc(func(context.Context) error { return nil }))
	assert.Equal(t, "history", up.Name())
	assert.Equal(t, CheckResult{Status: StatusHealthy, Message: "reachable"}, up.Check(context.Background()))

	down := NewPingChecker("redis", pingFunc(func(context.Context) error { return errors.New("connection refused") }))
	assert.Equal(t, CheckResult{Status: StatusUnhealthy, Error: "connection refused"}, down.Check(context.Background()))

	var remaining time.Duration
	bounded := NewPingChecker("redis", pingFunc(func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		remaining = time.Until(deadline)
		return nil
	}))
	bounded.Check(context.Background())
	assert.LessOrEqual(t, remaining, 2*time.Second)
}

func TestFileChecker_StatusSnapshot(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "last_run.json")

	c := NewFileChecker("status_file", snapshot)
	assert.Equal(t, "status_file", c.Name())

	got := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, got.Status, "missing before the first run")
	assert.Equal(t, "file not found", got.Error)
	assert.Equal(t, snapshot, got.Message)

	require.NoError(t, history.WriteSnapshot(snapshot, probe.Report{ID: "r8", Passed: true, FinishedAt: time.Now()}))
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	require.NoError(t, os.Truncate(snapshot, 0))
	assert.Equal(t, CheckResult{Status: StatusDegraded, Message: "file is empty"}, c.Check(context.Background()))
}

func TestFileChecker_Misconfigured(t *testing.T) {
	dir := t.TempDir()

	got := NewFileChecker("status_file", dir).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, got.Status)
	assert.Equal(t, "expected file, got directory", got.Error)

	unset := NewFileChecker("status_file", "").Check(context.Background())
	assert.Equal(t, StatusHealthy, unset.Status)
}

func TestPerformStartupChecks(t *testing.T) {
	dir := t.TempDir()

	cfg := config.Defaults()
	cfg.Logging.File = filepath.Join(dir, "logs", "api_tests.log")
	cfg.History.Backend = config.HistoryBadger
	cfg.History.Path = filepath.Join(dir, "history")
	cfg.History.StatusFile = filepath.Join(dir, "state", "last_run.json")

	require.NoError(t, PerformStartupChecks(context.Background(), cfg))
	assert.DirExists(t, filepath.Join(dir, "logs"))
	assert.DirExists(t, filepath.Join(dir, "history"))
	assert.DirExists(t, filepath.Join(dir, "state"))
}

func TestPerformStartupChecks_Failures(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	t.Run("log dir is a file", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.Logging.File = filepath.Join(blocker, "api_tests.log")
		err := PerformStartupChecks(context.Background(), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log file directory")
	})

	t.Run("contract spec missing", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.Logging.File = ""
		cfg.Contract.SpecPath = filepath.Join(dir, "missing.yaml")
		err := PerformStartupChecks(context.Background(), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "contract spec")
	})
}
