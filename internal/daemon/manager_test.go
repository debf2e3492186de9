// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/getprobe/internal/config"
	"github.com/ManuGH/getprobe/internal/log"
	"github.com/rs/zerolog"
)

func opsConfig(addr string) config.ServerConfig {
	return config.ServerConfig{
		ListenAddr:      addr,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		IdleTimeout:     5 * time.Second,
		MaxHeaderBytes:  1 << 16,
		ShutdownTimeout: 2 * time.Second,
	}
}

// opsRouter stands in for the api router: a liveness route and a run trigger.
func opsRouter(trigger http.HandlerFunc) http.Handler {
	if trigger == nil {
		trigger = func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) }
	}
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status":"healthy"}`)
	})
	r.Post("/api/v1/runs", trigger)
	return r
}

func newOpsManager(t *testing.T, cfg config.ServerConfig, h http.Handler) Manager {
	t.Helper()
	mgr, err := NewManager(cfg, Deps{Logger: log.WithComponent("daemon-test"), APIHandler: h})
	require.NoError(t, err)
	return mgr
}

// startManager runs Start in the background. It returns the bound address,
// the cancel that stops the manager and the channel Start's result arrives on.
func startManager(t *testing.T, mgr Manager) (string, context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()
	require.Eventually(t, func() bool { return mgr.Addr() != "" }, 2*time.Second, 5*time.Millisecond, "ops listener never bound")
	return mgr.Addr(), cancel, done
}

func waitStart(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return")
		return nil
	}
}

func TestNewManager_RejectsIncompleteDeps(t *testing.T) {
	cases := map[string]struct {
		deps Deps
		want error
	}{
		"disabled logger": {deps: Deps{Logger: zerolog.Nop(), APIHandler: opsRouter(nil)}, want: ErrMissingLogger},
		"no ops handler":  {deps: Deps{Logger: log.WithComponent("daemon-test")}, want: ErrMissingAPIHandler},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			mgr, err := NewManager(opsConfig("127.0.0.1:0"), tc.deps)
			assert.Nil(t, mgr)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestManager_ServesOpsRoutesUntilCanceled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var triggered atomic.Int32
	mgr := newOpsManager(t, opsConfig("127.0.0.1:0"), opsRouter(func(w http.ResponseWriter, _ *http.Request) {
		triggered.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))
	assert.Empty(t, mgr.Addr(), "no address before Start")

	addr, cancel, done := startManager(t, mgr)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy"}`, string(body))

	resp, err = client.Post("http://"+addr+"/api/v1/runs", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, int32(1), triggered.Load())

	cancel()
	assert.NoError(t, waitStart(t, done))
}

func TestManager_SchedulerStopsBeforeHistoryCloses(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr := newOpsManager(t, opsConfig("127.0.0.1:0"), opsRouter(nil))

	var (
		mu            sync.Mutex
		order         []string
		historyClosed bool
	)
	note := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, name)
	}
	errLockRelease := errors.New("redis: connection reset")

	// Registration mirrors Build: storage first, the scheduler last.
	mgr.RegisterShutdownHook("history", func(context.Context) error {
		note("history")
		mu.Lock()
		historyClosed = true
		mu.Unlock()
		return nil
	})
	mgr.RegisterShutdownHook("lock", func(context.Context) error {
		note("lock")
		return errLockRelease
	})
	mgr.RegisterShutdownHook("scheduler", func(context.Context) error {
		mu.Lock()
		closed := historyClosed
		mu.Unlock()
		assert.False(t, closed, "an in-flight run must still be able to save its report")
		note("scheduler")
		return nil
	})

	_, cancel, done := startManager(t, mgr)
	cancel()

	err := waitStart(t, done)
	require.ErrorIs(t, err, errLockRelease, "a failing hook is reported but does not stop the others")
	assert.Contains(t, err.Error(), "hook lock:")

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]string{"scheduler", "lock", "history"}, order); diff != "" {
		t.Errorf("hook order mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_SlowRequestBoundedByShutdownTimeout(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	cfg := opsConfig("127.0.0.1:0")
	cfg.ShutdownTimeout = 100 * time.Millisecond

	mgr := newOpsManager(t, cfg, opsRouter(func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(entered) })
		select {
		case <-r.Context().Done():
		case <-release:
		}
		w.WriteHeader(http.StatusAccepted)
	}))

	addr, cancel, done := startManager(t, mgr)

	requestDone := make(chan struct{})
	go func() {
		defer close(requestDone)
		client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, "http://"+addr+"/api/v1/runs", nil)
		if resp, err := client.Do(req); err == nil {
			_ = resp.Body.Close()
		}
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("trigger request never reached the handler")
	}
	cancel()

	err := waitStart(t, done)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "ops server shutdown")

	close(release)
	select {
	case <-requestDone:
	case <-time.After(2 * time.Second):
		t.Fatal("trigger request still pending after shutdown")
	}
}

func TestManager_ShutdownBeforeStart(t *testing.T) {
	mgr := newOpsManager(t, opsConfig("127.0.0.1:0"), opsRouter(nil))
	assert.ErrorIs(t, mgr.Shutdown(context.Background()), ErrManagerNotStarted)
}

func TestManager_PortInUseStillReleasesResources(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = taken.Close() }()

	mgr := newOpsManager(t, opsConfig(taken.Addr().String()), opsRouter(nil))
	historyClosed := false
	mgr.RegisterShutdownHook("history", func(context.Context) error {
		historyClosed = true
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = mgr.Start(ctx)
	require.Error(t, err)
	var opErr *net.OpError
	assert.ErrorAs(t, err, &opErr)
	assert.Contains(t, err.Error(), "failed to start ops server")
	assert.True(t, historyClosed, "hooks run even when the listener cannot bind")
	assert.Empty(t, mgr.Addr())
}
