// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires the probe runtime together and manages its lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ManuGH/getprobe/internal/api"
	"github.com/ManuGH/getprobe/internal/config"
	"github.com/ManuGH/getprobe/internal/contract"
	"github.com/ManuGH/getprobe/internal/getapp"
	"github.com/ManuGH/getprobe/internal/health"
	"github.com/ManuGH/getprobe/internal/history"
	"github.com/ManuGH/getprobe/internal/jobs"
	"github.com/ManuGH/getprobe/internal/lock"
	"github.com/ManuGH/getprobe/internal/log"
	"github.com/ManuGH/getprobe/internal/probe"
	"github.com/ManuGH/getprobe/internal/schedule"
	"github.com/ManuGH/getprobe/internal/telemetry"
)

// Runtime is the assembled probe process.
type Runtime struct {
	App       *App
	Probe     *jobs.Probe
	Scheduler *schedule.Scheduler
	History   history.Store
	Health    *health.Manager
}

// Options tweak Build for tests.
type Options struct {
	// Clock drives the scheduler; nil means wall clock.
	Clock schedule.Clock
	// TuneProbe adjusts runner options for every run.
	TuneProbe func(*probe.Options)
}

// CurrentSchedule parses the live schedule, falling back to the default
// expression if a reload ever let an invalid one through.
func CurrentSchedule(holder *config.Holder) schedule.Schedule {
	s, err := schedule.Parse(holder.Get().Schedule)
	if err != nil {
		return schedule.MustParse(config.DefaultSchedule)
	}
	return s
}

// Build opens every dependency named by the configuration and returns a
// runtime ready to Run. Resources are released by the manager's shutdown
// hooks, or immediately if Build fails.
func Build(ctx context.Context, holder *config.Holder, version string, opts Options) (rt *Runtime, err error) {
	cfg := holder.Get()
	logger := log.WithComponent("daemon")

	var hooks []namedHook
	defer func() {
		if err == nil {
			return
		}
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		for i := len(hooks) - 1; i >= 0; i-- {
			_ = hooks[i].hook(closeCtx)
		}
	}()

	// Telemetry is best effort; the probe is useful without traces.
	tp, terr := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    "getprobe",
		ServiceVersion: version,
		Environment:    cfg.Environment,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if terr != nil {
		logger.Warn().Err(terr).Str(log.FieldEvent, "telemetry.init_failed").Msg("telemetry initialization failed, continuing without tracing")
	} else {
		hooks = append(hooks, namedHook{"telemetry", tp.Shutdown})
	}

	store, err := history.New(ctx, cfg.History)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	hooks = append(hooks, namedHook{"history", func(context.Context) error { return store.Close() }})

	hm := health.NewManager(version)

	var locker lock.Locker = lock.Noop{}
	if cfg.Lock.Enabled() {
		redisLock, lerr := lock.NewRedis(ctx, lock.RedisConfig{
			Addr:     cfg.Lock.RedisAddr,
			Password: cfg.Lock.RedisPassword,
			DB:       cfg.Lock.RedisDB,
		})
		if lerr != nil {
			return nil, fmt.Errorf("connect run lock: %w", lerr)
		}
		locker = redisLock
		hooks = append(hooks, namedHook{"redis", func(context.Context) error { return redisLock.Close() }})
		hm.RegisterChecker(health.NewPingChecker("redis", redisLock))
	}

	var validator getapp.ResponseValidator
	if cfg.Contract.SpecPath != "" {
		v, verr := contract.Load(ctx, cfg.Contract.SpecPath)
		if verr != nil {
			return nil, fmt.Errorf("load contract: %w", verr)
		}
		validator = v
		logger.Info().
			Str(log.FieldPath, cfg.Contract.SpecPath).
			Int("operations", v.Operations()).
			Bool("strict", cfg.Contract.Strict).
			Msg("response contract validation enabled")
	}

	breaker := getapp.NewBreaker(cfg.Client.BreakerThreshold, cfg.Client.BreakerReset)

	sinks := []jobs.Sink{store}
	if cfg.History.StatusFile != "" {
		sinks = append(sinks, history.Snapshot{Path: cfg.History.StatusFile})
	}

	probeJob := jobs.NewProbe(jobs.Deps{
		Config:    holder.Get,
		Breaker:   breaker,
		Validator: validator,
		Sinks:     sinks,
		Tune:      opts.TuneProbe,
	})

	sched := schedule.New(probeJob.Job(), schedule.Options{
		Schedule:   func() schedule.Schedule { return CurrentSchedule(holder) },
		RunOnStart: cfg.RunOnStart,
		Locker:     locker,
		LockTTL:    cfg.Lock.TTL,
		Clock:      opts.Clock,
	})

	hm.RegisterChecker(health.NewLastRunChecker(store, func() time.Duration {
		return CurrentSchedule(holder).Interval(time.Now())
	}))
	hm.RegisterChecker(health.NewBreakerChecker(breaker))
	hm.RegisterChecker(health.NewPingChecker("history", store))
	if cfg.History.StatusFile != "" {
		hm.RegisterChecker(health.NewFileChecker("status_file", cfg.History.StatusFile))
	}

	router := api.NewRouter(api.Deps{
		Health:       hm,
		History:      store,
		Runs:         sched,
		Schedule:     func() string { return holder.Get().Schedule },
		TriggerLimit: cfg.Server.TriggerLimit,
		Tracing:      cfg.Tracing.Enabled,
	})

	mgr, err := NewManager(cfg.Server, Deps{Logger: log.WithComponent("daemon"), APIHandler: router})
	if err != nil {
		return nil, err
	}
	for _, h := range hooks {
		mgr.RegisterShutdownHook(h.name, h.hook)
	}
	mgr.RegisterShutdownHook("log", func(context.Context) error { return log.Close() })

	logger.Info().
		Str(log.FieldBaseURL, config.MaskURL(cfg.BaseURL)).
		Str(log.FieldSchedule, cfg.Schedule).
		Str("history_backend", cfg.History.Backend).
		Bool("lock", cfg.Lock.Enabled()).
		Strs("checks", hm.Names()).
		Msg("runtime assembled")

	return &Runtime{
		App:       NewApp(logger, mgr, holder, sched),
		Probe:     probeJob,
		Scheduler: sched,
		History:   store,
		Health:    hm,
	}, nil
}

// WaitForShutdown returns a context cancelled on SIGINT or SIGTERM.
func WaitForShutdown(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// IsCleanExit reports whether err from Run is an ordinary shutdown.
func IsCleanExit(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}
