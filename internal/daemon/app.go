// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/getprobe/internal/config"
	"github.com/ManuGH/getprobe/internal/log"
	"github.com/rs/zerolog"
)

// Scheduler is the part of schedule.Scheduler the app drives.
type Scheduler interface {
	Run(ctx context.Context) error
}

// App owns the long-lived runtime lifecycle (config watcher, reload signal,
// scheduler) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.Holder
	scheduler    Scheduler
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.Holder, scheduler Scheduler) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		scheduler:    scheduler,
		reloadSignal: syscall.SIGHUP,
	}
}

// Manager exposes the server manager, mainly for its bound address.
func (a *App) Manager() Manager { return a.manager }

// Run starts all owned background subsystems and blocks until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}
	if a.scheduler == nil {
		return ErrMissingScheduler
	}

	g, ctx := errgroup.WithContext(ctx)

	// Config watcher is best-effort: startup should not fail if watcher cannot be started.
	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str(log.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
		}
	}

	// SIGHUP trigger for manual reload.
	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str(log.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.cfgHolder.Reload(context.Background()); err != nil {
						a.logger.Warn().
							Err(err).
							Str(log.FieldEvent, "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	// Reloaded settings that are not read per run are applied here. The
	// schedule itself is consulted by the scheduler before every wait.
	if a.cfgHolder != nil {
		reloads := make(chan config.AppConfig, 1)
		a.cfgHolder.RegisterListener(reloads)
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-reloads:
					a.applyReload(cfg)
				}
			}
		})
	}

	// The scheduler stops before any other hook runs so that an in-flight
	// run can still persist its report.
	schedCtx, stopScheduler := context.WithCancel(ctx)
	schedDone := make(chan struct{})
	a.manager.RegisterShutdownHook("scheduler", func(hookCtx context.Context) error {
		stopScheduler()
		select {
		case <-schedDone:
			return nil
		case <-hookCtx.Done():
			return hookCtx.Err()
		}
	})

	g.Go(func() error {
		defer close(schedDone)
		return a.scheduler.Run(schedCtx)
	})

	// Main server lifecycle.
	g.Go(func() error {
		defer stopScheduler()
		return a.manager.Start(ctx)
	})

	return g.Wait()
}

func (a *App) applyReload(cfg config.AppConfig) {
	if err := log.SetLevel(cfg.Logging.Level); err != nil {
		a.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "config.log_level_invalid").
			Str("level", cfg.Logging.Level).
			Msg("ignoring invalid log level from reloaded config")
		return
	}
	a.logger.Info().
		Str(log.FieldEvent, "config.applied").
		Str("log_level", cfg.Logging.Level).
		Msg("applied reloaded configuration")
}
