// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package schedule runs the probe on a cron schedule and on demand.
package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/getprobe/internal/lock"
	"github.com/ManuGH/getprobe/internal/log"
	"github.com/ManuGH/getprobe/internal/metrics"
	"github.com/rs/zerolog"
)

// Job runs one scenario. trigger names what started it.
type Job func(ctx context.Context, trigger string)

// Clock interface for mocking time
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// Timer interface for mocking time.Timer
type Timer interface {
	C() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

// RealClock implements Clock using standard time package
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
func (RealClock) NewTimer(d time.Duration) Timer {
	return &RealTimer{t: time.NewTimer(d)}
}

// RealTimer wraps time.Timer
type RealTimer struct {
	t *time.Timer
}

func (r *RealTimer) C() <-chan time.Time        { return r.t.C }
func (r *RealTimer) Stop() bool                 { return r.t.Stop() }
func (r *RealTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }

// Trigger names.
const (
	TriggerSchedule = "schedule"
	TriggerStartup  = "startup"
	TriggerManual   = "manual"
)

// Options configures a Scheduler.
type Options struct {
	// Schedule returns the current schedule. It is consulted before every
	// wait, so a reloaded expression applies from the next activation.
	Schedule   func() Schedule
	RunOnStart bool
	Locker     lock.Locker
	LockKey    string
	LockTTL    time.Duration
	Clock      Clock
}

// Scheduler executes a Job on a cron schedule. Scheduled and manual runs
// never overlap.
type Scheduler struct {
	job     Job
	opts    Options
	clock   Clock
	logger  zerolog.Logger
	running atomic.Bool

	// base is the context manual runs derive from. Set by Run.
	mu      sync.Mutex
	base    context.Context
	stopped bool
	wg      sync.WaitGroup
	next    time.Time
}

// New creates a scheduler for job.
func New(job Job, opts Options) *Scheduler {
	if opts.Locker == nil {
		opts.Locker = lock.Noop{}
	}
	if opts.LockKey == "" {
		opts.LockKey = lock.DefaultKey
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	clock := opts.Clock
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{
		job:    job,
		opts:   opts,
		clock:  clock,
		logger: log.WithComponent("scheduler"),
	}
}

// Run blocks until ctx is cancelled and waits for in-flight runs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.base = ctx
	s.stopped = false
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		s.wg.Wait()
	}()

	sched := s.opts.Schedule()
	s.logger.Info().
		Str(log.FieldEvent, "scheduler.started").
		Str(log.FieldSchedule, sched.String()).
		Bool("run_on_start", s.opts.RunOnStart).
		Msgf("starting scheduler with schedule: %s", sched)

	if s.opts.RunOnStart {
		s.execute(ctx, TriggerStartup)
	}

	for {
		sched = s.opts.Schedule()
		now := s.clock.Now()
		next := sched.Next(now)
		s.setNext(next)
		metrics.SetNextRun(next)
		s.logger.Info().
			Str(log.FieldEvent, "scheduler.waiting").
			Str(log.FieldSchedule, sched.String()).
			Time(log.FieldNextRun, next).
			Msgf("waiting until next scheduled run at %s", next.Format(time.RFC3339))

		timer := s.clock.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info().Str(log.FieldEvent, "scheduler.stopped").Msg("scheduler stopping")
			return nil
		case <-timer.C():
		}
		s.execute(ctx, TriggerSchedule)
	}
}

// Trigger starts a run in the background. It returns false when a run is
// already in progress.
func (s *Scheduler) Trigger(trigger string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	ctx := s.base
	if ctx == nil {
		ctx = context.Background()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, trigger)
	}()
	return true
}

// Running reports whether a run is in progress.
func (s *Scheduler) Running() bool { return s.running.Load() }

// NextRun returns the next scheduled activation, or zero before Run.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

func (s *Scheduler) setNext(t time.Time) {
	s.mu.Lock()
	s.next = t
	s.mu.Unlock()
}

// execute runs synchronously for the scheduler loop. A scheduled activation
// that finds a manual run in progress is skipped.
func (s *Scheduler) execute(ctx context.Context, trigger string) {
	if !s.running.CompareAndSwap(false, true) {
		metrics.IncSkippedRun()
		s.logger.Warn().
			Str(log.FieldEvent, "scheduler.skipped").
			Str("trigger", trigger).
			Msg("previous run still in progress, skipping")
		return
	}
	s.run(ctx, trigger)
}

// run executes the job under the distributed lock. The caller must have set
// running; it is the only guard against overlapping runs in this process.
func (s *Scheduler) run(ctx context.Context, trigger string) {
	defer s.running.Store(false)

	release, ok, err := s.opts.Locker.Acquire(ctx, s.opts.LockKey, s.opts.LockTTL)
	if err != nil {
		metrics.IncSkippedRun()
		s.logger.Error().
			Err(err).
			Str(log.FieldEvent, "scheduler.lock_failed").
			Str("trigger", trigger).
			Msg("could not acquire run lock, skipping")
		return
	}
	if !ok {
		metrics.IncSkippedRun()
		s.logger.Info().
			Str(log.FieldEvent, "scheduler.lock_held").
			Str("trigger", trigger).
			Msg("another replica holds the run lock, skipping")
		return
	}
	defer release()

	s.job(ctx, trigger)
}
