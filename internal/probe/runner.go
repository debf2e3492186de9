// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package probe runs the synthetic GetApp delivery scenario.
package probe

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime/debug"
	"time"

	"github.com/ManuGH/getprobe/internal/config"
	"github.com/ManuGH/getprobe/internal/getapp"
	"github.com/ManuGH/getprobe/internal/log"
	"github.com/ManuGH/getprobe/internal/metrics"
	"github.com/ManuGH/getprobe/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TriggerCLI marks a run started by the once command. Scheduler triggers
// live in package schedule.
const TriggerCLI = "cli"

// API is the subset of the GetApp client the scenario drives.
type API interface {
	Login(ctx context.Context, username, password string) error
	Discover(ctx context.Context, req getapp.DiscoveryRequest) error
	CreateImport(ctx context.Context, deviceID string, props getapp.MapProperties) (string, error)
	ImportStatus(ctx context.Context, importRequestID string) (getapp.ImportStatusResponse, error)
	UpdateDownloadStatus(ctx context.Context, req getapp.DownloadStatusRequest) error
	PrepareDelivery(ctx context.Context, catalogID, deviceID string) error
	PreparedDelivery(ctx context.Context, catalogID string) (getapp.PreparedDeliveryResponse, error)
	Download(ctx context.Context, rawURL, fileType string) (int64, error)
	UpdateInventory(ctx context.Context, deviceID, catalogID string) error
	CheckHealth(ctx context.Context, endpoint string) error
}

// Clock abstracts time for deterministic testing.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// RealClock uses system time.
type RealClock struct{}

func (RealClock) Now() time.Time                         { return time.Now() }
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Options tunes a Runner.
type Options struct {
	Username string
	Password string

	PollAttempts         int
	PollInterval         time.Duration
	StatusUpdates        int
	StatusUpdateInterval time.Duration

	DevicePrefix string
	ProductName  string
	UniqueMaps   int

	Clock  Clock
	Intn   func(int) int
	Tracer trace.Tracer
}

// OptionsFromConfig maps the application config onto runner options.
func OptionsFromConfig(cfg config.AppConfig) Options {
	return Options{
		Username:             cfg.Credentials.Username,
		Password:             cfg.Credentials.Password,
		PollAttempts:         cfg.Probe.PollAttempts,
		PollInterval:         cfg.Probe.PollInterval,
		StatusUpdates:        cfg.Probe.StatusUpdates,
		StatusUpdateInterval: cfg.Probe.StatusUpdateInterval,
		DevicePrefix:         cfg.Probe.DevicePrefix,
	}
}

// Runner executes scenarios against one API client.
type Runner struct {
	api    API
	opts   Options
	clock  Clock
	intn   func(int) int
	tracer trace.Tracer
}

// NewRunner creates a runner. Unset options fall back to the historic
// scenario parameters.
func NewRunner(api API, opts Options) *Runner {
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = 30
	}
	if opts.StatusUpdates < 0 {
		opts.StatusUpdates = 0
	}
	if opts.DevicePrefix == "" {
		opts.DevicePrefix = config.DefaultDevicePrefix
	}
	if opts.ProductName == "" {
		opts.ProductName = opts.DevicePrefix + "-test"
	}
	if opts.UniqueMaps <= 0 {
		opts.UniqueMaps = 1
	}
	r := &Runner{api: api, opts: opts, clock: opts.Clock, intn: opts.Intn, tracer: opts.Tracer}
	if r.clock == nil {
		r.clock = RealClock{}
	}
	if r.intn == nil {
		r.intn = rand.IntN
	}
	if r.tracer == nil {
		r.tracer = telemetry.Tracer()
	}
	return r
}

// state is the mutable context of one run.
type state struct {
	rep      *Report
	deviceID string
	importID string
	bboxes   []string
}

// Run executes one scenario with a fresh device id. It never panics; a
// panic inside a step is recorded as an unexpected error.
func (r *Runner) Run(ctx context.Context, trigger string) (rep Report) {
	rep = Report{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		DeviceID:  DeviceID(r.opts.DevicePrefix, r.intn),
		StartedAt: r.clock.Now(),
		Steps:     []StepResult{},
	}
	ctx = log.ContextWithRunID(ctx, rep.ID)
	ctx = log.ContextWithDeviceID(ctx, rep.DeviceID)
	ctx, span := r.tracer.Start(ctx, "probe.run",
		trace.WithAttributes(telemetry.RunAttributes(rep.ID, rep.DeviceID, trigger)...))
	logger := log.WithComponentFromContext(ctx, "probe")

	logger.Info().
		Str(log.FieldEvent, "probe.run_started").
		Str("trigger", trigger).
		Msgf("starting test run with device ID: %s", rep.DeviceID)

	st := &state{
		rep:      &rep,
		deviceID: rep.DeviceID,
		bboxes:   BoundingBoxes(r.opts.UniqueMaps, r.intn),
	}

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("panic: %v", p)
			metrics.IncTestFailure(StepRunFullTest, ReasonUnexpectedError)
			rep.Passed = false
			rep.FailedStep = StepRunFullTest
			rep.Error = err.Error()
			logger.Error().
				Err(err).
				Str(log.FieldEvent, "probe.run_panic").
				Str("stack", string(debug.Stack())).
				Msg("error during test run")
		}
		rep.FinishedAt = r.clock.Now()

		if ctx.Err() == nil {
			metrics.RecordRun(rep.Passed, rep.Duration(), rep.FinishedAt)
		}
		if rep.Passed {
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, rep.Error)
		}
		span.End()

		evt := logger.Info()
		if !rep.Passed {
			evt = logger.Error()
		}
		evt.
			Str(log.FieldEvent, "probe.run_finished").
			Bool("passed", rep.Passed).
			Str("failed_step", rep.FailedStep).
			Strs("succeeded", rep.Succeeded()).
			Strs("failed", rep.Failed()).
			Int64(log.FieldDurationMS, rep.Duration().Milliseconds()).
			Msg(rep.Summary())
	}()

	if err := r.scenario(ctx, st); err != nil {
		var se *StepError
		switch {
		case errors.As(err, &se):
			rep.FailedStep = se.Step
		case errors.Is(err, context.Canceled):
			rep.FailedStep = StepRunFullTest
		default:
			metrics.IncTestFailure(StepRunFullTest, ReasonUnexpectedError)
			rep.FailedStep = StepRunFullTest
		}
		rep.Error = err.Error()
		return rep
	}
	rep.Passed = true
	return rep
}

// sleep waits for d or until ctx is done.
func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.clock.After(d):
		return nil
	}
}

// step runs fn as a named step and appends its result to the report.
func (r *Runner) step(ctx context.Context, st *state, name string, fn func(context.Context, *StepResult) error) error {
	ctx = log.ContextWithStep(ctx, name)
	ctx, span := r.tracer.Start(ctx, "probe."+name, trace.WithAttributes(telemetry.StepAttributes(name)...))
	defer span.End()

	idx := len(st.rep.Steps)
	st.rep.Steps = append(st.rep.Steps, StepResult{Name: name})

	start := r.clock.Now()
	res := StepResult{Name: name}
	err := fn(ctx, &res)
	d := r.clock.Now().Sub(start)
	res.DurationMS = d.Milliseconds()
	metrics.ObserveStep(name, d)

	logger := log.WithComponentFromContext(ctx, "probe")
	if err != nil {
		res.Error = err.Error()
		var se *StepError
		if errors.As(err, &se) && res.Reason == "" {
			res.Reason = se.Reason
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "probe.step_failed").
			Str("reason", res.Reason).
			Int64(log.FieldDurationMS, res.DurationMS).
			Msgf("%s failed", name)
	} else {
		res.Passed = true
		logger.Info().
			Str(log.FieldEvent, "probe.step_passed").
			Int64(log.FieldDurationMS, res.DurationMS).
			Msgf("%s passed", name)
	}
	st.rep.Steps[idx] = res
	return err
}

// fail records a step failure metric and returns the matching StepError.
// Cancellation is not counted as a failure of the target API.
func fail(step, reason string, err error) error {
	if !errors.Is(err, context.Canceled) {
		metrics.IncTestFailure(step, reason)
	}
	return &StepError{Step: step, Reason: reason, Err: err}
}
