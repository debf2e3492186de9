// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package jobs turns the probe scenario into a schedulable job: it builds a
// GetApp client from the live configuration, runs the scenario and hands the
// report to every configured sink.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/getprobe/internal/config"
	"github.com/ManuGH/getprobe/internal/getapp"
	"github.com/ManuGH/getprobe/internal/log"
	"github.com/ManuGH/getprobe/internal/probe"
	"github.com/ManuGH/getprobe/internal/resilience"
	"golang.org/x/time/rate"
)

// Sink receives every finished run report.
type Sink interface {
	Save(ctx context.Context, rep probe.Report) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rep probe.Report) error

// Save calls f.
func (f SinkFunc) Save(ctx context.Context, rep probe.Report) error { return f(ctx, rep) }

// Deps holds everything a probe run needs beyond the configuration.
type Deps struct {
	// Config returns the live configuration; it is read once per run.
	Config func() config.AppConfig
	// Breaker is shared across runs so that an outage trips it once.
	Breaker   *resilience.CircuitBreaker
	Validator getapp.ResponseValidator
	Sinks     []Sink
	// Tune adjusts runner options after they are derived from config.
	Tune func(*probe.Options)
}

// Probe runs the GetApp scenario on demand.
type Probe struct {
	deps Deps
}

// NewProbe creates the probe job.
func NewProbe(deps Deps) *Probe {
	if deps.Breaker == nil {
		deps.Breaker = getapp.NewBreaker(5, 30*time.Second)
	}
	return &Probe{deps: deps}
}

// NewClient builds a GetApp client for cfg with the job's shared breaker
// and validator.
func (p *Probe) NewClient(cfg config.AppConfig) *getapp.Client {
	opts := getapp.Options{
		Timeout:        cfg.Client.Timeout,
		Breaker:        p.deps.Breaker,
		Validator:      p.deps.Validator,
		StrictContract: cfg.Contract.Strict,
	}
	if cfg.Client.RateLimit > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(cfg.Client.RateLimit), 1)
	}
	return getapp.New(cfg.BaseURL, opts)
}

// Run executes one scenario and persists the report. Sink failures are
// logged and never change the report.
func (p *Probe) Run(ctx context.Context, trigger string) probe.Report {
	cfg := p.deps.Config()

	opts := probe.OptionsFromConfig(cfg)
	if p.deps.Tune != nil {
		p.deps.Tune(&opts)
	}

	rep := probe.NewRunner(p.NewClient(cfg), opts).Run(ctx, trigger)
	p.persist(ctx, rep)
	return rep
}

// Job adapts Run to the scheduler's job signature.
func (p *Probe) Job() func(ctx context.Context, trigger string) {
	return func(ctx context.Context, trigger string) { p.Run(ctx, trigger) }
}

func (p *Probe) persist(ctx context.Context, rep probe.Report) {
	logger := log.WithComponentFromContext(log.ContextWithRunID(ctx, rep.ID), "jobs")

	// A canceled run still deserves a record; give sinks a fresh context.
	if errors.Is(ctx.Err(), context.Canceled) {
		ctx = context.WithoutCancel(ctx)
	}

	for _, sink := range p.deps.Sinks {
		if err := sink.Save(ctx, rep); err != nil {
			logger.Error().
				Err(err).
				Str(log.FieldEvent, "report.save_failed").
				Msg("failed to persist run report")
		}
	}
}
