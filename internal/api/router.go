// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the probe's ops endpoints: Prometheus metrics, health
// probes and a small JSON API over run history and manual triggers.
package api

import (
	"net/http"
	"time"

	"github.com/ManuGH/getprobe/internal/api/middleware"
	"github.com/ManuGH/getprobe/internal/health"
	"github.com/ManuGH/getprobe/internal/history"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Route paths.
const (
	PathMetrics    = "/metrics"
	PathHealthz    = "/healthz"
	PathReadyz     = "/readyz"
	PathVersion    = "/api/v1/version"
	PathStatus     = "/api/v1/status"
	PathRuns       = "/api/v1/runs"
	PathRunsLatest = "/api/v1/runs/latest"
	PathRun        = "/api/v1/runs/{id}"
)

// Runs starts manual runs and reports scheduler state.
type Runs interface {
	// Trigger starts a run asynchronously; false means one is already in progress.
	Trigger(trigger string) bool
	Running() bool
	NextRun() time.Time
}

// Deps wires the router to the rest of the process.
type Deps struct {
	Health  *health.Manager
	History history.Store
	Runs    Runs
	// Schedule is the current cron expression, reported by /api/v1/status.
	Schedule func() string
	// TriggerLimit bounds POST /api/v1/runs per client IP and minute.
	TriggerLimit int
	// Gatherer defaults to the Prometheus default registry.
	Gatherer prometheus.Gatherer
	Tracing  bool
}

// NewRouter builds the ops HTTP handler.
func NewRouter(d Deps) http.Handler {
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	if d.Health == nil {
		d.Health = health.NewManager("")
	}
	h := &handlers{deps: d}

	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		EnableTracing:         d.Tracing,
		EnableLogging:         true,
		QuietPaths:            []string{PathMetrics, PathHealthz, PathReadyz},
	})

	r.Method(http.MethodGet, PathMetrics, promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	r.Get(PathHealthz, d.Health.ServeHealth)
	r.Get(PathReadyz, d.Health.ServeReady)

	r.Get(PathVersion, h.version)
	r.Get(PathStatus, h.status)
	r.Get(PathRuns, h.listRuns)
	r.Get(PathRunsLatest, h.latestRun)
	r.Get(PathRun, h.getRun)
	r.With(middleware.TriggerRateLimit(d.TriggerLimit)).Post(PathRuns, h.triggerRun)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such endpoint")
	})
	return r
}
