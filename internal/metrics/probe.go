// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scenario outcomes.
const (
	RunResultPassed  = "passed"
	RunResultFailed  = "failed"
	RunResultSkipped = "skipped"
)

var (
	testFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "getapp_test_failures_total",
		Help: "Scenario step failures by step and reason",
	}, []string{"test_name", "failure_reason"})

	downloadFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "getapp_download_failures_total",
		Help: "Failed delivery downloads by file type",
	}, []string{"file_type"})

	importStatusFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "getapp_import_status_failures_total",
		Help: "Import status polls that did not report a terminal status, by status",
	}, []string{"status"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "getapp_probe_runs_total",
		Help: "Probe runs by result",
	}, []string{"result"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "getapp_probe_run_duration_seconds",
		Help:    "Wall time of a complete probe run",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "getapp_probe_step_duration_seconds",
		Help:    "Wall time of individual probe steps",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})

	lastRunSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "getapp_probe_last_run_success",
		Help: "1 if the most recent probe run passed, 0 otherwise",
	})

	lastRunTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "getapp_probe_last_run_timestamp_seconds",
		Help: "Unix time the most recent probe run finished",
	})

	nextRunTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "getapp_probe_next_run_timestamp_seconds",
		Help: "Unix time of the next scheduled probe run",
	})
)

// IncTestFailure counts a failed scenario step.
func IncTestFailure(testName, reason string) {
	testFailures.WithLabelValues(testName, reason).Inc()
}

// IncDownloadFailure counts a failed delivery download.
func IncDownloadFailure(fileType string) {
	downloadFailures.WithLabelValues(fileType).Inc()
}

// IncImportStatus counts a non-terminal or failed import status observation.
func IncImportStatus(status string) {
	importStatusFailures.WithLabelValues(status).Inc()
}

// ObserveStep records the duration of a scenario step.
func ObserveStep(step string, d time.Duration) {
	stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// RecordRun records the outcome of a finished run.
func RecordRun(passed bool, d time.Duration, finished time.Time) {
	result := RunResultFailed
	success := 0.0
	if passed {
		result = RunResultPassed
		success = 1
	}
	runsTotal.WithLabelValues(result).Inc()
	runDuration.Observe(d.Seconds())
	lastRunSuccess.Set(success)
	lastRunTimestamp.Set(float64(finished.Unix()))
}

// IncSkippedRun counts a run that was not executed because another replica held the lock.
func IncSkippedRun() {
	runsTotal.WithLabelValues(RunResultSkipped).Inc()
}

// SetNextRun exports the next scheduled activation.
func SetNextRun(t time.Time) {
	nextRunTimestamp.Set(float64(t.Unix()))
}
