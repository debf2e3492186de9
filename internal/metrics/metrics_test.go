// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRequestMetricsExposure(t *testing.T) {
	IncRequest("api/login", "POST")
	ObserveRequestDuration("api/login", 120*time.Millisecond)
	ObserveRequestSize(42)
	IncFailedRequest("api/login", 401, "client_error")
	IncFailedRequest("api/map/checkHealth", 0, "timeout")

	body := scrape(t)
	for _, want := range []string{
		`getapp_requests_total{endpoint="api/login",method="POST"}`,
		`getapp_request_duration_seconds_bucket{endpoint="api/login"`,
		`getapp_request_size_bytes_sum`,
		`getapp_failed_requests_total{endpoint="api/login",error_type="client_error",status_code="401"}`,
		`getapp_failed_requests_total{endpoint="api/map/checkHealth",error_type="timeout",status_code="0"}`,
		`getapp_active_requests`,
	} {
		assert.True(t, strings.Contains(body, want), "missing %s", want)
	}
}

func TestRequestStarted(t *testing.T) {
	before := testutil.ToFloat64(activeRequests)
	done := RequestStarted()
	assert.Equal(t, before+1, testutil.ToFloat64(activeRequests))
	done()
	assert.Equal(t, before, testutil.ToFloat64(activeRequests))
}

func TestScenarioCounters(t *testing.T) {
	before := testutil.ToFloat64(testFailures.WithLabelValues("login", "auth_failed"))
	IncTestFailure("login", "auth_failed")
	assert.Equal(t, before+1, testutil.ToFloat64(testFailures.WithLabelValues("login", "auth_failed")))

	IncDownloadFailure("gpkg")
	assert.GreaterOrEqual(t, testutil.ToFloat64(downloadFailures.WithLabelValues("gpkg")), 1.0)

	IncImportStatus("InProgress")
	assert.GreaterOrEqual(t, testutil.ToFloat64(importStatusFailures.WithLabelValues("InProgress")), 1.0)

	AddDownloadBytes("json", 512)
	assert.GreaterOrEqual(t, testutil.ToFloat64(downloadBytes.WithLabelValues("json")), 512.0)

	IncContractViolation("api/login")
	assert.GreaterOrEqual(t, testutil.ToFloat64(contractViolations.WithLabelValues("api/login")), 1.0)
}

func TestRecordRun(t *testing.T) {
	finished := time.Unix(1_700_000_000, 0)

	passedBefore := testutil.ToFloat64(runsTotal.WithLabelValues(RunResultPassed))
	RecordRun(true, 3*time.Second, finished)
	assert.Equal(t, passedBefore+1, testutil.ToFloat64(runsTotal.WithLabelValues(RunResultPassed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(lastRunSuccess))
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(lastRunTimestamp))

	RecordRun(false, time.Second, finished.Add(time.Minute))
	assert.Equal(t, 0.0, testutil.ToFloat64(lastRunSuccess))

	skippedBefore := testutil.ToFloat64(runsTotal.WithLabelValues(RunResultSkipped))
	IncSkippedRun()
	assert.Equal(t, skippedBefore+1, testutil.ToFloat64(runsTotal.WithLabelValues(RunResultSkipped)))

	next := finished.Add(5 * time.Minute)
	SetNextRun(next)
	assert.Equal(t, float64(next.Unix()), testutil.ToFloat64(nextRunTimestamp))
}

func TestObserveStep(t *testing.T) {
	ObserveStep("discovery", 250*time.Millisecond)

	m := &dto.Metric{}
	obs, err := stepDuration.GetMetricWithLabelValues("discovery")
	require.NoError(t, err)
	require.NoError(t, obs.(interface{ Write(*dto.Metric) error }).Write(m))
	assert.GreaterOrEqual(t, m.GetHistogram().GetSampleCount(), uint64(1))
}

func TestSetCircuitBreakerState(t *testing.T) {
	SetCircuitBreakerState("getapp", "open")
	assert.Equal(t, 1.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("getapp", "open")))
	assert.Equal(t, 0.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("getapp", "closed")))

	SetCircuitBreakerState("getapp", "closed")
	assert.Equal(t, 0.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("getapp", "open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("getapp", "closed")))

	before := testutil.ToFloat64(circuitBreakerTrips.WithLabelValues("getapp", "threshold_exceeded"))
	RecordCircuitBreakerTrip("getapp", "threshold_exceeded")
	assert.Equal(t, before+1, testutil.ToFloat64(circuitBreakerTrips.WithLabelValues("getapp", "threshold_exceeded")))
}
