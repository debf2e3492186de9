// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors exported by getprobe.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// GetApp API request metrics. Names match the dashboards built for the
// first-generation probe and must stay stable.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "getapp_requests_total",
		Help: "Total number of requests sent to the GetApp API",
	}, []string{"endpoint", "method"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "getapp_request_duration_seconds",
		Help:    "Time spent processing GetApp API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	activeRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "getapp_active_requests",
		Help: "Number of GetApp API requests currently in flight",
	})

	requestSize = promauto.NewSummary(prometheus.SummaryOpts{
		Name: "getapp_request_size_bytes",
		Help: "Size of GetApp API request bodies in bytes",
	})

	failedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "getapp_failed_requests_total",
		Help: "Total number of failed GetApp API requests",
	}, []string{"endpoint", "status_code", "error_type"})

	downloadBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "getapp_download_bytes_total",
		Help: "Bytes downloaded from prepared deliveries",
	}, []string{"file_type"})

	contractViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "getapp_contract_violations_total",
		Help: "Responses that did not match the OpenAPI contract",
	}, []string{"endpoint"})
)

// IncRequest counts a request before it is sent.
func IncRequest(endpoint, method string) {
	requestsTotal.WithLabelValues(endpoint, method).Inc()
}

// ObserveRequestDuration records the wall time of a finished request.
func ObserveRequestDuration(endpoint string, d time.Duration) {
	requestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// RequestStarted marks a request in flight and returns the function that ends it.
func RequestStarted() func() {
	activeRequests.Inc()
	return activeRequests.Dec
}

// ObserveRequestSize records the size of a request body.
func ObserveRequestSize(n int) {
	requestSize.Observe(float64(n))
}

// IncFailedRequest counts a failed request. status is 0 for transport errors.
func IncFailedRequest(endpoint string, status int, errorType string) {
	failedRequests.WithLabelValues(endpoint, strconv.Itoa(status), errorType).Inc()
}

// AddDownloadBytes accumulates downloaded payload bytes per file type.
func AddDownloadBytes(fileType string, n int64) {
	downloadBytes.WithLabelValues(fileType).Add(float64(n))
}

// IncContractViolation counts a response that failed OpenAPI validation.
func IncContractViolation(endpoint string) {
	contractViolations.WithLabelValues(endpoint).Inc()
}
