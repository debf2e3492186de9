// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Probe attributes
	ProbeRunIDKey     = "probe.run_id"
	ProbeDeviceIDKey  = "probe.device_id"
	ProbeStepKey      = "probe.step"
	ProbeTriggerKey   = "probe.trigger"
	ProbeAttemptKey   = "probe.attempt"
	ImportRequestKey  = "getapp.import_request_id"
	ImportStatusKey   = "getapp.import_status"
	DownloadTypeKey   = "getapp.download.file_type"
	DownloadBytesKey  = "getapp.download.bytes"
	DeliveryStatusKey = "getapp.delivery_status"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// RunAttributes identifies a probe run on its root span.
func RunAttributes(runID, deviceID, trigger string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ProbeRunIDKey, runID),
		attribute.String(ProbeDeviceIDKey, deviceID),
		attribute.String(ProbeTriggerKey, trigger),
	}
}

// StepAttributes identifies a scenario step span.
func StepAttributes(step string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(ProbeStepKey, step)}
}

// ErrorAttributes describes a failed operation. Nil errors produce no attributes.
func ErrorAttributes(err error, errorType string) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	attrs := []attribute.KeyValue{attribute.String(ErrorKey, err.Error())}
	if errorType != "" {
		attrs = append(attrs, attribute.String(ErrorTypeKey, errorType))
	}
	return attrs
}
