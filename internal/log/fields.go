// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRunID           = "run_id"
	FieldDeviceID        = "device_id"
	FieldImportRequestID = "import_request_id"
	FieldRequestID       = "request_id"
	FieldTraceID         = "trace_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStep      = "step"
	FieldAttempt   = "attempt"

	// HTTP fields
	FieldEndpoint   = "endpoint"
	FieldMethod     = "method"
	FieldStatusCode = "status_code"
	FieldErrorType  = "error_type"
	FieldDurationMS = "duration_ms"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
	FieldURL     = "url"

	// Schedule fields
	FieldSchedule = "schedule"
	FieldNextRun  = "next_run"
)
