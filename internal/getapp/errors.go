// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package getapp

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/ManuGH/getprobe/internal/resilience"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrMissingCredentials = errors.New("getapp: missing credentials")
	ErrUnauthorized       = errors.New("getapp: unauthorized")
	ErrNotFound           = errors.New("getapp: resource not found")
	ErrClientError        = errors.New("getapp: request rejected (4xx)")
	ErrServerError        = errors.New("getapp: internal error (5xx)")
	ErrTimeout            = errors.New("getapp: request timed out")
	ErrUnavailable        = errors.New("getapp: host unreachable or transport failure")
	ErrBadResponse        = errors.New("getapp: invalid response format or malformed data")
)

// Error type labels used in getapp_failed_requests_total.
const (
	ErrorTypeClient     = "client_error"
	ErrorTypeServer     = "server_error"
	ErrorTypeTimeout    = "timeout"
	ErrorTypeCanceled   = "canceled"
	ErrorTypeConnection = "connection_error"
	ErrorTypeCircuit    = "circuit_open"
	ErrorTypeRateLimit  = "rate_limited"
	ErrorTypeRequest    = "request_error"
	ErrorTypeDecode     = "decode_error"
	ErrorTypeContract   = "contract_violation"
)

// APIError is a rich error type that wraps the sentinel errors with context.
type APIError struct {
	Sentinel error
	Op       string
	Endpoint string
	Status   int    // 0 when no response was received
	Type     string // metric error_type classification
	Body     string
	Err      error // Nested lower-level error (e.g. net.Error)
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("getapp: %s: %v", e.Op, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

// ErrorType returns the metric classification of err, or "" for nil.
func ErrorType(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Type != "" {
		return apiErr.Type
	}
	return ErrorTypeRequest
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func statusError(op, endpoint string, status int, body string) *APIError {
	e := &APIError{Op: op, Endpoint: endpoint, Status: status, Body: body, Type: ErrorTypeClient}
	switch {
	case status == 401 || status == 403:
		e.Sentinel = ErrUnauthorized
	case status == 404:
		e.Sentinel = ErrNotFound
	case status >= 500:
		e.Sentinel = ErrServerError
		e.Type = ErrorTypeServer
	default:
		e.Sentinel = ErrClientError
	}
	return e
}

// transportError classifies a failure that produced no HTTP response.
func transportError(op, endpoint string, err error) *APIError {
	e := &APIError{Op: op, Endpoint: endpoint, Err: err}
	var netErr net.Error
	var opErr *net.OpError
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		e.Sentinel, e.Type = ErrUnavailable, ErrorTypeCircuit
	case errors.Is(err, errRateLimited):
		e.Sentinel, e.Type = ErrUnavailable, ErrorTypeRateLimit
	case errors.Is(err, context.Canceled):
		e.Sentinel, e.Type = ErrUnavailable, ErrorTypeCanceled
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		e.Sentinel, e.Type = ErrTimeout, ErrorTypeTimeout
	case errors.As(err, &opErr):
		e.Sentinel, e.Type = ErrUnavailable, ErrorTypeConnection
	default:
		e.Sentinel, e.Type = ErrUnavailable, ErrorTypeRequest
	}
	return e
}

// tripsBreaker reports whether err indicates an unhealthy upstream.
func tripsBreaker(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrServerError) || errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout)
}
