// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package log provides structured logging utilities.
package log

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	runIDKey     ctxKey = "run_id"
	deviceIDKey  ctxKey = "device_id"
	stepKey      ctxKey = "step"
)

func withValue(ctx context.Context, key ctxKey, v string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func value(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// ContextWithRequestID stores the provided request ID in the context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

// ContextWithRunID stores the probe run ID in the context.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return withValue(ctx, runIDKey, id)
}

// ContextWithDeviceID stores the synthetic device ID in the context.
func ContextWithDeviceID(ctx context.Context, id string) context.Context {
	return withValue(ctx, deviceIDKey, id)
}

// ContextWithStep stores the current scenario step in the context.
func ContextWithStep(ctx context.Context, step string) context.Context {
	return withValue(ctx, stepKey, step)
}

// RequestIDFromContext extracts the request ID from context if present.
func RequestIDFromContext(ctx context.Context) string { return value(ctx, requestIDKey) }

// RunIDFromContext extracts the run ID from context if present.
func RunIDFromContext(ctx context.Context) string { return value(ctx, runIDKey) }

// DeviceIDFromContext extracts the device ID from context if present.
func DeviceIDFromContext(ctx context.Context) string { return value(ctx, deviceIDKey) }

// StepFromContext extracts the step name from context if present.
func StepFromContext(ctx context.Context) string { return value(ctx, stepKey) }

// WithContext enriches the supplied logger with correlation fields from context.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return logger
	}
	builder := logger.With()
	added := false
	for _, f := range []struct {
		field string
		value string
	}{
		{FieldRequestID, RequestIDFromContext(ctx)},
		{FieldRunID, RunIDFromContext(ctx)},
		{FieldDeviceID, DeviceIDFromContext(ctx)},
		{FieldStep, StepFromContext(ctx)},
	} {
		if f.value != "" {
			builder = builder.Str(f.field, f.value)
			added = true
		}
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		builder = builder.Str(FieldTraceID, sc.TraceID().String())
		added = true
	}
	if !added {
		return logger
	}
	return builder.Logger()
}

// WithComponentFromContext returns a logger that is annotated with the component
// name and enriched with correlation fields from ctx.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}

// FromContext returns a logger from the context, or the base logger if not present.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		l := Base()
		return &l
	}
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		b := WithContext(ctx, Base())
		return &b
	}
	return l
}
