// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(noop.NewTracerProvider())
		_ = tp.Shutdown(t.Context())
	})
	return sr
}

func TestTracing_SpanNamedByRoute(t *testing.T) {
	sr := recordSpans(t)

	r := chi.NewRouter()
	r.Use(Tracing())
	r.Get("/api/v1/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !trace.SpanFromContext(r.Context()).SpanContext().IsValid() {
			t.Error("expected a valid span in the handler context")
		}
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/abc", nil))

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := spans[0].Name(); got != "GET /api/v1/runs/{id}" {
		t.Errorf("span name = %q", got)
	}
	if spans[0].SpanKind() != trace.SpanKindServer {
		t.Errorf("span kind = %v", spans[0].SpanKind())
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("status = %v", spans[0].Status())
	}
}

func TestTracing_StatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   codes.Code
	}{
		{"server error", http.StatusInternalServerError, codes.Error},
		{"client error", http.StatusNotFound, codes.Ok},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := recordSpans(t)
			h := Tracing()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

			if rec.Code != tt.status {
				t.Fatalf("status = %d", rec.Code)
			}
			spans := sr.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			if spans[0].Status().Code != tt.want {
				t.Errorf("span status = %v, want %v", spans[0].Status().Code, tt.want)
			}
			if spans[0].Name() != "GET unmatched" {
				t.Errorf("span name = %q", spans[0].Name())
			}
		})
	}
}
