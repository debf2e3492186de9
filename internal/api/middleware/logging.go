// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"time"

	"github.com/ManuGH/getprobe/internal/log"
	"github.com/rs/zerolog"
)

// AccessLog writes one structured line per request. Paths in quiet are
// logged at debug level so that scrapes and probes do not flood the log.
func AccessLog(quiet ...string) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(quiet))
	for _, p := range quiet {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := wrap(w)

			next.ServeHTTP(sw, r)

			logger := log.WithComponentFromContext(r.Context(), "http")
			level := zerolog.InfoLevel
			switch {
			case sw.statusCode >= 500:
				level = zerolog.ErrorLevel
			case sw.statusCode >= 400:
				level = zerolog.WarnLevel
			default:
				if _, ok := skip[r.URL.Path]; ok {
					level = zerolog.DebugLevel
				}
			}

			logger.WithLevel(level).
				Str(log.FieldEvent, "http.request").
				Str(log.FieldMethod, r.Method).
				Str(log.FieldPath, r.URL.Path).
				Str("route", routePattern(r)).
				Int(log.FieldStatusCode, sw.statusCode).
				Int("bytes", sw.bytesWritten).
				Int64(log.FieldDurationMS, time.Since(start).Milliseconds()).
				Str("remote_addr", r.RemoteAddr).
				Msg("request handled")
		})
	}
}
