// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/ManuGH/getprobe/internal/log"
	"github.com/rs/zerolog"
)

// logger returns a request-scoped logger configured with component metadata.
func logger(r *http.Request) zerolog.Logger {
	return log.WithComponentFromContext(r.Context(), "api")
}
