// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ManuGH/getprobe/internal/history"
	"github.com/ManuGH/getprobe/internal/log"
	"github.com/ManuGH/getprobe/internal/probe"
	"github.com/ManuGH/getprobe/internal/schedule"
	"github.com/ManuGH/getprobe/internal/version"
	"github.com/go-chi/chi/v5"
)

// maxListLimit caps ?limit on GET /api/v1/runs.
const maxListLimit = 1000

type handlers struct {
	deps Deps
}

// RunList is the body of GET /api/v1/runs.
type RunList struct {
	Runs  []probe.Report `json:"runs"`
	Count int            `json:"count"`
}

// TriggerResponse is the body of POST /api/v1/runs.
type TriggerResponse struct {
	Status  string `json:"status"`
	Trigger string `json:"trigger"`
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Running  bool          `json:"running"`
	Schedule string        `json:"schedule,omitempty"`
	NextRun  *time.Time    `json:"nextRun,omitempty"`
	LastRun  *probe.Report `json:"lastRun,omitempty"`
}

func (h *handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		writeJSON(w, http.StatusOK, RunList{Runs: []probe.Report{}})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			writeBadRequest(w, fmt.Sprintf("limit must be an integer between 1 and %d", maxListLimit))
			return
		}
		limit = n
	}

	runs, err := h.deps.History.Recent(r.Context(), limit)
	if err != nil {
		logger(r).Error().Err(err).Str(log.FieldEvent, "history.read_failed").Msg("failed to read run history")
		writeServiceUnavailable(w, err)
		return
	}
	if runs == nil {
		runs = []probe.Report{}
	}
	writeJSON(w, http.StatusOK, RunList{Runs: runs, Count: len(runs)})
}

func (h *handlers) latestRun(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		writeNotFound(w, "no runs recorded")
		return
	}
	rep, err := h.deps.History.Last(r.Context())
	switch {
	case errors.Is(err, history.ErrNotFound):
		writeNotFound(w, "no runs recorded")
	case err != nil:
		writeServiceUnavailable(w, err)
	default:
		writeJSON(w, http.StatusOK, rep)
	}
}

func (h *handlers) getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.deps.History == nil {
		writeNotFound(w, "run "+id+" not found")
		return
	}
	runs, err := h.deps.History.Recent(r.Context(), 0)
	if err != nil {
		writeServiceUnavailable(w, err)
		return
	}
	for _, rep := range runs {
		if rep.ID == id {
			writeJSON(w, http.StatusOK, rep)
			return
		}
	}
	writeNotFound(w, "run "+id+" not found")
}

func (h *handlers) triggerRun(w http.ResponseWriter, r *http.Request) {
	if h.deps.Runs == nil {
		writeServiceUnavailable(w, errors.New("scheduler not running"))
		return
	}
	if !h.deps.Runs.Trigger(schedule.TriggerManual) {
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:  "run_in_progress",
			Detail: "a probe run is already in progress",
		})
		return
	}

	logger(r).Info().
		Str(log.FieldEvent, "run.triggered").
		Str("remote_addr", r.RemoteAddr).
		Msg("manual probe run triggered")
	writeJSON(w, http.StatusAccepted, TriggerResponse{Status: "started", Trigger: schedule.TriggerManual})
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	var resp StatusResponse
	if h.deps.Runs != nil {
		resp.Running = h.deps.Runs.Running()
		if next := h.deps.Runs.NextRun(); !next.IsZero() {
			resp.NextRun = &next
		}
	}
	if h.deps.Schedule != nil {
		resp.Schedule = h.deps.Schedule()
	}
	if h.deps.History != nil {
		if rep, err := h.deps.History.Last(r.Context()); err == nil {
			resp.LastRun = &rep
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}
