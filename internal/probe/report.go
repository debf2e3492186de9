// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package probe

import (
	"fmt"
	"time"
)

// Report is the outcome of one scenario run.
type Report struct {
	ID              string       `json:"id"`
	Trigger         string       `json:"trigger"`
	DeviceID        string       `json:"deviceId"`
	ImportRequestID string       `json:"importRequestId,omitempty"`
	DownloadURL     string       `json:"downloadUrl,omitempty"`
	StartedAt       time.Time    `json:"startedAt"`
	FinishedAt      time.Time    `json:"finishedAt"`
	Passed          bool         `json:"passed"`
	FailedStep      string       `json:"failedStep,omitempty"`
	Error           string       `json:"error,omitempty"`
	Steps           []StepResult `json:"steps"`
}

// StepResult records a single scenario step. Steps that run more than once
// (status updates) appear once per execution.
type StepResult struct {
	Name       string `json:"name"`
	Passed     bool   `json:"passed"`
	DurationMS int64  `json:"durationMs"`
	Attempts   int    `json:"attempts,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Duration is the wall time of the run.
func (r Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded lists the names of passed steps in execution order.
func (r Report) Succeeded() []string { return r.names(true) }

// Failed lists the names of failed steps in execution order.
func (r Report) Failed() []string { return r.names(false) }

func (r Report) names(passed bool) []string {
	out := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		if s.Passed == passed {
			out = append(out, s.Name)
		}
	}
	return out
}

// Summary is a one-line description for logs and the CLI.
func (r Report) Summary() string {
	if r.Passed {
		return fmt.Sprintf("run %s passed: %d steps in %s", r.ID, len(r.Steps), r.Duration().Round(time.Millisecond))
	}
	return fmt.Sprintf("run %s failed at %s: %s", r.ID, r.FailedStep, r.Error)
}

// StepError is returned by a failed step. Reason is the failure_reason metric label.
type StepError struct {
	Step   string
	Reason string
	Err    error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Step, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Step, e.Reason, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
