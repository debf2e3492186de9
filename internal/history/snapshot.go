// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ManuGH/getprobe/internal/probe"
	"github.com/google/renameio/v2"
)

// WriteSnapshot atomically replaces the file at path with rep as JSON.
func WriteSnapshot(path string, rep probe.Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("history: encode snapshot: %w", err)
	}
	if err := renameio.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("history: write snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads a report written by WriteSnapshot.
func ReadSnapshot(path string) (probe.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return probe.Report{}, fmt.Errorf("history: read snapshot: %w", err)
	}
	var rep probe.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return probe.Report{}, fmt.Errorf("history: decode snapshot: %w", err)
	}
	return rep, nil
}

// Snapshot writes every saved report to a status file.
type Snapshot struct {
	Path string
}

func (s Snapshot) Save(_ context.Context, rep probe.Report) error {
	return WriteSnapshot(s.Path, rep)
}
