// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package history

import (
	"context"
	"sync"

	"github.com/ManuGH/getprobe/internal/probe"
)

// Memory is a bounded in-process store. Reports are lost on restart.
type Memory struct {
	mu    sync.RWMutex
	limit int
	runs  []probe.Report // oldest first
}

// NewMemory creates a store holding at most limit reports.
func NewMemory(limit int) *Memory {
	limit = clampLimit(limit)
	return &Memory{limit: limit, runs: make([]probe.Report, 0, limit)}
}

func (m *Memory) Save(_ context.Context, rep probe.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.runs) == m.limit {
		copy(m.runs, m.runs[1:])
		m.runs = m.runs[:len(m.runs)-1]
	}
	m.runs = append(m.runs, rep)
	return nil
}

func (m *Memory) Recent(_ context.Context, n int) ([]probe.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n = clampN(n, m.limit)
	if n > len(m.runs) {
		n = len(m.runs)
	}
	out := make([]probe.Report, 0, n)
	for i := len(m.runs) - 1; i >= len(m.runs)-n; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

func (m *Memory) Last(_ context.Context) (probe.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.runs) == 0 {
		return probe.Report{}, ErrNotFound
	}
	return m.runs[len(m.runs)-1], nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
