// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/getprobe/internal/config"
	"github.com/ManuGH/getprobe/internal/probe"
	"github.com/ManuGH/getprobe/internal/schedule"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func report(i int, passed bool) probe.Report {
	rep := probe.Report{
		ID:         fmt.Sprintf("run-%02d", i),
		Trigger:    schedule.TriggerSchedule,
		DeviceID:   fmt.Sprintf("getprobe-%04d", 1000+i),
		StartedAt:  base.Add(time.Duration(i) * time.Minute),
		FinishedAt: base.Add(time.Duration(i)*time.Minute + 30*time.Second),
		Passed:     passed,
		Steps: []probe.StepResult{
			{Name: probe.StepLogin, Passed: true, DurationMS: 12},
		},
	}
	if !passed {
		rep.FailedStep = probe.StepDiscovery
		rep.Error = "discovery: api_error"
		rep.Steps = append(rep.Steps, probe.StepResult{Name: probe.StepDiscovery, Reason: "api_error"})
	}
	return rep
}

func ids(reps []probe.Report) []string {
	out := make([]string, len(reps))
	for i, r := range reps {
		out[i] = r.ID
	}
	return out
}

func backends(t *testing.T, limit int) map[string]Store {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	sq, err := OpenSQLite(ctx, filepath.Join(dir, "history.db"), limit)
	require.NoError(t, err)
	bg, err := OpenBadger(filepath.Join(dir, "badger"), limit)
	require.NoError(t, err)

	stores := map[string]Store{
		"memory": NewMemory(limit),
		"sqlite": sq,
		"badger": bg,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStores(t *testing.T) {
	for name, store := range backends(t, 3) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Last(ctx)
			require.ErrorIs(t, err, ErrNotFound)
			empty, err := store.Recent(ctx, 10)
			require.NoError(t, err)
			assert.Empty(t, empty)

			for i := 1; i <= 5; i++ {
				require.NoError(t, store.Save(ctx, report(i, i%2 == 1)))
			}

			recent, err := store.Recent(ctx, 10)
			require.NoError(t, err)
			assert.Equal(t, []string{"run-05", "run-04", "run-03"}, ids(recent), "trimmed to limit, newest first")

			two, err := store.Recent(ctx, 2)
			require.NoError(t, err)
			assert.Equal(t, []string{"run-05", "run-04"}, ids(two))

			last, err := store.Last(ctx)
			require.NoError(t, err)
			if diff := cmp.Diff(report(5, true), last); diff != "" {
				t.Errorf("last report mismatch (-want +got):\n%s", diff)
			}

			failed := recent[1]
			assert.False(t, failed.Passed)
			assert.Equal(t, probe.StepDiscovery, failed.FailedStep)

			assert.NoError(t, store.Ping(ctx))
		})
	}
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := OpenSQLite(ctx, path, 10)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, report(1, true)))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path, 10)
	require.NoError(t, err)
	defer s.Close()
	last, err := s.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-01", last.ID)
}

func TestBadger_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "badger")

	b, err := OpenBadger(path, 10)
	require.NoError(t, err)
	require.NoError(t, b.Save(ctx, report(1, false)))
	require.NoError(t, b.Close())

	b, err = OpenBadger(path, 10)
	require.NoError(t, err)
	defer b.Close()
	last, err := b.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-01", last.ID)
	assert.False(t, last.Passed)
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.HistoryConfig
		want    any
		wantErr bool
	}{
		{"memory", config.HistoryConfig{Backend: config.HistoryMemory}, &Memory{}, false},
		{"default", config.HistoryConfig{}, &Memory{}, false},
		{"sqlite", config.HistoryConfig{Backend: config.HistorySQLite, Path: filepath.Join(dir, "h.db")}, &SQLite{}, false},
		{"badger", config.HistoryConfig{Backend: config.HistoryBadger, Path: filepath.Join(dir, "b")}, &Badger{}, false},
		{"sqlite without path", config.HistoryConfig{Backend: config.HistorySQLite}, nil, true},
		{"unknown", config.HistoryConfig{Backend: "etcd"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(ctx, tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer s.Close()
			assert.IsType(t, tt.want, s)
		})
	}
}

func TestMemory_DefaultLimit(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()
	for i := 0; i < DefaultLimit+5; i++ {
		require.NoError(t, m.Save(ctx, report(i, true)))
	}
	all, err := m.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, DefaultLimit)
}
