// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_WriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	rep := report(7, false)

	require.NoError(t, Snapshot{Path: path}.Save(context.Background(), rep))

	got, err := ReadSnapshot(path)
	require.NoError(t, err)
	if diff := cmp.Diff(rep, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	// Overwrite keeps a single, complete file.
	require.NoError(t, WriteSnapshot(path, report(8, true)))
	got, err = ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, "run-08", got.ID)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestReadSnapshot_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadSnapshot(filepath.Join(dir, "missing.json"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = ReadSnapshot(bad)
	require.Error(t, err)
}
