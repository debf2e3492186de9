// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_EnablesWAL(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	db, err := Open(ctx, path, DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	mode, err := JournalMode(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
	assert.FileExists(t, path)
}

func TestVerifyIntegrity_Healthy(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ok.db")
	db, err := Open(ctx, path, DefaultConfig())
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY, data TEXT)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	issues, err := VerifyIntegrity(ctx, path, VerifyQuick)
	require.NoError(t, err)
	assert.Nil(t, issues)
}

func TestVerifyIntegrity_DetectsCorruption(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "corruptible.db")

	db, err := Open(ctx, path, DefaultConfig())
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY, data TEXT)")
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		_, err = db.Exec("INSERT INTO t (data) VALUES (printf('%.100c', 'A'))")
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	issues, err := VerifyIntegrity(ctx, path, VerifyQuick)
	require.NoError(t, err)
	require.Nil(t, issues)

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	require.NoError(t, err)
	garbage := make([]byte, 100)
	_, _ = rand.Read(garbage)
	_, err = f.WriteAt(garbage, 4096)
	require.NoError(t, f.Close())
	require.NoError(t, err)

	issues, err = VerifyIntegrity(ctx, path, VerifyFull)
	if err != nil {
		// Severe header damage can surface as an open/query error instead of diagnostic rows.
		return
	}
	assert.NotEmpty(t, issues)
}
