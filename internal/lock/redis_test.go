// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	l, err := NewRedis(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return mr, l
}

func TestRedis_AcquireRelease(t *testing.T) {
	mr, l := setupMiniRedis(t)
	ctx := context.Background()

	release, ok, err := l.Acquire(ctx, DefaultKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists(DefaultKey))
	assert.Equal(t, time.Minute, mr.TTL(DefaultKey))

	_, ok, err = l.Acquire(ctx, DefaultKey, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while held")

	release()
	assert.False(t, mr.Exists(DefaultKey))

	release2, ok, err := l.Acquire(ctx, DefaultKey, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	release2()
}

func TestRedis_ReleaseKeepsForeignLease(t *testing.T) {
	mr, l := setupMiniRedis(t)
	ctx := context.Background()

	release, ok, err := l.Acquire(ctx, DefaultKey, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// Lease expires and another replica takes over.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set(DefaultKey, "other-replica"))

	release()
	got, err := mr.Get(DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, "other-replica", got)
}

func TestRedis_ConnectionFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedis(context.Background(), RedisConfig{Addr: addr})
	require.Error(t, err)
}

func TestRedis_AcquireErrorWhenDown(t *testing.T) {
	mr, l := setupMiniRedis(t)
	mr.Close()

	_, ok, err := l.Acquire(context.Background(), DefaultKey, time.Minute)
	require.Error(t, err)
	assert.False(t, ok)
}

func TestNoop(t *testing.T) {
	release, ok, err := Noop{}.Acquire(context.Background(), DefaultKey, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}
