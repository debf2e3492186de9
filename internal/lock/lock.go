// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package lock provides mutual exclusion for probe runs across replicas.
package lock

import (
	"context"
	"time"
)

// Locker acquires a named lease. When ok is true the caller must call
// release once the protected work is done.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Noop always grants the lock. It is used when no lock backend is configured.
type Noop struct{}

func (Noop) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}
