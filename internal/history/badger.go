// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ManuGH/getprobe/internal/probe"
	"github.com/dgraph-io/badger/v4"
)

// Keys are "run:<finished unix nanos, zero padded>:<id>" so that byte order
// equals run order.
const runPrefix = "run:"

// Badger stores reports in an embedded Badger database.
type Badger struct {
	db    *badger.DB
	limit int
}

// OpenBadger opens or creates the database directory at path.
func OpenBadger(path string, limit int) (*Badger, error) {
	if path == "" {
		return nil, errors.New("history: badger backend requires a path")
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("history: open badger: %w", err)
	}
	return &Badger{db: db, limit: clampLimit(limit)}, nil
}

func runKey(rep probe.Report) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", runPrefix, rep.FinishedAt.UnixNano(), rep.ID))
}

func (b *Badger) Save(_ context.Context, rep probe.Report) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("history: encode report: %w", err)
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(runKey(rep), data)
	}); err != nil {
		return fmt.Errorf("history: save: %w", err)
	}
	return b.trim()
}

// trim deletes everything older than the newest limit reports.
func (b *Badger) trim() error {
	return b.db.Update(func(txn *badger.Txn) error {
		var stale [][]byte
		b.scan(txn, false, func(i int, item *badger.Item) bool {
			if i >= b.limit {
				stale = append(stale, item.KeyCopy(nil))
			}
			return true
		})
		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// scan walks run keys newest first until fn returns false.
func (b *Badger) scan(txn *badger.Txn, values bool, fn func(i int, item *badger.Item) bool) {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.PrefetchValues = values
	opts.Prefix = []byte(runPrefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	i := 0
	for it.Seek([]byte(runPrefix + "\xff")); it.ValidForPrefix([]byte(runPrefix)); it.Next() {
		if !fn(i, it.Item()) {
			return
		}
		i++
	}
}

func (b *Badger) Recent(_ context.Context, n int) ([]probe.Report, error) {
	n = clampN(n, b.limit)
	out := []probe.Report{}
	var decodeErr error
	err := b.db.View(func(txn *badger.Txn) error {
		b.scan(txn, true, func(i int, item *badger.Item) bool {
			if i >= n {
				return false
			}
			var rep probe.Report
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rep)
			}); err != nil {
				decodeErr = err
				return false
			}
			out = append(out, rep)
			return true
		})
		return decodeErr
	})
	if err != nil {
		return nil, fmt.Errorf("history: read: %w", err)
	}
	return out, nil
}

func (b *Badger) Last(ctx context.Context) (probe.Report, error) {
	reps, err := b.Recent(ctx, 1)
	if err != nil {
		return probe.Report{}, err
	}
	if len(reps) == 0 {
		return probe.Report{}, ErrNotFound
	}
	return reps[0], nil
}

func (b *Badger) Ping(context.Context) error {
	if b.db.IsClosed() {
		return errors.New("history: badger database is closed")
	}
	return nil
}

func (b *Badger) Close() error { return b.db.Close() }
