// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ManuGH/getprobe/internal/persistence/sqlite"
	"github.com/ManuGH/getprobe/internal/probe"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	run_trigger TEXT NOT NULL,
	device_id   TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	failed_step TEXT NOT NULL DEFAULT '',
	report      BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON runs(finished_at);
`

// SQLite stores reports in a WAL-mode SQLite database.
type SQLite struct {
	db    *sql.DB
	limit int
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(ctx context.Context, path string, limit int) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("history: sqlite backend requires a path")
	}
	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &SQLite{db: db, limit: clampLimit(limit)}, nil
}

func (s *SQLite) Save(ctx context.Context, rep probe.Report) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("history: encode report: %w", err)
	}
	passed := 0
	if rep.Passed {
		passed = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (id, run_trigger, device_id, started_at, finished_at, passed, failed_step, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.Trigger, rep.DeviceID, rep.StartedAt.UnixMilli(), rep.FinishedAt.UnixMilli(),
		passed, rep.FailedStep, data,
	); err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM runs WHERE seq NOT IN (SELECT seq FROM runs ORDER BY seq DESC LIMIT ?)`,
		s.limit,
	); err != nil {
		return fmt.Errorf("history: trim: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) Recent(ctx context.Context, n int) ([]probe.Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT report FROM runs ORDER BY seq DESC LIMIT ?`, clampN(n, s.limit))
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []probe.Report{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		var rep probe.Report
		if err := json.Unmarshal(data, &rep); err != nil {
			return nil, fmt.Errorf("history: decode report: %w", err)
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func (s *SQLite) Last(ctx context.Context) (probe.Report, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT report FROM runs ORDER BY seq DESC LIMIT 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return probe.Report{}, ErrNotFound
	}
	if err != nil {
		return probe.Report{}, fmt.Errorf("history: query last: %w", err)
	}
	var rep probe.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return probe.Report{}, fmt.Errorf("history: decode report: %w", err)
	}
	return rep, nil
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() error { return s.db.Close() }
