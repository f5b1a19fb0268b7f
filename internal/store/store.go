// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package store is the SQLite-backed relational state for the cluster:
// experiments, workers, assignments, unit labels, logs, config history
// and the time-series aggregate reader. Connections go through sqlx
// over a sqlhooks-wrapped sqlite3 driver, a single open connection
// since SQLite does not multiplex writers usefully.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/pioreactor/pioreactorui-leader/pkg/log"
)

const schemaDDL = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS experiments (
	experiment    TEXT PRIMARY KEY,
	created_at    TIMESTAMP NOT NULL,
	description   TEXT,
	media_used    TEXT,
	organism_used TEXT
);

CREATE TABLE IF NOT EXISTS workers (
	pioreactor_unit TEXT PRIMARY KEY,
	added_at        TIMESTAMP NOT NULL,
	is_active       INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS experiment_worker_assignments (
	pioreactor_unit TEXT PRIMARY KEY REFERENCES workers(pioreactor_unit) ON DELETE CASCADE,
	experiment      TEXT NOT NULL REFERENCES experiments(experiment) ON DELETE CASCADE,
	assigned_at     TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS experiment_worker_assignment_history (
	pioreactor_unit TEXT NOT NULL,
	experiment      TEXT NOT NULL,
	assigned_at     TIMESTAMP NOT NULL,
	unassigned_at   TIMESTAMP
);

CREATE TABLE IF NOT EXISTS pioreactor_unit_labels (
	experiment      TEXT NOT NULL REFERENCES experiments(experiment) ON DELETE CASCADE,
	pioreactor_unit TEXT NOT NULL,
	label           TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL,
	PRIMARY KEY (experiment, pioreactor_unit)
);

CREATE TABLE IF NOT EXISTS logs (
	timestamp       TIMESTAMP NOT NULL,
	level           TEXT NOT NULL,
	pioreactor_unit TEXT NOT NULL,
	message         TEXT NOT NULL,
	task            TEXT NOT NULL,
	experiment      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS config_file_history (
	filename  TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	data      BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_logs_experiment ON logs(experiment);
CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_config_history_filename ON config_file_history(filename);
`

var (
	registerOnce sync.Once
)

// Store wraps one sqlx connection plus a retry/modify discipline: commit
// on success, 0 rows on unique/FK violation (surfaced by callers as
// 409/404), retry on "database is locked", roll back and re-raise on
// anything else.
type Store struct {
	DB            *sqlx.DB
	RetryAttempts int
	RetryBackoff  time.Duration
}

// Open connects to the SQLite file at path and ensures the schema
// exists. A single connection is kept open (SetMaxOpenConns(1)) because
// SQLite serializes writers regardless; concurrent callers contend on
// the driver's own lock, and Modify's retry loop absorbs SQLITE_BUSY.
func Open(path string) (*Store, error) {
	registerOnce.Do(func() {
		sql.Register("sqlite3_with_hooks", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &statementLogger{}))
	})

	db, err := sqlx.Open("sqlite3_with_hooks", fmt.Sprintf("file:%s?_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaDDL); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Store{DB: db, RetryAttempts: 5, RetryBackoff: time.Second}, nil
}

// statementLogger logs every statement at DEBUG via sqlhooks.
type statementLogger struct{}

func (statementLogger) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	log.Debugf("store: %s %v", query, args)
	return ctx, nil
}

func (statementLogger) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	return ctx, nil
}

// ErrConflict signals a unique/foreign-key violation (callers map to 409).
var ErrConflict = fmt.Errorf("store: conflict")

// ErrNotFound signals a delete/update that touched zero rows (callers map to 404).
var ErrNotFound = fmt.Errorf("store: not found")

// Modify executes stmt as a write, retrying on "database is locked"
// up to RetryAttempts times with a fixed backoff, and returns the
// number of affected rows. Unique/FK violations are reported as
// ErrConflict rather than bubbling the raw sqlite3 error, so HTTP
// handlers can do a single type switch.
func (s *Store) Modify(stmt string, args ...any) (int64, error) {
	var lastErr error
	for attempt := 0; attempt < s.RetryAttempts; attempt++ {
		res, err := s.DB.Exec(stmt, args...)
		if err == nil {
			n, _ := res.RowsAffected()
			return n, nil
		}

		if sqliteErr, ok := err.(sqlite3.Error); ok {
			switch sqliteErr.Code {
			case sqlite3.ErrConstraint:
				return 0, ErrConflict
			case sqlite3.ErrBusy, sqlite3.ErrLocked:
				lastErr = err
				time.Sleep(s.RetryBackoff)
				continue
			}
		}
		log.Errorf("store: modify failed: %v", err)
		return 0, err
	}
	return 0, fmt.Errorf("store: gave up after %d attempts: %w", s.RetryAttempts, lastErr)
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.DB.Close()
}
