// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package unitapi is the node-local HTTP façade mounted at /unit_api on
// every cluster member, including the leader (the leader is itself a
// node). It owns a small local SQLite database tracking jobs currently
// running on this node and the settings they have published, separate
// from the cluster-wide assignment database in internal/store.
package unitapi

import (
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const jobSchemaDDL = `
CREATE TABLE IF NOT EXISTS pio_job_metadata (
	job_id      TEXT PRIMARY KEY,
	job_name    TEXT NOT NULL,
	job_source  TEXT NOT NULL DEFAULT '',
	experiment  TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	is_running  INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS pio_job_published_settings (
	job_id     TEXT NOT NULL REFERENCES pio_job_metadata(job_id) ON DELETE CASCADE,
	setting    TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (job_id, setting)
);

CREATE INDEX IF NOT EXISTS idx_job_metadata_job_name ON pio_job_metadata(job_name);
CREATE INDEX IF NOT EXISTS idx_job_metadata_experiment ON pio_job_metadata(experiment);
`

// JobStore tracks jobs running on this node and their published
// settings. It is intentionally simpler than internal/store -- a single
// node's job table is small and short-lived, so there is no retry/modify
// discipline beyond what database/sql already gives a single connection.
type JobStore struct {
	db *sqlx.DB
	mu sync.Mutex
}

// JobRecord is one row of pio_job_metadata.
type JobRecord struct {
	JobID      string    `db:"job_id" json:"job_id"`
	JobName    string    `db:"job_name" json:"job_name"`
	JobSource  string    `db:"job_source" json:"job_source"`
	Experiment string    `db:"experiment" json:"experiment"`
	StartedAt  time.Time `db:"started_at" json:"started_at"`
	IsRunning  bool      `db:"is_running" json:"is_running"`
}

func OpenJobStore(path string) (*JobStore, error) {
	db, err := sqlx.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("unitapi: open job store: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(jobSchemaDDL); err != nil {
		return nil, fmt.Errorf("unitapi: migrate job store: %w", err)
	}
	return &JobStore{db: db}, nil
}

// RecordStart inserts or replaces a job's row as running.
func (j *JobStore) RecordStart(jobID, jobName, jobSource, experiment string, startedAt time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err := j.db.Exec(
		`INSERT INTO pio_job_metadata (job_id, job_name, job_source, experiment, started_at, is_running)
		 VALUES (?, ?, ?, ?, ?, 1)
		 ON CONFLICT(job_id) DO UPDATE SET is_running = 1, started_at = excluded.started_at`,
		jobID, jobName, jobSource, experiment, startedAt)
	return err
}

// RecordStop flags every row matching the given filters as no longer
// running. An empty filter value means "don't filter on this field".
func (j *JobStore) RecordStop(jobName, experiment, jobSource, jobID string) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	query := "UPDATE pio_job_metadata SET is_running = 0 WHERE is_running = 1"
	var args []any
	if jobID != "" {
		query += " AND job_id = ?"
		args = append(args, jobID)
	}
	if jobName != "" {
		query += " AND job_name = ?"
		args = append(args, jobName)
	}
	if experiment != "" {
		query += " AND experiment = ?"
		args = append(args, experiment)
	}
	if jobSource != "" {
		query += " AND job_source = ?"
		args = append(args, jobSource)
	}

	res, err := j.db.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Running lists every job currently flagged as running.
func (j *JobStore) Running() ([]JobRecord, error) {
	var records []JobRecord
	err := j.db.Select(&records, `SELECT job_id, job_name, job_source, experiment, started_at, is_running
		FROM pio_job_metadata WHERE is_running = 1 ORDER BY started_at DESC`)
	return records, err
}

// PutSetting upserts one published setting for jobID.
func (j *JobStore) PutSetting(jobID, setting, value string, at time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err := j.db.Exec(
		`INSERT INTO pio_job_published_settings (job_id, setting, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(job_id, setting) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		jobID, setting, value, at)
	return err
}

// Settings reads every published setting for jobs matching jobName, or
// just the single named setting when it is non-empty.
func (j *JobStore) Settings(jobName, setting string) (map[string]string, error) {
	query := `SELECT s.setting, s.value FROM pio_job_published_settings s
		JOIN pio_job_metadata m ON m.job_id = s.job_id
		WHERE m.job_name = ?`
	args := []any{jobName}
	if setting != "" {
		query += " AND s.setting = ?"
		args = append(args, setting)
	}

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (j *JobStore) Close() error {
	return j.db.Close()
}
