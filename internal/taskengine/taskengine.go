// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package taskengine is the durable, priority-ordered task queue backing
// every long-running shell/administrative operation the leader accepts:
// self-updates, plugin install/uninstall, dataset exports, worker
// enrolment, config sync, filesystem writes, and cluster fan-outs. Tasks
// are persisted to their own SQLite file so the queue survives a leader
// restart; a pool of consumer goroutines pulls ready tasks in priority
// order (FIFO within a priority) and enforces per-lock-name mutual
// exclusion so, for example, two self-updates never run concurrently.
package taskengine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pioreactor/pioreactorui-leader/internal/domain"
	"github.com/pioreactor/pioreactorui-leader/pkg/log"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	args        BLOB NOT NULL,
	lock_name   TEXT NOT NULL DEFAULT '',
	priority    INTEGER NOT NULL DEFAULT 0,
	state       TEXT NOT NULL,
	result      BLOB,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state);
CREATE INDEX IF NOT EXISTS idx_tasks_lock_name ON tasks(lock_name);
`

// Handler runs one task's args and returns a JSON-marshalable result or
// an error. Handlers run on one of the consumer goroutines (or, for
// pio_run-style detached jobs, spawn their own goroutine and return
// immediately -- the task is marked complete once the spawn succeeds,
// not once the spawned job finishes).
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Engine is the task queue: a SQLite-backed table, a registry of kind ->
// Handler, and a pool of consumer goroutines enforcing named-lock
// exclusion.
type Engine struct {
	db       *sqlx.DB
	handlers map[string]Handler
	workers  int

	mu          sync.Mutex
	runningLock map[string]bool // lock_name -> currently running

	cond   *sync.Cond
	stopCh chan struct{}
	wg     sync.WaitGroup

	scheduler gocron.Scheduler
}

// Open opens (creating if needed) the task-queue database at path and
// sets how many consumer goroutines Start launches to pull from the
// priority queue. workers <= 0 defaults to 4 consumer slots.
func Open(path string, workers int) (*Engine, error) {
	if workers <= 0 {
		workers = 4
	}
	db, err := sqlx.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, err
	}

	e := &Engine{
		db:          db,
		handlers:    make(map[string]Handler),
		workers:     workers,
		runningLock: make(map[string]bool),
		stopCh:      make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)

	log.Infof("taskengine: opened queue db at %s, consumer ready", path)
	return e, nil
}

// Register binds kind to handler. Call before Start.
func (e *Engine) Register(kind string, handler Handler) {
	e.handlers[kind] = handler
}

// Start launches the consumer goroutines plus a periodic GC sweep of
// terminal tasks older than retention, via gocron.
func (e *Engine) Start(retention time.Duration) error {
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.consume()
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("taskengine: could not create gocron scheduler: %w", err)
	}
	e.scheduler = s
	if _, err := s.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() { e.gc(retention) }),
	); err != nil {
		return fmt.Errorf("taskengine: could not register GC job: %w", err)
	}
	s.Start()
	return nil
}

// Shutdown stops the consumer goroutines and the GC scheduler, waiting
// for handlers already running to finish. Pending tasks are untouched
// and are picked up the next time Start runs against the same database.
func (e *Engine) Shutdown() {
	close(e.stopCh)
	e.mu.Lock()
	e.cond.Broadcast()
	e.mu.Unlock()
	e.wg.Wait()
	if e.scheduler != nil {
		_ = e.scheduler.Shutdown()
	}
}

// Enqueue inserts a new task in the pending state and wakes a consumer.
func (e *Engine) Enqueue(kind string, args any, lockName string, priority int) (string, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err = e.db.Exec(
		`INSERT INTO tasks (id, kind, args, lock_name, priority, state, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, kind, payload, lockName, priority, string(domain.TaskPending), now, now,
	)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	e.cond.Broadcast()
	e.mu.Unlock()
	return id, nil
}

// Get returns the current record for id.
func (e *Engine) Get(id string) (domain.TaskRecord, error) {
	var t domain.TaskRecord
	var state string
	row := e.db.QueryRow(`SELECT id, kind, args, lock_name, priority, state, result, error, created_at, updated_at FROM tasks WHERE id = ?`, id)
	var result sql.NullString
	if err := row.Scan(&t.ID, &t.Kind, &t.Args, &t.LockName, &t.Priority, &state, &result, &t.Error, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return t, err
	}
	t.State = domain.TaskState(state)
	if result.Valid {
		t.Result = []byte(result.String)
	}
	return t, nil
}

// Wait polls Get until the task reaches a terminal state or timeout
// elapses, used by LeaderAPI endpoints that synchronously await
// completion (exports, config sync, worker enrolment, plugin listing).
func (e *Engine) Wait(ctx context.Context, id string, timeout time.Duration) (domain.TaskRecord, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		t, err := e.Get(id)
		if err != nil {
			return t, err
		}
		switch t.State {
		case domain.TaskComplete, domain.TaskFailed:
			return t, nil
		}
		if time.Now().After(deadline) {
			return t, fmt.Errorf("taskengine: wait for %s timed out", id)
		}
		select {
		case <-ctx.Done():
			return t, ctx.Err()
		case <-ticker.C:
		}
	}
}

// consume is the per-goroutine loop: pick a ready task not blocked by a
// held lock, run its handler, persist the result, release the lock.
func (e *Engine) consume() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		default:
		}

		task, ok := e.claimNext()
		if !ok {
			e.mu.Lock()
			select {
			case <-e.stopCh:
				e.mu.Unlock()
				return
			default:
			}
			waitCh := make(chan struct{})
			go func() {
				e.mu.Lock()
				e.cond.Wait()
				e.mu.Unlock()
				close(waitCh)
			}()
			e.mu.Unlock()
			select {
			case <-waitCh:
			case <-time.After(2 * time.Second):
			}
			continue
		}

		e.run(task)
	}
}

// claimNext picks the highest-priority, oldest pending task whose lock
// (if any) is not currently held, marks it running, and returns it.
func (e *Engine) claimNext() (domain.TaskRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rows, err := e.db.Queryx(
		`SELECT id, kind, args, lock_name, priority, created_at FROM tasks WHERE state = ? ORDER BY priority DESC, created_at ASC`,
		string(domain.TaskPending),
	)
	if err != nil {
		log.Errorf("taskengine: claimNext query failed: %v", err)
		return domain.TaskRecord{}, false
	}
	defer rows.Close()

	var candidate domain.TaskRecord
	found := false
	for rows.Next() {
		var t domain.TaskRecord
		if err := rows.Scan(&t.ID, &t.Kind, &t.Args, &t.LockName, &t.Priority, &t.CreatedAt); err != nil {
			continue
		}
		if t.LockName != "" && e.runningLock[t.LockName] {
			continue
		}
		candidate = t
		found = true
		break
	}
	if !found {
		return domain.TaskRecord{}, false
	}

	now := time.Now().UTC()
	res, err := e.db.Exec(`UPDATE tasks SET state = ?, updated_at = ? WHERE id = ? AND state = ?`,
		string(domain.TaskRunning), now, candidate.ID, string(domain.TaskPending))
	if err != nil {
		return domain.TaskRecord{}, false
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.TaskRecord{}, false
	}
	if candidate.LockName != "" {
		e.runningLock[candidate.LockName] = true
	}
	return candidate, true
}

// run executes the claimed task's handler and persists the outcome.
func (e *Engine) run(task domain.TaskRecord) {
	defer func() {
		if task.LockName != "" {
			e.mu.Lock()
			delete(e.runningLock, task.LockName)
			e.cond.Broadcast()
			e.mu.Unlock()
		}
	}()

	handler, ok := e.handlers[task.Kind]
	if !ok {
		e.finish(task.ID, domain.TaskFailed, nil, fmt.Errorf("taskengine: no handler registered for kind %q", task.Kind))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	result, err := handler(ctx, task.Args)
	if err != nil {
		e.finish(task.ID, domain.TaskFailed, nil, err)
		return
	}
	e.finish(task.ID, domain.TaskComplete, result, nil)
}

func (e *Engine) finish(id string, state domain.TaskState, result any, runErr error) {
	now := time.Now().UTC()
	var payload []byte
	if result != nil {
		payload, _ = json.Marshal(result)
	}
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		log.Errorf("taskengine: task %s failed: %v", id, runErr)
	}
	if _, err := e.db.Exec(
		`UPDATE tasks SET state = ?, result = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(state), payload, errMsg, now, id,
	); err != nil {
		log.Errorf("taskengine: could not persist result for %s: %v", id, err)
	}
}

// gc deletes terminal tasks (complete/failed) older than retention;
// results stay queryable until then so a slow poller doesn't miss one.
func (e *Engine) gc(retention time.Duration) {
	cutoff := time.Now().UTC().Add(-retention)
	res, err := e.db.Exec(
		`DELETE FROM tasks WHERE state IN (?, ?) AND updated_at < ?`,
		string(domain.TaskComplete), string(domain.TaskFailed), cutoff,
	)
	if err != nil {
		log.Errorf("taskengine: gc failed: %v", err)
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Infof("taskengine: gc removed %d terminal tasks older than %s", n, retention)
	}
}

// Close closes the underlying database handle.
func (e *Engine) Close() error {
	return e.db.Close()
}
