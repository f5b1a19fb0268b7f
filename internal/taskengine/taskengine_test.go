// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package taskengine

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pioreactor/pioreactorui-leader/internal/domain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	e, err := Open(filepath.Join(dir, "tasks.sqlite"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { e.Shutdown(); _ = e.Close() })
	require.NoError(t, e.Start(time.Hour))
	return e
}

func TestEnqueueAndWaitReturnsResult(t *testing.T) {
	e := newTestEngine(t)
	e.Register("echo", func(ctx context.Context, args json.RawMessage) (any, error) {
		var body map[string]string
		require.NoError(t, json.Unmarshal(args, &body))
		return map[string]string{"echoed": body["msg"]}, nil
	})

	id, err := e.Enqueue("echo", map[string]string{"msg": "hello"}, "", 0)
	require.NoError(t, err)

	task, err := e.Wait(context.Background(), id, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, domain.TaskComplete, task.State)

	var result map[string]string
	require.NoError(t, json.Unmarshal(task.Result, &result))
	require.Equal(t, "hello", result["echoed"])
}

func TestFailedHandlerRecordsError(t *testing.T) {
	e := newTestEngine(t)
	e.Register("boom", func(ctx context.Context, args json.RawMessage) (any, error) {
		return nil, errBoom
	})

	id, err := e.Enqueue("boom", nil, "", 0)
	require.NoError(t, err)

	task, err := e.Wait(context.Background(), id, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, domain.TaskFailed, task.State)
	require.Contains(t, task.Error, "boom")
}

func TestNamedLockSerializesTasks(t *testing.T) {
	e := newTestEngine(t)

	var running int32
	var maxConcurrent int32
	var mu sync.Mutex
	block := make(chan struct{})

	e.Register("slow", func(ctx context.Context, args json.RawMessage) (any, error) {
		n := atomic.AddInt32(&running, 1)
		mu.Lock()
		if n > maxConcurrent {
			maxConcurrent = n
		}
		mu.Unlock()
		<-block
		atomic.AddInt32(&running, -1)
		return nil, nil
	})

	id1, err := e.Enqueue("slow", nil, "update-lock", 0)
	require.NoError(t, err)
	id2, err := e.Enqueue("slow", nil, "update-lock", 0)
	require.NoError(t, err)

	time.Sleep(300 * time.Millisecond)
	close(block)

	_, err = e.Wait(context.Background(), id1, 2*time.Second)
	require.NoError(t, err)
	_, err = e.Wait(context.Background(), id2, 2*time.Second)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.EqualValues(t, 1, maxConcurrent)
}

func TestPriorityOrdering(t *testing.T) {
	e := newTestEngine(t)

	var order []string
	var mu sync.Mutex
	gate := make(chan struct{})

	e.Register("ordered", func(ctx context.Context, args json.RawMessage) (any, error) {
		var body map[string]string
		_ = json.Unmarshal(args, &body)
		mu.Lock()
		order = append(order, body["label"])
		mu.Unlock()
		return nil, nil
	})

	// Hold the single worker lane with a throwaway task so both
	// priority-ordered tasks are enqueued before either can be claimed.
	e.Register("gatekeeper", func(ctx context.Context, args json.RawMessage) (any, error) {
		<-gate
		return nil, nil
	})
	_, err := e.Enqueue("gatekeeper", nil, "ordering-lock", 1000)
	require.NoError(t, err)

	_, err = e.Enqueue("ordered", map[string]string{"label": "low"}, "ordering-lock", 1)
	require.NoError(t, err)
	_, err = e.Enqueue("ordered", map[string]string{"label": "high"}, "ordering-lock", 10)
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	close(gate)
	time.Sleep(500 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"high", "low"}, order)
}

var errBoom = &boomError{}

type boomError struct{}

func (e *boomError) Error() string { return "boom: handler intentionally failed" }
