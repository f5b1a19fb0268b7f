// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fanout is the parallel multicast of a WorkerRPC verb across a
// worker set: each worker is dispatched concurrently, failures are
// isolated per-worker, and the whole call is bounded by a single
// deadline so it can never pin a TaskEngine thread indefinitely.
package fanout

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pioreactor/pioreactorui-leader/internal/domain"
	"github.com/pioreactor/pioreactorui-leader/internal/workerrpc"
)

const DefaultTimeout = 30 * time.Second

// multicast is the shared implementation behind the four exported verbs.
// It guarantees completeness -- the result map always has exactly
// len(workers) keys -- by pre-seeding every key with a nil value before
// any goroutine runs, so a worker that errors still reports as present-but-nil
// rather than silently missing from the result.
func multicast(workers []string, timeout time.Duration, call func(ctx context.Context, unit string) workerrpc.Result) domain.FanoutResult {
	result := make(domain.FanoutResult, len(workers))
	var mu sync.Mutex
	for _, w := range workers {
		result[w] = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		g.Go(func() error {
			r := call(gctx, w)
			mu.Lock()
			result[r.Worker] = r.Body
			mu.Unlock()
			return nil // per-worker errors are already folded into r.Body == nil
		})
	}
	_ = g.Wait() // errors are never returned by the per-worker closures above

	return result
}

// Get fans GET endpoint out to workers, each call bounded by
// perCallTimeout (workerrpc's 5s GET default when zero) and the whole
// fan-out bounded by DefaultTimeout.
func Get(client *workerrpc.Client, endpoint string, workers []string, perCallTimeout time.Duration) domain.FanoutResult {
	return multicast(workers, DefaultTimeout, func(ctx context.Context, unit string) workerrpc.Result {
		return client.Get(ctx, unit, endpoint, perCallTimeout)
	})
}

// Post fans POST endpoint with body out to workers.
func Post(client *workerrpc.Client, endpoint string, workers []string, body any) domain.FanoutResult {
	return multicast(workers, DefaultTimeout, func(ctx context.Context, unit string) workerrpc.Result {
		return client.Post(ctx, unit, endpoint, body, 0)
	})
}

// Patch fans PATCH endpoint with body out to workers.
func Patch(client *workerrpc.Client, endpoint string, workers []string, body any) domain.FanoutResult {
	return multicast(workers, DefaultTimeout, func(ctx context.Context, unit string) workerrpc.Result {
		return client.Patch(ctx, unit, endpoint, body, 0)
	})
}

// Delete fans DELETE endpoint with body out to workers.
func Delete(client *workerrpc.Client, endpoint string, workers []string, body any) domain.FanoutResult {
	return multicast(workers, DefaultTimeout, func(ctx context.Context, unit string) workerrpc.Result {
		return client.Delete(ctx, unit, endpoint, body, 0)
	})
}

// ExpandTarget resolves the universal-identifier sentinel against a
// pre-fetched worker set, otherwise returns a single-element set.
// Reconciling the sentinel happens at the LeaderAPI boundary, not inside
// Fanout itself -- this helper is what LeaderAPI calls to do that
// reconciliation.
func ExpandTarget(unit string, activeWorkersInExperiment []string) []string {
	if unit == domain.UniversalIdentifier {
		return activeWorkersInExperiment
	}
	return []string{unit}
}
