// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cache provides the cluster leader's two advisory, in-memory
// primitives: a keyed TTL memoization cache that can be bulk-invalidated
// by tag, and a debounce/rate-limit helper. Both are built on top of
// github.com/iamlouk/lrucache, which supplies the actual LRU storage and
// concurrency discipline; this package adds the tag-group bookkeeping
// and the debounce primitive on top.
//
// A cache miss must never produce a different answer than a hit -- this
// package never stores partial/placeholder results, only what the
// wrapped compute function actually returned.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/iamlouk/lrucache"
)

const defaultMaxMemory = 64 * 1024 * 1024 // 64MiB of estimated entry size

// Cache is the process-wide advisory cache singleton.
type Cache struct {
	lru *lrucache.Cache

	mu   sync.Mutex
	tags map[string]map[string]struct{} // tag -> set of cache keys

	debounceMu sync.Mutex
	lastCall   map[string]time.Time
}

func New() *Cache {
	return &Cache{
		lru:      lrucache.New(defaultMaxMemory),
		tags:     make(map[string]map[string]struct{}),
		lastCall: make(map[string]time.Time),
	}
}

// Get returns the cached value for key, or nil on a miss.
func (c *Cache) Get(key string) (any, bool) {
	v := c.lru.Get(key, nil)
	return v, v != nil
}

// Set stores value under key for ttl, optionally tagging it so a later
// EvictTag call can remove it in bulk.
func (c *Cache) Set(key string, value any, ttl time.Duration, tags ...string) {
	c.lru.Put(key, value, 1, ttl)
	if len(tags) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tag := range tags {
		set, ok := c.tags[tag]
		if !ok {
			set = make(map[string]struct{})
			c.tags[tag] = set
		}
		set[key] = struct{}{}
	}
}

// Memoize wraps compute: on a cache hit the cached value is returned
// immediately; on a miss compute is invoked once (concurrent callers for
// the same key block on the LRU's condition variable, not on a second
// call of compute) and its result is cached for ttl under tag.
func (c *Cache) Memoize(key string, ttl time.Duration, tag string, compute func() (any, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	var computeErr error
	v := c.lru.Get(key, func() (any, time.Duration, int) {
		val, err := compute()
		if err != nil {
			computeErr = err
			return nil, 0, 0 // zero TTL: never actually cached on error
		}
		return val, ttl, 1
	})
	if computeErr != nil {
		return nil, computeErr
	}
	if tag != "" {
		c.mu.Lock()
		set, ok := c.tags[tag]
		if !ok {
			set = make(map[string]struct{})
			c.tags[tag] = set
		}
		set[key] = struct{}{}
		c.mu.Unlock()
	}
	return v, nil
}

// EvictTag bulk-invalidates every entry set or memoized under tag.
func (c *Cache) EvictTag(tag string) {
	c.mu.Lock()
	keys := c.tags[tag]
	delete(c.tags, tag)
	c.mu.Unlock()

	for key := range keys {
		c.lru.Del(key)
	}
}

// Del removes a single key regardless of tag membership.
func (c *Cache) Del(key string) {
	c.lru.Del(key)
}

// Debounce returns true if name was last called less than window ago,
// signalling the caller should reject/skip the request (best-effort,
// process-local only -- no distributed guarantee). The default window
// used by job-run endpoints is one second.
func (c *Cache) Debounce(name string, window time.Duration) bool {
	now := time.Now()
	c.debounceMu.Lock()
	defer c.debounceMu.Unlock()

	last, ok := c.lastCall[name]
	c.lastCall[name] = now
	if !ok {
		return false
	}
	return now.Sub(last) < window
}

// MemoKey builds a deterministic cache key from a query fingerprint's
// constituent parts, matching the Store's "derived view keyed by query
// fingerprint" ownership note.
func MemoKey(parts ...any) string {
	return fmt.Sprint(parts...)
}

const (
	TagExperiments = "experiments"
	TagConfig      = "config"
	TagPlugins     = "plugins"
	TagUnitLabels  = "unit_labels"
)
