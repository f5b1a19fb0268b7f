// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package workerrpc is the per-worker HTTP client: resolve a unit name
// to a network address, then issue a small-timeout call against that
// worker's unit-API (prefix /unit_api). Every failure -- connection,
// 4xx/5xx, decode -- is folded into a nil body rather than propagated,
// which is what lets internal/fanout turn a cluster call into a
// partial-failure-tolerant operation.
package workerrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pioreactor/pioreactorui-leader/pkg/log"
)

// Resolver maps a worker's unit name to a network address (DNS name or
// IP, no scheme/port). Production wires this to DNS (unit names are
// mDNS-resolvable hostnames on the cluster LAN); tests supply a fixed map.
type Resolver interface {
	Resolve(unit string) (string, error)
}

// StaticResolver resolves units to a fixed unit -> address map, used in
// tests and for operators who prefer explicit mappings over mDNS.
type StaticResolver map[string]string

func (r StaticResolver) Resolve(unit string) (string, error) {
	addr, ok := r[unit]
	if !ok {
		return unit, nil // fall back to the unit name itself as a hostname
	}
	return addr, nil
}

// Client issues unit_api calls against workers.
type Client struct {
	HTTP     *http.Client
	Resolver Resolver
	Scheme   string
	Port     int
}

func New(resolver Resolver, scheme string, port int) *Client {
	return &Client{
		HTTP:     &http.Client{},
		Resolver: resolver,
		Scheme:   scheme,
		Port:     port,
	}
}

func (c *Client) baseURL(unit string) (string, error) {
	addr, err := c.Resolver.Resolve(unit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s://%s:%d", c.Scheme, addr, c.Port), nil
}

// Result is the outcome of one worker call: Body is nil on any failure.
type Result struct {
	Worker string
	Body   any
}

func (c *Client) do(ctx context.Context, method, unit, endpoint string, body any, timeout time.Duration) Result {
	base, err := c.baseURL(unit)
	if err != nil {
		log.Errorf("workerrpc: could not resolve %s: %v", unit, err)
		return Result{Worker: unit}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			log.Errorf("workerrpc: could not encode body for %s%s: %v", unit, endpoint, err)
			return Result{Worker: unit}
		}
		reader = bytes.NewReader(payload)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, base+endpoint, reader)
	if err != nil {
		log.Errorf("workerrpc: could not build request for %s%s: %v", unit, endpoint, err)
		return Result{Worker: unit}
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		log.Errorf("workerrpc: could not %s %s's %s: %v. Check connection? Check port?", method, unit, endpoint, err)
		return Result{Worker: unit}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Errorf("workerrpc: %s %s's %s returned status %d", method, unit, endpoint, resp.StatusCode)
		return Result{Worker: unit}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Errorf("workerrpc: could not read response from %s's %s: %v", unit, endpoint, err)
		return Result{Worker: unit}
	}
	if len(data) == 0 {
		return Result{Worker: unit, Body: nil}
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		log.Errorf("workerrpc: could not decode response from %s's %s: %v", unit, endpoint, err)
		return Result{Worker: unit}
	}
	return Result{Worker: unit, Body: decoded}
}

// Get issues a GET with a 5s default timeout.
func (c *Client) Get(ctx context.Context, unit, endpoint string, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return c.do(ctx, http.MethodGet, unit, endpoint, nil, timeout)
}

// Post issues a POST with a 1s default timeout.
func (c *Client) Post(ctx context.Context, unit, endpoint string, body any, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = time.Second
	}
	return c.do(ctx, http.MethodPost, unit, endpoint, body, timeout)
}

// Patch issues a PATCH with a 1s default timeout.
func (c *Client) Patch(ctx context.Context, unit, endpoint string, body any, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = time.Second
	}
	return c.do(ctx, http.MethodPatch, unit, endpoint, body, timeout)
}

// Delete issues a DELETE with a 1s default timeout.
func (c *Client) Delete(ctx context.Context, unit, endpoint string, body any, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = time.Second
	}
	return c.do(ctx, http.MethodDelete, unit, endpoint, body, timeout)
}
