// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package nats is a thin connection wrapper around nats.go, trimmed to
// the three operations internal/bus actually needs to implement its QoS
// levels: Publish (QoS 0/1), Flush (confirms QoS 1), and Request (the
// round trip QoS 2 uses to confirm a subscriber is listening). It does
// not expose subscription management -- this service only publishes to
// the broker, it never consumes from it directly.
package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/pioreactor/pioreactorui-leader/pkg/log"
)

// Client wraps a single NATS connection.
type Client struct {
	conn *nats.Conn
}

// NewClient dials cfg.Address and returns a connected Client.
func NewClient(cfg *NatsConfig) (*Client, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("NATS address is required")
	}

	var opts []nats.Option
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	opts = append(opts, nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
		if err != nil {
			log.Warnf("NATS disconnected: %v", err)
		}
	}))
	opts = append(opts, nats.ReconnectHandler(func(nc *nats.Conn) {
		log.Infof("NATS reconnected to %s", nc.ConnectedUrl())
	}))
	opts = append(opts, nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
		log.Errorf("NATS error: %v", err)
	}))

	nc, err := nats.Connect(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("NATS connect failed: %w", err)
	}

	log.Infof("NATS connected to %s", cfg.Address)
	return &Client{conn: nc}, nil
}

// Publish sends data to subject at most once.
func (c *Client) Publish(subject string, data []byte) error {
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("NATS publish to '%s' failed: %w", subject, err)
	}
	return nil
}

// Request sends data to subject and waits for a reply, bounded by ctx.
// internal/bus uses this to confirm a subscriber is actually present for
// a QoS-2 publish, discarding the reply payload itself.
func (c *Client) Request(subject string, data []byte, ctx context.Context) ([]byte, error) {
	msg, err := c.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("NATS request to '%s' failed: %w", subject, err)
	}
	return msg.Data, nil
}

// Flush blocks until the server has acknowledged every message
// published so far on this connection.
func (c *Client) Flush() error {
	return c.conn.Flush()
}
