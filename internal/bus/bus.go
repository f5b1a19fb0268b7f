// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package bus adapts pkg/nats (a publish/request wrapper around nats.go)
// to the QoS-aware contract the leader's job-control and setting-update paths
// need: publish with a QoS level, then wait for delivery confirmation
// with a timeout. NATS core has no built-in QoS tiers, so this package
// maps those three delivery levels onto the primitives NATS does give us:
//
//   - QoS 0 (best-effort): fire-and-forget Publish, Wait always succeeds
//     immediately.
//   - QoS 1 (at-least-once): Publish then Flush(timeout) -- this blocks
//     until the server has acknowledged receipt of everything published
//     so far on the connection, which is the strongest delivery signal
//     NATS core exposes without JetStream.
//   - QoS 2 (exactly-once): same as QoS 1, plus a synchronous
//     Request/Reply round trip against the topic so the caller knows a
//     subscriber is actually listening, not just that the broker
//     accepted the frame. If nothing answers within the timeout the
//     publish is treated as unconfirmed (the caller falls back to HTTP).
//
// This is the leader-only half of the pub/sub contract: workers also
// publish to the same broker, but the core does not consume those
// messages as a library here.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/pioreactor/pioreactorui-leader/internal/domain"
	"github.com/pioreactor/pioreactorui-leader/pkg/log"
	"github.com/pioreactor/pioreactorui-leader/pkg/nats"
)

// QoS is the pub/sub delivery guarantee requested for one publish.
type QoS int

const (
	QoSAtMostOnce  QoS = 0
	QoSAtLeastOnce QoS = 1
	QoSExactlyOnce QoS = 2
)

// Bus is the leader's singleton connection to the cluster's pub/sub
// broker. It is nil-safe: a Bus with no connected client degrades every
// Handle to "publish failed", which callers use to fall back to the
// HTTP unit-API path for stopping a job.
type Bus struct {
	client *nats.Client
}

// Connect establishes the broker connection. Only the leader calls this,
// at startup.
func Connect(address, username, password string) *Bus {
	if address == "" {
		log.Warn("bus: no broker address configured, publishing will no-op")
		return &Bus{}
	}

	client, err := nats.NewClient(&nats.NatsConfig{
		Address:  address,
		Username: username,
		Password: password,
	})
	if err != nil {
		log.Errorf("bus: connect failed: %v", err)
		return &Bus{}
	}

	return &Bus{client: client}
}

// Handle is the outcome of one Publish call, awaitable with Wait.
type Handle struct {
	bus     *Bus
	topic   string
	qos     QoS
	publishErr error
}

// Publish sends payload to topic at the requested QoS. retain is
// accepted for interface parity with the broker contract but is
// advisory only; this adapter does not track retained state.
func (b *Bus) Publish(topic string, payload []byte, qos QoS, retain bool) *Handle {
	h := &Handle{bus: b, topic: topic, qos: qos}
	if b == nil || b.client == nil {
		h.publishErr = fmt.Errorf("bus: not connected")
		return h
	}
	if err := b.client.Publish(topic, payload); err != nil {
		h.publishErr = err
	}
	return h
}

// Wait blocks until delivery is confirmed at the handle's QoS level or
// timeout elapses, returning ok=false on any failure or timeout.
func (h *Handle) Wait(timeout time.Duration) (ok bool) {
	if h.publishErr != nil {
		return false
	}
	if h.qos == QoSAtMostOnce {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- h.bus.client.Flush() }()

	select {
	case err := <-done:
		if err != nil {
			return false
		}
	case <-ctx.Done():
		return false
	}

	if h.qos < QoSExactlyOnce {
		return true
	}

	// QoS 2: confirm a listener is actually present by round-tripping a
	// ping through the same topic's request/reply channel.
	reqCtx, reqCancel := context.WithTimeout(context.Background(), timeout)
	defer reqCancel()
	_, err := h.bus.client.Request(h.topic, nil, reqCtx)
	return err == nil
}

// Topic builds the canonical pioreactor/<unit>/<experiment>/<job>/<path>
// subject; unit and experiment may be sentinel values expanded upstream.
func Topic(unit, experiment, job, path string) string {
	return fmt.Sprintf("pioreactor/%s/%s/%s/%s", unit, experiment, job, path)
}

// PublishStateDisconnected requests a job stop via the $state/set topic
// at QoS 1, the primary strategy for stopping a job on a unit.
func (b *Bus) PublishStateDisconnected(unit, experiment, job string, timeout time.Duration) bool {
	topic := Topic(unit, experiment, job, "$state/set")
	return b.Publish(topic, []byte("disconnected"), QoSAtLeastOnce, false).Wait(timeout)
}

// PublishSetting publishes a single setting update at QoS 2 (must not
// duplicate).
func (b *Bus) PublishSetting(unit, experiment, job, setting string, value []byte, timeout time.Duration) bool {
	topic := Topic(unit, experiment, job, setting+"/set")
	return b.Publish(topic, value, QoSExactlyOnce, false).Wait(timeout)
}

// PublishLog publishes a UI-originated structured log envelope to the
// per-leader log topic.
func (b *Bus) PublishLog(leader, experiment, level string, envelope []byte) {
	topic := fmt.Sprintf("pioreactor/%s/%s/logs/ui/%s", leader, experiment, level)
	b.Publish(topic, envelope, QoSAtMostOnce, false)
}

// PublishBlink tells a unit to flicker its status LED, at QoS 0 (a
// missed blink request just means the operator clicks again) against
// the monitor job's universal-experiment topic, since blinking isn't
// scoped to any one experiment.
func (b *Bus) PublishBlink(unit string, timeout time.Duration) bool {
	topic := Topic(unit, domain.UniversalExperiment, "monitor", "flicker_led_response_okay")
	return b.Publish(topic, []byte("1"), QoSAtMostOnce, false).Wait(timeout)
}
