// go-spoolscale
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-spoolscale.
//
// go-spoolscale is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-spoolscale is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-spoolscale; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package bus carries device messages over Redis pub/sub. Every message
// travels on a channel named <prefix>/<kind>/<device id>.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ZaparooProject/go-spoolscale/internal/retry"
)

// ErrEmptyDeviceID is returned by NewClient without a device id.
var ErrEmptyDeviceID = errors.New("device id cannot be empty")

// DefaultPrefix is the topic prefix used when none is configured.
const DefaultPrefix = "filamentwaage"

const subscriptionBuffer = 16

// DefaultConnectRetry is the connect policy: a handful of attempts one
// second apart, growing to five.
var DefaultConnectRetry = retry.Config{
	Description: "connect to message bus",
	MaxRetries:  5,
	Delay:       time.Second,
	MaxDelay:    5 * time.Second,
	Backoff:     2,
}

// Option configures a Client.
type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPrefix replaces DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(c *Client) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// Client publishes and subscribes on behalf of one device. It is safe for
// concurrent use.
type Client struct {
	rdb      *redis.Client
	logger   *slog.Logger
	prefix   string
	deviceID string
}

// NewClient creates a client. It does not connect; see Connect.
func NewClient(redisOpts *redis.Options, deviceID string, opts ...Option) (*Client, error) {
	if deviceID == "" {
		return nil, ErrEmptyDeviceID
	}
	c := &Client{
		rdb:      redis.NewClient(redisOpts),
		logger:   slog.Default().With("module", "bus"),
		prefix:   DefaultPrefix,
		deviceID: deviceID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Topic returns the channel name for a message kind.
func (c *Client) Topic(kind string) string {
	return fmt.Sprintf("%s/%s/%s", c.prefix, kind, c.deviceID)
}

// Ping verifies the broker is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Connect pings the broker until it answers or the retry policy gives up.
func (c *Client) Connect(ctx context.Context, policy retry.Config) error {
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, err error) {
			c.logger.Warn("message bus not reachable", "attempt", attempt, "error", err)
		}
	}
	_, err := retry.WithRetry(ctx, policy, func() (struct{}, bool, error) {
		if err := c.Ping(ctx); err != nil {
			if ctx.Err() != nil {
				return struct{}{}, false, ctx.Err()
			}
			return struct{}{}, true, err
		}
		return struct{}{}, false, nil
	})
	if err != nil {
		return err
	}
	c.logger.Info("connected to message bus", "addr", c.rdb.Options().Addr)
	return nil
}

// Publish encodes v as JSON and publishes it on the topic of kind.
func (c *Client) Publish(ctx context.Context, kind string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", kind, err)
	}
	topic := c.Topic(kind)
	if err := c.rdb.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	c.logger.Debug("published", "topic", topic, "payload", string(payload))
	return nil
}

// Heartbeat publishes payload() on the topic of kind right away and then
// every interval, until ctx is done. Publish failures are logged.
func (c *Client) Heartbeat(ctx context.Context, kind string, interval time.Duration, payload func() any) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := c.Publish(ctx, kind, payload()); err != nil && ctx.Err() == nil {
			c.logger.Warn("heartbeat failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Subscription delivers raw payloads from one topic.
type Subscription struct {
	messages <-chan []byte
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
}

// Messages returns the payload channel. It is closed when the subscription
// ends.
func (s *Subscription) Messages() <-chan []byte {
	return s.messages
}

// Close ends the subscription and waits for its goroutine. Safe to call
// multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	<-s.done
	return nil
}

// Subscribe listens on the topic of kind. The subscription is active when
// Subscribe returns. Payloads are buffered; when the reader falls behind
// the oldest unread payloads are kept and new ones are dropped.
func (c *Client) Subscribe(ctx context.Context, kind string) (*Subscription, error) {
	topic := c.Topic(kind)
	pubsub := c.rdb.Subscribe(ctx, topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	messages := make(chan []byte, subscriptionBuffer)
	done := make(chan struct{})
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(done)
		defer close(messages)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case messages <- []byte(msg.Payload):
				default:
					c.logger.Warn("dropping message, subscriber too slow", "topic", topic)
				}
			}
		}
	}()

	c.logger.Info("subscribed", "topic", topic)
	return &Subscription{messages: messages, cancel: cancel, done: done}, nil
}
