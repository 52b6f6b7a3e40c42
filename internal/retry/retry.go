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

// Package retry provides the retry loops shared by the reader transports and
// the message bus.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrExhausted is returned when every attempt asked for a retry.
	ErrExhausted = errors.New("retries exhausted")
	// ErrTimeout is returned by Poll when the deadline passes.
	ErrTimeout = errors.New("timed out waiting for operation")
)

// Operation is a function that can be retried.
// Returns: data, shouldRetry, error
//   - data: the result if successful
//   - shouldRetry: true if the operation should be retried
//   - error: a permanent error that stops retries, or the last transient
//     error when shouldRetry is true
type Operation[T any] func() (T, bool, error)

// Config configures retry behavior
type Config struct {
	OnRetry     func(attempt int, err error)
	Description string
	MaxRetries  int
	Delay       time.Duration
	MaxDelay    time.Duration
	// Backoff multiplies Delay after every attempt. Values <= 1 keep it fixed.
	Backoff float64
}

// WithRetry executes an operation with retry logic. The context interrupts
// the delay between attempts.
func WithRetry[T any](ctx context.Context, config Config, operation Operation[T]) (T, error) {
	var zero T
	var lastErr error
	delay := config.Delay

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		result, shouldRetry, err := operation()
		if !shouldRetry {
			if err != nil {
				return zero, err
			}
			return result, nil
		}
		lastErr = err

		// If we should retry but we're at max attempts, break
		if attempt >= config.MaxRetries {
			break
		}

		if config.OnRetry != nil {
			config.OnRetry(attempt+1, err)
		}

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
		delay = nextDelay(delay, config)
	}

	return zero, exhausted(config.Description, lastErr)
}

// Poll repeats an operation until it stops asking for a retry or the timeout
// passes. Common pattern for waiting on a device to become ready.
func Poll[T any](ctx context.Context, timeout, interval time.Duration, operation Operation[T]) (T, error) {
	var zero T
	deadline := time.Now().Add(timeout)

	for {
		result, shouldRetry, err := operation()
		if !shouldRetry {
			if err != nil {
				return zero, err
			}
			return result, nil
		}
		if !time.Now().Before(deadline) {
			return zero, ErrTimeout
		}
		if err := sleep(ctx, interval); err != nil {
			return zero, err
		}
	}
}

func exhausted(description string, lastErr error) error {
	switch {
	case description == "" && lastErr == nil:
		return ErrExhausted
	case description == "":
		return fmt.Errorf("%w: %w", ErrExhausted, lastErr)
	case lastErr == nil:
		return fmt.Errorf("%s: %w", description, ErrExhausted)
	default:
		return fmt.Errorf("%s: %w: %w", description, ErrExhausted, lastErr)
	}
}

func nextDelay(delay time.Duration, config Config) time.Duration {
	if config.Backoff <= 1 {
		return delay
	}
	next := time.Duration(float64(delay) * config.Backoff)
	if config.MaxDelay > 0 && next > config.MaxDelay {
		return config.MaxDelay
	}
	return next
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
