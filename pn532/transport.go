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

package pn532

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-spoolscale/internal/retry"
)

// Transport defines the interface for communication with PN532 devices.
// This can be implemented by UART or I2C backends.
type Transport interface {
	// SendCommand sends a command and waits for its response. The returned
	// payload starts with the response code (cmd+1); the frame identifier
	// is stripped.
	SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error)

	// SetTimeout sets the read timeout for the transport
	SetTimeout(timeout time.Duration) error

	// Close closes the transport connection
	Close() error

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents UART/serial transport.
	TransportUART TransportType = "uart"
	// TransportI2C represents I2C bus transport.
	TransportI2C TransportType = "i2c"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// RetryConfig configures retries of transport commands.
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the retry policy used for hardware readers.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        200 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

// TransportWithRetry wraps a Transport with retry capabilities
type TransportWithRetry struct {
	transport Transport
	config    *RetryConfig
}

// NewTransportWithRetry creates a new transport wrapper with retry logic
func NewTransportWithRetry(transport Transport, config *RetryConfig) *TransportWithRetry {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &TransportWithRetry{
		transport: transport,
		config:    config,
	}
}

// SendCommand sends a command, retrying transient transport failures.
func (t *TransportWithRetry) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	maxRetries := t.config.MaxAttempts - 1
	if maxRetries < 0 {
		maxRetries = 0
	}
	cfg := retry.Config{
		Description: fmt.Sprintf("command 0x%02X", cmd),
		MaxRetries:  maxRetries,
		Delay:       t.config.InitialBackoff,
		MaxDelay:    t.config.MaxBackoff,
		Backoff:     t.config.BackoffMultiplier,
	}

	return retry.WithRetry(ctx, cfg, func() ([]byte, bool, error) {
		resp, err := t.transport.SendCommand(ctx, cmd, args)
		if err == nil {
			return resp, false, nil
		}
		if ctx.Err() != nil {
			return nil, false, err
		}
		// Wrap transport errors for better error handling
		tErr := &TransportError{
			Op:        "SendCommand",
			Err:       err,
			Type:      GetErrorType(err),
			Retryable: IsRetryable(err),
		}
		return nil, tErr.Retryable, tErr
	})
}

// Close closes the transport connection
func (t *TransportWithRetry) Close() error {
	if err := t.transport.Close(); err != nil {
		return fmt.Errorf("failed to close underlying transport: %w", err)
	}
	return nil
}

// SetTimeout sets the read timeout for the transport
func (t *TransportWithRetry) SetTimeout(timeout time.Duration) error {
	if err := t.transport.SetTimeout(timeout); err != nil {
		return fmt.Errorf("failed to set timeout on underlying transport: %w", err)
	}
	return nil
}

// Type returns the transport type
func (t *TransportWithRetry) Type() TransportType {
	return t.transport.Type()
}

// SetRetryConfig updates the retry configuration
func (t *TransportWithRetry) SetRetryConfig(config *RetryConfig) {
	t.config = config
}
