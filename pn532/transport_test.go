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
	"testing"
	"time"

	"github.com/ZaparooProject/go-spoolscale/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) *RetryConfig {
	return &RetryConfig{MaxAttempts: attempts, InitialBackoff: time.Millisecond, BackoffMultiplier: 1}
}

func TestTransportWithRetry_SendCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		failWith  error
		wantErr   error
		name      string
		failures  int
		attempts  int
		wantCalls int
	}{
		{name: "success", attempts: 3, wantCalls: 1},
		{name: "recovers from read error", failWith: ErrTransportRead, failures: 2, attempts: 3, wantCalls: 3},
		{name: "recovers from timeout", failWith: NewTimeoutError("read", "mock"), failures: 1, attempts: 3, wantCalls: 2},
		{
			name:      "exhausted",
			failWith:  ErrChecksumMismatch,
			failures:  10,
			attempts:  3,
			wantCalls: 3,
			wantErr:   retry.ErrExhausted,
		},
		{
			name:      "permanent error",
			failWith:  ErrDeviceNotFound,
			failures:  10,
			attempts:  3,
			wantCalls: 1,
			wantErr:   ErrDeviceNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			mock := NewMockTransport()
			mock.SetHandler(func(byte, []byte) ([]byte, error) {
				calls++
				if calls <= tt.failures {
					return nil, tt.failWith
				}
				return firmwareVersionResponse(), nil
			})

			tr := NewTransportWithRetry(mock, fastRetry(tt.attempts))
			resp, err := tr.SendCommand(context.Background(), cmdGetFirmwareVersion, nil)
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				var te *TransportError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, "SendCommand", te.Op)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, firmwareVersionResponse(), resp)
		})
	}
}

func TestTransportWithRetry_ContextCanceled(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetDelay(time.Second)
	tr := NewTransportWithRetry(mock, fastRetry(5))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := tr.SendCommand(ctx, cmdGetFirmwareVersion, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, mock.GetCallCount(cmdGetFirmwareVersion))
}

func TestTransportWithRetry_Delegates(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	tr := NewTransportWithRetry(mock, nil)
	assert.Equal(t, DefaultRetryConfig(), tr.config)
	assert.Equal(t, TransportMock, tr.Type())
	require.NoError(t, tr.SetTimeout(time.Second))
	require.NoError(t, tr.Close())

	_, err := tr.SendCommand(context.Background(), cmdGetFirmwareVersion, nil)
	require.ErrorIs(t, err, ErrTransportClosed)
}

func TestDevice_SetRetryConfig(t *testing.T) {
	t.Parallel()

	device, err := New(NewMockTransport(), WithRetryConfig(fastRetry(2)))
	require.NoError(t, err)
	wrapped := device.Transport()

	device.SetRetryConfig(fastRetry(5))
	assert.Same(t, wrapped, device.Transport(), "existing wrapper is reused")
	assert.Equal(t, 5, device.Transport().(*TransportWithRetry).config.MaxAttempts)
}
