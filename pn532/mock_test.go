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
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var errNoResponse = errors.New("no response configured")

// MockTransport answers commands from canned responses or a handler.
type MockTransport struct {
	responses map[byte][]byte
	errs      map[byte]error
	calls     map[byte]int
	lastArgs  map[byte][]byte
	handler   func(cmd byte, args []byte) ([]byte, error)
	delay     time.Duration
	mu        sync.Mutex
	closed    bool
}

func NewMockTransport() *MockTransport {
	return &MockTransport{
		responses: make(map[byte][]byte),
		errs:      make(map[byte]error),
		calls:     make(map[byte]int),
		lastArgs:  make(map[byte][]byte),
	}
}

func (m *MockTransport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	m.mu.Lock()
	m.calls[cmd]++
	m.lastArgs[cmd] = bytes.Clone(args)
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrTransportClosed
	}
	if err, ok := m.errs[cmd]; ok {
		return nil, err
	}
	if m.handler != nil {
		return m.handler(cmd, args)
	}
	if resp, ok := m.responses[cmd]; ok {
		return bytes.Clone(resp), nil
	}
	return nil, fmt.Errorf("%w: 0x%02X", errNoResponse, cmd)
}

func (m *MockTransport) SetResponse(cmd byte, resp []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[cmd] = resp
}

func (m *MockTransport) SetError(cmd byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[cmd] = err
}

func (m *MockTransport) SetHandler(fn func(cmd byte, args []byte) ([]byte, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
}

func (m *MockTransport) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

func (m *MockTransport) GetCallCount(cmd byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[cmd]
}

func (m *MockTransport) LastArgs(cmd byte) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastArgs[cmd]
}

func (*MockTransport) SetTimeout(time.Duration) error { return nil }

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (*MockTransport) Type() TransportType { return TransportMock }

func firmwareVersionResponse() []byte {
	// PN532 version 1.6, ISO14443A/B and ISO18092
	return []byte{0x03, 0x32, 0x01, 0x06, 0x07}
}

func detectionResponse(uid []byte, sak byte) []byte {
	resp := []byte{0x4B, 0x01, 0x01, 0x00, 0x04, sak, byte(len(uid))}
	return append(resp, uid...)
}

func dataExchangeResponse(data ...byte) []byte {
	return append([]byte{0x41, 0x00}, data...)
}

func newReadyMock() *MockTransport {
	mock := NewMockTransport()
	mock.SetResponse(cmdGetFirmwareVersion, firmwareVersionResponse())
	mock.SetResponse(cmdSamConfiguration, []byte{0x15})
	mock.SetResponse(cmdRFConfiguration, []byte{0x33})
	mock.SetResponse(cmdInRelease, []byte{0x53, 0x00})
	return mock
}
