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

// Package uart provides the high speed UART transport for PN532 readers,
// typically behind a USB serial adapter.
package uart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ZaparooProject/go-spoolscale/internal/frame"
	"github.com/ZaparooProject/go-spoolscale/pn532"
	"go.bug.st/serial"
)

const (
	// BaudRate is the PN532 HSU default.
	BaudRate = 115200

	defaultTimeout = time.Second
	// readPoll bounds a single port read so cancellation is noticed.
	readPoll = 10 * time.Millisecond
)

// wakeup brings the PN532 out of low VBAT mode. It has to precede the first
// command after power up.
var wakeup = []byte{0x55, 0x55, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

// port is the part of serial.Port the transport needs.
type port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Transport implements pn532.Transport over a serial port.
type Transport struct {
	port     port
	portName string
	timeout  time.Duration
	mu       sync.Mutex
	awake    bool
	closed   bool
}

// New opens portName at 115200 8N1.
func New(portName string) (*Transport, error) {
	mode := &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(portName, mode)
	if err != nil {
		return nil, pn532.NewTransportError("open", portName, err, pn532.ErrorTypePermanent)
	}
	if err := p.SetReadTimeout(readPoll); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}
	return newTransport(p, portName), nil
}

func newTransport(p port, portName string) *Transport {
	return &Transport{
		port:     p,
		portName: portName,
		timeout:  defaultTimeout,
	}
}

// SendCommand writes a command frame, waits for the ACK and returns the
// response payload.
func (t *Transport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, pn532.ErrTransportClosed
	}

	frm, err := frame.Build(cmd, args)
	if err != nil {
		return nil, pn532.NewTransportError("SendCommand", t.portName, err, pn532.ErrorTypePermanent)
	}
	if !t.awake {
		frm = append(bytes.Clone(wakeup), frm...)
	}

	_ = t.port.ResetInputBuffer()
	if _, err := t.port.Write(frm); err != nil {
		return nil, pn532.NewTransportError("write", t.portName,
			fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err), pn532.ErrorTypeTransient)
	}
	t.awake = true

	rest, err := t.waitAck(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := t.readResponse(ctx, rest)
	if err != nil {
		if ctx.Err() != nil {
			// an ACK from the host aborts the running command
			_, _ = t.port.Write(frame.AckFrame)
		}
		return nil, err
	}
	return payload, nil
}

// waitAck reads until an ACK frame arrives and returns whatever followed it.
func (t *Transport) waitAck(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := t.readUntil(ctx, "waitAck", func(chunk []byte) (bool, error) {
		buf = append(buf, chunk...)
		if i := bytes.Index(buf, frame.AckFrame); i >= 0 {
			buf = buf[i+len(frame.AckFrame):]
			return true, nil
		}
		return false, nil
	})
	if errors.Is(err, pn532.ErrTransportTimeout) {
		return nil, pn532.NewTransportError("waitAck", t.portName, pn532.ErrNoACK, pn532.ErrorTypeTransient)
	}
	return buf, err
}

func (t *Transport) readResponse(ctx context.Context, buf []byte) ([]byte, error) {
	var payload []byte
	parse := func(chunk []byte) (bool, error) {
		buf = append(buf, chunk...)
		p, err := frame.Parse(buf)
		switch {
		case errors.Is(err, frame.ErrIncomplete):
			return false, nil
		case errors.Is(err, frame.ErrApplication):
			return true, pn532.NewTransportError("receiveFrame", t.portName, err, pn532.ErrorTypePermanent)
		case err != nil:
			_, _ = t.port.Write(frame.NackFrame)
			return true, pn532.NewTransportError("receiveFrame", t.portName, err, pn532.ErrorTypeTransient)
		}
		payload = p
		return true, nil
	}

	// the response may have arrived together with the ACK
	if len(buf) > 0 {
		if done, err := parse(nil); done {
			return payload, err
		}
	}
	if err := t.readUntil(ctx, "receiveFrame", parse); err != nil {
		return nil, err
	}
	return payload, nil
}

// readUntil feeds port reads to fn until it reports done, the transport
// timeout passes or ctx ends.
func (t *Transport) readUntil(ctx context.Context, op string, fn func([]byte) (bool, error)) error {
	deadline := time.Now().Add(t.timeout)
	chunk := make([]byte, 64)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return pn532.NewTimeoutError(op, t.portName)
		}

		n, err := t.port.Read(chunk)
		if err != nil {
			return pn532.NewTransportError(op, t.portName,
				fmt.Errorf("%w: %w", pn532.ErrTransportRead, err), pn532.ErrorTypeTransient)
		}
		if n == 0 {
			continue
		}
		if done, err := fn(chunk[:n]); done {
			return err
		}
	}
}

// SetTimeout sets how long a command waits for its ACK and its response.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return pn532.ErrInvalidParameter
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close closes the serial port.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", t.portName, err)
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportUART
}

// Ensure Transport implements pn532.Transport
var _ pn532.Transport = (*Transport)(nil)
