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

// Package i2c provides I2C transport implementation for PN532
package i2c

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/go-spoolscale/internal/frame"
	"github.com/ZaparooProject/go-spoolscale/pn532"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// Address is the 7 bit PN532 bus address (0x48/0x49 with the R/W bit).
	Address = 0x24

	pn532Ready = 0x01

	// Max clock frequency (400 kHz).
	maxClockFreq = 400 * physic.KiloHertz

	defaultTimeout = time.Second
	readyPoll      = time.Millisecond
)

// conn is the part of a periph i2c.Dev the transport needs.
type conn interface {
	Tx(w, r []byte) error
}

// Transport implements the pn532.Transport interface for I2C communication
type Transport struct {
	dev     conn
	bus     i2c.BusCloser
	busName string
	timeout time.Duration
	mu      sync.Mutex
}

// New opens busName ("" picks the first bus) and addresses the PN532 on it.
func New(busName string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, pn532.NewTransportError("open", busName, err, pn532.ErrorTypePermanent)
	}

	// Ignore error, continue with default speed
	_ = bus.SetSpeed(maxClockFreq)

	t := newTransport(&i2c.Dev{Addr: Address, Bus: bus}, busName)
	t.bus = bus
	return t, nil
}

func newTransport(dev conn, busName string) *Transport {
	return &Transport{dev: dev, busName: busName, timeout: defaultTimeout}
}

// SendCommand sends a command to the PN532 and waits for response
func (t *Transport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dev == nil {
		return nil, pn532.ErrTransportClosed
	}

	frm, err := frame.Build(cmd, args)
	if err != nil {
		return nil, pn532.NewTransportError("SendCommand", t.busName, err, pn532.ErrorTypePermanent)
	}
	if err := t.dev.Tx(frm, nil); err != nil {
		return nil, pn532.NewTransportError("write", t.busName,
			fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err), pn532.ErrorTypeTransient)
	}

	if err := t.waitAck(ctx); err != nil {
		return nil, err
	}

	payload, err := t.receiveFrame(ctx)
	if err != nil {
		if ctx.Err() != nil {
			_ = t.dev.Tx(frame.AckFrame, nil)
		}
		return nil, err
	}
	return payload, nil
}

func (t *Transport) waitAck(ctx context.Context) error {
	ack := make([]byte, 1+len(frame.AckFrame))
	if err := t.readReady(ctx, "waitAck", ack); err != nil {
		if errors.Is(err, pn532.ErrTransportTimeout) {
			return pn532.NewTransportError("waitAck", t.busName, pn532.ErrNoACK, pn532.ErrorTypeTransient)
		}
		return err
	}
	if !bytes.Equal(ack[1:], frame.AckFrame) {
		return pn532.NewTransportError("waitAck", t.busName, pn532.ErrNoACK, pn532.ErrorTypeTransient)
	}
	return nil
}

func (t *Transport) receiveFrame(ctx context.Context) ([]byte, error) {
	buf := make([]byte, 1+frame.MaxDataLength+7)
	if err := t.readReady(ctx, "receiveFrame", buf); err != nil {
		return nil, err
	}

	payload, err := frame.Parse(buf[1:])
	switch {
	case err == nil:
		return payload, nil
	case errors.Is(err, frame.ErrApplication):
		return nil, pn532.NewTransportError("receiveFrame", t.busName, err, pn532.ErrorTypePermanent)
	default:
		_ = t.dev.Tx(frame.NackFrame, nil)
		return nil, pn532.NewTransportError("receiveFrame", t.busName, err, pn532.ErrorTypeTransient)
	}
}

// readReady polls reads into buf until its status byte reports ready.
func (t *Transport) readReady(ctx context.Context, op string, buf []byte) error {
	deadline := time.Now().Add(t.timeout)
	for {
		if err := t.dev.Tx(nil, buf); err != nil {
			return pn532.NewTransportError(op, t.busName,
				fmt.Errorf("%w: %w", pn532.ErrTransportRead, err), pn532.ErrorTypeTransient)
		}
		if buf[0]&pn532Ready != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return pn532.NewTimeoutError(op, t.busName)
		}

		timer := time.NewTimer(readyPoll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// SetTimeout sets the read timeout for the transport
func (t *Transport) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return pn532.ErrInvalidParameter
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close releases the bus.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dev = nil
	if t.bus == nil {
		return nil
	}
	bus := t.bus
	t.bus = nil
	if err := bus.Close(); err != nil {
		return fmt.Errorf("failed to close I2C bus %s: %w", t.busName, err)
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportI2C
}

// Ensure Transport implements pn532.Transport
var _ pn532.Transport = (*Transport)(nil)
