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
	"log/slog"
	"sync"
	"time"
)

// PN532 Command codes
const (
	cmdGetFirmwareVersion  = 0x02
	cmdSamConfiguration    = 0x14
	cmdRFConfiguration     = 0x32
	cmdInDataExchange      = 0x40
	cmdInListPassiveTarget = 0x4A
	cmdInRelease           = 0x52
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// RetryConfig configures retry behavior for transport operations
	RetryConfig *RetryConfig
	// Timeout is the default timeout for operations
	Timeout time.Duration
	// PassiveActivationRetries bounds how often the PN532 retries target
	// activation before InListPassiveTarget reports an empty field.
	PassiveActivationRetries byte
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Timeout:                  time.Second,
		PassiveActivationRetries: 0x02,
	}
}

// FirmwareVersion is the answer to GetFirmwareVersion.
type FirmwareVersion struct {
	IC      byte
	Ver     byte
	Rev     byte
	Support byte
}

func (f FirmwareVersion) String() string {
	return fmt.Sprintf("PN5%02X v%d.%d", f.IC, f.Ver, f.Rev)
}

// Device represents a PN532 NFC reader device. It tracks the target
// selected by Detect until Halt releases it.
type Device struct {
	transport Transport
	logger    *slog.Logger
	config    *DeviceConfig
	firmware  *FirmwareVersion
	target    *selectedTarget
	mu        sync.Mutex
}

type selectedTarget struct {
	uid    []byte
	number byte
}

// New creates a new PN532 device with the given transport
func New(transport Transport, opts ...Option) (*Device, error) {
	device := &Device{
		transport: transport,
		config:    DefaultDeviceConfig(),
		logger:    slog.Default().With("module", "pn532"),
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	return device, nil
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.transport
}

// Init checks the PN532 answers, switches the SAM to normal mode and bounds
// the passive activation retries.
func (d *Device) Init(ctx context.Context) error {
	fw, err := d.FirmwareVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get firmware version: %w", err)
	}

	if err := d.SAMConfiguration(ctx); err != nil {
		return fmt.Errorf("failed to configure SAM: %w", err)
	}

	args := []byte{0x05, 0xFF, 0x01, d.config.PassiveActivationRetries}
	if _, err := d.command(ctx, cmdRFConfiguration, args); err != nil {
		return fmt.Errorf("failed to configure RF retries: %w", err)
	}

	d.logger.Info("reader ready", "firmware", fw.String(), "transport", d.transport.Type())
	return nil
}

// FirmwareVersion queries the chip version. The answer is cached for
// Firmware.
func (d *Device) FirmwareVersion(ctx context.Context) (*FirmwareVersion, error) {
	resp, err := d.command(ctx, cmdGetFirmwareVersion, nil)
	if err != nil {
		return nil, err
	}
	if len(resp) < 4 {
		return nil, fmt.Errorf("%w: firmware version too short: %d bytes", ErrInvalidResponse, len(resp))
	}

	fw := &FirmwareVersion{IC: resp[0], Ver: resp[1], Rev: resp[2], Support: resp[3]}
	d.mu.Lock()
	d.firmware = fw
	d.mu.Unlock()
	return fw, nil
}

// Firmware returns the version read by the last Init, or nil.
func (d *Device) Firmware() *FirmwareVersion {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.firmware
}

// SAMConfiguration puts the SAM in normal mode with the IRQ pin enabled.
func (d *Device) SAMConfiguration(ctx context.Context) error {
	_, err := d.command(ctx, cmdSamConfiguration, []byte{0x01, 0x14, 0x01})
	return err
}

// SetTimeout sets the default timeout for operations
func (d *Device) SetTimeout(timeout time.Duration) error {
	d.config.Timeout = timeout
	if err := d.transport.SetTimeout(timeout); err != nil {
		return fmt.Errorf("failed to set timeout on transport: %w", err)
	}
	return nil
}

// SetRetryConfig wraps the transport with retries, or updates the policy of
// an existing wrapper.
func (d *Device) SetRetryConfig(config *RetryConfig) {
	d.config.RetryConfig = config
	if tr, ok := d.transport.(*TransportWithRetry); ok {
		tr.SetRetryConfig(config)
		return
	}
	d.transport = NewTransportWithRetry(d.transport, config)
}

// Close closes the device connection
func (d *Device) Close() error {
	if d.transport != nil {
		if err := d.transport.Close(); err != nil {
			return fmt.Errorf("failed to close transport: %w", err)
		}
	}
	return nil
}

// command sends cmd and returns the response data after the response code.
func (d *Device) command(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	resp, err := d.transport.SendCommand(ctx, cmd, args)
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("%w: empty response to command 0x%02X", ErrInvalidResponse, cmd)
	}
	if resp[0] != cmd+1 {
		return nil, fmt.Errorf("%w: unexpected response code 0x%02X to command 0x%02X",
			ErrInvalidResponse, resp[0], cmd)
	}
	return resp[1:], nil
}

// dataExchange relays data to the selected target.
func (d *Device) dataExchange(ctx context.Context, data []byte) ([]byte, error) {
	d.mu.Lock()
	target := d.target
	d.mu.Unlock()
	if target == nil {
		return nil, ErrNoTarget
	}

	args := append([]byte{target.number}, data...)
	resp, err := d.command(ctx, cmdInDataExchange, args)
	if err != nil {
		return nil, err
	}
	if len(resp) < 1 {
		return nil, fmt.Errorf("%w: data exchange without status", ErrInvalidResponse)
	}
	if status := resp[0] & 0x3F; status != 0 {
		return nil, &DataExchangeError{Status: status}
	}
	return resp[1:], nil
}
