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

//go:build linux

package detect

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ZaparooProject/go-spoolscale/internal/frame"
	"github.com/ZaparooProject/go-spoolscale/pn532"
	"github.com/ZaparooProject/go-spoolscale/pn532/i2c"
	"golang.org/x/sys/unix"
)

const (
	// i2cSlave is the ioctl command to set slave address
	i2cSlave = 0x0703
	// i2cFuncs is the ioctl command to get adapter functionality
	i2cFuncs = 0x0705
	// i2cFuncI2C indicates plain I2C support
	i2cFuncI2C = 0x00000001
)

var busGlob = "/dev/i2c-*"

// detectI2C looks for a PN532 at its fixed address on every I2C adapter.
func detectI2C(ctx context.Context, opts Options) ([]DeviceInfo, error) {
	buses, err := filepath.Glob(busGlob)
	if err != nil {
		return nil, fmt.Errorf("failed to scan for I2C buses: %w", err)
	}

	var devices []DeviceInfo
	for _, bus := range buses {
		if ctx.Err() != nil {
			return devices, ctx.Err()
		}
		path := fmt.Sprintf("%s:0x%02X", bus, i2c.Address)
		if IsPathIgnored(bus, opts.IgnorePaths) || IsPathIgnored(path, opts.IgnorePaths) {
			continue
		}
		if !supportsI2C(bus) {
			continue
		}

		device := DeviceInfo{
			Transport:  pn532.TransportI2C,
			Path:       bus,
			Name:       fmt.Sprintf("I2C device at %s address 0x%02X", bus, i2c.Address),
			Confidence: Low,
			Metadata:   map[string]string{"address": fmt.Sprintf("0x%02X", i2c.Address)},
		}
		if opts.Mode == Safe {
			fw, err := queryI2C(ctx, bus, opts.QueryTimeout)
			if err != nil {
				continue
			}
			device.Confidence = High
			device.Metadata["firmware"] = fw
		}
		devices = append(devices, device)
	}
	return devices, nil
}

func supportsI2C(bus string) bool {
	fd, err := unix.Open(bus, unix.O_RDWR, 0)
	if err != nil {
		return false
	}
	defer func() { _ = unix.Close(fd) }()

	funcs, err := unix.IoctlGetUint32(fd, i2cFuncs)
	return err == nil && funcs&i2cFuncI2C != 0
}

// queryI2C sends GetFirmwareVersion straight through the i2c-dev interface.
func queryI2C(ctx context.Context, bus string, timeout time.Duration) (string, error) {
	fd, err := unix.Open(bus, unix.O_RDWR, 0)
	if err != nil {
		return "", err
	}
	defer func() { _ = unix.Close(fd) }()

	if err := unix.IoctlSetInt(fd, i2cSlave, i2c.Address); err != nil {
		return "", err
	}

	cmd, err := frame.Build(0x02, nil)
	if err != nil {
		return "", err
	}
	if _, err := unix.Write(fd, cmd); err != nil {
		return "", err
	}

	deadline := time.Now().Add(timeout)
	ack := make([]byte, 1+len(frame.AckFrame))
	if err := readReady(ctx, fd, ack, deadline); err != nil {
		return "", err
	}
	if !bytes.Equal(ack[1:], frame.AckFrame) {
		return "", pn532.ErrNoACK
	}

	resp := make([]byte, 1+16)
	if err := readReady(ctx, fd, resp, deadline); err != nil {
		return "", err
	}
	payload, err := frame.Parse(resp[1:])
	if err != nil {
		return "", err
	}
	if len(payload) < 5 || payload[0] != 0x03 {
		return "", pn532.ErrInvalidResponse
	}
	fw := pn532.FirmwareVersion{IC: payload[1], Ver: payload[2], Rev: payload[3], Support: payload[4]}
	return fw.String(), nil
}

func readReady(ctx context.Context, fd int, buf []byte, deadline time.Time) error {
	for {
		if _, err := unix.Read(fd, buf); err != nil {
			return err
		}
		if buf[0]&0x01 != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return pn532.ErrTransportTimeout
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		time.Sleep(time.Millisecond)
	}
}
