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

// Package detect finds PN532 readers attached over USB serial adapters or
// I2C buses.
package detect

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ZaparooProject/go-spoolscale/pn532"
	"github.com/ZaparooProject/go-spoolscale/pn532/uart"
	"go.bug.st/serial/enumerator"
)

// Detection errors
var (
	ErrNoDevicesFound      = errors.New("no PN532 devices found")
	ErrUnsupportedPlatform = errors.New("detection not supported on this platform")
)

// Mode controls how intrusive detection is.
type Mode int

const (
	// Passive only lists candidates, nothing is written to any device.
	Passive Mode = iota
	// Safe queries candidates with GetFirmwareVersion.
	Safe
)

// Confidence rates how likely a candidate is a PN532.
type Confidence int

const (
	Low Confidence = iota
	Medium
	High
)

func (c Confidence) String() string {
	switch c {
	case High:
		return "high"
	case Medium:
		return "medium"
	default:
		return "low"
	}
}

// DeviceInfo describes a candidate reader.
type DeviceInfo struct {
	Metadata   map[string]string
	Transport  pn532.TransportType
	Path       string
	Name       string
	Confidence Confidence
}

// Options configures Detect.
type Options struct {
	// IgnorePaths are device paths never touched, e.g. the serial port of
	// the display.
	IgnorePaths []string
	// Blocklist holds VID:PID pairs of USB devices never queried.
	Blocklist []string
	Mode      Mode
	// QueryTimeout bounds a single query.
	QueryTimeout time.Duration
}

// DefaultOptions returns safe detection with a short query timeout.
func DefaultOptions() Options {
	return Options{Mode: Safe, QueryTimeout: 500 * time.Millisecond}
}

// USB serial bridges PN532 breakout boards ship with.
var knownBridges = map[string]string{
	"1A86:7523": "CH340",
	"10C4:EA60": "CP210x",
	"0403:6001": "FT232R",
	"067B:2303": "PL2303",
}

// listPorts and queryPort are replaced in tests.
var (
	listPorts = enumerator.GetDetailedPortsList
	queryPort = querySerial
)

// Detect returns the candidates found on every transport, best first.
func Detect(ctx context.Context, opts Options) ([]DeviceInfo, error) {
	devices, err := detectSerial(ctx, opts)
	if err != nil {
		return nil, err
	}

	i2cDevices, err := detectI2C(ctx, opts)
	if err != nil && !errors.Is(err, ErrUnsupportedPlatform) {
		return nil, err
	}
	devices = append(devices, i2cDevices...)

	if len(devices) == 0 {
		return nil, ErrNoDevicesFound
	}
	sortByConfidence(devices)
	return devices, nil
}

func detectSerial(ctx context.Context, opts Options) ([]DeviceInfo, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	devices := make([]DeviceInfo, 0, len(ports))
	for _, p := range ports {
		if ctx.Err() != nil {
			return devices, ctx.Err()
		}
		if !p.IsUSB || IsPathIgnored(p.Name, opts.IgnorePaths) {
			continue
		}

		vidpid := strings.ToUpper(p.VID + ":" + p.PID)
		if IsBlocked(vidpid, opts.Blocklist) {
			continue
		}

		device := DeviceInfo{
			Transport:  pn532.TransportUART,
			Path:       p.Name,
			Name:       p.Product,
			Confidence: Low,
			Metadata:   map[string]string{"vidpid": vidpid, "serial": p.SerialNumber},
		}
		if bridge, ok := knownBridges[vidpid]; ok {
			device.Confidence = Medium
			device.Metadata["bridge"] = bridge
		}

		if opts.Mode == Safe {
			queryCtx, cancel := context.WithTimeout(ctx, opts.QueryTimeout)
			fw, err := queryPort(queryCtx, p.Name)
			cancel()
			if err == nil {
				device.Confidence = High
				device.Metadata["firmware"] = fw
			}
		}

		devices = append(devices, device)
	}
	return devices, nil
}

func querySerial(ctx context.Context, path string) (string, error) {
	transport, err := uart.New(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = transport.Close() }()

	device, err := pn532.New(transport)
	if err != nil {
		return "", err
	}
	fw, err := device.FirmwareVersion(ctx)
	if err != nil {
		return "", err
	}
	return fw.String(), nil
}

func sortByConfidence(devices []DeviceInfo) {
	slices.SortStableFunc(devices, func(a, b DeviceInfo) int {
		return int(b.Confidence) - int(a.Confidence)
	})
}

// IsBlocked checks if a USB device is in the blocklist.
func IsBlocked(vidpid string, blocklist []string) bool {
	vidpid = strings.ToUpper(strings.TrimSpace(vidpid))
	for _, blocked := range blocklist {
		if vidpid == strings.ToUpper(strings.TrimSpace(blocked)) {
			return true
		}
	}
	return false
}

// IsPathIgnored checks if a device path should be ignored.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}
	normalized := normalizedPath(devicePath)
	for _, p := range ignorePaths {
		if p != "" && normalizedPath(p) == normalized {
			return true
		}
	}
	return false
}

// normalizedPath normalizes a device path for comparison
func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
