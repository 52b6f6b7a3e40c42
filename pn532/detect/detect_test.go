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

package detect

import (
	"context"
	"errors"
	"testing"

	"github.com/ZaparooProject/go-spoolscale/pn532"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

func TestIsPathIgnored(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		devicePath  string
		ignorePaths []string
		want        bool
	}{
		{name: "empty ignore list", devicePath: "/dev/ttyUSB0", ignorePaths: nil, want: false},
		{name: "exact match", devicePath: "/dev/ttyUSB0", ignorePaths: []string{"/dev/ttyUSB0"}, want: true},
		{name: "no match", devicePath: "/dev/ttyUSB0", ignorePaths: []string{"/dev/ttyUSB1"}, want: false},
		{name: "case insensitive", devicePath: "COM3", ignorePaths: []string{"com3"}, want: true},
		{name: "unclean path", devicePath: "/dev/ttyACM0", ignorePaths: []string{"/dev/../dev/ttyACM0"}, want: true},
		{name: "empty entries skipped", devicePath: "/dev/ttyUSB0", ignorePaths: []string{"", "/dev/ttyUSB2"}, want: false},
		{name: "empty device path", devicePath: "", ignorePaths: []string{""}, want: false},
		{name: "i2c path with address", devicePath: "/dev/i2c-1:0x24", ignorePaths: []string{"/dev/i2c-1:0x24"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsPathIgnored(tt.devicePath, tt.ignorePaths))
		})
	}
}

func TestIsBlocked(t *testing.T) {
	t.Parallel()

	blocklist := []string{"1a86:7523", " 0403:6001 "}
	assert.True(t, IsBlocked("1A86:7523", blocklist))
	assert.True(t, IsBlocked("0403:6001", blocklist))
	assert.False(t, IsBlocked("10C4:EA60", blocklist))
	assert.False(t, IsBlocked("1A86:7523", nil))
}

func TestConfidence_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "low", Low.String())
	assert.Equal(t, "medium", Medium.String())
	assert.Equal(t, "high", High.String())
}

// The serial tests swap package level hooks and therefore do not run in
// parallel.

func stubSerial(t *testing.T, ports []*enumerator.PortDetails, query func(context.Context, string) (string, error)) {
	t.Helper()
	origList, origQuery := listPorts, queryPort
	listPorts = func() ([]*enumerator.PortDetails, error) { return ports, nil }
	queryPort = query
	t.Cleanup(func() {
		listPorts, queryPort = origList, origQuery
	})
}

func TestDetectSerial(t *testing.T) {
	ports := []*enumerator.PortDetails{
		{Name: "/dev/ttyS0", IsUSB: false},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1a86", PID: "7523", Product: "USB Serial"},
		{Name: "/dev/ttyUSB1", IsUSB: true, VID: "2341", PID: "0043", Product: "Arduino Uno"},
		{Name: "/dev/ttyACM0", IsUSB: true, VID: "10c4", PID: "ea60", Product: "CP2102"},
	}
	var queried []string
	stubSerial(t, ports, func(_ context.Context, path string) (string, error) {
		queried = append(queried, path)
		if path == "/dev/ttyACM0" {
			return "PN532 v1.6", nil
		}
		return "", errors.New("no answer")
	})

	opts := DefaultOptions()
	opts.IgnorePaths = []string{"/dev/ttyUSB1"}
	devices, err := detectSerial(context.Background(), opts)
	require.NoError(t, err)
	sortByConfidence(devices)

	require.Len(t, devices, 2)
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyACM0"}, queried)

	assert.Equal(t, "/dev/ttyACM0", devices[0].Path)
	assert.Equal(t, High, devices[0].Confidence)
	assert.Equal(t, "PN532 v1.6", devices[0].Metadata["firmware"])
	assert.Equal(t, pn532.TransportUART, devices[0].Transport)

	assert.Equal(t, "/dev/ttyUSB0", devices[1].Path)
	assert.Equal(t, Medium, devices[1].Confidence)
	assert.Equal(t, "CH340", devices[1].Metadata["bridge"])
}

func TestDetectSerial_PassiveDoesNotQuery(t *testing.T) {
	ports := []*enumerator.PortDetails{
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1a86", PID: "7523"},
	}
	stubSerial(t, ports, func(context.Context, string) (string, error) {
		t.Fatal("passive detection must not query")
		return "", nil
	})

	devices, err := detectSerial(context.Background(), Options{Mode: Passive})
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, Medium, devices[0].Confidence)
}

func TestDetectSerial_Blocklist(t *testing.T) {
	ports := []*enumerator.PortDetails{
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1a86", PID: "7523"},
	}
	stubSerial(t, ports, func(context.Context, string) (string, error) { return "", errors.New("x") })

	devices, err := detectSerial(context.Background(), Options{Mode: Safe, Blocklist: []string{"1A86:7523"}})
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestDetect_NothingFound(t *testing.T) {
	stubSerial(t, nil, nil)
	stubI2C(t)

	_, err := Detect(context.Background(), DefaultOptions())
	require.ErrorIs(t, err, ErrNoDevicesFound)
}
