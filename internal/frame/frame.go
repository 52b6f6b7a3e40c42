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

// Package frame provides frame manipulation and protocol constants for PN532 communication
package frame

import (
	"bytes"
	"errors"
	"fmt"
)

// Frame direction constants - these indicate the direction of data flow
const (
	HostToPn532 = 0xD4 // Commands from host to PN532
	Pn532ToHost = 0xD5 // Responses from PN532 to host
)

// Frame markers and control bytes
const (
	Preamble   = 0x00
	StartCode1 = 0x00
	StartCode2 = 0xFF
	Postamble  = 0x00
)

// Frame size limits
const (
	MaxDataLength  = 254 // TFI + command + args in a normal information frame
	MinFrameLength = 6   // start code + len + lcs + tfi + dcs
	// ErrorFrameCode is the payload of an application level error frame.
	ErrorFrameCode = 0x7F
)

// ACK and NACK frames - these are used for flow control
var (
	AckFrame  = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}
	NackFrame = []byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00}
)

// Frame errors
var (
	ErrDataTooLarge     = errors.New("frame data too large")
	ErrFrameCorrupted   = errors.New("frame corrupted")
	ErrChecksumMismatch = errors.New("frame checksum mismatch")
	ErrIncomplete       = errors.New("frame incomplete")
	ErrApplication      = errors.New("PN532 application error frame")
)

// CalculateChecksum returns the byte sum of data.
func CalculateChecksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// ValidateChecksum reports whether data does NOT sum to zero, i.e. whether
// the frame should be NACKed.
func ValidateChecksum(data []byte) bool {
	return CalculateChecksum(data) != 0
}

// CalculateDataChecksum returns the DCS for a TFI and its data.
func CalculateDataChecksum(tfi byte, data []byte) byte {
	return ^(tfi + CalculateChecksum(data)) + 1
}

// CalculateLengthChecksum returns the LCS for a length byte.
func CalculateLengthChecksum(length byte) byte {
	return ^length + 1
}

// Build assembles a normal information frame carrying a host command.
func Build(cmd byte, args []byte) ([]byte, error) {
	dataLen := 2 + len(args) // TFI + cmd + args
	if dataLen > MaxDataLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrDataTooLarge, dataLen)
	}

	frm := make([]byte, 0, dataLen+7)
	frm = append(frm, Preamble, StartCode1, StartCode2, byte(dataLen), CalculateLengthChecksum(byte(dataLen)))
	frm = append(frm, HostToPn532, cmd)
	frm = append(frm, args...)

	body := append([]byte{cmd}, args...)
	frm = append(frm, CalculateDataChecksum(HostToPn532, body), Postamble)
	return frm, nil
}

// IsAck reports whether buf contains an ACK frame.
func IsAck(buf []byte) bool {
	return bytes.Contains(buf, AckFrame)
}

// FindStart returns the offset just past the 0x00 0xFF start code, or -1.
func FindStart(buf []byte) int {
	i := bytes.Index(buf, []byte{StartCode1, StartCode2})
	if i < 0 {
		return -1
	}
	return i + 2
}

// Parse extracts the response payload (response code followed by data) from
// a PN532 to host frame. ErrIncomplete means more bytes are needed.
func Parse(buf []byte) ([]byte, error) {
	off := FindStart(buf)
	if off < 0 {
		return nil, ErrIncomplete
	}
	if len(buf) < off+2 {
		return nil, ErrIncomplete
	}

	length := buf[off]
	lcs := buf[off+1]
	if length+lcs != 0 {
		return nil, fmt.Errorf("%w: bad length checksum", ErrFrameCorrupted)
	}
	if length == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrFrameCorrupted)
	}

	start := off + 2
	end := start + int(length) // exclusive, DCS follows
	if len(buf) < end+1 {
		return nil, ErrIncomplete
	}

	if ValidateChecksum(buf[start : end+1]) {
		return nil, ErrChecksumMismatch
	}

	data := buf[start:end]
	if data[0] == ErrorFrameCode {
		return nil, ErrApplication
	}
	if data[0] != Pn532ToHost {
		return nil, fmt.Errorf("%w: unexpected TFI 0x%02X", ErrFrameCorrupted, data[0])
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: missing response code", ErrFrameCorrupted)
	}

	return bytes.Clone(data[1:]), nil
}
