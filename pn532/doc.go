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

// Package pn532 drives a PN532 contactless reader far enough to read and
// write MIFARE Classic blocks.
//
// A Device runs over a Transport. The uart and i2c subpackages provide the
// hardware transports:
//
//	transport, err := uart.New("/dev/ttyUSB0")
//	if err != nil {
//		return err
//	}
//	device, err := pn532.New(transport, pn532.WithRetryConfig(pn532.DefaultRetryConfig()))
//	if err != nil {
//		return err
//	}
//	if err := device.Init(ctx); err != nil {
//		return err
//	}
//
// Device implements tag.Reader, so it can back a tag.Store directly.
package pn532
