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

package spoolscale

// Mode is the active run mode of the controller.
type Mode int

const (
	ModeInitialize Mode = iota
	ModeMeasure
	ModeCalibrate
	ModeConfigure
	ModeTare
	ModeWriteTag
	ModeError
	ModeTest
)

func (m Mode) String() string {
	switch m {
	case ModeInitialize:
		return "Initialize"
	case ModeMeasure:
		return "Measure"
	case ModeCalibrate:
		return "Calibrate"
	case ModeConfigure:
		return "Configure"
	case ModeTare:
		return "Tare"
	case ModeWriteTag:
		return "WriteTag"
	case ModeError:
		return "Error"
	case ModeTest:
		return "Test"
	default:
		return "Unknown"
	}
}
