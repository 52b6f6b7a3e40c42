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

import "time"

// Topic kinds of outbound messages.
const (
	TopicStatus    = "status"
	TopicResponse  = "response"
	TopicHeartbeat = "heartbeat"
	TopicCommand   = "command"
)

// Display titles.
const (
	TitleCalibration   = "Calibration"
	TitleConfiguration = "Configuration"
	TitleTare          = "Tare"
	TitleWriteTag      = "Write Tag"
)

// Operator messages.
const (
	MessageScaleReady             = "Put a weight on your scale to get started."
	MessageTareStart              = "Remove all weights from your scale."
	MessageTareReady              = "Done."
	MessageCalibrationStart       = "Calibration started."
	MessageCalibrationKnownWeight = "Done. Place a known weight on the scale."
	MessageWriteTagStart          = "Place the tag on the reader."
	MessageWriteTagReady          = "Tag written."
)

// Modules named on the error screen.
const (
	ModuleWifi    = "Wifi"
	ModuleMQTT    = "MQTT"
	ModuleScale   = "Scale"
	ModuleDisplay = "Display"
	ModuleRFID    = "RFID"
)

// Error screen messages.
const (
	ErrorTareFailed        = "Taring failed. Check serial."
	ErrorScaleNotReady     = "Scale not ready yet. Check serial."
	ErrorTagWriteFailed    = "Writing tag failed. Check serial."
	ErrorCalibrationFailed = "Calibration failed. Check serial."
)

// StatusMessage is published when the measured weight changes.
type StatusMessage struct {
	DeviceID string `json:"device_id"`
	SpoolID  string `json:"spool_id,omitempty"`
	Value    int64  `json:"value"`
}

// ResponseMessage reports the result of a calibration.
type ResponseMessage struct {
	DeviceID string  `json:"device_id"`
	Action   Action  `json:"action"`
	Result   float64 `json:"result"`
}

// HeartbeatMessage is the periodic liveness payload.
type HeartbeatMessage struct {
	DeviceID string `json:"device_id"`
	Status   string `json:"status"`
	Uptime   int64  `json:"uptime"`
}

// NewHeartbeat builds the liveness payload for a device running since
// started.
func NewHeartbeat(deviceID string, started, now time.Time) HeartbeatMessage {
	return HeartbeatMessage{
		DeviceID: deviceID,
		Status:   "alive",
		Uptime:   int64(now.Sub(started) / time.Second),
	}
}
