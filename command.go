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

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-spoolscale/tag"
)

// Action is the requested mode change of an inbound command.
type Action string

const (
	ActionNone      Action = ""
	ActionTare      Action = "tare"
	ActionCalibrate Action = "calibrate"
	ActionConfigure Action = "configure"
	ActionTest      Action = "test"
	ActionWriteTag  Action = "write-tag"
)

// Test routines, selected by the optional "routine" key of a test command.
const (
	RoutineAll         = "all"
	RoutineInit        = "init"
	RoutineTitle       = "title"
	RoutineMessage     = "message"
	RoutineMeasurement = "measurement"
	RoutineCalibration = "calibration"
	RoutineError       = "error"
)

var routines = map[string]bool{
	RoutineAll:         true,
	RoutineInit:        true,
	RoutineTitle:       true,
	RoutineMessage:     true,
	RoutineMeasurement: true,
	RoutineCalibration: true,
	RoutineError:       true,
}

// Command is a decoded inbound message. Only the fields belonging to the
// action are set.
type Command struct {
	// Record is the identity to write, for ActionWriteTag.
	Record *tag.Record
	// Delta holds the settings to change, for ActionConfigure.
	Delta   ConfigDelta
	Action  Action
	Routine string
}

type wireCommand struct {
	Scale   *wireScale                 `json:"scale"`
	RFID    *wireRFID                  `json:"rfid"`
	Tag     *wireTag                   `json:"tag"`
	Display map[string]json.RawMessage `json:"display"`
	Action  string                     `json:"action"`
	Routine string                     `json:"routine"`
}

type wireScale struct {
	Calibration    float64 `json:"calibration"`
	KnownWeight    uint32  `json:"known_weight"`
	UpdateInterval uint64  `json:"update_interval"`
	SamplingSize   int     `json:"sampling_size"`
}

type wireRFID struct {
	Decay uint64 `json:"decay"`
}

type wireTag struct {
	SpoolID      string `json:"spool_id"`
	Material     string `json:"material"`
	Color        string `json:"color"`
	Manufacturer string `json:"manufacturer"`
	SpoolName    string `json:"spool_name"`
	SpoolWeight  uint32 `json:"spool_weight"`
	Timestamp    uint32 `json:"timestamp"`
}

// ParseCommand decodes an inbound message. Malformed input returns
// ErrParseFailed; a well formed message that asks for nothing the device
// can do returns a Command with ActionNone.
func ParseCommand(payload []byte) (Command, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(payload, &keys); err != nil {
		return Command{}, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	var wire wireCommand
	if err := json.Unmarshal(payload, &wire); err != nil {
		return Command{}, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	switch Action(wire.Action) {
	case ActionTare:
		return Command{Action: ActionTare}, nil
	case ActionCalibrate:
		// our own calibration response carries a result
		if _, echo := keys["result"]; echo {
			return Command{}, nil
		}
		return Command{Action: ActionCalibrate}, nil
	case ActionConfigure:
		delta, err := wire.delta()
		if err != nil {
			return Command{}, err
		}
		return Command{Action: ActionConfigure, Delta: delta}, nil
	case ActionWriteTag:
		if wire.Tag == nil || wire.Tag.SpoolID == "" {
			return Command{}, nil
		}
		return Command{Action: ActionWriteTag, Record: wire.Tag.record()}, nil
	case ActionTest:
		routine := wire.Routine
		if !routines[routine] {
			routine = RoutineAll
		}
		return Command{Action: ActionTest, Routine: routine}, nil
	default:
		return Command{}, nil
	}
}

// delta maps the configure groups. Zero leaves a setting unchanged, except
// for display_timeout where the presence of the key counts.
func (w wireCommand) delta() (ConfigDelta, error) {
	var d ConfigDelta

	if s := w.Scale; s != nil {
		if s.Calibration != 0 {
			d.Calibration = tag.Ptr(s.Calibration)
		}
		if s.KnownWeight != 0 {
			d.KnownWeight = tag.Ptr(s.KnownWeight)
		}
		if s.UpdateInterval != 0 {
			d.Interval = tag.Ptr(millis(s.UpdateInterval))
		}
		if s.SamplingSize > 0 {
			d.Sampling = tag.Ptr(s.SamplingSize)
		}
	}

	if raw, ok := w.Display["display_timeout"]; ok {
		var ms uint64
		if err := json.Unmarshal(raw, &ms); err != nil {
			return ConfigDelta{}, fmt.Errorf("%w: display_timeout: %w", ErrParseFailed, err)
		}
		d.DisplayTimeout = tag.Ptr(millis(ms))
	}

	if w.RFID != nil && w.RFID.Decay != 0 {
		d.TagDecay = tag.Ptr(millis(w.RFID.Decay))
	}
	return d, nil
}

func (t wireTag) record() *tag.Record {
	r := &tag.Record{SpoolID: t.SpoolID}
	if t.SpoolWeight != 0 {
		r.Weight = tag.Ptr(t.SpoolWeight)
	}
	if t.Material != "" {
		r.Material = tag.Ptr(t.Material)
	}
	if t.Color != "" {
		r.Color = tag.Ptr(t.Color)
	}
	if t.Manufacturer != "" {
		r.Manufacturer = tag.Ptr(t.Manufacturer)
	}
	if t.SpoolName != "" {
		r.Name = tag.Ptr(t.SpoolName)
	}
	if t.Timestamp != 0 {
		r.Timestamp = tag.Ptr(t.Timestamp)
	}
	return r
}

func millis(ms uint64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
