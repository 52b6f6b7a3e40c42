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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-spoolscale/tag"
)

func TestParseCommand_Actions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    Action
	}{
		{name: "tare", payload: `{"action":"tare"}`, want: ActionTare},
		{name: "calibrate", payload: `{"action":"calibrate"}`, want: ActionCalibrate},
		{name: "calibrate echo is ignored", payload: `{"action":"calibrate","result":987}`, want: ActionNone},
		{name: "calibrate echo with null result", payload: `{"action":"calibrate","result":null}`, want: ActionNone},
		{name: "configure without groups", payload: `{"action":"configure"}`, want: ActionConfigure},
		{name: "test", payload: `{"action":"test"}`, want: ActionTest},
		{name: "unknown action", payload: `{"action":"reboot"}`, want: ActionNone},
		{name: "missing action", payload: `{"scale":{"calibration":900}}`, want: ActionNone},
		{name: "action case matters", payload: `{"action":"TARE"}`, want: ActionNone},
		{name: "json null", payload: `null`, want: ActionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cmd, err := ParseCommand([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.Action)
		})
	}
}

func TestParseCommand_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
	}{
		{name: "truncated", payload: `{"action":"tare"`},
		{name: "not json", payload: `tare`},
		{name: "array", payload: `[1,2]`},
		{name: "empty", payload: ``},
		{name: "wrong action type", payload: `{"action":5}`},
		{name: "negative weight", payload: `{"action":"configure","scale":{"known_weight":-1}}`},
		{name: "bad display timeout", payload: `{"action":"configure","display":{"display_timeout":"soon"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cmd, err := ParseCommand([]byte(tt.payload))
			require.ErrorIs(t, err, ErrParseFailed)
			assert.Equal(t, Command{}, cmd)
			assert.Equal(t, KindParseFailed, KindOf(err))
		})
	}
}

func TestParseCommand_ConfigureCalibrationOnly(t *testing.T) {
	t.Parallel()

	cmd, err := ParseCommand([]byte(`{"action":"configure","scale":{"calibration":900}}`))
	require.NoError(t, err)
	require.Equal(t, ActionConfigure, cmd.Action)

	require.NotNil(t, cmd.Delta.Calibration)
	assert.InDelta(t, 900.0, *cmd.Delta.Calibration, 0)
	assert.Nil(t, cmd.Delta.KnownWeight)
	assert.Nil(t, cmd.Delta.Interval)
	assert.Nil(t, cmd.Delta.Sampling)
	assert.Nil(t, cmd.Delta.DisplayTimeout)
	assert.Nil(t, cmd.Delta.TagDecay)

	cfg := cmd.Delta.Apply(DefaultConfig())
	want := DefaultConfig()
	want.Calibration = 900
	assert.Equal(t, want, cfg)
}

func TestParseCommand_ConfigureAllGroups(t *testing.T) {
	t.Parallel()

	payload := `{
		"action": "configure",
		"scale": {"calibration": 1020.5, "known_weight": 500, "update_interval": 250, "sampling_size": 5},
		"display": {"display_timeout": 60000},
		"rfid": {"decay": 3000}
	}`
	cmd, err := ParseCommand([]byte(payload))
	require.NoError(t, err)

	got := cmd.Delta.Apply(DefaultConfig())
	assert.Equal(t, Config{
		DisplayTimeout: time.Minute,
		Calibration:    1020.5,
		KnownWeight:    500,
		Interval:       250 * time.Millisecond,
		Sampling:       5,
		TagDecay:       3 * time.Second,
	}, got)
}

func TestParseCommand_ConfigureZeroMeansUnchanged(t *testing.T) {
	t.Parallel()

	payload := `{"action":"configure","scale":{"calibration":0,"known_weight":0,"update_interval":0,"sampling_size":0},"rfid":{"decay":0}}`
	cmd, err := ParseCommand([]byte(payload))
	require.NoError(t, err)
	assert.True(t, cmd.Delta.IsZero())
	assert.Equal(t, DefaultConfig(), cmd.Delta.Apply(DefaultConfig()))
}

func TestParseCommand_DisplayTimeoutPresence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want    *time.Duration
		name    string
		payload string
	}{
		{
			name:    "explicit zero disables blanking",
			payload: `{"action":"configure","display":{"display_timeout":0}}`,
			want:    tag.Ptr(time.Duration(0)),
		},
		{
			name:    "value in milliseconds",
			payload: `{"action":"configure","display":{"display_timeout":1500}}`,
			want:    tag.Ptr(1500 * time.Millisecond),
		},
		{
			name:    "absent key",
			payload: `{"action":"configure","display":{}}`,
		},
		{
			name:    "absent group",
			payload: `{"action":"configure"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cmd, err := ParseCommand([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.Delta.DisplayTimeout)
		})
	}
}

func TestParseCommand_WriteTag(t *testing.T) {
	t.Parallel()

	payload := `{"action":"write-tag","tag":{
		"spool_id":"3f2a8c1e-5b7d-4e9f-a1c2-0d3e4f5a6b7c",
		"spool_weight":1000,
		"material":"PLA",
		"color":"",
		"manufacturer":"Prusament",
		"spool_name":"Galaxy Black",
		"timestamp":0
	}}`
	cmd, err := ParseCommand([]byte(payload))
	require.NoError(t, err)
	require.Equal(t, ActionWriteTag, cmd.Action)
	require.NotNil(t, cmd.Record)

	assert.Equal(t, tag.Record{
		SpoolID:      "3f2a8c1e-5b7d-4e9f-a1c2-0d3e4f5a6b7c",
		Weight:       tag.Ptr(uint32(1000)),
		Material:     tag.Ptr("PLA"),
		Manufacturer: tag.Ptr("Prusament"),
		Name:         tag.Ptr("Galaxy Black"),
	}, *cmd.Record)
}

func TestParseCommand_WriteTagWithoutIdentifier(t *testing.T) {
	t.Parallel()

	payloads := []string{
		`{"action":"write-tag"}`,
		`{"action":"write-tag","tag":{}}`,
		`{"action":"write-tag","tag":{"spool_id":"","material":"PLA"}}`,
		`{"action":"write-tag","tag":{"material":"PLA","spool_weight":1000}}`,
	}
	for _, p := range payloads {
		cmd, err := ParseCommand([]byte(p))
		require.NoError(t, err, p)
		assert.Equal(t, Command{}, cmd, p)
	}
}

func TestParseCommand_TestRoutine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		payload string
		want    string
	}{
		{payload: `{"action":"test"}`, want: RoutineAll},
		{payload: `{"action":"test","routine":"error"}`, want: RoutineError},
		{payload: `{"action":"test","routine":"measurement"}`, want: RoutineMeasurement},
		{payload: `{"action":"test","routine":"fireworks"}`, want: RoutineAll},
	}

	for _, tt := range tests {
		cmd, err := ParseCommand([]byte(tt.payload))
		require.NoError(t, err)
		assert.Equal(t, ActionTest, cmd.Action)
		assert.Equal(t, tt.want, cmd.Routine, tt.payload)
	}
}
