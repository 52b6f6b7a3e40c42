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

package prefs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	spoolscale "github.com/ZaparooProject/go-spoolscale"
)

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	s := NewStore(filepath.Join(t.TempDir(), "prefs.yaml"))
	cfg, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, spoolscale.DefaultConfig(), cfg)
}

func TestLoad_PartialDocument(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lc_calibr: 412.5\nrfid_decay: 4000\n"), 0o600))

	cfg, err := NewStore(path).Load()
	require.NoError(t, err)

	want := spoolscale.DefaultConfig()
	want.Calibration = 412.5
	want.TagDecay = 4 * time.Second
	assert.Equal(t, want, cfg)
}

func TestLoad_ZeroDisplayTimeoutKept(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("d_timeout: 0\n"), 0o600))

	cfg, err := NewStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.DisplayTimeout)
}

func TestLoad_Malformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lc_weight: [1, 2\n"), 0o600))

	cfg, err := NewStore(path).Load()
	require.Error(t, err)
	assert.Equal(t, spoolscale.DefaultConfig(), cfg)
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "prefs.yaml")
	s := NewStore(path)
	cfg := spoolscale.Config{
		DisplayTimeout: 0,
		Calibration:    -213.75,
		KnownWeight:    500,
		Interval:       250 * time.Millisecond,
		Sampling:       8,
		TagDecay:       30 * time.Second,
	}
	require.NoError(t, s.Save(cfg))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "lc_interval: 250")
	assert.Contains(t, string(data), "d_timeout: 0")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestSave_Overwrites(t *testing.T) {
	t.Parallel()

	s := NewStore(filepath.Join(t.TempDir(), "prefs.yaml"))
	first := spoolscale.DefaultConfig()
	require.NoError(t, s.Save(first))

	second := first
	second.Sampling = 3
	require.NoError(t, s.Save(second))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, got.Sampling)
}
