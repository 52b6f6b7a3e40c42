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

// Package prefs persists the device preferences as a small YAML file. Key
// names match the preference keys used by the firmware so an exported
// preference dump can be loaded as is.
package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	spoolscale "github.com/ZaparooProject/go-spoolscale"
)

// document is the on-disk form. Durations are milliseconds.
type document struct {
	DisplayTimeout *int64   `yaml:"d_timeout,omitempty"`
	Calibration    *float64 `yaml:"lc_calibr,omitempty"`
	KnownWeight    *uint32  `yaml:"lc_weight,omitempty"`
	Interval       *int64   `yaml:"lc_interval,omitempty"`
	Sampling       *int     `yaml:"lc_sampling,omitempty"`
	TagDecay       *int64   `yaml:"rfid_decay,omitempty"`
}

// Store reads and writes preferences at a fixed path. It implements
// spoolscale.ConfigStore.
type Store struct {
	path string
	mu   sync.Mutex
}

var _ spoolscale.ConfigStore = (*Store)(nil)

// NewStore returns a store for path. The file need not exist.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored preferences. Missing keys, and a missing file,
// fall back to spoolscale.DefaultConfig.
func (s *Store) Load() (spoolscale.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := spoolscale.DefaultConfig()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read preferences: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return cfg, fmt.Errorf("failed to parse preferences %s: %w", s.path, err)
	}
	return doc.apply(cfg), nil
}

// Save writes every preference. The file is replaced atomically.
func (s *Store) Save(cfg spoolscale.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(fromConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".prefs-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create preferences file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace preferences: %w", err)
	}
	return nil
}

func (d document) apply(cfg spoolscale.Config) spoolscale.Config {
	if d.DisplayTimeout != nil {
		cfg.DisplayTimeout = millis(*d.DisplayTimeout)
	}
	if d.Calibration != nil {
		cfg.Calibration = *d.Calibration
	}
	if d.KnownWeight != nil {
		cfg.KnownWeight = *d.KnownWeight
	}
	if d.Interval != nil {
		cfg.Interval = millis(*d.Interval)
	}
	if d.Sampling != nil {
		cfg.Sampling = *d.Sampling
	}
	if d.TagDecay != nil {
		cfg.TagDecay = millis(*d.TagDecay)
	}
	return cfg
}

func fromConfig(cfg spoolscale.Config) document {
	return document{
		DisplayTimeout: ptr(cfg.DisplayTimeout.Milliseconds()),
		Calibration:    ptr(cfg.Calibration),
		KnownWeight:    ptr(cfg.KnownWeight),
		Interval:       ptr(cfg.Interval.Milliseconds()),
		Sampling:       ptr(cfg.Sampling),
		TagDecay:       ptr(cfg.TagDecay.Milliseconds()),
	}
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func ptr[T any](v T) *T {
	return &v
}
