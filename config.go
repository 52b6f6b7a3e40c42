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
	"time"

	"github.com/ZaparooProject/go-spoolscale/scale"
)

// Defaults for Config.
const (
	DefaultDisplayTimeout = 30 * time.Second
	DefaultKnownWeight    = 100
	DefaultSampling       = 1
	DefaultTagDecay       = 10 * time.Second
)

// Config holds the device preferences the controller acts on.
type Config struct {
	// DisplayTimeout blanks the display after this long without an
	// update. Zero keeps it on.
	DisplayTimeout time.Duration
	Calibration    float64
	// KnownWeight is the reference weight in grams used by calibration.
	KnownWeight uint32
	Interval    time.Duration
	Sampling    int
	// TagDecay is how long a read tag stays attached to measurements.
	TagDecay time.Duration
}

// DefaultConfig returns the factory preferences.
func DefaultConfig() Config {
	return Config{
		DisplayTimeout: DefaultDisplayTimeout,
		Calibration:    scale.DefaultCalibration,
		KnownWeight:    DefaultKnownWeight,
		Interval:       scale.DefaultInterval,
		Sampling:       DefaultSampling,
		TagDecay:       DefaultTagDecay,
	}
}

// ConfigDelta is a partial Config. Nil fields leave the current value.
type ConfigDelta struct {
	DisplayTimeout *time.Duration
	Calibration    *float64
	KnownWeight    *uint32
	Interval       *time.Duration
	Sampling       *int
	TagDecay       *time.Duration
}

// IsZero reports whether the delta changes nothing.
func (d ConfigDelta) IsZero() bool {
	return d == ConfigDelta{}
}

// Apply returns cfg with the present fields of d replaced.
func (d ConfigDelta) Apply(cfg Config) Config {
	if d.DisplayTimeout != nil {
		cfg.DisplayTimeout = *d.DisplayTimeout
	}
	if d.Calibration != nil {
		cfg.Calibration = *d.Calibration
	}
	if d.KnownWeight != nil {
		cfg.KnownWeight = *d.KnownWeight
	}
	if d.Interval != nil {
		cfg.Interval = *d.Interval
	}
	if d.Sampling != nil {
		cfg.Sampling = *d.Sampling
	}
	if d.TagDecay != nil {
		cfg.TagDecay = *d.TagDecay
	}
	return cfg
}
