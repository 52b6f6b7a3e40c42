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
	"context"
	"time"

	"github.com/ZaparooProject/go-spoolscale/scale"
	"github.com/ZaparooProject/go-spoolscale/tag"
)

// Sensor is the load cell. *scale.Scale implements it.
type Sensor interface {
	Ready(ctx context.Context) bool
	Tare(ctx context.Context) error
	// Measure returns the previous reading unchanged while the sampling
	// interval has not elapsed.
	Measure(ctx context.Context, sampling int) (scale.Reading, error)
	Units(ctx context.Context, n int) (float64, error)
	SetCalibration(factor float64)
	Configure(calibration float64, interval time.Duration)
}

// Display renders operator output. Implementations blank themselves after
// the timeout passes without a show call; Tick drives that check.
type Display interface {
	ShowInit() error
	ShowTitle(title string) error
	ShowMessage(msg string) error
	ShowMeasurement(grams int64) error
	ShowCalibration(factor float64) error
	ShowError(module, msg string) error
	SetTimeout(d time.Duration)
	Tick(now time.Time)
}

// Publisher sends an outbound message of the given topic kind.
type Publisher interface {
	Publish(ctx context.Context, kind string, v any) error
}

// ConfigStore persists the device preferences.
type ConfigStore interface {
	Load() (Config, error)
	Save(cfg Config) error
}

// TagStore reads and writes identity records. *tag.Store implements it.
type TagStore interface {
	Read(ctx context.Context) (tag.Record, error)
	Write(ctx context.Context, r tag.Record) error
}

// Clock paces the guided procedures.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock. Displays that compute their standby
// timeout should read the same clock as the controller that ticks them.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var (
	_ Sensor   = (*scale.Scale)(nil)
	_ TagStore = (*tag.Store)(nil)
)
