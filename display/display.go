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

// Package display renders operator output for the appliance, either on a
// terminal or on a tty2oled serial OLED. Both blank themselves after a
// timeout without updates.
package display

import (
	"strconv"
	"sync"
	"time"
)

// Fixed screen texts.
const (
	TitleInitialize   = "filamentwaage"
	MessageInitialize = "initializing..."
	TitleError        = "Error"
	TitleModule       = "Module "
	DataTitle         = "Weight:"
	DataUnit          = "g"
	CalibrationReady  = "Done. The result is: "
	DefaultTimeout    = 30 * time.Second
)

// Screen is implemented by every display in this package.
type Screen interface {
	ShowInit() error
	ShowTitle(title string) error
	ShowMessage(msg string) error
	ShowMeasurement(grams int64) error
	ShowCalibration(factor float64) error
	ShowError(module, msg string) error
	SetTimeout(d time.Duration)
	Tick(now time.Time)
	Blanked() bool
}

var (
	_ Screen = (*Terminal)(nil)
	_ Screen = (*OLED)(nil)
)

// standby tracks when the screen was last drawn. A zero timeout keeps the
// screen on.
type standby struct {
	now        func() time.Time
	lastUpdate time.Time
	timeout    time.Duration
	blanked    bool
	mu         sync.Mutex
}

func (s *standby) init(timeout time.Duration, now func() time.Time) {
	s.now = now
	s.timeout = timeout
	s.lastUpdate = now()
}

// touch records a draw and wakes the screen.
func (s *standby) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUpdate = s.now()
	s.blanked = false
}

// SetTimeout replaces the standby timeout.
func (s *standby) SetTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = d
}

// due reports, once per idle period, that the screen should be blanked.
func (s *standby) due(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timeout <= 0 || s.blanked || now.Sub(s.lastUpdate) < s.timeout {
		return false
	}
	s.blanked = true
	s.lastUpdate = now
	return true
}

// Blanked reports whether the screen is in standby.
func (s *standby) Blanked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blanked
}

// Option configures a display.
type Option func(*options)

type options struct {
	now     func() time.Time
	timeout time.Duration
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithTimeout sets the initial standby timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func formatFactor(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
