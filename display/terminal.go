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

package display

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Terminal renders screens as colored lines on a writer, usually stdout.
type Terminal struct {
	w      io.Writer
	title  *color.Color
	value  *color.Color
	alert  *color.Color
	faint  *color.Color
	screen standby
	mu     sync.Mutex
}

// NewTerminal creates a terminal display. Pass plain to disable colors.
func NewTerminal(w io.Writer, plain bool, opts ...Option) *Terminal {
	o := buildOptions(opts)
	t := &Terminal{
		w:     w,
		title: color.New(color.FgCyan, color.Bold),
		value: color.New(color.FgGreen, color.Bold),
		alert: color.New(color.FgRed, color.Bold),
		faint: color.New(color.Faint),
	}
	for _, c := range []*color.Color{t.title, t.value, t.alert, t.faint} {
		if plain {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
	}
	t.screen.init(o.timeout, o.now)
	return t
}

func (t *Terminal) ShowInit() error {
	return t.draw(func() error {
		if _, err := t.title.Fprintln(t.w, TitleInitialize); err != nil {
			return err
		}
		_, err := fmt.Fprintln(t.w, MessageInitialize)
		return err
	})
}

func (t *Terminal) ShowTitle(title string) error {
	return t.draw(func() error {
		_, err := t.title.Fprintln(t.w, title)
		return err
	})
}

func (t *Terminal) ShowMessage(msg string) error {
	return t.draw(func() error {
		_, err := fmt.Fprintln(t.w, msg)
		return err
	})
}

func (t *Terminal) ShowMeasurement(grams int64) error {
	return t.draw(func() error {
		_, err := fmt.Fprintf(t.w, "%s %s %s\n", DataTitle, t.value.Sprint(grams), DataUnit)
		return err
	})
}

func (t *Terminal) ShowCalibration(factor float64) error {
	return t.draw(func() error {
		_, err := fmt.Fprintf(t.w, "%s%s\n", CalibrationReady, t.value.Sprint(formatFactor(factor)))
		return err
	})
}

func (t *Terminal) ShowError(module, msg string) error {
	return t.draw(func() error {
		if _, err := t.alert.Fprintf(t.w, "%s: %s%s\n", TitleError, TitleModule, module); err != nil {
			return err
		}
		_, err := fmt.Fprintln(t.w, msg)
		return err
	})
}

// SetTimeout sets the standby timeout. Zero keeps the screen on.
func (t *Terminal) SetTimeout(d time.Duration) {
	t.screen.SetTimeout(d)
}

// Tick prints a standby marker once the timeout has passed.
func (t *Terminal) Tick(now time.Time) {
	if !t.screen.due(now) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = t.faint.Fprintln(t.w, "(display blanked)")
}

// Blanked reports whether the display is in standby.
func (t *Terminal) Blanked() bool {
	return t.screen.Blanked()
}

func (t *Terminal) draw(render func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.screen.touch()
	if err := render(); err != nil {
		return fmt.Errorf("terminal display: %w", err)
	}
	return nil
}
