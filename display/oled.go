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
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// tty2oled serial commands.
const (
	cmdClear      = "CMDCLS"
	cmdText       = "CMDTXT"
	cmdContrast   = "CMDCON"
	terminator    = "\n"
	oledBaudRate  = 115200
	oledCmdPacing = 20 * time.Millisecond
)

// Fonts and colors understood by CMDTXT.
const (
	fontSmall = 1
	fontLarge = 2
	colorOn   = 15
	colorOff  = 0
)

// ErrClosed is returned by an OLED that has been closed.
var ErrClosed = errors.New("display closed")

// OLED drives a 128x64 screen behind a tty2oled serial bridge.
type OLED struct {
	port   io.WriteCloser
	sleep  func(time.Duration)
	path   string
	screen standby
	mu     sync.Mutex
	closed bool
}

// OpenOLED opens the tty2oled bridge on a serial port, e.g. /dev/ttyUSB1.
func OpenOLED(path string, opts ...Option) (*OLED, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: oledBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open display port %s: %w", path, err)
	}
	o := newOLED(port, path, opts...)
	if err := o.send(cmdContrast + ",255"); err != nil {
		_ = port.Close()
		return nil, err
	}
	return o, nil
}

func newOLED(port io.WriteCloser, path string, opts ...Option) *OLED {
	o := buildOptions(opts)
	d := &OLED{port: port, path: path, sleep: time.Sleep}
	d.screen.init(o.timeout, o.now)
	return d
}

func (d *OLED) ShowInit() error {
	return d.draw(
		text(fontLarge, 7, 10, TitleInitialize),
		text(fontSmall, 10, 30, MessageInitialize),
	)
}

func (d *OLED) ShowTitle(title string) error {
	return d.draw(text(fontLarge, 2, 28, title))
}

func (d *OLED) ShowMessage(msg string) error {
	return d.draw(text(fontSmall, 0, 15, msg))
}

func (d *OLED) ShowMeasurement(grams int64) error {
	return d.draw(
		text(fontSmall, 10, 27, DataTitle),
		text(fontLarge, 10, 38, strconv.FormatInt(grams, 10)),
		text(fontLarge, 100, 38, DataUnit),
	)
}

func (d *OLED) ShowCalibration(factor float64) error {
	return d.draw(
		text(fontSmall, 10, 18, "Done."),
		text(fontSmall, 10, 27, strings.TrimPrefix(CalibrationReady, "Done. ")),
		text(fontLarge, 15, 38, formatFactor(factor)),
	)
}

func (d *OLED) ShowError(module, msg string) error {
	return d.draw(
		text(fontLarge, 40, 3, TitleError),
		text(fontSmall, 25, 20, TitleModule+module),
		text(fontSmall, 0, 35, msg),
	)
}

// SetTimeout sets the standby timeout. Zero keeps the screen on.
func (d *OLED) SetTimeout(timeout time.Duration) {
	d.screen.SetTimeout(timeout)
}

// Tick clears the screen once the timeout has passed.
func (d *OLED) Tick(now time.Time) {
	if !d.screen.due(now) {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		_ = d.send(cmdClear)
	}
}

// Blanked reports whether the display is in standby.
func (d *OLED) Blanked() bool {
	return d.screen.Blanked()
}

// Close clears the screen and releases the port.
func (d *OLED) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	_ = d.send(cmdClear)
	d.closed = true
	if err := d.port.Close(); err != nil {
		return fmt.Errorf("failed to close display port: %w", err)
	}
	return nil
}

// text builds a CMDTXT line. Commas in s are kept; the bridge splits only
// the first six fields.
func text(font, x, y int, s string) string {
	return fmt.Sprintf("%s,%d,%d,%d,%d,%d,%s", cmdText, font, colorOn, colorOff, x, y, s)
}

func (d *OLED) draw(lines ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.screen.touch()

	if err := d.send(cmdClear); err != nil {
		return err
	}
	for _, line := range lines {
		if err := d.send(line); err != nil {
			return err
		}
	}
	return nil
}

func (d *OLED) send(command string) error {
	if _, err := d.port.Write([]byte(command + terminator)); err != nil {
		return fmt.Errorf("failed to write to %s: %w", d.path, err)
	}
	d.sleep(oledCmdPacing)
	return nil
}
