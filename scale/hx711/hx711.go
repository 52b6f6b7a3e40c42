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

// Package hx711 reads an HX711 24-bit load cell amplifier by bit-banging
// its two wire interface over periph GPIO pins.
package hx711

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// ErrPinNotFound is returned when a pin name is unknown to the host.
var ErrPinNotFound = errors.New("gpio pin not found")

// Gain selects the input channel and amplification of the next conversion.
type Gain int

// Gain settings. The value is the number of extra clock pulses after the
// 24 data bits.
const (
	Gain128 Gain = 1 // channel A
	Gain32  Gain = 2 // channel B
	Gain64  Gain = 3 // channel A
)

// ParseGain maps the amplification factor to a Gain.
func ParseGain(factor int) (Gain, error) {
	switch factor {
	case 128:
		return Gain128, nil
	case 64:
		return Gain64, nil
	case 32:
		return Gain32, nil
	default:
		return 0, fmt.Errorf("unsupported gain %d", factor)
	}
}

const (
	dataBits      = 24
	powerDownHold = 80 * time.Microsecond
)

// DataPin is the DOUT line. Low means a conversion is ready.
type DataPin interface {
	Read() gpio.Level
}

// ClockPin is the PD_SCK line.
type ClockPin interface {
	Out(l gpio.Level) error
}

// Device is an HX711 on two GPIO lines. It implements scale.ADC.
type Device struct {
	data  DataPin
	clock ClockPin
	gain  Gain
	mu    sync.Mutex
}

// New wraps already configured pins.
func New(data DataPin, clock ClockPin, gain Gain) (*Device, error) {
	if gain < Gain128 || gain > Gain64 {
		return nil, fmt.Errorf("invalid gain setting %d", gain)
	}
	if err := clock.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("failed to drive clock low: %w", err)
	}
	return &Device{data: data, clock: clock, gain: gain}, nil
}

// Open initializes the host drivers and looks the pins up by name, e.g.
// "GPIO5".
func Open(dataName, clockName string, gain Gain) (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}

	data := gpioreg.ByName(dataName)
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, dataName)
	}
	clock := gpioreg.ByName(clockName)
	if clock == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, clockName)
	}
	if err := data.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("failed to configure %s as input: %w", dataName, err)
	}
	return New(data, clock, gain)
}

// Ready reports whether a conversion is waiting.
func (d *Device) Ready() bool {
	return d.data.Read() == gpio.Low
}

// Read clocks out one conversion and selects the gain for the next one.
// The caller checks Ready first.
func (d *Device) Read() (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var raw uint32
	for i := 0; i < dataBits; i++ {
		if err := d.pulse(); err != nil {
			return 0, err
		}
		raw <<= 1
		if d.data.Read() == gpio.High {
			raw |= 1
		}
	}
	for i := 0; i < int(d.gain); i++ {
		if err := d.pulse(); err != nil {
			return 0, err
		}
	}

	return signExtend(raw), nil
}

// PowerDown holds the clock high until the chip sleeps.
func (d *Device) PowerDown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.clock.Out(gpio.High); err != nil {
		return fmt.Errorf("power down: %w", err)
	}
	time.Sleep(powerDownHold)
	return nil
}

// PowerUp wakes the chip. The gain resets to 128 until the next Read.
func (d *Device) PowerUp() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.clock.Out(gpio.Low); err != nil {
		return fmt.Errorf("power up: %w", err)
	}
	return nil
}

func (d *Device) pulse() error {
	if err := d.clock.Out(gpio.High); err != nil {
		return fmt.Errorf("clock high: %w", err)
	}
	if err := d.clock.Out(gpio.Low); err != nil {
		return fmt.Errorf("clock low: %w", err)
	}
	return nil
}

// signExtend turns a 24-bit two's complement value into an int32.
func signExtend(raw uint32) int32 {
	if raw&0x800000 != 0 {
		raw |= 0xFF000000
	}
	return int32(raw)
}
