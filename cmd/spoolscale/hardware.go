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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ZaparooProject/go-spoolscale/display"
	"github.com/ZaparooProject/go-spoolscale/internal/config"
	"github.com/ZaparooProject/go-spoolscale/pn532"
	"github.com/ZaparooProject/go-spoolscale/pn532/detect"
	"github.com/ZaparooProject/go-spoolscale/pn532/i2c"
	"github.com/ZaparooProject/go-spoolscale/pn532/uart"
	"github.com/ZaparooProject/go-spoolscale/scale"
	"github.com/ZaparooProject/go-spoolscale/scale/hx711"
)

var errNoReader = errors.New("no reader configured")

// newTransport opens the configured PN532 transport. The auto transport
// takes the best detected candidate, skipping the display port.
func newTransport(ctx context.Context, cfg config.Config) (pn532.Transport, error) {
	switch cfg.Reader.Transport {
	case config.ReaderUART:
		t, err := uart.New(cfg.Reader.Port)
		if err != nil {
			return nil, fmt.Errorf("failed to create UART transport: %w", err)
		}
		return t, nil
	case config.ReaderI2C:
		t, err := i2c.New(cfg.Reader.Port)
		if err != nil {
			return nil, fmt.Errorf("failed to create I2C transport: %w", err)
		}
		return t, nil
	case config.ReaderAuto:
		opts := detect.DefaultOptions()
		if cfg.Display.Port != "" {
			opts.IgnorePaths = append(opts.IgnorePaths, cfg.Display.Port)
		}
		devices, err := detect.Detect(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("reader detection failed: %w", err)
		}
		best := devices[0]
		slog.Info("using detected reader", "path", best.Path, "transport", best.Transport,
			"confidence", best.Confidence)
		reader := cfg
		reader.Reader = config.ReaderConfig{Transport: string(best.Transport), Port: best.Path}
		return newTransport(ctx, reader)
	default:
		return nil, errNoReader
	}
}

// openReader opens and initialises the PN532. The returned device owns
// the transport.
func openReader(ctx context.Context, cfg config.Config) (*pn532.Device, error) {
	transport, err := newTransport(ctx, cfg)
	if err != nil {
		return nil, err
	}
	device, err := pn532.New(
		pn532.NewTransportWithRetry(transport, pn532.DefaultRetryConfig()),
		pn532.WithLogger(slog.Default().With("module", "pn532")),
	)
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("failed to create device: %w", err)
	}
	if err := device.Init(ctx); err != nil {
		_ = device.Close()
		return nil, fmt.Errorf("failed to initialize reader: %w", err)
	}
	if fw := device.Firmware(); fw != nil {
		slog.Info("reader ready", "firmware", fw.String())
	}
	return device, nil
}

func openScale(cfg config.Config, calibration float64, interval time.Duration) (*scale.Scale, *hx711.Device, error) {
	gain, err := hx711.ParseGain(cfg.Scale.Gain)
	if err != nil {
		return nil, nil, err
	}
	adc, err := hx711.Open(cfg.Scale.DataPin, cfg.Scale.ClockPin, gain)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open load cell: %w", err)
	}
	s := scale.New(adc, calibration, interval,
		scale.WithLogger(slog.Default().With("module", "scale")))
	return s, adc, nil
}

// screen is a display the command owns and closes.
type screen interface {
	display.Screen
	Close() error
}

type nopCloser struct {
	*display.Terminal
}

func (nopCloser) Close() error { return nil }

func openDisplay(cfg config.Config, noColor bool, out io.Writer, opts ...display.Option) (screen, error) {
	switch cfg.Display.Kind {
	case config.DisplayOLED:
		oled, err := display.OpenOLED(cfg.Display.Port, opts...)
		if err != nil {
			return nil, err
		}
		return oled, nil
	default:
		return nopCloser{display.NewTerminal(out, cfg.Display.Plain || noColor, opts...)}, nil
	}
}
