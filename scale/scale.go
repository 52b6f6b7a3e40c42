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

// Package scale turns raw load cell samples into gram readings. It owns
// the tare offset, the calibration factor and the sampling rate limit.
package scale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// ErrNotReady is returned when the ADC has no conversion available in time.
var ErrNotReady = errors.New("load cell not ready")

// ADC is a load cell amplifier.
type ADC interface {
	// Ready reports whether a conversion can be read.
	Ready() bool
	// Read returns the next raw conversion.
	Read() (int32, error)
}

// Reading is a weight in grams and the time it was sampled.
type Reading struct {
	At    time.Time
	Value int64
}

// Defaults for the sensor settings.
const (
	DefaultCalibration = 987.0
	DefaultInterval    = 500 * time.Millisecond

	tareSamples  = 10
	readyTimeout = time.Second
	readyPoll    = 5 * time.Millisecond
)

// Option configures a Scale.
type Option func(*Scale)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scale) {
		s.now = now
	}
}

// WithLogger sets the scale logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scale) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Scale is safe for concurrent use.
type Scale struct {
	adc         ADC
	now         func() time.Time
	logger      *slog.Logger
	last        Reading
	offset      float64
	calibration float64
	interval    time.Duration
	mu          sync.Mutex
}

// New creates a Scale. A zero calibration falls back to the default.
func New(adc ADC, calibration float64, interval time.Duration, opts ...Option) *Scale {
	s := &Scale{
		adc:    adc,
		now:    time.Now,
		logger: slog.Default().With("module", "scale"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Configure(calibration, interval)
	return s
}

// Ready reports whether the ADC has a conversion available.
func (s *Scale) Ready(context.Context) bool {
	return s.adc.Ready()
}

// Configure replaces the calibration factor and the sampling interval.
func (s *Scale) Configure(calibration float64, interval time.Duration) {
	if calibration == 0 {
		calibration = DefaultCalibration
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calibration = calibration
	s.interval = interval
	s.logger.Debug("scale configured", "calibration", calibration, "interval", interval)
}

// SetCalibration replaces the calibration factor.
func (s *Scale) SetCalibration(factor float64) {
	if factor == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calibration = factor
}

// Calibration returns the active calibration factor.
func (s *Scale) Calibration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calibration
}

// Tare takes the current load as the zero point.
func (s *Scale) Tare(ctx context.Context) error {
	raw, err := s.average(ctx, tareSamples)
	if err != nil {
		return fmt.Errorf("tare: %w", err)
	}

	s.mu.Lock()
	s.offset = raw
	s.mu.Unlock()
	s.logger.Debug("scale tared", "offset", raw)
	return nil
}

// Units returns the mean of n samples in calibrated units, without rounding.
func (s *Scale) Units(ctx context.Context, n int) (float64, error) {
	raw, err := s.average(ctx, n)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return (raw - s.offset) / s.calibration, nil
}

// Measure returns a new reading averaged over sampling conversions. Within
// the interval of the previous reading, or while the ADC is busy, the
// previous reading is returned unchanged.
func (s *Scale) Measure(ctx context.Context, sampling int) (Reading, error) {
	s.mu.Lock()
	last := s.last
	interval := s.interval
	s.mu.Unlock()

	now := s.now()
	if !last.At.IsZero() && now.Sub(last.At) < interval {
		return last, nil
	}
	if !s.adc.Ready() {
		return last, nil
	}

	units, err := s.Units(ctx, sampling)
	if err != nil {
		return last, err
	}

	reading := Reading{At: now, Value: int64(math.Round(units))}
	s.mu.Lock()
	s.last = reading
	s.mu.Unlock()
	return reading, nil
}

func (s *Scale) average(ctx context.Context, n int) (float64, error) {
	if n < 1 {
		n = 1
	}

	var sum float64
	for i := 0; i < n; i++ {
		if err := s.waitReady(ctx); err != nil {
			return 0, err
		}
		v, err := s.adc.Read()
		if err != nil {
			return 0, fmt.Errorf("failed to read load cell: %w", err)
		}
		sum += float64(v)
	}
	return sum / float64(n), nil
}

func (s *Scale) waitReady(ctx context.Context) error {
	deadline := time.Now().Add(readyTimeout)
	for !s.adc.Ready() {
		if time.Now().After(deadline) {
			return ErrNotReady
		}
		timer := time.NewTimer(readyPoll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}
