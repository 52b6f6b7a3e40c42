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
	"errors"
	"fmt"
	"time"
)

var (
	errNoTagStore = errors.New("no tag reader configured")
	errNoPending  = errors.New("no record to write")
)

// Guided procedure pacing.
const (
	initializeDelay = 3 * time.Second
	titleDelay      = 1500 * time.Millisecond
	tareTitleDelay  = time.Second
	calibrateStart  = 2500 * time.Millisecond
	calibrateStep   = 5 * time.Second
	tareSettle      = 1500 * time.Millisecond
	writeTagPresent = 5 * time.Second
	configureSettle = 1500 * time.Millisecond
	errorDelay      = 5 * time.Second
	testDelay       = 5 * time.Second
	testStepDelay   = time.Second

	calibrationSamples = 10
)

func (c *Controller) initialize(ctx context.Context) error {
	c.show(c.display.ShowInit())
	if err := c.wait(ctx, initializeDelay); err != nil {
		return err
	}

	if !c.sensor.Ready(ctx) {
		c.fail(ModuleScale, ErrorScaleNotReady, ErrSensorNotReady)
		return nil
	}
	c.show(c.display.ShowMessage(MessageScaleReady))
	c.transition(ModeMeasure)
	return nil
}

// calibrate derives a calibration factor from a known weight. The result is
// shown and published; the configured factor stays in effect until a
// configure command changes it.
func (c *Controller) calibrate(ctx context.Context) error {
	steps := []struct {
		show  func() error
		delay time.Duration
	}{
		{func() error { return c.display.ShowTitle(TitleCalibration) }, titleDelay},
		{func() error { return c.display.ShowMessage(MessageCalibrationStart) }, calibrateStart},
		{func() error { return c.display.ShowMessage(MessageTareStart) }, calibrateStep},
	}
	for _, step := range steps {
		c.show(step.show())
		if err := c.wait(ctx, step.delay); err != nil {
			return err
		}
	}

	cfg := c.state.Config
	defer c.sensor.SetCalibration(cfg.Calibration)

	c.sensor.SetCalibration(1)
	if err := c.sensor.Tare(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.fail(ModuleScale, ErrorCalibrationFailed, fmt.Errorf("%w: %w", ErrCalibrationFailed, err))
		return nil
	}

	c.show(c.display.ShowMessage(MessageCalibrationKnownWeight))
	if err := c.wait(ctx, calibrateStep); err != nil {
		return err
	}

	factor, err := CalibrationFactor(ctx, c.sensor, cfg.KnownWeight)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.fail(ModuleScale, ErrorCalibrationFailed, err)
		return nil
	}

	c.logger.Info("calibration finished", "factor", factor, "known_weight", cfg.KnownWeight)
	c.show(c.display.ShowCalibration(factor))
	c.publish(ctx, TopicResponse, ResponseMessage{
		DeviceID: c.deviceID,
		Action:   ActionCalibrate,
		Result:   factor,
	})

	if err := c.wait(ctx, calibrateStep); err != nil {
		return err
	}
	c.transition(ModeMeasure)
	return nil
}

// CalibrationFactor samples the loaded sensor, which must run with a
// factor of 1 on a tared scale, and returns the factor that maps its units
// to grams of knownWeight.
func CalibrationFactor(ctx context.Context, sensor Sensor, knownWeight uint32) (float64, error) {
	if knownWeight == 0 {
		return 0, fmt.Errorf("%w: %w", ErrCalibrationFailed, ErrInvalidKnownWeight)
	}
	units, err := sensor.Units(ctx, calibrationSamples)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCalibrationFailed, err)
	}
	factor := units / float64(knownWeight)
	if factor == 0 {
		return 0, fmt.Errorf("%w: no load on the scale", ErrCalibrationFailed)
	}
	return factor, nil
}

// configure merges the pending change into the preferences, persists them
// and applies them.
func (c *Controller) configure(ctx context.Context) error {
	c.show(c.display.ShowTitle(TitleConfiguration))
	if err := c.wait(ctx, titleDelay); err != nil {
		return err
	}

	cfg := c.state.Delta.Apply(c.state.Config)
	c.state.Config = cfg
	c.state.Delta = ConfigDelta{}
	if c.configs != nil {
		if err := c.configs.Save(cfg); err != nil {
			c.logger.Error("failed to save preferences", "error", err)
		}
	}
	c.display.SetTimeout(cfg.DisplayTimeout)
	c.sensor.Configure(cfg.Calibration, cfg.Interval)
	c.logger.Info("configuration applied",
		"calibration", cfg.Calibration,
		"interval", cfg.Interval,
		"sampling", cfg.Sampling,
		"display_timeout", cfg.DisplayTimeout,
		"tag_decay", cfg.TagDecay)

	if err := c.wait(ctx, configureSettle); err != nil {
		return err
	}
	c.transition(ModeMeasure)
	return nil
}

func (c *Controller) tare(ctx context.Context) error {
	c.show(c.display.ShowTitle(TitleTare))
	if err := c.wait(ctx, tareTitleDelay); err != nil {
		return err
	}
	c.show(c.display.ShowMessage(MessageTareStart))
	if err := c.wait(ctx, tareSettle); err != nil {
		return err
	}

	if err := c.sensor.Tare(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.fail(ModuleScale, ErrorTareFailed, fmt.Errorf("%w: %w", ErrTareFailed, err))
		return nil
	}
	c.show(c.display.ShowMessage(MessageTareReady))
	c.transition(ModeMeasure)
	return nil
}

// writeTag writes the pending record to the tag presented within the
// placement window. There is a single attempt.
func (c *Controller) writeTag(ctx context.Context) error {
	c.show(c.display.ShowTitle(TitleWriteTag))
	if err := c.wait(ctx, titleDelay); err != nil {
		return err
	}
	c.show(c.display.ShowMessage(MessageWriteTagStart))
	if err := c.wait(ctx, writeTagPresent); err != nil {
		return err
	}

	pending := c.state.Pending
	c.state.Pending = nil

	var err error
	switch {
	case c.tags == nil:
		err = errNoTagStore
	case pending == nil:
		err = errNoPending
	default:
		err = c.tags.Write(ctx, *pending)
	}
	c.metrics.TagWrite(err)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.fail(ModuleRFID, ErrorTagWriteFailed, err)
		return nil
	}

	c.logger.Info("tag written", "spool_id", pending.SpoolID)
	c.show(c.display.ShowMessage(MessageWriteTagReady))
	c.transition(ModeMeasure)
	return nil
}

// resolveError leaves the Error mode after a fixed delay. The fault was shown on
// entry.
func (c *Controller) resolveError(ctx context.Context) error {
	if err := c.wait(ctx, errorDelay); err != nil {
		return err
	}
	c.state.Fault = nil
	c.transition(ModeMeasure)
	return nil
}

// test renders sample screens so the display can be checked by eye.
func (c *Controller) test(ctx context.Context) error {
	samples := map[string]func() error{
		RoutineInit:  c.display.ShowInit,
		RoutineTitle: func() error { return c.display.ShowTitle(TitleConfiguration) },
		RoutineMessage: func() error {
			return c.display.ShowMessage("Lorem ipsum dolor sit amet, consectetur adipiscing elit. " +
				"Praesent non dolor a arcu malesuada luctus et et arcu.")
		},
		RoutineMeasurement: func() error { return c.display.ShowMeasurement(c.state.LastReading.Value) },
		RoutineCalibration: func() error { return c.display.ShowCalibration(-10456) },
		RoutineError: func() error {
			return c.display.ShowError("DEBUG", "Lorem ipsum dolor sit amet, consectetur adipiscing elit.")
		},
	}

	order := []string{c.state.Routine}
	if c.state.Routine == RoutineAll || samples[c.state.Routine] == nil {
		order = []string{RoutineInit, RoutineTitle, RoutineMessage, RoutineMeasurement, RoutineCalibration, RoutineError}
	}
	for i, name := range order {
		if i > 0 {
			if err := c.wait(ctx, testStepDelay); err != nil {
				return err
			}
		}
		c.show(samples[name]())
	}

	if err := c.wait(ctx, testDelay); err != nil {
		return err
	}
	c.transition(ModeMeasure)
	return nil
}
