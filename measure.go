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

	"github.com/ZaparooProject/go-spoolscale/tag"
)

// measure runs one Measure iteration. A reading newer than the previous one
// is shown and published only when the weight changed.
func (c *Controller) measure(ctx context.Context) error {
	if c.state.Entered {
		c.show(c.display.ShowMessage(MessageScaleReady))
		c.state.Entered = false
	}

	prev := c.state.LastReading
	reading, err := c.sensor.Measure(ctx, c.state.Config.Sampling)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Debug("measurement failed", "error", err)
		return nil
	}
	c.state.LastReading = reading

	if !reading.At.After(prev.At) || reading.Value == prev.Value {
		return nil
	}

	c.show(c.display.ShowMeasurement(reading.Value))
	c.metrics.Weight(reading.Value)

	status := StatusMessage{DeviceID: c.deviceID, Value: reading.Value}
	if c.state.tagFresh(c.clock.Now()) {
		status.SpoolID = c.state.LastTag.SpoolID
	}
	c.publish(ctx, TopicStatus, status)
	return nil
}

// pollTag reads a presented tag and remembers it for the decay window.
func (c *Controller) pollTag(ctx context.Context) {
	if c.tags == nil {
		return
	}

	rec, err := c.tags.Read(ctx)
	switch {
	case err == nil:
		c.state.LastTag = &rec
		c.state.LastTagAt = c.clock.Now()
		c.metrics.TagRead("ok")
		c.logger.Debug("tag read", "record", rec)
	case errors.Is(err, tag.ErrNoTag):
		c.metrics.TagRead("empty")
	default:
		c.metrics.TagRead("error")
		c.logger.Debug("tag poll failed", "error", err, "kind", KindOf(err))
	}
}
