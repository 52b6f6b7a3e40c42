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

/*
Package spoolscale is the control core of a spool-weighing appliance: a load
cell under the spool, a small display, a MIFARE Classic tag on every spool
and a message bus for remote commands.

The Controller is a run-mode state machine. In the Measure mode it samples
the sensor, shows changed weights and publishes them together with the
identifier of a recently presented tag. Commands from the bus switch it into
the guided Tare, Calibrate, Configure and WriteTag procedures, which pace the
operator with fixed waits and always return to Measure.

Basic Usage:

	store := tag.NewStore(reader)
	ctrl := spoolscale.NewController("scale-01", cfg, sensor, display,
		spoolscale.WithTagStore(store),
		spoolscale.WithPublisher(client),
		spoolscale.WithCommands(sub.Messages()),
	)
	if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}

The collaborators are small interfaces. The scale, display, bus and prefs
packages provide implementations for a Linux single-board computer, and the
pn532 package drives the tag reader.
*/
package spoolscale
