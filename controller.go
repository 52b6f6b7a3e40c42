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
	"log/slog"
	"time"

	"github.com/ZaparooProject/go-spoolscale/internal/metrics"
	"github.com/ZaparooProject/go-spoolscale/scale"
	"github.com/ZaparooProject/go-spoolscale/tag"
)

// RunState is the mutable state of the controller, handed to every mode
// handler.
type RunState struct {
	// LastTag is the most recent record read in Measure, seen at LastTagAt.
	LastTag   *tag.Record
	LastTagAt time.Time
	// Pending is the record the next WriteTag cycle writes.
	Pending     *tag.Record
	Fault       *Fault
	LastReading scale.Reading
	Routine     string
	Config      Config
	Mode        Mode
	// Delta is the change the next Configure cycle merges into Config.
	Delta ConfigDelta
	// Entered is set on every switch to Measure until the ready message
	// has been shown.
	Entered bool
}

func (s *RunState) transition(mode Mode) {
	s.Mode = mode
	if mode == ModeMeasure {
		s.Entered = true
	}
}

// tagFresh reports whether the last tag is still attached to measurements.
func (s *RunState) tagFresh(now time.Time) bool {
	return s.LastTag != nil && s.LastTag.SpoolID != "" && now.Sub(s.LastTagAt) < s.Config.TagDecay
}

// Option configures a Controller.
type Option func(*Controller)

// WithPublisher sets where status and response messages go.
func WithPublisher(p Publisher) Option {
	return func(c *Controller) {
		c.publisher = p
	}
}

// WithConfigStore persists the preferences on Configure.
func WithConfigStore(s ConfigStore) Option {
	return func(c *Controller) {
		c.configs = s
	}
}

// WithTagStore enables tag polling in Measure and the WriteTag mode.
func WithTagStore(s TagStore) Option {
	return func(c *Controller) {
		c.tags = s
	}
}

// WithCommands sets the channel inbound command payloads arrive on.
func WithCommands(ch <-chan []byte) Option {
	return func(c *Controller) {
		c.commands = ch
	}
}

func WithClock(clock Clock) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records transitions, commands and publishes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// Controller runs the appliance. It is driven from a single goroutine.
type Controller struct {
	sensor    Sensor
	display   Display
	publisher Publisher
	configs   ConfigStore
	tags      TagStore
	clock     Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics
	commands  <-chan []byte
	deviceID  string
	state     RunState
}

// NewController creates a controller in the Initialize mode.
func NewController(deviceID string, cfg Config, sensor Sensor, display Display, opts ...Option) *Controller {
	c := &Controller{
		sensor:   sensor,
		display:  display,
		clock:    SystemClock{},
		logger:   slog.Default().With("module", "controller"),
		deviceID: deviceID,
		state:    RunState{Config: cfg, Mode: ModeInitialize},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.display.SetTimeout(cfg.DisplayTimeout)
	c.metrics.Transition("", ModeInitialize.String())
	return c
}

// Mode returns the active run mode.
func (c *Controller) Mode() Mode {
	return c.state.Mode
}

// State returns a copy of the controller state.
func (c *Controller) State() RunState {
	return c.state
}

// Run steps the controller until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Info("controller started", "device_id", c.deviceID)
	for {
		if err := c.Step(ctx); err != nil {
			return err
		}
	}
}

// Step runs one loop iteration: the handler of the active mode, then in
// Measure the next queued command and a tag poll, then the display timeout.
// It only fails when ctx is done.
func (c *Controller) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	switch c.state.Mode {
	case ModeInitialize:
		err = c.initialize(ctx)
	case ModeCalibrate:
		err = c.calibrate(ctx)
	case ModeConfigure:
		err = c.configure(ctx)
	case ModeTare:
		err = c.tare(ctx)
	case ModeWriteTag:
		err = c.writeTag(ctx)
	case ModeError:
		err = c.resolveError(ctx)
	case ModeTest:
		err = c.test(ctx)
	default:
		err = c.measure(ctx)
	}
	if err != nil {
		return err
	}

	if c.state.Mode == ModeMeasure {
		c.drainCommands()
	}
	if c.state.Mode == ModeMeasure {
		c.pollTag(ctx)
	}

	c.display.Tick(c.clock.Now())
	return ctx.Err()
}

// drainCommands reads queued payloads without blocking until one of them
// starts a procedure. Later payloads stay queued for the following Measure
// step.
func (c *Controller) drainCommands() {
	for c.commands != nil {
		select {
		case payload, ok := <-c.commands:
			if !ok {
				c.commands = nil
				return
			}
			if c.handleCommand(payload) {
				return
			}
		default:
			return
		}
	}
}

// handleCommand reports whether the payload switched the mode.
func (c *Controller) handleCommand(payload []byte) bool {
	cmd, err := ParseCommand(payload)
	if err != nil {
		c.metrics.ParseError()
		c.logger.Debug("dropping command", "error", err)
		return false
	}
	if cmd.Action == ActionNone {
		c.logger.Debug("ignoring command without action")
		return false
	}

	c.metrics.Command(string(cmd.Action))
	c.logger.Info("command received", "action", cmd.Action)

	switch cmd.Action {
	case ActionTare:
		c.transition(ModeTare)
	case ActionCalibrate:
		c.transition(ModeCalibrate)
	case ActionConfigure:
		c.state.Delta = cmd.Delta
		c.transition(ModeConfigure)
	case ActionWriteTag:
		c.state.Pending = cmd.Record
		c.transition(ModeWriteTag)
	case ActionTest:
		c.state.Routine = cmd.Routine
		c.transition(ModeTest)
	default:
		return false
	}
	return true
}

func (c *Controller) transition(mode Mode) {
	from := c.state.Mode
	c.state.transition(mode)
	if from != mode {
		c.logger.Info("mode changed", "from", from, "to", mode)
		c.metrics.Transition(from.String(), mode.String())
	}
}

// fail shows the fault and switches to the Error mode.
func (c *Controller) fail(module, msg string, err error) {
	c.state.Fault = &Fault{Module: module, Message: msg, Err: err}
	c.logger.Warn("entering error mode", "module", module, "message", msg,
		"kind", KindOf(err), "error", err)
	c.show(c.display.ShowError(module, msg))
	c.transition(ModeError)
}

func (c *Controller) publish(ctx context.Context, kind string, v any) {
	if c.publisher == nil {
		return
	}
	err := c.publisher.Publish(ctx, kind, v)
	c.metrics.Published(kind, err)
	if err != nil {
		c.logger.Warn("failed to publish", "kind", kind, "error", err)
	}
}

// show logs a failed display update. The display is best effort.
func (c *Controller) show(err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("display update failed", "error", err)
	}
}

func (c *Controller) wait(ctx context.Context, d time.Duration) error {
	return c.clock.Sleep(ctx, d)
}
