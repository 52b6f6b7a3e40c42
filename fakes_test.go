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
	"sync"
	"time"

	"github.com/ZaparooProject/go-spoolscale/scale"
	"github.com/ZaparooProject/go-spoolscale/tag"
)

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeClock never sleeps. Sleep advances the clock and records the wait.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testEpoch}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func (c *fakeClock) total() time.Duration {
	var sum time.Duration
	for _, d := range c.sleeps {
		sum += d
	}
	return sum
}

// fakeSensor produces scripted readings. Measure returns the next queued
// value stamped with the clock, or the previous reading when the queue is
// empty.
type fakeSensor struct {
	clock       *fakeClock
	tareErr     error
	unitsErr    error
	measureErr  error
	calibration []float64
	queue       []int64
	last        scale.Reading
	units       float64
	configured  int
	tares       int
	interval    time.Duration
	ready       bool
}

func newFakeSensor(clock *fakeClock) *fakeSensor {
	return &fakeSensor{clock: clock, ready: true}
}

func (s *fakeSensor) Ready(context.Context) bool { return s.ready }

func (s *fakeSensor) Tare(context.Context) error {
	s.tares++
	return s.tareErr
}

func (s *fakeSensor) Measure(context.Context, int) (scale.Reading, error) {
	if s.measureErr != nil {
		return s.last, s.measureErr
	}
	if len(s.queue) == 0 {
		return s.last, nil
	}
	s.last = scale.Reading{At: s.clock.Now(), Value: s.queue[0]}
	s.queue = s.queue[1:]
	return s.last, nil
}

func (s *fakeSensor) Units(context.Context, int) (float64, error) {
	return s.units, s.unitsErr
}

func (s *fakeSensor) SetCalibration(factor float64) {
	s.calibration = append(s.calibration, factor)
}

func (s *fakeSensor) Configure(calibration float64, interval time.Duration) {
	s.configured++
	s.calibration = append(s.calibration, calibration)
	s.interval = interval
}

// fakeDisplay records every call as a short string.
type fakeDisplay struct {
	calls   []string
	ticks   int
	timeout time.Duration
}

func (d *fakeDisplay) record(format string, args ...any) error {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
	return nil
}

func (d *fakeDisplay) ShowInit() error                   { return d.record("init") }
func (d *fakeDisplay) ShowTitle(title string) error      { return d.record("title:%s", title) }
func (d *fakeDisplay) ShowMessage(msg string) error      { return d.record("message:%s", msg) }
func (d *fakeDisplay) ShowMeasurement(grams int64) error { return d.record("measurement:%d", grams) }
func (d *fakeDisplay) ShowCalibration(f float64) error   { return d.record("calibration:%g", f) }
func (d *fakeDisplay) ShowError(module, msg string) error {
	return d.record("error:%s:%s", module, msg)
}
func (d *fakeDisplay) SetTimeout(timeout time.Duration) { d.timeout = timeout }
func (d *fakeDisplay) Tick(time.Time)                   { d.ticks++ }

func (d *fakeDisplay) count(call string) int {
	n := 0
	for _, c := range d.calls {
		if c == call {
			n++
		}
	}
	return n
}

type published struct {
	v    any
	kind string
}

type fakePublisher struct {
	err  error
	sent []published
	mu   sync.Mutex
}

func (p *fakePublisher) Publish(_ context.Context, kind string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{kind: kind, v: v})
	return nil
}

func (p *fakePublisher) ofKind(kind string) []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []any
	for _, m := range p.sent {
		if m.kind == kind {
			out = append(out, m.v)
		}
	}
	return out
}

type fakeConfigStore struct {
	err   error
	saved []Config
}

func (s *fakeConfigStore) Load() (Config, error) {
	if len(s.saved) == 0 {
		return DefaultConfig(), nil
	}
	return s.saved[len(s.saved)-1], nil
}

func (s *fakeConfigStore) Save(cfg Config) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, cfg)
	return nil
}

// fakeTagStore returns scripted read results in order, then ErrNoTag.
type fakeTagStore struct {
	writeErr error
	reads    []tagResult
	written  []tag.Record
}

type tagResult struct {
	err error
	rec tag.Record
}

func (s *fakeTagStore) Read(context.Context) (tag.Record, error) {
	if len(s.reads) == 0 {
		return tag.Record{}, tag.ErrNoTag
	}
	r := s.reads[0]
	s.reads = s.reads[1:]
	return r.rec, r.err
}

func (s *fakeTagStore) Write(_ context.Context, r tag.Record) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.written = append(s.written, r)
	return nil
}

var errFake = errors.New("fake failure")
