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

package scale

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeADC struct {
	err   error
	mu    sync.Mutex
	raw   int32
	reads int
	ready bool
}

func newFakeADC(raw int32) *fakeADC {
	return &fakeADC{raw: raw, ready: true}
}

func (a *fakeADC) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

func (a *fakeADC) Read() (int32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reads++
	return a.raw, a.err
}

func (a *fakeADC) set(raw int32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.raw = raw
}

func (a *fakeADC) setReady(ready bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ready = ready
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestScale_CalibrationProcedure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	adc := newFakeADC(8_000)
	s := New(adc, 0, 0)
	assert.InDelta(t, DefaultCalibration, s.Calibration(), 0)

	// zero with calibration 1, then derive the factor from a 100 g weight
	s.SetCalibration(1)
	require.NoError(t, s.Tare(ctx))
	adc.set(8_000 + 98_700)

	units, err := s.Units(ctx, 10)
	require.NoError(t, err)
	factor := units / 100
	assert.InDelta(t, 987.0, factor, 0.0001)

	s.SetCalibration(factor)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s.now = clock.Now
	r, err := s.Measure(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), r.Value)
}

func TestScale_MeasureRateLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	adc := newFakeADC(987 * 250)
	s := New(adc, 987, 500*time.Millisecond, WithClock(clock.Now))

	first, err := s.Measure(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(250), first.Value)
	assert.Equal(t, clock.now, first.At)

	adc.set(987 * 300)
	clock.advance(200 * time.Millisecond)
	same, err := s.Measure(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first, same, "inside the interval the previous reading is returned")

	clock.advance(300 * time.Millisecond)
	next, err := s.Measure(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(300), next.Value)
	assert.True(t, next.At.After(first.At))
}

func TestScale_MeasureWhileBusy(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	adc := newFakeADC(987 * 10)
	adc.setReady(false)
	s := New(adc, 987, time.Millisecond, WithClock(clock.Now))

	r, err := s.Measure(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, Reading{}, r)
	assert.Zero(t, adc.reads)
}

func TestScale_Sampling(t *testing.T) {
	t.Parallel()

	adc := newFakeADC(987)
	s := New(adc, 987, time.Millisecond)
	_, err := s.Measure(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 5, adc.reads)
}

func TestScale_TareNotReady(t *testing.T) {
	t.Parallel()

	adc := newFakeADC(0)
	adc.setReady(false)
	s := New(adc, 987, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Tare(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, s.Ready(ctx))
}

func TestScale_ReadError(t *testing.T) {
	t.Parallel()

	adc := newFakeADC(0)
	adc.err = errors.New("bus fault")
	s := New(adc, 987, time.Second)
	_, err := s.Units(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bus fault")
}

func TestScale_Configure(t *testing.T) {
	t.Parallel()

	s := New(newFakeADC(0), 900, time.Second)
	assert.InDelta(t, 900.0, s.Calibration(), 0)
	s.Configure(0, 0)
	assert.InDelta(t, DefaultCalibration, s.Calibration(), 0)
	s.SetCalibration(0)
	assert.InDelta(t, DefaultCalibration, s.Calibration(), 0, "zero factor is ignored")
}
