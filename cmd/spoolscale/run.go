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
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	spoolscale "github.com/ZaparooProject/go-spoolscale"
	"github.com/ZaparooProject/go-spoolscale/bus"
	"github.com/ZaparooProject/go-spoolscale/display"
	"github.com/ZaparooProject/go-spoolscale/internal/config"
	"github.com/ZaparooProject/go-spoolscale/internal/metrics"
	"github.com/ZaparooProject/go-spoolscale/prefs"
	"github.com/ZaparooProject/go-spoolscale/tag"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scale until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags, true)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, flags.noColor)
		},
	}
}

func run(ctx context.Context, cfg config.Config, noColor bool) error {
	logger := slog.Default()
	started := time.Now()

	store := prefs.NewStore(cfg.PrefsPath)
	device, err := store.Load()
	if err != nil {
		logger.Warn("preferences unreadable, using defaults", "path", store.Path(), "error", err)
	}

	clock := spoolscale.SystemClock{}
	screen, err := openDisplay(cfg, noColor, os.Stdout, display.WithClock(clock.Now))
	if err != nil {
		return err
	}
	defer func() { _ = screen.Close() }()

	sensor, adc, err := openScale(cfg, device.Calibration, device.Interval)
	if err != nil {
		_ = screen.ShowError(spoolscale.ModuleScale, err.Error())
		return err
	}
	defer func() { _ = adc.PowerDown() }()

	m, err := metrics.New(nil)
	if err != nil {
		return err
	}

	client, err := bus.NewClient(&redis.Options{
		Addr:     cfg.Bus.Addr,
		Password: cfg.Bus.Password,
		DB:       cfg.Bus.DB,
	}, cfg.DeviceID, bus.WithPrefix(cfg.Bus.Prefix), bus.WithLogger(logger.With("module", "bus")))
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if err := client.Connect(ctx, bus.DefaultConnectRetry); err != nil {
		_ = screen.ShowError(spoolscale.ModuleMQTT, "Connection failed. Check serial.")
		return err
	}
	sub, err := client.Subscribe(ctx, spoolscale.TopicCommand)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Close() }()

	opts := []spoolscale.Option{
		spoolscale.WithClock(clock),
		spoolscale.WithPublisher(client),
		spoolscale.WithConfigStore(store),
		spoolscale.WithCommands(sub.Messages()),
		spoolscale.WithLogger(logger.With("module", "controller")),
		spoolscale.WithMetrics(m),
	}
	if cfg.Reader.Transport != config.ReaderNone {
		reader, err := openReader(ctx, cfg)
		if err != nil {
			_ = screen.ShowError(spoolscale.ModuleRFID, err.Error())
			return err
		}
		defer func() { _ = reader.Close() }()
		opts = append(opts, spoolscale.WithTagStore(
			tag.NewStore(reader, tag.WithLogger(logger.With("module", "tag")))))
	}

	ctrl := spoolscale.NewController(cfg.DeviceID, device, sensor, screen, opts...)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		client.Heartbeat(ctx, spoolscale.TopicHeartbeat, cfg.Bus.HeartbeatInterval, func() any {
			return spoolscale.NewHeartbeat(cfg.DeviceID, started, time.Now())
		})
	}()
	if cfg.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Serve(ctx, cfg.MetricsAddr, logger.With("module", "metrics")); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	err = ctrl.Run(ctx)
	wg.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("shutting down", "uptime", time.Since(started).Round(time.Second))
		return nil
	}
	return fmt.Errorf("controller stopped: %w", err)
}
