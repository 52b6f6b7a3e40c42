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
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/ZaparooProject/go-spoolscale/internal/config"
)

type globalFlags struct {
	configPath string
	debug      bool
	noColor    bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "spoolscale",
		Short: "Filament spool scale with NFC spool tags",
		Long: `spoolscale weighs filament spools on an HX711 load cell, identifies
them by MIFARE Classic tags on a PN532 reader and reports the weight
over a Redis message bus.`,
		Version:       version + " (" + commit + ")",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogger(cmd.ErrOrStderr(), flags.debug, flags.noColor)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "config.yaml", "application config file")
	pf.BoolVar(&flags.debug, "debug", false, "enable debug logging")
	pf.BoolVar(&flags.noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(
		newRunCmd(flags),
		newTagCmd(flags),
		newDetectCmd(flags),
		newCalibrateCmd(flags),
	)
	return cmd
}

func setupLogger(w io.Writer, debug, noColor bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	if noColor {
		color.NoColor = true
	}
	slog.SetDefault(slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
	})))
}

// loadConfig reads the config file. The service tools only need the
// hardware sections, so a missing file falls back to the defaults there.
func loadConfig(flags *globalFlags, strict bool) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err == nil || strict {
		return cfg, err
	}
	if _, statErr := os.Stat(flags.configPath); os.IsNotExist(statErr) {
		slog.Debug("config file not found, using defaults", "path", flags.configPath)
		return config.Default(), nil
	}
	return cfg, err
}
