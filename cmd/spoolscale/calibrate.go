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
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	spoolscale "github.com/ZaparooProject/go-spoolscale"
	"github.com/ZaparooProject/go-spoolscale/prefs"
)

func newCalibrateCmd(flags *globalFlags) *cobra.Command {
	var (
		knownWeight uint32
		save        bool
	)
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Calibrate the load cell with a known weight",
		Long: `calibrate walks through the two calibration steps on the terminal:
tare the empty scale, then measure a known weight. It prints the
resulting factor and stores it in the preferences with --save.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags, false)
			if err != nil {
				return err
			}
			store := prefs.NewStore(cfg.PrefsPath)
			device, err := store.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("known-weight") {
				device.KnownWeight = knownWeight
			}

			sensor, adc, err := openScale(cfg, 1, device.Interval)
			if err != nil {
				return err
			}
			defer func() { _ = adc.PowerDown() }()

			factor, err := calibrate(cmd.Context(), sensor, device.KnownWeight, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Calibration factor: %g\n", factor)

			if !save {
				return nil
			}
			device.Calibration = factor
			if err := store.Save(device); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved to %s\n", store.Path())
			return nil
		},
	}
	cmd.Flags().Uint32Var(&knownWeight, "known-weight", spoolscale.DefaultKnownWeight, "reference weight in grams")
	cmd.Flags().BoolVar(&save, "save", false, "store the factor in the preferences file")
	return cmd
}

// calibrate runs the two operator steps, waiting for Enter before each.
func calibrate(ctx context.Context, sensor spoolscale.Sensor, knownWeight uint32, in io.Reader, out io.Writer) (float64, error) {
	prompt := bufio.NewReader(in)
	confirm := func(msg string) error {
		fmt.Fprintf(out, "%s Press Enter to continue.\n", msg)
		_, err := prompt.ReadString('\n')
		if err != nil {
			return fmt.Errorf("calibration aborted: %w", err)
		}
		return nil
	}

	sensor.SetCalibration(1)
	if err := confirm(spoolscale.MessageTareStart); err != nil {
		return 0, err
	}
	if err := sensor.Tare(ctx); err != nil {
		return 0, fmt.Errorf("%w: %w", spoolscale.ErrCalibrationFailed, err)
	}
	if err := confirm(fmt.Sprintf("Place %d g on the scale.", knownWeight)); err != nil {
		return 0, err
	}
	return spoolscale.CalibrationFactor(ctx, sensor, knownWeight)
}
