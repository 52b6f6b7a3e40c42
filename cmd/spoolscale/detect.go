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
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZaparooProject/go-spoolscale/pn532/detect"
)

func newDetectCmd(flags *globalFlags) *cobra.Command {
	var (
		passive bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "List PN532 readers on serial ports and I2C buses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := detect.DefaultOptions()
			opts.QueryTimeout = timeout
			if passive {
				opts.Mode = detect.Passive
			}
			if cfg, err := loadConfig(flags, false); err == nil && cfg.Display.Port != "" {
				opts.IgnorePaths = append(opts.IgnorePaths, cfg.Display.Port)
			}

			devices, err := detect.Detect(cmd.Context(), opts)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TRANSPORT\tPATH\tCONFIDENCE\tDETAILS")
			for _, d := range devices {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Transport, d.Path, d.Confidence, details(d))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&passive, "passive", false, "list candidates without probing them")
	cmd.Flags().DurationVar(&timeout, "query-timeout", 500*time.Millisecond, "timeout of a single query")
	return cmd
}

func details(d detect.DeviceInfo) string {
	parts := make([]string, 0, len(d.Metadata)+1)
	if d.Name != "" {
		parts = append(parts, d.Name)
	}
	keys := make([]string, 0, len(d.Metadata))
	for k := range d.Metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if v := d.Metadata[k]; v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	return strings.Join(parts, " ")
}
