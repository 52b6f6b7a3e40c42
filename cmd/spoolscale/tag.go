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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ZaparooProject/go-spoolscale/internal/config"
	"github.com/ZaparooProject/go-spoolscale/internal/retry"
	"github.com/ZaparooProject/go-spoolscale/tag"
)

const tagPollInterval = 250 * time.Millisecond

var errIDFlags = errors.New("exactly one of --spool-id and --new-id is required")

type tagFlags struct {
	spoolID      string
	material     string
	color        string
	manufacturer string
	name         string
	timeout      time.Duration
	weight       uint32
	timestamp    uint32
	newID        bool
	stampNow     bool
}

func newTagCmd(flags *globalFlags) *cobra.Command {
	tf := &tagFlags{}
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Read or write spool tags",
	}
	cmd.PersistentFlags().DurationVar(&tf.timeout, "timeout", 30*time.Second, "how long to wait for a tag")

	read := &cobra.Command{
		Use:   "read",
		Short: "Read the tag on the reader once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withTagStore(cmd.Context(), flags, func(ctx context.Context, store *tag.Store) error {
				rec, err := waitForTag(ctx, tf.timeout, store.Read)
				if err != nil {
					return err
				}
				return printRecord(cmd.OutOrStdout(), rec)
			})
		},
	}

	write := &cobra.Command{
		Use:   "write",
		Short: "Write a spool record to the tag on the reader",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec, err := recordFromFlags(cmd.Flags(), tf, time.Now())
			if err != nil {
				return err
			}
			return withTagStore(cmd.Context(), flags, func(ctx context.Context, store *tag.Store) error {
				_, err := waitForTag(ctx, tf.timeout, func(ctx context.Context) (struct{}, error) {
					return struct{}{}, store.Write(ctx, rec)
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "written:")
				return printRecord(cmd.OutOrStdout(), rec)
			})
		},
	}
	wf := write.Flags()
	wf.StringVar(&tf.spoolID, "spool-id", "", "spool identifier (UUID)")
	wf.BoolVar(&tf.newID, "new-id", false, "generate a random spool identifier")
	wf.Uint32Var(&tf.weight, "weight", 0, "spool weight in grams")
	wf.StringVar(&tf.material, "material", "", "material, e.g. PLA")
	wf.StringVar(&tf.color, "color", "", "color name")
	wf.StringVar(&tf.manufacturer, "manufacturer", "", "manufacturer")
	wf.StringVar(&tf.name, "name", "", "spool name, up to 48 bytes")
	wf.Uint32Var(&tf.timestamp, "timestamp", 0, "unix timestamp")
	wf.BoolVar(&tf.stampNow, "stamp-now", false, "use the current time as timestamp")
	write.MarkFlagsMutuallyExclusive("spool-id", "new-id")
	write.MarkFlagsMutuallyExclusive("timestamp", "stamp-now")

	cmd.AddCommand(read, write)
	return cmd
}

// recordFromFlags builds the record to write. Only flags given on the
// command line become present fields.
func recordFromFlags(fs *pflag.FlagSet, tf *tagFlags, now time.Time) (tag.Record, error) {
	var rec tag.Record
	switch {
	case tf.newID && tf.spoolID == "":
		rec.SpoolID = uuid.NewString()
	case !tf.newID && tf.spoolID != "":
		id, err := uuid.Parse(tf.spoolID)
		if err != nil {
			return rec, fmt.Errorf("%w: %w", tag.ErrMalformedIdentifier, err)
		}
		rec.SpoolID = id.String()
	default:
		return rec, errIDFlags
	}

	if fs.Changed("weight") {
		rec.Weight = tag.Ptr(tf.weight)
	}
	if fs.Changed("material") {
		rec.Material = tag.Ptr(tf.material)
	}
	if fs.Changed("color") {
		rec.Color = tag.Ptr(tf.color)
	}
	if fs.Changed("manufacturer") {
		rec.Manufacturer = tag.Ptr(tf.manufacturer)
	}
	if fs.Changed("name") {
		rec.Name = tag.Ptr(tf.name)
	}
	switch {
	case tf.stampNow:
		rec.Timestamp = tag.Ptr(uint32(now.Unix()))
	case fs.Changed("timestamp"):
		rec.Timestamp = tag.Ptr(tf.timestamp)
	}
	return rec, nil
}

// waitForTag repeats op while no tag is in the field.
func waitForTag[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	v, err := retry.Poll(ctx, timeout, tagPollInterval, func() (T, bool, error) {
		v, err := op(ctx)
		if errors.Is(err, tag.ErrNoTag) {
			return v, true, nil
		}
		return v, false, err
	})
	if errors.Is(err, retry.ErrTimeout) {
		return v, fmt.Errorf("%w within %s", tag.ErrNoTag, timeout)
	}
	return v, err
}

func withTagStore(ctx context.Context, flags *globalFlags, fn func(context.Context, *tag.Store) error) error {
	cfg, err := loadConfig(flags, false)
	if err != nil {
		return err
	}
	if cfg.Reader.Transport == config.ReaderNone {
		cfg.Reader.Transport = config.ReaderAuto
	}
	reader, err := openReader(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()
	return fn(ctx, tag.NewStore(reader))
}

func printRecord(w io.Writer, rec tag.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}
