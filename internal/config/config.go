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

// Package config loads the application configuration: which hardware the
// device is wired to and where it reports. Device preferences live in a
// separate file managed by the prefs package.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Reader transports.
const (
	ReaderUART = "uart"
	ReaderI2C  = "i2c"
	// ReaderAuto picks the best candidate found by detection.
	ReaderAuto = "auto"
	ReaderNone = "none"
)

// Display kinds.
const (
	DisplayTerminal = "terminal"
	DisplayOLED     = "oled"
)

// Config is the top-level config.yaml.
type Config struct {
	DeviceID string `yaml:"device_id"`
	// PrefsPath is the preferences file.
	PrefsPath string `yaml:"prefs_path"`
	// MetricsAddr serves /metrics and /health. Empty disables it.
	MetricsAddr string        `yaml:"metrics_addr,omitempty"`
	Bus         BusConfig     `yaml:"bus"`
	Reader      ReaderConfig  `yaml:"reader"`
	Display     DisplayConfig `yaml:"display"`
	Scale       ScaleConfig   `yaml:"scale"`
}

// BusConfig locates the Redis broker.
type BusConfig struct {
	Addr              string        `yaml:"addr"`
	Password          string        `yaml:"password,omitempty"`
	Prefix            string        `yaml:"prefix,omitempty"`
	DB                int           `yaml:"db,omitempty"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval,omitempty"`
}

// ReaderConfig selects the PN532 transport. Port is a serial device for
// uart and an I2C bus name for i2c.
type ReaderConfig struct {
	Transport string `yaml:"transport"`
	Port      string `yaml:"port,omitempty"`
}

// DisplayConfig selects the display. Port is only used by oled.
type DisplayConfig struct {
	Kind  string `yaml:"kind"`
	Port  string `yaml:"port,omitempty"`
	Plain bool   `yaml:"plain,omitempty"`
}

// ScaleConfig names the HX711 GPIO pins.
type ScaleConfig struct {
	DataPin  string `yaml:"data_pin"`
	ClockPin string `yaml:"clock_pin"`
	Gain     int    `yaml:"gain"`
}

// Default returns a configuration for a Raspberry Pi with the reader on
// the primary UART and a local broker.
func Default() Config {
	return Config{
		DeviceID:  "",
		PrefsPath: "prefs.yaml",
		Bus: BusConfig{
			Addr:              "localhost:6379",
			Prefix:            "filamentwaage",
			HeartbeatInterval: 30 * time.Second,
		},
		Reader: ReaderConfig{
			Transport: ReaderUART,
			Port:      "/dev/ttyS0",
		},
		Display: DisplayConfig{Kind: DisplayTerminal},
		Scale: ScaleConfig{
			DataPin:  "GPIO5",
			ClockPin: "GPIO6",
			Gain:     128,
		},
	}
}

// Load reads path over Default and validates the result. A missing file
// is an error; use Default directly to run without one.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.DeviceID == "" {
		return errors.New("device_id is required")
	}
	if c.PrefsPath == "" {
		return errors.New("prefs_path is required")
	}
	if c.Bus.Addr == "" {
		return errors.New("bus.addr is required")
	}
	if c.Bus.HeartbeatInterval <= 0 {
		return fmt.Errorf("bus.heartbeat_interval must be positive, got %s", c.Bus.HeartbeatInterval)
	}
	if c.Bus.DB < 0 {
		return fmt.Errorf("bus.db must be >= 0, got %d", c.Bus.DB)
	}

	switch c.Reader.Transport {
	case ReaderUART, ReaderI2C:
		if c.Reader.Port == "" {
			return fmt.Errorf("reader.port is required for transport '%s'", c.Reader.Transport)
		}
	case ReaderAuto, ReaderNone:
	default:
		return fmt.Errorf("reader.transport must be one of uart, i2c, auto, none, got '%s'", c.Reader.Transport)
	}

	switch c.Display.Kind {
	case DisplayTerminal:
	case DisplayOLED:
		if c.Display.Port == "" {
			return errors.New("display.port is required for kind 'oled'")
		}
	default:
		return fmt.Errorf("display.kind must be terminal or oled, got '%s'", c.Display.Kind)
	}

	if c.Scale.DataPin == "" || c.Scale.ClockPin == "" {
		return errors.New("scale.data_pin and scale.clock_pin are required")
	}
	switch c.Scale.Gain {
	case 32, 64, 128:
	default:
		return fmt.Errorf("scale.gain must be 32, 64 or 128, got %d", c.Scale.Gain)
	}
	return nil
}
