// Tapdeck
// Copyright (c) 2026 The Tapdeck Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Tapdeck.
//
// Tapdeck is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Tapdeck is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Tapdeck.  If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"strings"
	"time"
)

// DefaultScanTimeout bounds how long a scan session listens without a
// cancel before returning to idle.
const DefaultScanTimeout = 30 * time.Second

type Readers struct {
	Drivers    map[string]DriverConfig `toml:"drivers,omitempty"`
	Connect    []ReadersConnect        `toml:"connect,omitempty"`
	Scan       ReadersScan             `toml:"scan,omitempty"`
	AutoDetect bool                    `toml:"auto_detect"`
}

type ReadersScan struct {
	// Timeout is in seconds. Zero or negative uses DefaultScanTimeout.
	Timeout int `toml:"timeout,omitempty"`
}

type DriverConfig struct {
	Enabled    *bool `toml:"enabled,omitempty"`
	AutoDetect *bool `toml:"auto_detect,omitempty"`
}

type ReadersConnect struct {
	Driver   string `toml:"driver"`
	Path     string `toml:"path,omitempty"`
	IDSource string `toml:"id_source,omitempty"`
}

func (r ReadersConnect) ConnectionString() string {
	return fmt.Sprintf("%s:%s", r.Driver, r.Path)
}

// ParseConnectionString splits a "driver:path" string. The path may itself
// contain colons.
func ParseConnectionString(s string) (ReadersConnect, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[0] == "" {
		return ReadersConnect{}, fmt.Errorf("invalid connection string: %q", s)
	}
	return ReadersConnect{Driver: parts[0], Path: parts[1]}, nil
}

func (c *Instance) Readers() Readers {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Readers
}

func (c *Instance) ScanTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Readers.Scan.Timeout <= 0 {
		return DefaultScanTimeout
	}
	return time.Duration(c.vals.Readers.Scan.Timeout) * time.Second
}

func (c *Instance) SetScanTimeout(seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Readers.Scan.Timeout = seconds
}

func (c *Instance) AutoDetect() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Readers.AutoDetect
}

func (c *Instance) SetAutoDetect(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Readers.AutoDetect = enabled
}

func (c *Instance) SetReaderConnections(rcs []ReadersConnect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Readers.Connect = rcs
}

// IsDriverEnabled reports whether a driver may be used at all. Drivers
// without an explicit setting fall back to defaultEnabled.
func (c *Instance) IsDriverEnabled(id string, defaultEnabled bool) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	dc, ok := c.vals.Readers.Drivers[strings.ToLower(id)]
	if !ok || dc.Enabled == nil {
		return defaultEnabled
	}
	return *dc.Enabled
}

// IsDriverAutoDetectEnabled reports whether auto-detection should probe for
// the driver. The global auto_detect switch must also be on.
func (c *Instance) IsDriverAutoDetectEnabled(id string, defaultAutoDetect bool) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.vals.Readers.AutoDetect {
		return false
	}
	dc, ok := c.vals.Readers.Drivers[strings.ToLower(id)]
	if !ok || dc.AutoDetect == nil {
		return defaultAutoDetect
	}
	return *dc.AutoDetect
}
