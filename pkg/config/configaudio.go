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

const (
	// DefaultMaxVolume is the playback ceiling when none is configured.
	DefaultMaxVolume = 0.7
	DefaultVolume    = 0.5
)

type Audio struct {
	Volume    *float64 `toml:"volume,omitempty"`
	MaxVolume *float64 `toml:"max_volume,omitempty"`
}

type Library struct {
	WatchDir string `toml:"watch_dir,omitempty"`
}

// MaxVolume returns the configured volume ceiling clamped to [0, 1].
func (c *Instance) MaxVolume() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxVolumeLocked()
}

func (c *Instance) maxVolumeLocked() float64 {
	if c.vals.Audio.MaxVolume == nil {
		return DefaultMaxVolume
	}
	return clampUnit(*c.vals.Audio.MaxVolume)
}

// Volume returns the stored playback volume, never above MaxVolume.
func (c *Instance) Volume() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v := DefaultVolume
	if c.vals.Audio.Volume != nil {
		v = clampUnit(*c.vals.Audio.Volume)
	}
	return min(v, c.maxVolumeLocked())
}

func (c *Instance) SetVolume(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v = min(clampUnit(v), c.maxVolumeLocked())
	c.vals.Audio.Volume = &v
}

func (c *Instance) SetMaxVolume(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v = clampUnit(v)
	c.vals.Audio.MaxVolume = &v
}

func (c *Instance) LibraryWatchDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Library.WatchDir
}

func (c *Instance) SetLibraryWatchDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Library.WatchDir = dir
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
