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

package helpers

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"github.com/tapdeck/tapdeck/pkg/config"
)

// Paths holds the directories Tapdeck reads from and writes to.
type Paths struct {
	DataDir   string
	ConfigDir string
	StateDir  string
}

var (
	userDirOnce  sync.Once
	userDirCache string
	userDirFound bool
)

// HasUserDir reports whether a "user" directory sits next to the executable.
// When present it replaces all XDG locations, which keeps portable installs
// self-contained.
func HasUserDir() (string, bool) {
	userDirOnce.Do(func() {
		exe := os.Getenv(config.AppEnv)
		if exe == "" {
			var err error
			exe, err = os.Executable()
			if err != nil {
				return
			}
		}

		userDir := filepath.Join(filepath.Dir(exe), config.UserDir)
		info, err := os.Stat(userDir)
		if err != nil || !info.IsDir() {
			return
		}

		userDirCache = userDir
		userDirFound = true
	})
	return userDirCache, userDirFound
}

// DefaultPaths resolves the standard XDG directories for Tapdeck.
func DefaultPaths() Paths {
	if v, ok := HasUserDir(); ok {
		return Paths{DataDir: v, ConfigDir: v, StateDir: v}
	}
	return Paths{
		DataDir:   filepath.Join(xdg.DataHome, config.AppName),
		ConfigDir: filepath.Join(xdg.ConfigHome, config.AppName),
		StateDir:  filepath.Join(xdg.StateHome, config.AppName),
	}
}

// Ensure creates every directory in p.
func (p Paths) Ensure() error {
	for _, dir := range []string{p.DataDir, p.ConfigDir, p.StateDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err //nolint:wrapcheck // path is in the error
		}
	}
	return nil
}
