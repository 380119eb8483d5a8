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
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tapdeck/tapdeck/pkg/config"
)

func TestContains(t *testing.T) {
	t.Parallel()

	assert.True(t, Contains([]string{"file", "mqtt"}, "mqtt"))
	assert.False(t, Contains([]string{"file", "mqtt"}, "pn532"))
	assert.False(t, Contains([]int(nil), 1))
}

func TestPathsEnsure(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	p := Paths{
		DataDir:   filepath.Join(root, "data"),
		ConfigDir: filepath.Join(root, "config"),
		StateDir:  filepath.Join(root, "state", "nested"),
	}
	require.NoError(t, p.Ensure())

	for _, dir := range []string{p.DataDir, p.ConfigDir, p.StateDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

//nolint:paralleltest // replaces the global logger
func TestInitLoggingWritesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, InitLogging(dir, nil))

	log.Info().Msg("logging initialised")

	data, err := os.ReadFile(filepath.Join(dir, config.LogFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "logging initialised")
}
