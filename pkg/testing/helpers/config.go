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
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tapdeck/tapdeck/pkg/config"
)

// NewTestConfig returns a config instance backed by a file in a temporary
// directory. Each option is applied to the defaults before the file is
// first written.
func NewTestConfig(t *testing.T, opts ...func(*config.Values)) *config.Instance {
	t.Helper()

	defaults := config.BaseDefaults
	for _, opt := range opts {
		opt(&defaults)
	}

	cfg, err := config.NewConfig(t.TempDir(), defaults)
	require.NoError(t, err)
	return cfg
}
