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

package service

import (
	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/readers"
	"github.com/tapdeck/tapdeck/pkg/readers/acr122pcsc"
	"github.com/tapdeck/tapdeck/pkg/readers/file"
	"github.com/tapdeck/tapdeck/pkg/readers/mqtt"
	"github.com/tapdeck/tapdeck/pkg/readers/pn532"
)

// SupportedReaders returns one fresh instance of every reader driver.
func SupportedReaders(cfg *config.Instance) []readers.Reader {
	return []readers.Reader{
		pn532.NewReader(cfg),
		acr122pcsc.NewAcr122Pcsc(cfg),
		file.NewReader(cfg),
		mqtt.NewReader(cfg),
	}
}
