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

package requests

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tapdeck/tapdeck/pkg/api/models"
	"github.com/tapdeck/tapdeck/pkg/audio"
	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/database"
	"github.com/tapdeck/tapdeck/pkg/service/state"
)

// Player is the playback surface exposed over the API.
type Player interface {
	StartCard(ctx context.Context, card database.Card) error
	Next(ctx context.Context) error
	Prev(ctx context.Context) error
	TogglePause() (bool, error)
	Stop()
	Seek(position time.Duration) error
	SetVolume(v float64) float64
	Status() audio.Status
}

// DeepLinkResolver turns a scanned or linked payload into playback.
type DeepLinkResolver interface {
	ResolveDeepLink(ctx context.Context, raw string) (database.Card, error)
}

type RequestEnv struct {
	Context  context.Context
	Config   *config.Instance
	State    *state.State
	Library  database.LibraryDBI
	Player   Player
	Resolver DeepLinkResolver
	Params   json.RawMessage
	ID       models.RPCID
	IsLocal  bool
	BaseURL  string
}
