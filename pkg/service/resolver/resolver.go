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

// Package resolver turns a decoded tag candidate into a stored card and
// hands it to the player.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/audio"
	"github.com/tapdeck/tapdeck/pkg/database"
	"github.com/tapdeck/tapdeck/pkg/payload"
)

// ErrNotFound is returned for an empty candidate or one that names no card.
var ErrNotFound = errors.New("card not found")

// CardStore is the part of the library the resolver reads.
type CardStore interface {
	GetCard(ctx context.Context, id string) (database.Card, error)
}

// Player starts playback of a card from its first track.
type Player interface {
	StartCard(ctx context.Context, card database.Card) error
}

// Result is reported once per Resolve call.
type Result string

const (
	ResultResolved Result = "resolved"
	ResultNotFound Result = "not_found"
	ResultError    Result = "error"
)

type Resolver struct {
	store    CardStore
	player   Player
	onResult func(Result)
}

// New returns a resolver. onResult may be nil.
func New(store CardStore, player Player, onResult func(Result)) *Resolver {
	return &Resolver{store: store, player: player, onResult: onResult}
}

func (r *Resolver) report(res Result) {
	if r.onResult != nil {
		r.onResult(res)
	}
}

// Resolve looks up the card named by candidate and starts it. An empty
// candidate fails without touching the store. A card with no tracks still
// resolves and leaves playback idle.
func (r *Resolver) Resolve(ctx context.Context, candidate string) (database.Card, error) {
	id := strings.TrimSpace(candidate)
	if id == "" {
		r.report(ResultNotFound)
		return database.Card{}, ErrNotFound
	}

	card, err := r.store.GetCard(ctx, id)
	switch {
	case errors.Is(err, database.ErrCardNotFound):
		r.report(ResultNotFound)
		return database.Card{}, fmt.Errorf("%w: %q: %w", ErrNotFound, id, err)
	case err != nil:
		r.report(ResultError)
		return database.Card{}, fmt.Errorf("failed to get card %q: %w", id, err)
	}

	log.Info().Str("card", card.ID).Str("name", card.Name).Msg("starting card")
	err = r.player.StartCard(ctx, card)
	switch {
	case errors.Is(err, audio.ErrEmptyCard):
		log.Info().Str("card", card.ID).Msg("card has no tracks, playback idle")
	case err != nil:
		r.report(ResultError)
		return database.Card{}, fmt.Errorf("failed to start card %q: %w", id, err)
	}

	r.report(ResultResolved)
	return card, nil
}

// ResolveDeepLink decodes a tag payload or deep-link URL and resolves the
// card it names.
func (r *Resolver) ResolveDeepLink(ctx context.Context, raw string) (database.Card, error) {
	candidate, err := payload.Decode(raw)
	if err != nil {
		r.report(ResultNotFound)
		return database.Card{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return r.Resolve(ctx, candidate)
}
