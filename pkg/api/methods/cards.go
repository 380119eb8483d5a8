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

package methods

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/api/models"
	"github.com/tapdeck/tapdeck/pkg/api/models/requests"
	"github.com/tapdeck/tapdeck/pkg/database"
)

func HandleCards(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	cards, err := env.Library.ListCards(env.Context)
	if err != nil {
		return nil, fmt.Errorf("error listing cards: %w", err)
	}
	if cards == nil {
		cards = []database.Card{}
	}
	return models.CardsResponse{Cards: cards}, nil
}

func HandleCardsNew(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	var p models.NewCardParams
	if err := unmarshalParams(env, &p); err != nil {
		return nil, err
	}

	card := database.Card{
		Name:   p.Name,
		Cover:  p.Cover,
		Tracks: p.Tracks,
	}
	if p.ID != nil {
		card.ID = *p.ID
	}
	if err := env.Library.CreateCard(env.Context, &card); err != nil {
		return nil, fmt.Errorf("error creating card: %w", err)
	}

	log.Info().Str("id", card.ID).Str("name", card.Name).Msg("created card")
	libraryChanged(env)
	return card, nil
}

func HandleCardsUpdate(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	var p models.UpdateCardParams
	if err := unmarshalParams(env, &p); err != nil {
		return nil, err
	}

	card, err := env.Library.GetCard(env.Context, p.ID)
	if err != nil {
		return nil, fmt.Errorf("error getting card: %w", err)
	}
	if p.Name != nil {
		card.Name = *p.Name
	}
	if p.Cover != nil {
		card.Cover = *p.Cover
	}
	if p.Tracks != nil {
		card.Tracks = *p.Tracks
	}

	if err := env.Library.UpdateCard(env.Context, &card); err != nil {
		return nil, fmt.Errorf("error updating card: %w", err)
	}
	libraryChanged(env)
	return card, nil
}

func HandleCardsDelete(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	var p models.CardIDParams
	if err := unmarshalParams(env, &p); err != nil {
		return nil, err
	}
	if err := env.Library.DeleteCard(env.Context, p.ID); err != nil {
		return nil, fmt.Errorf("error deleting card: %w", err)
	}
	libraryChanged(env)
	return NoContent{}, nil
}

func HandleCardsTracksAdd(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	var p models.AddCardTrackParams
	if err := unmarshalParams(env, &p); err != nil {
		return nil, err
	}
	if err := env.Library.AddTrackToCard(env.Context, p.CardID, p.TrackID); err != nil {
		return nil, fmt.Errorf("error adding track to card: %w", err)
	}
	libraryChanged(env)
	return NoContent{}, nil
}
