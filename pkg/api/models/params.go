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

package models

type CardIDParams struct {
	ID string `json:"id" validate:"required"`
}

type NewCardParams struct {
	ID     *string  `json:"id" validate:"omitempty,cardid"`
	Name   string   `json:"name" validate:"max=200"`
	Cover  string   `json:"cover"`
	Tracks []string `json:"tracks" validate:"dive,required"`
}

type UpdateCardParams struct {
	Name   *string   `json:"name" validate:"omitempty,max=200"`
	Cover  *string   `json:"cover"`
	Tracks *[]string `json:"tracks" validate:"omitempty,dive,required"`
	ID     string    `json:"id" validate:"required"`
}

type AddCardTrackParams struct {
	CardID  string `json:"cardId" validate:"required"`
	TrackID string `json:"trackId" validate:"required"`
}

type TrackIDParams struct {
	ID string `json:"id" validate:"required"`
}

type MapUIDParams struct {
	UID    string `json:"uid" validate:"required"`
	CardID string `json:"cardId" validate:"required,cardid"`
}

type ScanStartParams struct {
	Mode string `json:"mode" validate:"omitempty,oneof=play test"`
}

// ReaderWriteParams names the card to program. An empty card id is
// reported as a write outcome rather than a validation error.
type ReaderWriteParams struct {
	CardID  string `json:"cardId"`
	Dialect string `json:"dialect" validate:"omitempty,dialect"`
}

type ResolveParams struct {
	Payload string `json:"payload"`
}

type PlaybackSeekParams struct {
	Position float64 `json:"position" validate:"gte=0"`
}

type PlaybackVolumeParams struct {
	Volume float64 `json:"volume" validate:"gte=0,lte=1"`
}

type UpdateSettingsParams struct {
	DebugLogging *bool    `json:"debugLogging"`
	AutoDetect   *bool    `json:"readersAutoDetect"`
	ScanTimeout  *int     `json:"scanTimeout" validate:"omitempty,gte=1,lte=600"`
	MaxVolume    *float64 `json:"maxVolume" validate:"omitempty,gte=0,lte=1"`
	BaseURL      *string  `json:"baseUrl" validate:"omitempty,url"`
}
