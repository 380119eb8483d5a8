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

import (
	"time"

	"github.com/tapdeck/tapdeck/pkg/database"
)

type VersionResponse struct {
	Version  string `json:"version"`
	Platform string `json:"platform"`
}

type ScanStatusResponse struct {
	State       string `json:"state"`
	Mode        string `json:"mode"`
	LastPayload string `json:"lastPayload,omitempty"`
}

type ScanStateParams struct {
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
}

type ScanObservationParams struct {
	Time      time.Time `json:"time"`
	Kind      string    `json:"kind"`
	Candidate string    `json:"candidate,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	CardID    string    `json:"cardId,omitempty"`
	UID       string    `json:"uid,omitempty"`
	Source    string    `json:"source,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type WriteResponse struct {
	Outcome string `json:"outcome"`
	Payload string `json:"payload,omitempty"`
	Message string `json:"message,omitempty"`
}

type ReaderResponse struct {
	ID           string   `json:"id"`
	Driver       string   `json:"driver"`
	Path         string   `json:"path"`
	Info         string   `json:"info"`
	Capabilities []string `json:"capabilities"`
	Connected    bool     `json:"connected"`
}

type ReadersResponse struct {
	Readers []ReaderResponse `json:"readers"`
}

type PlaybackStartedParams struct {
	CardID     string `json:"cardId"`
	CardName   string `json:"cardName"`
	TrackID    string `json:"trackId"`
	TrackName  string `json:"trackName"`
	TrackIndex int    `json:"trackIndex"`
}

type SettingsResponse struct {
	BaseURL      string  `json:"baseUrl"`
	ScanTimeout  int     `json:"scanTimeout"`
	MaxVolume    float64 `json:"maxVolume"`
	Volume       float64 `json:"volume"`
	DebugLogging bool    `json:"debugLogging"`
	AutoDetect   bool    `json:"readersAutoDetect"`
}

type CardsResponse struct {
	Cards []database.Card `json:"cards"`
}

type TracksResponse struct {
	Tracks []database.Track `json:"tracks"`
}

type PauseResponse struct {
	Paused bool `json:"paused"`
}

type VolumeResponse struct {
	Volume float64 `json:"volume"`
}

type ImportResponse struct {
	Cards  int `json:"cards"`
	Tracks int `json:"tracks"`
	UIDs   int `json:"uids"`
}
