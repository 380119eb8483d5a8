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
	"strings"

	"github.com/tapdeck/tapdeck/pkg/api/models"
	"github.com/tapdeck/tapdeck/pkg/api/models/requests"
	"github.com/tapdeck/tapdeck/pkg/database"
)

func HandleTracks(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	tracks, err := env.Library.ListTracks(env.Context)
	if err != nil {
		return nil, fmt.Errorf("error listing tracks: %w", err)
	}
	if tracks == nil {
		tracks = []database.Track{}
	}
	return models.TracksResponse{Tracks: tracks}, nil
}

func HandleTracksDelete(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	var p models.TrackIDParams
	if err := unmarshalParams(env, &p); err != nil {
		return nil, err
	}
	if err := env.Library.DeleteTrack(env.Context, p.ID); err != nil {
		return nil, fmt.Errorf("error deleting track: %w", err)
	}
	libraryChanged(env)
	return NoContent{}, nil
}

func HandleUIDsMap(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	var p models.MapUIDParams
	if err := unmarshalParams(env, &p); err != nil {
		return nil, err
	}
	uid := strings.TrimSpace(p.UID)
	if err := env.Library.MapUIDToCard(env.Context, uid, p.CardID); err != nil {
		return nil, fmt.Errorf("error mapping uid: %w", err)
	}
	libraryChanged(env)
	return NoContent{}, nil
}

func HandleLibraryExport(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	export, err := env.Library.Export(env.Context)
	if err != nil {
		return nil, fmt.Errorf("error exporting library: %w", err)
	}
	return export, nil
}

func HandleLibraryImport(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	var p database.Export
	if err := unmarshalParams(env, &p); err != nil {
		return nil, err
	}
	if err := env.Library.Import(env.Context, &p); err != nil {
		return nil, fmt.Errorf("error importing library: %w", err)
	}
	libraryChanged(env)
	return models.ImportResponse{
		Cards:  len(p.Cards),
		Tracks: len(p.Tracks),
		UIDs:   len(p.UIDs),
	}, nil
}
