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
	"time"

	"github.com/tapdeck/tapdeck/pkg/api/models"
	"github.com/tapdeck/tapdeck/pkg/api/models/requests"
)

func HandlePlaybackStatus(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	return env.Player.Status(), nil
}

func HandlePlaybackNext(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	if err := env.Player.Next(env.State.GetContext()); err != nil {
		return nil, fmt.Errorf("error skipping to next track: %w", err)
	}
	return env.Player.Status(), nil
}

func HandlePlaybackPrev(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	if err := env.Player.Prev(env.State.GetContext()); err != nil {
		return nil, fmt.Errorf("error skipping to previous track: %w", err)
	}
	return env.Player.Status(), nil
}

func HandlePlaybackToggle(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	paused, err := env.Player.TogglePause()
	if err != nil {
		return nil, fmt.Errorf("error toggling pause: %w", err)
	}
	return models.PauseResponse{Paused: paused}, nil
}

func HandlePlaybackStop(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	env.Player.Stop()
	return NoContent{}, nil
}

// HandlePlaybackSeek takes the position in seconds.
func HandlePlaybackSeek(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	var p models.PlaybackSeekParams
	if err := unmarshalParams(env, &p); err != nil {
		return nil, err
	}
	pos := time.Duration(p.Position * float64(time.Second))
	if err := env.Player.Seek(pos); err != nil {
		return nil, fmt.Errorf("error seeking: %w", err)
	}
	return env.Player.Status(), nil
}

func HandlePlaybackVolume(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	var p models.PlaybackVolumeParams
	if err := unmarshalParams(env, &p); err != nil {
		return nil, err
	}
	return models.VolumeResponse{Volume: env.Player.SetVolume(p.Volume)}, nil
}

// HandleResolve starts playback for a payload as it would be read from a
// tag: a bare card id, a card:// payload or a deep link.
func HandleResolve(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	var p models.ResolveParams
	if err := unmarshalParams(env, &p); err != nil {
		return nil, err
	}
	card, err := env.Resolver.ResolveDeepLink(env.State.GetContext(), p.Payload)
	if err != nil {
		return nil, fmt.Errorf("error resolving payload: %w", err)
	}
	return card, nil
}
