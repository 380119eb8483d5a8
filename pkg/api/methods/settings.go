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
)

func HandleSettings(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	cfg := env.Config
	return models.SettingsResponse{
		DebugLogging: cfg.DebugLogging(),
		AutoDetect:   cfg.AutoDetect(),
		ScanTimeout:  int(cfg.ScanTimeout().Seconds()),
		MaxVolume:    cfg.MaxVolume(),
		Volume:       cfg.Volume(),
		BaseURL:      cfg.BaseURL(),
	}, nil
}

func HandleSettingsUpdate(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	var p models.UpdateSettingsParams
	if err := unmarshalParams(env, &p); err != nil {
		return nil, err
	}

	cfg := env.Config
	if p.DebugLogging != nil {
		log.Info().Bool("debugLogging", *p.DebugLogging).Msg("updating debug logging")
		cfg.SetDebugLogging(*p.DebugLogging)
	}
	if p.AutoDetect != nil {
		cfg.SetAutoDetect(*p.AutoDetect)
	}
	if p.ScanTimeout != nil {
		cfg.SetScanTimeout(*p.ScanTimeout)
	}
	if p.MaxVolume != nil {
		cfg.SetMaxVolume(*p.MaxVolume)
		if env.Player != nil {
			// Re-apply so the current volume respects the new cap.
			env.Player.SetVolume(cfg.Volume())
		}
	}
	if p.BaseURL != nil {
		cfg.SetBaseURL(*p.BaseURL)
	}

	if err := cfg.Save(); err != nil {
		return nil, fmt.Errorf("error saving settings: %w", err)
	}
	return HandleSettings(env)
}
