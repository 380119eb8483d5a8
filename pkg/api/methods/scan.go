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
	"errors"
	"fmt"

	"github.com/tapdeck/tapdeck/pkg/api/models"
	"github.com/tapdeck/tapdeck/pkg/api/models/requests"
	"github.com/tapdeck/tapdeck/pkg/service/scan"
)

var ErrNoScanSession = errors.New("scanning is not available")

func scanStatus(s *scan.Session) models.ScanStatusResponse {
	return models.ScanStatusResponse{
		State:       s.State().String(),
		Mode:        s.Mode().String(),
		LastPayload: s.LastPayload(),
	}
}

func scanSession(env requests.RequestEnv) (*scan.Session, error) { //nolint:gocritic // env is passed by value everywhere
	if env.State == nil || env.State.ScanSession() == nil {
		return nil, ErrNoScanSession
	}
	return env.State.ScanSession(), nil
}

// HandleScanStart starts listening for tags. The session is bound to the
// service lifetime rather than the request, so it outlives the call.
func HandleScanStart(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	var p models.ScanStartParams
	if len(env.Params) > 0 {
		if err := unmarshalParams(env, &p); err != nil {
			return nil, err
		}
	}
	mode, err := scan.ParseMode(p.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}

	s, err := scanSession(env)
	if err != nil {
		return nil, err
	}
	if err := s.Start(env.State.GetContext(), mode); err != nil {
		return nil, fmt.Errorf("error starting scan: %w", err)
	}
	return scanStatus(s), nil
}

func HandleScanCancel(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	s, err := scanSession(env)
	if err != nil {
		return nil, err
	}
	s.Cancel()
	return scanStatus(s), nil
}

func HandleScanStatus(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	s, err := scanSession(env)
	if err != nil {
		return nil, err
	}
	return scanStatus(s), nil
}
