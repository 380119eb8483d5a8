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
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/api/models"
	"github.com/tapdeck/tapdeck/pkg/api/models/requests"
	"github.com/tapdeck/tapdeck/pkg/api/notifications"
	"github.com/tapdeck/tapdeck/pkg/api/validation"
	"github.com/tapdeck/tapdeck/pkg/config"
)

// NoContent is returned by methods with no result. It marshals to null.
type NoContent struct{}

func (NoContent) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// ErrInvalidParams marks errors caused by the request params rather than
// the service, so the server can answer with the matching JSON-RPC code.
var ErrInvalidParams = errors.New("invalid params")

func unmarshalParams[T any](env requests.RequestEnv, dest *T) error { //nolint:gocritic // env is passed by value everywhere
	if err := validation.ValidateAndUnmarshal(env.Params, dest); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return nil
}

func libraryChanged(env requests.RequestEnv) { //nolint:gocritic // single-use parameter in API handler
	if env.State != nil {
		notifications.LibraryChanged(env.State.Notifications)
	}
}

func HandleVersion(_ requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Debug().Msg("received version request")
	return models.VersionResponse{
		Version:  config.AppVersion,
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}, nil
}
