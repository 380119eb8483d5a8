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

	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/api/models"
	"github.com/tapdeck/tapdeck/pkg/api/models/requests"
	"github.com/tapdeck/tapdeck/pkg/payload"
	"github.com/tapdeck/tapdeck/pkg/service/state"
	"github.com/tapdeck/tapdeck/pkg/service/write"
)

var ErrNoWriteSession = errors.New("writing is not available")

// HandleReaderWrite blocks until a tag is written, the write is cancelled
// or the request context ends. Reader failures are returned as an outcome,
// not as an error.
func HandleReaderWrite(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	var p models.ReaderWriteParams
	if err := unmarshalParams(env, &p); err != nil {
		return nil, err
	}
	dialect, err := payload.ParseDialect(p.Dialect)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}

	if env.State == nil || env.State.WriteSession() == nil {
		return nil, ErrNoWriteSession
	}

	out, err := env.State.WriteSession().WriteWithBase(env.Context, p.CardID, dialect, env.BaseURL)
	switch {
	case errors.Is(err, write.ErrNoTargetSelected):
		return models.WriteResponse{
			Outcome: string(write.NoTargetSelected),
			Message: err.Error(),
		}, nil
	case err != nil:
		return nil, fmt.Errorf("error writing tag: %w", err)
	}

	log.Info().Str("outcome", string(out.Kind)).Msg("tag write finished")
	return models.WriteResponse{
		Outcome: string(out.Kind),
		Payload: out.Payload,
		Message: out.Message,
	}, nil
}

func HandleReaderWriteCancel(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	if env.State == nil || env.State.WriteSession() == nil {
		return nil, ErrNoWriteSession
	}
	env.State.WriteSession().Cancel()
	return NoContent{}, nil
}

func HandleReaders(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	all := env.State.ListReaders()
	infos := make([]models.ReaderResponse, 0, len(all))
	for _, r := range all {
		if r == nil {
			continue
		}
		infos = append(infos, state.DescribeReader(r, r.Connected()))
	}
	return models.ReadersResponse{Readers: infos}, nil
}
