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

package library

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/database"
)

const defaultAudioType = "audio/mpeg"

func encodeDataURL(mime string, data []byte) string {
	if mime == "" {
		mime = defaultAudioType
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// decodeDataURL accepts "data:<mime>;base64,<data>". Only the part after
// the first comma is decoded, matching how backups were produced.
func decodeDataURL(s string) ([]byte, error) {
	_, body, ok := strings.Cut(s, ",")
	if !ok {
		return nil, fmt.Errorf("%w: blob is not a data URL", database.ErrInvalidExport)
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", database.ErrInvalidExport, err)
	}
	return data, nil
}

func (db *Library) Export(ctx context.Context) (*database.Export, error) {
	if db.sql == nil {
		return nil, ErrNullSQL
	}

	cards, err := sqlListCards(ctx, db.sql)
	if err != nil {
		return nil, err
	}
	tracks, err := sqlListTracks(ctx, db.sql)
	if err != nil {
		return nil, err
	}
	uids, err := sqlListUIDs(ctx, db.sql)
	if err != nil {
		return nil, err
	}

	out := &database.Export{
		Cards:  cards,
		Tracks: make([]database.ExportTrack, 0, len(tracks)),
		UIDs:   uids,
	}
	for _, t := range tracks {
		data, err := db.blobs.Get(t.ID)
		if err != nil {
			log.Warn().Err(err).Str("track", t.ID).Msg("skipping track without audio in export")
			continue
		}
		out.Tracks = append(out.Tracks, database.ExportTrack{
			Track: t,
			Blob:  encodeDataURL(t.Type, data),
		})
	}
	return out, nil
}

// Import upserts tracks, then cards, then uid mappings. Existing records
// with other ids are kept.
func (db *Library) Import(ctx context.Context, data *database.Export) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	if data == nil {
		return fmt.Errorf("%w: empty document", database.ErrInvalidExport)
	}

	for i := range data.Tracks {
		et := data.Tracks[i]
		if et.ID == "" {
			return fmt.Errorf("%w: track %d has no id", database.ErrInvalidExport, i)
		}
		audio, err := decodeDataURL(et.Blob)
		if err != nil {
			return fmt.Errorf("track %s: %w", et.ID, err)
		}
		if et.Type == "" {
			et.Type = defaultAudioType
		}
		t := et.Track
		if err := db.AddTrack(ctx, &t, audio); err != nil {
			return fmt.Errorf("failed to import track %s: %w", et.ID, err)
		}
	}

	for i := range data.Cards {
		c := data.Cards[i]
		if err := db.CreateCard(ctx, &c); err != nil {
			return fmt.Errorf("failed to import card %s: %w", c.ID, err)
		}
	}

	for _, m := range data.UIDs {
		if strings.TrimSpace(m.UID) == "" || m.CardID == "" {
			continue
		}
		if m.Created == 0 {
			if err := db.MapUIDToCard(ctx, m.UID, m.CardID); err != nil {
				return err
			}
			continue
		}
		m.UID = strings.ToLower(strings.TrimSpace(m.UID))
		if err := sqlPutUID(ctx, db.sql, m); err != nil {
			return err
		}
	}

	log.Info().
		Int("tracks", len(data.Tracks)).
		Int("cards", len(data.Cards)).
		Int("uids", len(data.UIDs)).
		Msg("imported library")
	return nil
}
