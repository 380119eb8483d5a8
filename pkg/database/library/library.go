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

// Package library is the SQLite implementation of database.LibraryDBI.
// Card and track metadata live in SQLite and audio bytes in a bbolt blob
// store next to it.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/database"
	"github.com/tapdeck/tapdeck/pkg/database/blobs"
)

var ErrNullSQL = errors.New("library database is not connected")

const sqliteConnParams = "?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000&_foreign_keys=ON"

type Library struct {
	sql     *sql.DB
	blobs   *blobs.Store
	dataDir string
}

var _ database.LibraryDBI = (*Library)(nil)

// OpenLibrary opens (creating when needed) the library in dataDir and
// applies pending migrations.
func OpenLibrary(dataDir string) (*Library, error) {
	db := &Library{dataDir: dataDir}
	if err := db.Open(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *Library) Open() error {
	if err := os.MkdirAll(db.dataDir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory for database: %w", err)
	}

	sqlInstance, err := sql.Open("sqlite3", db.GetDBPath()+sqliteConnParams)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	store, err := blobs.Open(filepath.Join(db.dataDir, config.BlobsDBFile))
	if err != nil {
		_ = sqlInstance.Close()
		return fmt.Errorf("failed to open blob store: %w", err)
	}

	db.sql = sqlInstance
	db.blobs = store
	return db.MigrateUp()
}

func (db *Library) GetDBPath() string {
	return filepath.Join(db.dataDir, config.LibraryDBFile)
}

func (db *Library) MigrateUp() error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlMigrateUp(db.sql)
}

func (db *Library) Close() error {
	var errs []error
	if db.sql != nil {
		if err := db.sql.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
		db.sql = nil
	}
	if db.blobs != nil {
		if err := db.blobs.Close(); err != nil {
			errs = append(errs, err)
		}
		db.blobs = nil
	}
	return errors.Join(errs...)
}

// SetSQLForTesting swaps in a prepared connection and blob store without
// touching the filesystem layout.
func (db *Library) SetSQLForTesting(sqlDB *sql.DB, store *blobs.Store) error {
	db.sql = sqlDB
	db.blobs = store
	return db.MigrateUp()
}

func (db *Library) GetCard(ctx context.Context, id string) (database.Card, error) {
	if db.sql == nil {
		return database.Card{}, ErrNullSQL
	}
	return sqlGetCard(ctx, db.sql, id)
}

func (db *Library) ListCards(ctx context.Context) ([]database.Card, error) {
	if db.sql == nil {
		return nil, ErrNullSQL
	}
	return sqlListCards(ctx, db.sql)
}

func (db *Library) CreateCard(ctx context.Context, c *database.Card) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	if c.ID == "" {
		c.ID = database.NewID(database.CardIDPrefix)
	}
	if strings.TrimSpace(c.Name) == "" {
		c.Name = database.DefaultCardName
	}
	if c.Created == 0 {
		c.Created = time.Now().UnixMilli()
	}
	if c.Tracks == nil {
		c.Tracks = []string{}
	}
	return sqlPutCard(ctx, db.sql, c)
}

func (db *Library) UpdateCard(ctx context.Context, c *database.Card) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	existing, err := sqlGetCard(ctx, db.sql, c.ID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(c.Name) == "" {
		c.Name = existing.Name
	}
	c.Created = existing.Created
	if c.Tracks == nil {
		c.Tracks = []string{}
	}
	return sqlPutCard(ctx, db.sql, c)
}

func (db *Library) DeleteCard(ctx context.Context, id string) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlDeleteCard(ctx, db.sql, id)
}

// AddTrackToCard appends trackID to the card's track list. The card is
// read and written back without a version check, so two concurrent adds
// to the same card can lose one of the tracks.
func (db *Library) AddTrackToCard(ctx context.Context, cardID, trackID string) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	card, err := sqlGetCard(ctx, db.sql, cardID)
	if err != nil {
		return err
	}
	if _, err := sqlGetTrack(ctx, db.sql, trackID); err != nil {
		return err
	}
	card.Tracks = append(card.Tracks, trackID)
	return sqlPutCard(ctx, db.sql, &card)
}

// AddTrack stores the audio bytes and the track record. ID, size and
// creation time are filled in when missing.
func (db *Library) AddTrack(ctx context.Context, t *database.Track, data []byte) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	if t.ID == "" {
		t.ID = database.NewID(database.TrackIDPrefix)
	}
	if t.Created == 0 {
		t.Created = time.Now().UnixMilli()
	}
	t.Size = int64(len(data))

	if err := db.blobs.Put(t.ID, data); err != nil {
		return fmt.Errorf("failed to store track audio: %w", err)
	}
	if err := sqlPutTrack(ctx, db.sql, t); err != nil {
		if delErr := db.blobs.Delete(t.ID); delErr != nil {
			log.Warn().Err(delErr).Str("track", t.ID).Msg("failed to remove orphaned track audio")
		}
		return err
	}
	return nil
}

func (db *Library) GetTrack(ctx context.Context, id string) (database.Track, error) {
	if db.sql == nil {
		return database.Track{}, ErrNullSQL
	}
	return sqlGetTrack(ctx, db.sql, id)
}

func (db *Library) GetTrackData(ctx context.Context, id string) ([]byte, error) {
	if _, err := db.GetTrack(ctx, id); err != nil {
		return nil, err
	}
	data, err := db.blobs.Get(id)
	if errors.Is(err, blobs.ErrBlobNotFound) {
		return nil, fmt.Errorf("%w: no audio for %s", database.ErrTrackNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load track audio: %w", err)
	}
	return data, nil
}

func (db *Library) ListTracks(ctx context.Context) ([]database.Track, error) {
	if db.sql == nil {
		return nil, ErrNullSQL
	}
	return sqlListTracks(ctx, db.sql)
}

// DeleteTrack removes the track, its audio and every card entry pointing
// at it.
func (db *Library) DeleteTrack(ctx context.Context, id string) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	if err := sqlDeleteTrack(ctx, db.sql, id); err != nil {
		return err
	}
	if err := db.blobs.Delete(id); err != nil {
		return fmt.Errorf("failed to delete track audio: %w", err)
	}
	return nil
}

func (db *Library) MapUIDToCard(ctx context.Context, uid, cardID string) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	uid = strings.ToLower(strings.TrimSpace(uid))
	if uid == "" {
		return errors.New("uid is empty")
	}
	return sqlPutUID(ctx, db.sql, database.TagUID{
		UID:     uid,
		CardID:  cardID,
		Created: time.Now().UnixMilli(),
	})
}

func (db *Library) GetCardIDByUID(ctx context.Context, uid string) (string, error) {
	if db.sql == nil {
		return "", ErrNullSQL
	}
	uid = strings.ToLower(strings.TrimSpace(uid))
	if uid == "" {
		return "", database.ErrUIDNotMapped
	}
	return sqlGetCardIDByUID(ctx, db.sql, uid)
}
