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

package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrCardNotFound  = errors.New("card not found")
	ErrTrackNotFound = errors.New("track not found")
	ErrUIDNotMapped  = errors.New("uid not mapped to a card")
	ErrInvalidExport = errors.New("invalid library export")
)

const (
	DefaultCardName = "Untitled"
	CardIDPrefix    = "card"
	TrackIDPrefix   = "track"
)

/*
 * Records. Timestamps are unix milliseconds so exports stay compatible
 * with earlier backups.
 */

type Track struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Size    int64  `json:"size"`
	Created int64  `json:"created"`
}

type Card struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Cover   string   `json:"cover"`
	Tracks  []string `json:"tracks"`
	Created int64    `json:"created"`
}

type TagUID struct {
	UID     string `json:"uid"`
	CardID  string `json:"cardId"`
	Created int64  `json:"created"`
}

// ExportTrack carries the audio as a base64 data: URL.
type ExportTrack struct {
	Track
	Blob string `json:"blob"`
}

type Export struct {
	Cards  []Card        `json:"cards"`
	Tracks []ExportTrack `json:"tracks"`
	UIDs   []TagUID      `json:"uids"`
}

// NewID returns a "<prefix>-<unix ms>-<8 hex>" identifier.
func NewID(prefix string) string {
	r := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), r[:8])
}

/*
 * Interfaces for external deps
 */

type GenericDBI interface {
	Open() error
	MigrateUp() error
	Close() error
	GetDBPath() string
}

type LibraryDBI interface {
	GenericDBI

	GetCard(ctx context.Context, id string) (Card, error)
	ListCards(ctx context.Context) ([]Card, error)
	// CreateCard inserts or replaces the card with c.ID, filling in a
	// generated id, default name and creation time when missing.
	CreateCard(ctx context.Context, c *Card) error
	UpdateCard(ctx context.Context, c *Card) error
	DeleteCard(ctx context.Context, id string) error
	AddTrackToCard(ctx context.Context, cardID, trackID string) error

	AddTrack(ctx context.Context, t *Track, data []byte) error
	GetTrack(ctx context.Context, id string) (Track, error)
	GetTrackData(ctx context.Context, id string) ([]byte, error)
	ListTracks(ctx context.Context) ([]Track, error)
	DeleteTrack(ctx context.Context, id string) error

	MapUIDToCard(ctx context.Context, uid, cardID string) error
	GetCardIDByUID(ctx context.Context, uid string) (string, error)

	Export(ctx context.Context) (*Export, error)
	Import(ctx context.Context, data *Export) error
}
