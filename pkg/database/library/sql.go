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
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/database"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func sqlMigrateUp(db *sql.DB) error {
	if err := database.MigrateUp(db, migrationFiles, "migrations"); err != nil {
		return fmt.Errorf("failed to run library database migrations: %w", err)
	}
	return nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close sql rows")
	}
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Warn().Err(err).Msg("failed to roll back transaction")
	}
}

func sqlGetCard(ctx context.Context, db *sql.DB, id string) (database.Card, error) {
	card := database.Card{}
	err := db.QueryRowContext(ctx, `
		select ID, Name, Cover, Created
		from Cards
		where ID = ?;
	`, id).Scan(&card.ID, &card.Name, &card.Cover, &card.Created)
	if errors.Is(err, sql.ErrNoRows) {
		return card, fmt.Errorf("%w: %s", database.ErrCardNotFound, id)
	}
	if err != nil {
		return card, fmt.Errorf("failed to query card: %w", err)
	}

	card.Tracks, err = sqlCardTracks(ctx, db, id)
	if err != nil {
		return card, err
	}
	return card, nil
}

func sqlCardTracks(ctx context.Context, db *sql.DB, cardID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		select TrackID
		from CardTracks
		where CardID = ?
		order by Position;
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to query card tracks: %w", err)
	}
	defer closeRows(rows)

	tracks := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan card track: %w", err)
		}
		tracks = append(tracks, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating card tracks: %w", err)
	}
	return tracks, nil
}

// sqlListCards loads every card with its track list in two queries.
func sqlListCards(ctx context.Context, db *sql.DB) ([]database.Card, error) {
	rows, err := db.QueryContext(ctx, `
		select ID, Name, Cover, Created
		from Cards
		order by Created, ID;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer closeRows(rows)

	cards := make([]database.Card, 0)
	index := make(map[string]int)
	for rows.Next() {
		c := database.Card{Tracks: []string{}}
		if err := rows.Scan(&c.ID, &c.Name, &c.Cover, &c.Created); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		index[c.ID] = len(cards)
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cards: %w", err)
	}

	trackRows, err := db.QueryContext(ctx, `
		select CardID, TrackID
		from CardTracks
		order by CardID, Position;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query card tracks: %w", err)
	}
	defer closeRows(trackRows)

	for trackRows.Next() {
		var cardID, trackID string
		if err := trackRows.Scan(&cardID, &trackID); err != nil {
			return nil, fmt.Errorf("failed to scan card track: %w", err)
		}
		if i, ok := index[cardID]; ok {
			cards[i].Tracks = append(cards[i].Tracks, trackID)
		}
	}
	if err := trackRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating card tracks: %w", err)
	}
	return cards, nil
}

// sqlPutCard upserts the card row and replaces its track list.
func sqlPutCard(ctx context.Context, db *sql.DB, c *database.Card) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	if err := txPutCard(ctx, tx, c); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit card: %w", err)
	}
	return nil
}

func txPutCard(ctx context.Context, tx *sql.Tx, c *database.Card) error {
	_, err := tx.ExecContext(ctx, `
		insert into Cards(ID, Name, Cover, Created)
		values (?, ?, ?, ?)
		on conflict(ID) do update set
			Name = excluded.Name,
			Cover = excluded.Cover,
			Created = excluded.Created;
	`, c.ID, c.Name, c.Cover, c.Created)
	if err != nil {
		return fmt.Errorf("failed to upsert card: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `delete from CardTracks where CardID = ?;`, c.ID); err != nil {
		return fmt.Errorf("failed to clear card tracks: %w", err)
	}

	for i, trackID := range c.Tracks {
		_, err := tx.ExecContext(ctx, `
			insert into CardTracks(CardID, Position, TrackID)
			values (?, ?, ?);
		`, c.ID, i, trackID)
		if err != nil {
			return fmt.Errorf("failed to insert card track: %w", err)
		}
	}
	return nil
}

func sqlDeleteCard(ctx context.Context, db *sql.DB, id string) error {
	res, err := db.ExecContext(ctx, `delete from Cards where ID = ?;`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", database.ErrCardNotFound, id)
	}
	return nil
}

func sqlPutTrack(ctx context.Context, db *sql.DB, t *database.Track) error {
	stmt, err := db.PrepareContext(ctx, `
		insert into Tracks(ID, Name, Type, Size, Created)
		values (?, ?, ?, ?, ?)
		on conflict(ID) do update set
			Name = excluded.Name,
			Type = excluded.Type,
			Size = excluded.Size,
			Created = excluded.Created;
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare track insert statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()

	if _, err := stmt.ExecContext(ctx, t.ID, t.Name, t.Type, t.Size, t.Created); err != nil {
		return fmt.Errorf("failed to execute track insert: %w", err)
	}
	return nil
}

func sqlGetTrack(ctx context.Context, db *sql.DB, id string) (database.Track, error) {
	t := database.Track{}
	err := db.QueryRowContext(ctx, `
		select ID, Name, Type, Size, Created
		from Tracks
		where ID = ?;
	`, id).Scan(&t.ID, &t.Name, &t.Type, &t.Size, &t.Created)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("%w: %s", database.ErrTrackNotFound, id)
	}
	if err != nil {
		return t, fmt.Errorf("failed to query track: %w", err)
	}
	return t, nil
}

func sqlListTracks(ctx context.Context, db *sql.DB) ([]database.Track, error) {
	rows, err := db.QueryContext(ctx, `
		select ID, Name, Type, Size, Created
		from Tracks
		order by Created, ID;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer closeRows(rows)

	tracks := make([]database.Track, 0)
	for rows.Next() {
		t := database.Track{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Type, &t.Size, &t.Created); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tracks: %w", err)
	}
	return tracks, nil
}

func sqlDeleteTrack(ctx context.Context, db *sql.DB, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx, `delete from Tracks where ID = ?;`, id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", database.ErrTrackNotFound, id)
	}

	if _, err := tx.ExecContext(ctx, `delete from CardTracks where TrackID = ?;`, id); err != nil {
		return fmt.Errorf("failed to remove track from cards: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit track delete: %w", err)
	}
	return nil
}

func sqlPutUID(ctx context.Context, db *sql.DB, m database.TagUID) error {
	_, err := db.ExecContext(ctx, `
		insert into TagUIDs(UID, CardID, Created)
		values (?, ?, ?)
		on conflict(UID) do update set
			CardID = excluded.CardID,
			Created = excluded.Created;
	`, m.UID, m.CardID, m.Created)
	if err != nil {
		return fmt.Errorf("failed to map uid: %w", err)
	}
	return nil
}

func sqlGetCardIDByUID(ctx context.Context, db *sql.DB, uid string) (string, error) {
	var cardID string
	err := db.QueryRowContext(ctx, `select CardID from TagUIDs where UID = ?;`, uid).Scan(&cardID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", database.ErrUIDNotMapped, uid)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query uid mapping: %w", err)
	}
	return cardID, nil
}

func sqlListUIDs(ctx context.Context, db *sql.DB) ([]database.TagUID, error) {
	rows, err := db.QueryContext(ctx, `select UID, CardID, Created from TagUIDs order by UID;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query uid mappings: %w", err)
	}
	defer closeRows(rows)

	uids := make([]database.TagUID, 0)
	for rows.Next() {
		m := database.TagUID{}
		if err := rows.Scan(&m.UID, &m.CardID, &m.Created); err != nil {
			return nil, fmt.Errorf("failed to scan uid mapping: %w", err)
		}
		uids = append(uids, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating uid mappings: %w", err)
	}
	return uids, nil
}
