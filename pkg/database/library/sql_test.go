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
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tapdeck/tapdeck/pkg/database"
	testsqlmock "github.com/tapdeck/tapdeck/pkg/testing/sqlmock"
)

func TestSqlGetCard_QueryError(t *testing.T) {
	t.Parallel()
	db, mock, err := testsqlmock.NewSQLMock()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`select ID, Name, Cover, Created\s+from Cards`).
		WithArgs("card-1").
		WillReturnError(assert.AnError)

	_, err = sqlGetCard(context.Background(), db, "card-1")
	require.ErrorIs(t, err, assert.AnError)
	assert.NotErrorIs(t, err, database.ErrCardNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlGetCard_WithTracks(t *testing.T) {
	t.Parallel()
	db, mock, err := testsqlmock.NewSQLMock()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`from Cards`).
		WithArgs("card-1").
		WillReturnRows(sqlmock.NewRows([]string{"ID", "Name", "Cover", "Created"}).
			AddRow("card-1", "Lullabies", "", int64(1700000000000)))
	mock.ExpectQuery(`select TrackID\s+from CardTracks`).
		WithArgs("card-1").
		WillReturnRows(sqlmock.NewRows([]string{"TrackID"}).AddRow("track-2").AddRow("track-1"))

	card, err := sqlGetCard(context.Background(), db, "card-1")
	require.NoError(t, err)
	assert.Equal(t, database.Card{
		ID:      "card-1",
		Name:    "Lullabies",
		Tracks:  []string{"track-2", "track-1"},
		Created: 1700000000000,
	}, card)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlPutCard_RollsBackOnTrackInsertError(t *testing.T) {
	t.Parallel()
	db, mock, err := testsqlmock.NewSQLMock()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	card := &database.Card{ID: "card-1", Name: "A", Tracks: []string{"track-1"}, Created: 1}

	mock.ExpectBegin()
	mock.ExpectExec(`insert into Cards`).
		WithArgs("card-1", "A", "", int64(1)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`delete from CardTracks where CardID`).
		WithArgs("card-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`insert into CardTracks`).
		WithArgs("card-1", 0, "track-1").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err = sqlPutCard(context.Background(), db, card)
	require.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlDeleteCard_NotFound(t *testing.T) {
	t.Parallel()
	db, mock, err := testsqlmock.NewSQLMock()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`delete from Cards where ID`).
		WithArgs("card-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = sqlDeleteCard(context.Background(), db, "card-1")
	require.ErrorIs(t, err, database.ErrCardNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlPutTrack_PrepareError(t *testing.T) {
	t.Parallel()
	db, mock, err := testsqlmock.NewSQLMock()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectPrepare(`insert into Tracks`).WillReturnError(assert.AnError)

	err = sqlPutTrack(context.Background(), db, &database.Track{ID: "track-1"})
	require.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlGetCardIDByUID_NoRows(t *testing.T) {
	t.Parallel()
	db, mock, err := testsqlmock.NewSQLMock()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`select CardID from TagUIDs`).
		WithArgs("04aa").
		WillReturnRows(sqlmock.NewRows([]string{"CardID"}))

	_, err = sqlGetCardIDByUID(context.Background(), db, "04aa")
	require.ErrorIs(t, err, database.ErrUIDNotMapped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDataURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "data:audio/ogg;base64,AQI=", encodeDataURL("audio/ogg", []byte{1, 2}))
	assert.Equal(t, "data:audio/mpeg;base64,", encodeDataURL("", nil))

	data, err := decodeDataURL("data:audio/ogg;base64,AQI=")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, data)

	_, err = decodeDataURL("AQI=")
	require.ErrorIs(t, err, database.ErrInvalidExport)
}
