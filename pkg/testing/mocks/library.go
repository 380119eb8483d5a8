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

package mocks

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/mock"
	"github.com/tapdeck/tapdeck/pkg/database"
)

// MockLibrary is a testify mock of database.LibraryDBI.
type MockLibrary struct {
	mock.Mock
}

func NewMockLibrary() *MockLibrary {
	m := &MockLibrary{}
	m.On("Close").Return(nil).Maybe()
	m.On("GetDBPath").Return("").Maybe()
	return m
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("mock library: %w", err)
}

func (m *MockLibrary) Open() error {
	return wrap(m.Called().Error(0))
}

func (m *MockLibrary) MigrateUp() error {
	return wrap(m.Called().Error(0))
}

func (m *MockLibrary) Close() error {
	return wrap(m.Called().Error(0))
}

func (m *MockLibrary) GetDBPath() string {
	return m.Called().String(0)
}

func (m *MockLibrary) GetCard(ctx context.Context, id string) (database.Card, error) {
	args := m.Called(ctx, id)
	card, _ := args.Get(0).(database.Card)
	return card, wrap(args.Error(1))
}

func (m *MockLibrary) ListCards(ctx context.Context) ([]database.Card, error) {
	args := m.Called(ctx)
	cards, _ := args.Get(0).([]database.Card)
	return cards, wrap(args.Error(1))
}

func (m *MockLibrary) CreateCard(ctx context.Context, c *database.Card) error {
	return wrap(m.Called(ctx, c).Error(0))
}

func (m *MockLibrary) UpdateCard(ctx context.Context, c *database.Card) error {
	return wrap(m.Called(ctx, c).Error(0))
}

func (m *MockLibrary) DeleteCard(ctx context.Context, id string) error {
	return wrap(m.Called(ctx, id).Error(0))
}

func (m *MockLibrary) AddTrackToCard(ctx context.Context, cardID, trackID string) error {
	return wrap(m.Called(ctx, cardID, trackID).Error(0))
}

func (m *MockLibrary) AddTrack(ctx context.Context, t *database.Track, data []byte) error {
	return wrap(m.Called(ctx, t, data).Error(0))
}

func (m *MockLibrary) GetTrack(ctx context.Context, id string) (database.Track, error) {
	args := m.Called(ctx, id)
	track, _ := args.Get(0).(database.Track)
	return track, wrap(args.Error(1))
}

func (m *MockLibrary) GetTrackData(ctx context.Context, id string) ([]byte, error) {
	args := m.Called(ctx, id)
	data, _ := args.Get(0).([]byte)
	return data, wrap(args.Error(1))
}

func (m *MockLibrary) ListTracks(ctx context.Context) ([]database.Track, error) {
	args := m.Called(ctx)
	tracks, _ := args.Get(0).([]database.Track)
	return tracks, wrap(args.Error(1))
}

func (m *MockLibrary) DeleteTrack(ctx context.Context, id string) error {
	return wrap(m.Called(ctx, id).Error(0))
}

func (m *MockLibrary) MapUIDToCard(ctx context.Context, uid, cardID string) error {
	return wrap(m.Called(ctx, uid, cardID).Error(0))
}

func (m *MockLibrary) GetCardIDByUID(ctx context.Context, uid string) (string, error) {
	args := m.Called(ctx, uid)
	return args.String(0), wrap(args.Error(1))
}

func (m *MockLibrary) Export(ctx context.Context) (*database.Export, error) {
	args := m.Called(ctx)
	data, _ := args.Get(0).(*database.Export)
	return data, wrap(args.Error(1))
}

func (m *MockLibrary) Import(ctx context.Context, data *database.Export) error {
	return wrap(m.Called(ctx, data).Error(0))
}
