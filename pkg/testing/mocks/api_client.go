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
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/tapdeck/tapdeck/pkg/api/models"
	"github.com/tapdeck/tapdeck/pkg/database"
)

// MockAPIClient is a mock implementation of client.APIClient for testing.
type MockAPIClient struct {
	mock.Mock
}

func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

func (m *MockAPIClient) Call(ctx context.Context, method, params string) (string, error) {
	args := m.Called(ctx, method, params)
	return args.String(0), args.Error(1)
}

func (m *MockAPIClient) WaitNotification(
	ctx context.Context,
	timeout time.Duration,
	method string,
) (string, error) {
	args := m.Called(ctx, timeout, method)
	return args.String(0), args.Error(1)
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// SetupCards answers the cards and tracks listing calls.
func (m *MockAPIClient) SetupCards(cards []database.Card, tracks []database.Track) {
	m.On("Call", mock.Anything, models.MethodCards, "").
		Return(mustJSON(models.CardsResponse{Cards: cards}), nil)
	m.On("Call", mock.Anything, models.MethodTracks, "").
		Return(mustJSON(models.TracksResponse{Tracks: tracks}), nil)
}

// SetupWrite answers any readers.write call with resp.
func (m *MockAPIClient) SetupWrite(resp models.WriteResponse) {
	m.On("Call", mock.Anything, models.MethodReadersWrite, mock.Anything).
		Return(mustJSON(resp), nil)
}

// SetupObservation answers the next scan.observation wait with obs.
func (m *MockAPIClient) SetupObservation(obs models.ScanObservationParams) {
	m.On("WaitNotification", mock.Anything, mock.Anything, models.NotificationScanObservation).
		Return(mustJSON(obs), nil)
}

// SetupScanControl accepts scan.start and scan.cancel calls.
func (m *MockAPIClient) SetupScanControl() {
	m.On("Call", mock.Anything, models.MethodScanStart, mock.Anything).Return("null", nil)
	m.On("Call", mock.Anything, models.MethodScanCancel, mock.Anything).Return("null", nil).Maybe()
}
