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
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/tapdeck/tapdeck/pkg/audio"
	"github.com/tapdeck/tapdeck/pkg/database"
)

// MockPlayer is a testify mock of the playback controller.
type MockPlayer struct {
	mock.Mock
}

func NewMockPlayer() *MockPlayer {
	return &MockPlayer{}
}

func (m *MockPlayer) StartCard(ctx context.Context, card database.Card) error {
	if err := m.Called(ctx, card).Error(0); err != nil {
		return fmt.Errorf("mock player: %w", err)
	}
	return nil
}

func (m *MockPlayer) Next(ctx context.Context) error {
	return m.Called(ctx).Error(0) //nolint:wrapcheck // passthrough
}

func (m *MockPlayer) Prev(ctx context.Context) error {
	return m.Called(ctx).Error(0) //nolint:wrapcheck // passthrough
}

func (m *MockPlayer) TogglePause() (bool, error) {
	args := m.Called()
	return args.Bool(0), args.Error(1) //nolint:wrapcheck // passthrough
}

func (m *MockPlayer) Stop() {
	m.Called()
}

func (m *MockPlayer) Seek(position time.Duration) error {
	return m.Called(position).Error(0) //nolint:wrapcheck // passthrough
}

func (m *MockPlayer) SetVolume(v float64) float64 {
	return m.Called(v).Get(0).(float64) //nolint:forcetypeassert // test mock
}

func (m *MockPlayer) Status() audio.Status {
	st, _ := m.Called().Get(0).(audio.Status)
	return st
}
