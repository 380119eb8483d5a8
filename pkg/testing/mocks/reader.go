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
	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/readers"
	"github.com/tapdeck/tapdeck/pkg/readers/shared/ndef"
)

// MockReader is a testify mock of readers.Reader.
type MockReader struct {
	mock.Mock
}

func (m *MockReader) Metadata() readers.DriverMetadata {
	args := m.Called()
	if metadata, ok := args.Get(0).(readers.DriverMetadata); ok {
		return metadata
	}
	return readers.DriverMetadata{}
}

func (m *MockReader) IDs() []string {
	args := m.Called()
	if ids, ok := args.Get(0).([]string); ok {
		return ids
	}
	return []string{}
}

func (m *MockReader) Open(readerConfig config.ReadersConnect, scanChan chan<- readers.Scan) error {
	args := m.Called(readerConfig, scanChan)
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

func (m *MockReader) Close() error {
	args := m.Called()
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

func (m *MockReader) Detect(devices []string) string {
	args := m.Called(devices)
	return args.String(0)
}

func (m *MockReader) Device() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockReader) Connected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockReader) Info() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockReader) ReaderID() string {
	args := m.Called()
	return args.String(0)
}

// Write records the request. The returned error is wrapped, so tests should
// match it with errors.Is or errors.As.
func (m *MockReader) Write(ctx context.Context, req readers.WriteRequest) error {
	args := m.Called(ctx, req)
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

func (m *MockReader) CancelWrite() {
	m.Called()
}

func (m *MockReader) Capabilities() []readers.Capability {
	args := m.Called()
	if capabilities, ok := args.Get(0).([]readers.Capability); ok {
		return capabilities
	}
	return []readers.Capability{}
}

// SimulateRead sends a read event with the given text records to scanChan.
func (*MockReader) SimulateRead(scanChan chan<- readers.Scan, source, uid string, texts ...string) {
	records := make([]ndef.Record, 0, len(texts))
	for _, text := range texts {
		records = append(records, ndef.Record{Kind: ndef.KindText, Type: "T", Text: text})
	}
	scanChan <- readers.Scan{
		Source: source,
		Event: &readers.ReadEvent{
			UID:     uid,
			Source:  source,
			Records: records,
		},
	}
}

// SimulateError sends a read error to scanChan.
func (*MockReader) SimulateError(scanChan chan<- readers.Scan, err error, source string) {
	scanChan <- readers.Scan{
		Error:  err,
		Source: source,
	}
}

// NewMockReader returns a MockReader where Close may be called any number of
// times.
func NewMockReader() *MockReader {
	m := &MockReader{}
	m.On("Close").Return(nil).Maybe()
	return m
}

// SetupBasicMock configures a connected reader that can read and write.
func (m *MockReader) SetupBasicMock() {
	m.On("Metadata").Return(readers.DriverMetadata{
		ID:                "mock",
		DefaultEnabled:    true,
		DefaultAutoDetect: true,
		Description:       "Mock reader for testing",
	})
	m.On("IDs").Return([]string{"mock"})
	m.On("Connected").Return(true)
	m.On("Device").Return("mock:test-device")
	m.On("Info").Return("Mock reader")
	m.On("ReaderID").Return("mock-test")
	m.On("Capabilities").Return([]readers.Capability{readers.CapabilityRead, readers.CapabilityWrite})
}
