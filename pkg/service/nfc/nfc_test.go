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

package nfc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/readers"
	"github.com/tapdeck/tapdeck/pkg/readers/shared/ndef"
	"github.com/tapdeck/tapdeck/pkg/testing/helpers"
	"github.com/tapdeck/tapdeck/pkg/testing/mocks"
)

type memRegistry struct {
	readers map[string]readers.Reader
	mu      sync.Mutex
}

func newMemRegistry(rs ...readers.Reader) *memRegistry {
	reg := &memRegistry{readers: make(map[string]readers.Reader)}
	for _, r := range rs {
		reg.readers[r.ReaderID()] = r
	}
	return reg
}

func (m *memRegistry) SetReader(r readers.Reader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readers[r.ReaderID()] = r
}

func (m *memRegistry) RemoveReader(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.readers[id]; ok {
		_ = r.Close()
		delete(m.readers, id)
	}
}

func (m *memRegistry) ListReaders() []readers.Reader {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]readers.Reader, 0, len(m.readers))
	for _, r := range m.readers {
		out = append(out, r)
	}
	return out
}

func noDrivers(*config.Instance) []readers.Reader {
	return nil
}

func newTestManager(t *testing.T, reg Registry) *Manager {
	t.Helper()
	cfg := helpers.NewTestConfig(t, func(v *config.Values) {
		v.Readers.AutoDetect = false
	})
	return NewManager(cfg, reg, noDrivers)
}

func readerWith(id string, connected bool, caps ...readers.Capability) *mocks.MockReader {
	r := mocks.NewMockReader()
	r.On("ReaderID").Return(id)
	r.On("Connected").Return(connected)
	r.On("Capabilities").Return(caps)
	r.On("Device").Return("mock:" + id)
	return r
}

func TestScan_NoReaders(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, newMemRegistry())
	_, err := m.Scan(context.Background())
	require.ErrorIs(t, err, ErrCapabilityUnavailable)
}

func TestScan_NoReadCapability(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, newMemRegistry(readerWith("w", true, readers.CapabilityWrite)))
	_, err := m.Scan(context.Background())
	require.ErrorIs(t, err, ErrCapabilityUnavailable)
}

func TestScan_ForwardsToSubscriber(t *testing.T) {
	t.Parallel()

	r := readerWith("r1", true, readers.CapabilityRead)
	m := newTestManager(t, newMemRegistry(r))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := m.Scan(ctx)
	require.NoError(t, err)

	scan := readers.Scan{
		Source: "r1",
		Event: &readers.ReadEvent{
			UID:     "04aa",
			Records: []ndef.Record{{Kind: ndef.KindText, Text: "card://abc"}},
		},
	}
	go m.dispatch(ctx, scan)

	select {
	case got := <-ch:
		assert.Equal(t, "04aa", got.Event.UID)
	case <-time.After(time.Second):
		t.Fatal("scan not forwarded")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestScan_RemovalNotForwarded(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, newMemRegistry(readerWith("r1", true, readers.CapabilityRead)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := m.Scan(ctx)
	require.NoError(t, err)

	m.dispatch(ctx, readers.Scan{Source: "r1"})

	select {
	case s := <-ch:
		t.Fatalf("unexpected scan: %+v", s)
	default:
	}
}

func TestScan_NewSubscriberReplacesOld(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, newMemRegistry(readerWith("r1", true, readers.CapabilityRead)))
	ctx := context.Background()

	first, err := m.Scan(ctx)
	require.NoError(t, err)
	second, err := m.Scan(ctx)
	require.NoError(t, err)

	select {
	case _, ok := <-first:
		assert.False(t, ok, "first channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("first subscriber was not closed")
	}

	go m.dispatch(ctx, readers.Scan{Source: "r1", Error: errors.New("read failed")})
	select {
	case s := <-second:
		require.Error(t, s.Error)
	case <-time.After(time.Second):
		t.Fatal("scan not forwarded to new subscriber")
	}
}

func TestWrite(t *testing.T) {
	t.Parallel()

	req := readers.WriteRequest{Kind: ndef.KindText, Payload: "card://abc"}

	t.Run("no writer", func(t *testing.T) {
		t.Parallel()
		m := newTestManager(t, newMemRegistry(readerWith("r", true, readers.CapabilityRead)))
		err := m.Write(context.Background(), req)
		require.ErrorIs(t, err, ErrCapabilityUnavailable)
	})

	t.Run("disconnected writer", func(t *testing.T) {
		t.Parallel()
		m := newTestManager(t, newMemRegistry(readerWith("w", false, readers.CapabilityWrite)))
		err := m.Write(context.Background(), req)
		require.ErrorIs(t, err, ErrCapabilityUnavailable)
	})

	t.Run("delegates", func(t *testing.T) {
		t.Parallel()
		w := readerWith("w", true, readers.CapabilityRead, readers.CapabilityWrite)
		w.On("Write", mock.Anything, req).Return(nil).Once()
		m := newTestManager(t, newMemRegistry(w))

		require.NoError(t, m.Write(context.Background(), req))
		w.AssertExpectations(t)
	})

	t.Run("keeps driver error kind", func(t *testing.T) {
		t.Parallel()
		w := readerWith("w", true, readers.CapabilityWrite)
		w.On("Write", mock.Anything, req).Return(readers.NotAllowed(errors.New("locked"))).Once()
		m := newTestManager(t, newMemRegistry(w))

		err := m.Write(context.Background(), req)
		kind, ok := readers.WriteErrorKindOf(err)
		require.True(t, ok)
		assert.Equal(t, readers.KindNotAllowed, kind)
	})
}

func TestCancelWrite(t *testing.T) {
	t.Parallel()

	w := readerWith("w", true, readers.CapabilityWrite)
	w.On("CancelWrite").Return().Once()
	r := readerWith("r", true, readers.CapabilityRead)
	m := newTestManager(t, newMemRegistry(w, r))

	m.CancelWrite()
	w.AssertExpectations(t)
	r.AssertNotCalled(t, "CancelWrite")
}

func TestPrune(t *testing.T) {
	t.Parallel()

	up := readerWith("up", true, readers.CapabilityRead)
	down := readerWith("down", false, readers.CapabilityRead)
	reg := newMemRegistry(up, down)
	m := newTestManager(t, reg)

	m.prune()

	rs := reg.ListReaders()
	require.Len(t, rs, 1)
	assert.Equal(t, "up", rs[0].ReaderID())
}

func TestConnectReaders_Configured(t *testing.T) {
	t.Parallel()

	cfg := helpers.NewTestConfig(t, func(v *config.Values) {
		v.Readers.AutoDetect = false
		v.Readers.Connect = []config.ReadersConnect{
			{Driver: "mock", Path: "/dev/a"},
			{Driver: "mock", Path: "/dev/a"},
			{Driver: "other", Path: "/dev/b"},
		}
	})

	driver := mocks.NewMockReader()
	driver.On("Metadata").Return(readers.DriverMetadata{ID: "mock", DefaultEnabled: true})
	driver.On("IDs").Return([]string{"mock"})
	driver.On("ReaderID").Return("mock-a")
	driver.On("Open", config.ReadersConnect{Driver: "mock", Path: "/dev/a"}, mock.Anything).
		Return(nil).Once()

	reg := newMemRegistry()
	m := NewManager(cfg, reg, func(*config.Instance) []readers.Reader {
		return []readers.Reader{driver}
	})

	m.ConnectReaders(context.Background())

	driver.AssertExpectations(t)
	assert.Len(t, reg.ListReaders(), 1)
}

func TestConnectReaders_AutoDetect(t *testing.T) {
	t.Parallel()

	cfg := helpers.NewTestConfig(t)

	driver := mocks.NewMockReader()
	driver.On("Metadata").Return(readers.DriverMetadata{ID: "mock", DefaultEnabled: true, DefaultAutoDetect: true})
	driver.On("IDs").Return([]string{"mock"})
	driver.On("Detect", mock.Anything).Return("mock:/dev/found")
	driver.On("Open", config.ReadersConnect{Driver: "mock", Path: "/dev/found"}, mock.Anything).
		Return(nil).Once()
	driver.On("Connected").Return(true)
	driver.On("ReaderID").Return("mock-found")
	driver.On("Device").Return("mock:/dev/found")

	reg := newMemRegistry()
	m := NewManager(cfg, reg, func(*config.Instance) []readers.Reader {
		return []readers.Reader{driver}
	})

	m.ConnectReaders(context.Background())
	require.Len(t, reg.ListReaders(), 1)

	// The device is in use now, so a second pass opens nothing.
	m.ConnectReaders(context.Background())
	driver.AssertNumberOfCalls(t, "Open", 1)
}

func TestAutoDetector_FailedConnectionsExcluded(t *testing.T) {
	t.Parallel()

	ad := NewAutoDetector()
	ad.setFailed("pn532:/dev/ttyUSB0")
	ad.setFailed("file:/tmp/tag")

	assert.Equal(t, []string{"pn532:/dev/ttyUSB0"}, ad.failedFor([]string{"pn532"}))
	ad.ClearFailed("pn532:/dev/ttyUSB0")
	assert.Empty(t, ad.failedFor([]string{"pn532"}))
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()

	r := readerWith("r1", true, readers.CapabilityRead)
	reg := newMemRegistry(r)
	m := newTestManager(t, reg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	ch, err := m.Scan(ctx)
	require.NoError(t, err)
	m.Queue() <- readers.Scan{Source: "r1", Event: &readers.ReadEvent{UID: "01"}}

	select {
	case s := <-ch:
		assert.Equal(t, "01", s.Event.UID)
	case <-time.After(time.Second):
		t.Fatal("scan not forwarded by Run")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	assert.Empty(t, reg.ListReaders())
}
