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

package pn532

import (
	"context"
	"time"

	"github.com/ZaparooProject/go-pn532"
	"github.com/tapdeck/tapdeck/pkg/helpers/syncutil"
)

type mockTransport struct{}

func (*mockTransport) Close() error { return nil }

func (*mockTransport) IsConnected() bool { return true }

func (*mockTransport) SendCommand(_ context.Context, _ byte, _ []byte) ([]byte, error) {
	return []byte{}, nil
}

func (*mockTransport) SetTimeout(_ time.Duration) error { return nil }

func (*mockTransport) Type() pn532.TransportType { return pn532.TransportUART }

type mockDevice struct {
	initErr     error
	timeoutSet  time.Duration
	initCalled  bool
	closeCalled bool
}

func (m *mockDevice) Init(_ context.Context) error {
	m.initCalled = true
	return m.initErr
}

func (m *mockDevice) SetTimeout(timeout time.Duration) error {
	m.timeoutSet = timeout
	return nil
}

func (m *mockDevice) Close() error {
	m.closeCalled = true
	return nil
}

type mockTag struct {
	writeErr error
	written  *pn532.NDEFMessage
	uid      string
	tagType  pn532.TagType
}

func (m *mockTag) UID() string { return m.uid }

func (*mockTag) UIDBytes() []byte { return []byte{} }

func (m *mockTag) Type() pn532.TagType { return m.tagType }

func (*mockTag) ReadBlock(_ context.Context, _ uint8) ([]byte, error) { return nil, nil }

func (*mockTag) WriteBlock(_ context.Context, _ uint8, _ []byte) error { return nil }

func (*mockTag) ReadNDEF(_ context.Context) (*pn532.NDEFMessage, error) {
	return nil, nil
}

func (m *mockTag) WriteNDEF(_ context.Context, message *pn532.NDEFMessage) error {
	m.written = message
	return m.writeErr
}

func (*mockTag) ReadText(_ context.Context) (string, error) { return "", nil }

func (*mockTag) WriteText(_ context.Context, _ string) error { return nil }

func (*mockTag) DebugInfo(_ context.Context) string { return "mockTag" }

func (*mockTag) Summary() string { return "mockTag summary" }

// mockSession hands out the tag on the tags channel to the pending write,
// or blocks until the write context ends.
type mockSession struct {
	startFunc      func(ctx context.Context) error
	onCardDetected func(context.Context, *pn532.DetectedTag) error
	onCardRemoved  func()
	tags           chan pn532.Tag
	sessionErr     error
	mu             syncutil.Mutex
	closeCalled    bool
}

func newMockSession() *mockSession {
	return &mockSession{tags: make(chan pn532.Tag, 1)}
}

func (m *mockSession) Start(ctx context.Context) error {
	if m.startFunc != nil {
		return m.startFunc(ctx)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalled = true
	return nil
}

func (m *mockSession) SetOnCardDetected(callback func(context.Context, *pn532.DetectedTag) error) {
	m.onCardDetected = callback
}

func (m *mockSession) SetOnCardRemoved(callback func()) {
	m.onCardRemoved = callback
}

func (*mockSession) SetOnCardChanged(func(context.Context, *pn532.DetectedTag) error) {}

func (m *mockSession) WriteToNextTag(
	ctx, writeCtx context.Context,
	timeout time.Duration,
	writeFunc func(context.Context, pn532.Tag) error,
) error {
	if m.sessionErr != nil {
		return m.sessionErr
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case tag := <-m.tags:
		return writeFunc(writeCtx, tag)
	case <-writeCtx.Done():
		return writeCtx.Err()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return context.DeadlineExceeded
	}
}
