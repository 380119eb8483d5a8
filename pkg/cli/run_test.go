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

package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLock_SingleInstance(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	release, err := AcquireLock(dir)
	require.NoError(t, err)

	_, err = AcquireLock(dir)
	require.ErrorIs(t, err, ErrAlreadyRunning)

	release()
	again, err := AcquireLock(dir)
	require.NoError(t, err)
	again()
}

type fakeService struct {
	done    chan struct{}
	stopped bool
}

func (f *fakeService) entry() (func() error, <-chan struct{}, error) {
	return func() error {
		f.stopped = true
		return nil
	}, f.done, nil
}

func TestRunService_StopsOnContext(t *testing.T) {
	t.Parallel()

	svc := &fakeService{done: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- RunService(ctx, t.TempDir(), svc.entry)
	}()

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunService did not return")
	}
	assert.True(t, svc.stopped)
}

func TestRunService_ServiceEndsItself(t *testing.T) {
	t.Parallel()

	svc := &fakeService{done: make(chan struct{})}
	close(svc.done)
	require.NoError(t, RunService(context.Background(), t.TempDir(), svc.entry))
	assert.True(t, svc.stopped)
}

func TestRunService_StartError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	err := RunService(context.Background(), t.TempDir(), func() (func() error, <-chan struct{}, error) {
		return nil, nil, boom
	})
	require.ErrorIs(t, err, boom)
}

func TestRunService_LockHeld(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	release, err := AcquireLock(dir)
	require.NoError(t, err)
	defer release()

	called := false
	err = RunService(context.Background(), dir, func() (func() error, <-chan struct{}, error) {
		called = true
		return nil, nil, nil
	})
	require.ErrorIs(t, err, ErrAlreadyRunning)
	assert.False(t, called)
}
