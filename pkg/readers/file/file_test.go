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

package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/readers"
	"github.com/tapdeck/tapdeck/pkg/readers/shared/ndef"
	"github.com/tapdeck/tapdeck/pkg/readers/testutils"
)

func openReader(t *testing.T, initial string) (*Reader, chan readers.Scan, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tag.txt")
	if initial != "" {
		require.NoError(t, os.WriteFile(path, []byte(initial), 0o600))
	}

	reader := NewReader(&config.Instance{})
	scans := testutils.CreateTestScanChannel(t)
	require.NoError(t, reader.Open(config.ReadersConnect{Driver: DriverID, Path: path}, scans))
	t.Cleanup(func() {
		_ = reader.Close()
	})
	return reader, scans, path
}

func TestMetadata(t *testing.T) {
	t.Parallel()

	reader := &Reader{}
	metadata := reader.Metadata()

	assert.Equal(t, DriverID, metadata.ID)
	assert.True(t, metadata.DefaultEnabled)
	assert.False(t, metadata.DefaultAutoDetect)
	assert.Equal(t, []string{DriverID}, reader.IDs())
	assert.ElementsMatch(t,
		[]readers.Capability{readers.CapabilityRead, readers.CapabilityWrite},
		reader.Capabilities())
	assert.Empty(t, reader.Detect(nil))
}

func TestOpen_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		device  config.ReadersConnect
		wantErr string
	}{
		{
			name:    "invalid driver",
			device:  config.ReadersConnect{Driver: "pn532", Path: "/tmp/tag.txt"},
			wantErr: "invalid reader id",
		},
		{
			name:    "relative path",
			device:  config.ReadersConnect{Driver: DriverID, Path: "relative/tag.txt"},
			wantErr: "must be absolute",
		},
		{
			name: "missing parent",
			device: config.ReadersConnect{
				Driver: DriverID,
				Path:   filepath.Join(os.TempDir(), "tapdeck-missing-dir-12345", "sub", "tag.txt"),
			},
			wantErr: "failed to stat parent directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reader := NewReader(&config.Instance{})
			err := reader.Open(tt.device, testutils.CreateTestScanChannel(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.False(t, reader.Connected())
		})
	}
}

func TestOpen_CreatesFile(t *testing.T) {
	t.Parallel()

	reader, scans, path := openReader(t, "")

	_, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, reader.Connected())
	assert.Equal(t, path, reader.Info())
	assert.NotEmpty(t, reader.ReaderID())
	testutils.AssertNoScan(t, scans, 200*time.Millisecond)
}

func TestOpen_InitialContent(t *testing.T) {
	t.Parallel()

	_, scans, _ := openReader(t, "card://abc123\n")

	ev := testutils.AssertEventReceived(t, scans, time.Second)
	require.Len(t, ev.Records, 1)
	assert.Equal(t, ndef.KindText, ev.Records[0].Kind)
	assert.Equal(t, "card://abc123", ev.Records[0].Text)
}

func TestContentChangeAndRemoval(t *testing.T) {
	t.Parallel()

	_, scans, path := openReader(t, "first")
	ev := testutils.AssertEventReceived(t, scans, time.Second)
	assert.Equal(t, []string{"first"}, testutils.RecordTexts(ev))

	require.NoError(t, os.WriteFile(path, []byte("second"), 0o600))
	ev = testutils.AssertEventReceived(t, scans, time.Second)
	assert.Equal(t, []string{"second"}, testutils.RecordTexts(ev))

	require.NoError(t, os.WriteFile(path, nil, 0o600))
	removal := testutils.AssertScanReceived(t, scans, time.Second)
	assert.Nil(t, removal.Event)
	require.NoError(t, removal.Error)
}

func TestWrite(t *testing.T) {
	t.Parallel()

	reader, scans, path := openReader(t, "")

	err := reader.Write(context.Background(), readers.WriteRequest{
		Kind:    ndef.KindURI,
		Payload: "https://app.example/play?card=abc",
	})
	require.NoError(t, err)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://app.example/play?card=abc", string(contents))

	ev := testutils.AssertEventReceived(t, scans, time.Second)
	assert.Equal(t, []string{"https://app.example/play?card=abc"}, testutils.RecordTexts(ev))
}

func TestWrite_NotConnected(t *testing.T) {
	t.Parallel()

	reader := NewReader(&config.Instance{})
	err := reader.Write(context.Background(), readers.WriteRequest{Payload: "x"})
	require.ErrorIs(t, err, readers.ErrNotConnected)
}

func TestWrite_CancelledContext(t *testing.T) {
	t.Parallel()

	reader, _, _ := openReader(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := reader.Write(ctx, readers.WriteRequest{Payload: "x"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()

	reader, _, _ := openReader(t, "")
	require.NoError(t, reader.Close())
	require.NoError(t, reader.Close())
	assert.False(t, reader.Connected())
}
