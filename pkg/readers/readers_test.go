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

package readers_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tapdeck/tapdeck/pkg/readers"
	"github.com/tapdeck/tapdeck/pkg/testing/mocks"
)

func createMockReader(readerID string, caps []readers.Capability) *mocks.MockReader {
	m := mocks.NewMockReader()
	m.On("ReaderID").Return(readerID)
	m.On("Capabilities").Return(caps)
	m.On("Connected").Return(true)
	return m
}

func TestNormalizeDriverID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{input: "acr122_pcsc", expected: "acr122pcsc"},
		{input: "PN532", expected: "pn532"},
		{input: "file", expected: "file"},
		{input: "___", expected: ""},
		{input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, readers.NormalizeDriverID(tt.input))
		})
	}
}

func TestGenerateReaderID(t *testing.T) {
	t.Parallel()

	id := readers.GenerateReaderID("ACR122_PCSC", "ACS ACR122U PICC Interface")
	parts := strings.SplitN(id, "-", 2)
	require.Len(t, parts, 2)
	assert.Equal(t, "acr122pcsc", parts[0])
	assert.Len(t, parts[1], 8)

	assert.Equal(t, id, readers.GenerateReaderID("acr122pcsc", "acs acr122u picc interface"))
	assert.Equal(t,
		readers.GenerateReaderID("file", `C:\tags\tag.txt`),
		readers.GenerateReaderID("file", "c:/tags/tag.txt"))
	assert.NotEqual(t, id, readers.GenerateReaderID("mqtt", "ACS ACR122U PICC Interface"))
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	cause := errors.New("tag is read only")
	err := readers.NotSupported(cause)

	kind, ok := readers.WriteErrorKindOf(err)
	require.True(t, ok)
	assert.Equal(t, readers.KindNotSupported, kind)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "tag is read only")

	wrapped := errors.Join(errors.New("outer"), readers.NotAllowed(nil))
	kind, ok = readers.WriteErrorKindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, readers.KindNotAllowed, kind)

	_, ok = readers.WriteErrorKindOf(cause)
	assert.False(t, ok)
}

func TestReadEventBlank(t *testing.T) {
	t.Parallel()

	assert.True(t, (&readers.ReadEvent{UID: "04aabb"}).Blank())
}

func TestFilterByCapability(t *testing.T) {
	t.Parallel()

	disconnected := mocks.NewMockReader()
	disconnected.On("Connected").Return(false)

	rs := []readers.Reader{
		createMockReader("r1", []readers.Capability{readers.CapabilityRead}),
		nil,
		createMockReader("r2", []readers.Capability{readers.CapabilityRead, readers.CapabilityWrite}),
		disconnected,
	}

	got := readers.FilterByCapability(rs, readers.CapabilityWrite)
	require.Len(t, got, 1)
	assert.Equal(t, "r2", got[0].ReaderID())

	assert.Len(t, readers.FilterByCapability(rs, readers.CapabilityRead), 2)
}

func TestSelectWriterStrict(t *testing.T) {
	t.Parallel()

	t.Run("finds reader by ID", func(t *testing.T) {
		t.Parallel()

		rs := []readers.Reader{
			createMockReader("reader-1", []readers.Capability{readers.CapabilityWrite}),
			createMockReader("reader-2", []readers.Capability{readers.CapabilityWrite}),
		}

		result, err := readers.SelectWriterStrict(rs, "reader-2")
		require.NoError(t, err)
		assert.Equal(t, "reader-2", result.ReaderID())
	})

	t.Run("errors if reader not found", func(t *testing.T) {
		t.Parallel()

		rs := []readers.Reader{
			createMockReader("reader-1", []readers.Capability{readers.CapabilityWrite}),
		}

		_, err := readers.SelectWriterStrict(rs, "nonexistent")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reader not found")
	})

	t.Run("errors if reader not connected", func(t *testing.T) {
		t.Parallel()

		m := mocks.NewMockReader()
		m.On("ReaderID").Return("reader-1")
		m.On("Connected").Return(false)

		_, err := readers.SelectWriterStrict([]readers.Reader{m}, "reader-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reader not connected")
	})

	t.Run("read only reader is unsupported", func(t *testing.T) {
		t.Parallel()

		rs := []readers.Reader{
			createMockReader("read-only", []readers.Capability{readers.CapabilityRead}),
		}

		_, err := readers.SelectWriterStrict(rs, "read-only")
		kind, ok := readers.WriteErrorKindOf(err)
		require.True(t, ok)
		assert.Equal(t, readers.KindNotSupported, kind)
	})
}

func TestSelectWriterPreferred(t *testing.T) {
	t.Parallel()

	rs := []readers.Reader{
		createMockReader("reader-1", []readers.Capability{readers.CapabilityWrite}),
		createMockReader("reader-2", []readers.Capability{readers.CapabilityWrite}),
	}

	result, err := readers.SelectWriterPreferred(rs, []string{"", "reader-2"})
	require.NoError(t, err)
	assert.Equal(t, "reader-2", result.ReaderID())

	result, err = readers.SelectWriterPreferred(rs, []string{"missing"})
	require.NoError(t, err)
	assert.Equal(t, "reader-1", result.ReaderID())

	_, err = readers.SelectWriterPreferred(nil, nil)
	require.ErrorIs(t, err, readers.ErrNoWriter)
}
