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

// Package testutils provides helpers shared by the reader driver tests.
package testutils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tapdeck/tapdeck/pkg/readers"
)

// CreateTestScanChannel creates a buffered scan channel with capacity 10.
func CreateTestScanChannel(_ *testing.T) chan readers.Scan {
	return make(chan readers.Scan, 10)
}

// AssertScanReceived waits up to timeout for a scan and returns it.
func AssertScanReceived(t *testing.T, ch chan readers.Scan, timeout time.Duration) readers.Scan {
	t.Helper()
	select {
	case scan := <-ch:
		return scan
	case <-time.After(timeout):
		require.Fail(t, "expected scan to be received within timeout", "timeout: %v", timeout)
		return readers.Scan{}
	}
}

// AssertEventReceived waits for a scan carrying a read event, skipping
// removal notices.
func AssertEventReceived(t *testing.T, ch chan readers.Scan, timeout time.Duration) *readers.ReadEvent {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case scan := <-ch:
			require.NoError(t, scan.Error)
			if scan.Event != nil {
				return scan.Event
			}
		case <-deadline:
			require.Fail(t, "expected read event within timeout", "timeout: %v", timeout)
			return nil
		}
	}
}

// AssertNoScan fails if a scan arrives within timeout.
func AssertNoScan(t *testing.T, ch chan readers.Scan, timeout time.Duration) {
	t.Helper()
	select {
	case scan := <-ch:
		require.Fail(t, "unexpected scan received",
			"scan: source=%s, event=%v, error=%v", scan.Source, scan.Event, scan.Error)
	case <-time.After(timeout):
	}
}

// RecordTexts returns the text of every record in ev.
func RecordTexts(ev *readers.ReadEvent) []string {
	out := make([]string, 0, len(ev.Records))
	for _, rec := range ev.Records {
		out = append(out, rec.Text)
	}
	return out
}
