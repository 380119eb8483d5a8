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

package readers

import (
	"errors"
	"slices"
)

var ErrNoWriter = errors.New("no connected reader can write")

type CapabilityProvider interface {
	Capabilities() []Capability
}

func HasCapability(r CapabilityProvider, capability Capability) bool {
	return slices.Contains(r.Capabilities(), capability)
}

// FilterByCapability returns the connected readers with the capability.
func FilterByCapability(rs []Reader, capability Capability) []Reader {
	result := make([]Reader, 0, len(rs))
	for _, r := range rs {
		if r == nil || !r.Connected() {
			continue
		}
		if HasCapability(r, capability) {
			result = append(result, r)
		}
	}
	return result
}

func SelectWriterStrict(rs []Reader, readerID string) (Reader, error) {
	for _, r := range rs {
		if r == nil || r.ReaderID() != readerID {
			continue
		}
		if !r.Connected() {
			return nil, errors.New("reader not connected: " + readerID)
		}
		if !HasCapability(r, CapabilityWrite) {
			return nil, NotSupported(errors.New("reader does not have write capability: " + readerID))
		}
		return r, nil
	}
	return nil, errors.New("reader not found: " + readerID)
}

// SelectWriterPreferred picks the first write-capable reader matching one of
// preferredIDs, falling back to any write-capable reader.
func SelectWriterPreferred(rs []Reader, preferredIDs []string) (Reader, error) {
	writeCapable := FilterByCapability(rs, CapabilityWrite)
	if len(writeCapable) == 0 {
		return nil, ErrNoWriter
	}

	for _, id := range preferredIDs {
		if id == "" {
			continue
		}
		for _, r := range writeCapable {
			if r.ReaderID() == id {
				return r, nil
			}
		}
	}

	return writeCapable[0], nil
}
