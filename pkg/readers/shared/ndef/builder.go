/*
Tapdeck
Copyright (c) 2026 The Tapdeck Contributors.
SPDX-License-Identifier: GPL-3.0-or-later

This file is part of Tapdeck.

Tapdeck is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Tapdeck is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Tapdeck.  If not, see <http://www.gnu.org/licenses/>.
*/

package ndef

import (
	"fmt"

	"github.com/hsanjuan/go-ndef"
)

// DefaultLanguage is the language code written into text records.
const DefaultLanguage = "en"

// MarshalText returns a raw single-record NDEF text message.
func MarshalText(text string) ([]byte, error) {
	b, err := ndef.NewTextMessage(text, DefaultLanguage).Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal NDEF text message: %w", err)
	}
	return b, nil
}

// MarshalURI returns a raw single-record NDEF URI message.
func MarshalURI(uri string) ([]byte, error) {
	b, err := ndef.NewURIMessage(uri).Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal NDEF URI message: %w", err)
	}
	return b, nil
}

// Marshal builds a raw message holding one record of the given kind.
func Marshal(kind RecordKind, value string) ([]byte, error) {
	switch kind {
	case KindText:
		return MarshalText(value)
	case KindURI:
		return MarshalURI(value)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// BuildMessage builds a TLV-wrapped message ready to be written to tag
// memory.
func BuildMessage(kind RecordKind, value string) ([]byte, error) {
	raw, err := Marshal(kind, value)
	if err != nil {
		return nil, err
	}
	return Wrap(raw)
}
