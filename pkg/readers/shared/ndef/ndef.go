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

/*
Package ndef reads and writes the NDEF messages stored on NFC Forum tags.

Tag memory holds the message inside a TLV block (type 0x03) followed by a
terminator. The helpers here strip and add that wrapper, and map the records
inside into kinds the rest of Tapdeck understands.
*/
package ndef

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

type RecordKind string

const (
	KindText  RecordKind = "text"
	KindURI   RecordKind = "uri"
	KindOther RecordKind = "other"
)

const (
	tlvMessage    = 0x03
	tlvTerminator = 0xFE
	tlvLongLength = 0xFF
)

var (
	// NdefEnd is the TLV terminator written after a message.
	NdefEnd = []byte{tlvTerminator}

	ErrNoNDEF       = errors.New("no NDEF message found")
	ErrInvalidNDEF  = errors.New("invalid NDEF format")
	ErrTooLarge     = errors.New("NDEF message too large")
	ErrUnknownKind  = errors.New("unknown record kind")
	errShortPayload = errors.New("payload too short")
)

// Record is a single decoded NDEF record. Text holds the human-readable
// value for text and URI records, and a best-effort UTF-8 rendering of the
// payload for everything else.
type Record struct {
	Kind    RecordKind
	Type    string
	Text    string
	Payload []byte
}

func tlvHeader(length int) ([]byte, error) {
	if length < int(tlvLongLength) {
		return []byte{tlvMessage, byte(length)}, nil
	}
	if length > 0xFFFF {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, length)
	}

	buf := bytes.NewBuffer([]byte{tlvMessage, tlvLongLength})
	if err := binary.Write(buf, binary.BigEndian, uint16(length)); err != nil {
		return nil, fmt.Errorf("failed to write NDEF length header: %w", err)
	}
	return buf.Bytes(), nil
}

// Wrap places a raw NDEF message in a TLV block followed by the terminator.
func Wrap(message []byte) ([]byte, error) {
	header, err := tlvHeader(len(message))
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(header)+len(message)+1)
	out = append(out, header...)
	out = append(out, message...)
	out = append(out, NdefEnd...)
	return out, nil
}

// Unwrap returns the NDEF message TLV from data. The TLV chain is walked
// first, skipping lock and memory control blocks; if that fails the data is
// scanned for the first well-formed message TLV. A present but empty TLV
// yields an empty, non-nil slice.
func Unwrap(data []byte) ([]byte, error) {
	if msg, ok := walkTLV(data); ok {
		return msg, nil
	}
	for i := 0; i < len(data)-1; i++ {
		if data[i] != tlvMessage {
			continue
		}
		if msg := tlvValue(data, i); msg != nil {
			return msg, nil
		}
	}
	return nil, ErrNoNDEF
}

func walkTLV(data []byte) ([]byte, bool) {
	i := 0
	for i < len(data) {
		switch data[i] {
		case 0x00:
			i++
			continue
		case tlvTerminator:
			return nil, false
		case tlvMessage:
			if i+1 >= len(data) {
				return nil, false
			}
			msg := tlvValue(data, i)
			return msg, msg != nil
		}

		if i+1 >= len(data) {
			return nil, false
		}
		start, length, ok := tlvBounds(data, i)
		if !ok {
			return nil, false
		}
		i = start + length
	}
	return nil, false
}

// tlvBounds returns where the value of the TLV at offset starts and its
// length.
func tlvBounds(data []byte, offset int) (start, length int, ok bool) {
	if data[offset+1] != tlvLongLength {
		return offset + 2, int(data[offset+1]), true
	}
	if offset+4 > len(data) {
		return 0, 0, false
	}
	return offset + 4, int(binary.BigEndian.Uint16(data[offset+2 : offset+4])), true
}

func tlvValue(data []byte, offset int) []byte {
	start, length, ok := tlvBounds(data, offset)
	if !ok || start+length > len(data) {
		return nil
	}
	return data[start : start+length]
}

// Complete reports whether data already holds a whole message TLV, so a
// page-wise reader can stop early.
func Complete(data []byte) bool {
	_, ok := walkTLV(data)
	return ok
}
