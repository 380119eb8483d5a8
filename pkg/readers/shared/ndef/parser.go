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
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hsanjuan/go-ndef"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/unicode"
)

// uriPrefixes is the NFC Forum URI RTD abbreviation table.
var uriPrefixes = []string{
	"",
	"http://www.",
	"https://www.",
	"http://",
	"https://",
	"tel:",
	"mailto:",
	"ftp://anonymous:anonymous@",
	"ftp://ftp.",
	"ftps://",
	"sftp://",
	"smb://",
	"nfs://",
	"ftp://",
	"dav://",
	"news:",
	"telnet://",
	"imap:",
	"rtsp://",
	"urn:",
	"pop:",
	"sip:",
	"sips:",
	"tftp:",
	"btspp://",
	"btl2cap://",
	"btgoep://",
	"tcpobex://",
	"irdaobex://",
	"file://",
	"urn:epc:id:",
	"urn:epc:tag:",
	"urn:epc:pat:",
	"urn:epc:raw:",
	"urn:epc:",
	"urn:nfc:",
}

// ParseRecords decodes a TLV-wrapped NDEF message as read from tag memory.
// A formatted tag with an empty message returns no records and no error.
func ParseRecords(data []byte) ([]Record, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: message too short", ErrInvalidNDEF)
	}

	msg, err := Unwrap(data)
	if err != nil {
		return nil, err
	}
	return ParseMessage(msg)
}

// ParseMessage decodes a raw NDEF message without a TLV wrapper.
func ParseMessage(raw []byte) ([]Record, error) {
	if len(raw) == 0 {
		return []Record{}, nil
	}

	msg := &ndef.Message{}
	if _, err := msg.Unmarshal(raw); err != nil {
		return nil, fmt.Errorf("failed to parse NDEF message: %w", err)
	}
	return FromMessage(msg), nil
}

// FromMessage converts an already parsed go-ndef message.
func FromMessage(msg *ndef.Message) []Record {
	if msg == nil {
		return []Record{}
	}

	records := make([]Record, 0, len(msg.Records))
	for _, rec := range msg.Records {
		if rec == nil {
			continue
		}
		records = append(records, convertRecord(rec))
	}
	return records
}

func convertRecord(rec *ndef.Record) Record {
	out := Record{Kind: KindOther, Type: rec.Type()}

	payload, err := rec.Payload()
	if err != nil {
		log.Debug().Err(err).Msg("failed to read NDEF record payload")
		return out
	}
	out.Payload = payload.Marshal()

	if rec.TNF() == ndef.NFCForumWellKnownType {
		switch out.Type {
		case "T":
			out.Kind = KindText
			out.Text = DecodeText(out.Payload)
			return out
		case "U":
			if uri, err := DecodeURI(out.Payload); err == nil {
				out.Kind = KindURI
				out.Text = uri
				return out
			}
		}
	}

	out.Text = strings.ToValidUTF8(string(out.Payload), string(utf8.RuneError))
	return out
}

// DecodeText returns the content of a text record payload. The status byte
// selects UTF-16 (bit 7 set) or UTF-8 and its low six bits give the length of
// the language code that follows. A payload that cannot be decoded is
// returned as UTF-8 with invalid sequences replaced.
func DecodeText(payload []byte) string {
	text, err := decodeText(payload)
	if err != nil {
		log.Debug().Err(err).Msg("text record decode failed, using UTF-8")
		return strings.ToValidUTF8(string(fallbackBody(payload)), string(utf8.RuneError))
	}
	return text
}

func decodeText(payload []byte) (string, error) {
	if len(payload) < 1 {
		return "", errShortPayload
	}

	status := payload[0]
	langLen := int(status & 0x3F)
	if len(payload) < 1+langLen {
		return "", fmt.Errorf("language code length %d exceeds payload", langLen)
	}
	body := payload[1+langLen:]

	if status&0x80 == 0 {
		if !utf8.Valid(body) {
			return "", errors.New("invalid UTF-8 text")
		}
		return string(body), nil
	}

	if len(body)%2 != 0 {
		return "", errors.New("odd length UTF-16 text")
	}
	decoded, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("failed to decode UTF-16 text: %w", err)
	}
	return string(decoded), nil
}

// fallbackBody skips the header when it is well formed so the fallback does
// not surface the status byte and language code as text.
func fallbackBody(payload []byte) []byte {
	if len(payload) < 1 {
		return payload
	}
	langLen := int(payload[0] & 0x3F)
	if len(payload) < 1+langLen {
		return payload
	}
	return payload[1+langLen:]
}

// DecodeURI expands a URI record payload using its abbreviation byte.
func DecodeURI(payload []byte) (string, error) {
	if len(payload) < 1 {
		return "", errShortPayload
	}

	code := int(payload[0])
	if code >= len(uriPrefixes) {
		return "", fmt.Errorf("invalid URI prefix code: %d", code)
	}
	return uriPrefixes[code] + string(payload[1:]), nil
}
