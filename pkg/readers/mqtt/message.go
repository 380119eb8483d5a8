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

package mqtt

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tapdeck/tapdeck/pkg/readers/shared/ndef"
)

// WireRecord is one record in a structured MQTT tag message.
type WireRecord struct {
	Kind string `json:"kind"`
	Data string `json:"data"`
}

// WireMessage is the structured form of a tag message:
//
//	{"uid": "04a2b3", "records": [{"kind": "text", "data": "card://abc"}]}
//
// An empty records list is a blank tag.
type WireMessage struct {
	Records *[]WireRecord `json:"records"`
	UID     string        `json:"uid,omitempty"`
}

// ParseMessage turns an MQTT payload into a tag UID and its records. Payloads
// that are not a structured message become a single text record.
func ParseMessage(payload []byte) (uid string, records []ndef.Record) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var msg WireMessage
		if err := json.Unmarshal(trimmed, &msg); err == nil && msg.Records != nil {
			records = make([]ndef.Record, 0, len(*msg.Records))
			for _, wr := range *msg.Records {
				records = append(records, wireToRecord(wr))
			}
			return msg.UID, records
		}
	}

	return "", []ndef.Record{{
		Kind:    ndef.KindText,
		Type:    "T",
		Text:    string(payload),
		Payload: payload,
	}}
}

func wireToRecord(wr WireRecord) ndef.Record {
	rec := ndef.Record{Text: wr.Data, Payload: []byte(wr.Data)}
	switch strings.ToLower(wr.Kind) {
	case "text", "t", "":
		rec.Kind = ndef.KindText
		rec.Type = "T"
	case "url", "uri", "u":
		rec.Kind = ndef.KindURI
		rec.Type = "U"
	default:
		rec.Kind = ndef.KindOther
		rec.Type = wr.Kind
	}
	return rec
}

// EncodeWrite returns the body published to the write topic.
func EncodeWrite(kind ndef.RecordKind, payload string) ([]byte, error) {
	wireKind := "text"
	if kind == ndef.KindURI {
		wireKind = "url"
	}
	b, err := json.Marshal(WireRecord{Kind: wireKind, Data: payload})
	if err != nil {
		return nil, err //nolint:wrapcheck // encoding a two-string struct
	}
	return b, nil
}
