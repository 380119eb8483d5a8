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

package models

import "encoding/json"

const (
	NotificationScanObservation     = "scan.observation"
	NotificationScanState           = "scan.state"
	NotificationPlaybackStarted     = "playback.started"
	NotificationPlaybackStopped     = "playback.stopped"
	NotificationReadersConnected    = "readers.connected"
	NotificationReadersDisconnected = "readers.disconnected"
	NotificationLibraryChanged      = "library.changed"
)

const (
	MethodCards            = "cards"
	MethodCardsNew         = "cards.new"
	MethodCardsUpdate      = "cards.update"
	MethodCardsDelete      = "cards.delete"
	MethodCardsTracksAdd   = "cards.tracks.add"
	MethodTracks           = "tracks"
	MethodTracksDelete     = "tracks.delete"
	MethodUIDsMap          = "uids.map"
	MethodScanStart        = "scan.start"
	MethodScanCancel       = "scan.cancel"
	MethodScanStatus       = "scan.status"
	MethodReaders          = "readers"
	MethodReadersWrite     = "readers.write"
	MethodReadersWriteStop = "readers.write.cancel"
	MethodResolve          = "resolve"
	MethodPlaybackStatus   = "playback.status"
	MethodPlaybackNext     = "playback.next"
	MethodPlaybackPrev     = "playback.prev"
	MethodPlaybackToggle   = "playback.toggle"
	MethodPlaybackStop     = "playback.stop"
	MethodPlaybackSeek     = "playback.seek"
	MethodPlaybackVolume   = "playback.volume"
	MethodLibraryExport    = "library.export"
	MethodLibraryImport    = "library.import"
	MethodSettings         = "settings"
	MethodSettingsUpdate   = "settings.update"
	MethodVersion          = "version"
)

// Notification is an event pushed to every connected client.
type Notification struct {
	Method string
	Params json.RawMessage
}

type RequestObject struct {
	ID      *RPCID          `json:"id,omitempty"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type ErrorObject struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type ResponseObject struct {
	Result  any          `json:"result"`
	Error   *ErrorObject `json:"error,omitempty"`
	JSONRPC string       `json:"jsonrpc"`
	ID      RPCID        `json:"id"`
}

// ResponseErrorObject omits result entirely, while ResponseObject always
// carries it even when nil.
type ResponseErrorObject struct {
	Error   *ErrorObject `json:"error"`
	JSONRPC string       `json:"jsonrpc"`
	ID      RPCID        `json:"id"`
}

// NotificationObject is the wire form of a Notification.
type NotificationObject struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}
