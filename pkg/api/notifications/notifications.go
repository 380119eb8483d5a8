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

// Package notifications builds and queues the events pushed to API clients.
package notifications

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/api/models"
)

// send never blocks. A full queue drops the notification with a warning so
// that playback or scanning never stalls on a slow client.
func send(ns chan<- models.Notification, method string, payload any) {
	var params json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("method", method).Msg("failed to marshal notification")
			return
		}
		params = b
	}

	select {
	case ns <- models.Notification{Method: method, Params: params}:
	default:
		log.Warn().Str("method", method).Msg("notification queue full, dropping notification")
	}
}

func ScanObservation(ns chan<- models.Notification, payload models.ScanObservationParams) {
	send(ns, models.NotificationScanObservation, payload)
}

func ScanState(ns chan<- models.Notification, payload models.ScanStateParams) {
	send(ns, models.NotificationScanState, payload)
}

func PlaybackStarted(ns chan<- models.Notification, payload models.PlaybackStartedParams) {
	send(ns, models.NotificationPlaybackStarted, payload)
}

func PlaybackStopped(ns chan<- models.Notification) {
	send(ns, models.NotificationPlaybackStopped, nil)
}

func ReadersConnected(ns chan<- models.Notification, payload models.ReaderResponse) {
	send(ns, models.NotificationReadersConnected, payload)
}

func ReadersDisconnected(ns chan<- models.Notification, payload models.ReaderResponse) {
	send(ns, models.NotificationReadersDisconnected, payload)
}

func LibraryChanged(ns chan<- models.Notification) {
	send(ns, models.NotificationLibraryChanged, nil)
}
