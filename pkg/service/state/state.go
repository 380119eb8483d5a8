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

package state

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/api/models"
	"github.com/tapdeck/tapdeck/pkg/api/notifications"
	"github.com/tapdeck/tapdeck/pkg/helpers/syncutil"
	"github.com/tapdeck/tapdeck/pkg/readers"
	"github.com/tapdeck/tapdeck/pkg/service/scan"
	"github.com/tapdeck/tapdeck/pkg/service/write"
)

// notificationBuffer leaves room for bursts of scan observations without
// dropping reader and playback notifications.
const notificationBuffer = 100

// State holds the runtime state of the service: the connected readers and
// the process-wide scan and write sessions.
//
// LOCKING RULES: mu protects every mutable field. Never send notifications
// or call into a reader while holding it. Lock, modify, copy what is
// needed, unlock, then notify.
type State struct {
	ctx           context.Context
	readers       map[string]readers.Reader
	ctxCancelFunc context.CancelFunc
	scanSession   *scan.Session
	writeSession  *write.Session
	Notifications chan<- models.Notification
	bootUUID      string
	mu            syncutil.RWMutex
	stopService   bool
}

func NewState(bootUUID string) (st *State, notificationCh <-chan models.Notification) {
	ns := make(chan models.Notification, notificationBuffer)
	ctx, cancel := context.WithCancel(context.Background())
	return &State{
		readers:       make(map[string]readers.Reader),
		Notifications: ns,
		ctx:           ctx,
		ctxCancelFunc: cancel,
		bootUUID:      bootUUID,
	}, ns
}

// GetContext returns the service lifetime context. It is cancelled by
// StopService.
func (s *State) GetContext() context.Context {
	return s.ctx
}

func (s *State) StopService() {
	s.mu.Lock()
	s.stopService = true
	s.mu.Unlock()
	s.ctxCancelFunc()
}

func (s *State) ShouldStopService() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopService
}

func (s *State) BootUUID() string {
	return s.bootUUID
}

func (s *State) SetScanSession(session *scan.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanSession = session
}

func (s *State) ScanSession() *scan.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanSession
}

func (s *State) SetWriteSession(session *write.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeSession = session
}

func (s *State) WriteSession() *write.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writeSession
}

// DescribeReader builds the API view of a reader.
func DescribeReader(r readers.Reader, connected bool) models.ReaderResponse {
	caps := r.Capabilities()
	names := make([]string, 0, len(caps))
	for _, c := range caps {
		names = append(names, string(c))
	}
	return models.ReaderResponse{
		ID:           r.ReaderID(),
		Driver:       r.Metadata().ID,
		Path:         r.Device(),
		Info:         r.Info(),
		Capabilities: names,
		Connected:    connected,
	}
}

func (s *State) GetReader(readerID string) (readers.Reader, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.readers[readerID]
	return r, ok
}

// SetReader registers a reader under its ReaderID. A reader already stored
// under the same id is closed and replaced.
func (s *State) SetReader(reader readers.Reader) {
	id := reader.ReaderID()

	s.mu.Lock()
	existing := s.readers[id]
	s.readers[id] = reader
	s.mu.Unlock()

	if existing != nil && existing != reader {
		if err := existing.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing replaced reader")
		}
	}

	notifications.ReadersConnected(s.Notifications, DescribeReader(reader, true))
}

// RemoveReader unregisters and closes a reader.
func (s *State) RemoveReader(readerID string) {
	s.mu.Lock()
	r, ok := s.readers[readerID]
	delete(s.readers, readerID)
	s.mu.Unlock()

	if !ok || r == nil {
		return
	}

	payload := DescribeReader(r, false)
	if err := r.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing reader")
	}
	notifications.ReadersDisconnected(s.Notifications, payload)
}

func (s *State) ListReaders() []readers.Reader {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs := make([]readers.Reader, 0, len(s.readers))
	for _, r := range s.readers {
		rs = append(rs, r)
	}
	return rs
}
