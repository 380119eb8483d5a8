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

// Package nfc owns the connected tag readers. It keeps them connected,
// forwards their scans to the active scan session and routes writes to a
// write-capable reader.
package nfc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/helpers"
	"github.com/tapdeck/tapdeck/pkg/helpers/syncutil"
	"github.com/tapdeck/tapdeck/pkg/readers"
)

// ErrCapabilityUnavailable is returned when no connected reader can perform
// the requested operation.
var ErrCapabilityUnavailable = errors.New("nfc capability unavailable")

const (
	// pollInterval is how often connected readers are checked for
	// disconnection.
	pollInterval       = time.Second
	maxReconnectWait   = 30 * time.Second
	scanQueueSize      = 8
	subscriberChanSize = 4
)

// Registry stores the connected readers by reader id.
type Registry interface {
	SetReader(r readers.Reader)
	RemoveReader(readerID string)
	ListReaders() []readers.Reader
}

// DriverFactory returns fresh, unopened instances of every reader driver
// supported on this host.
type DriverFactory func(cfg *config.Instance) []readers.Reader

type subscriber struct {
	ctx    context.Context
	cancel context.CancelFunc
	ch     chan readers.Scan
	mu     syncutil.Mutex
	closed bool
}

func (s *subscriber) deliver(ctx context.Context, scan readers.Scan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- scan:
	case <-s.ctx.Done():
	case <-ctx.Done():
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

type Manager struct {
	cfg      *config.Instance
	registry Registry
	drivers  DriverFactory
	detector *AutoDetector
	queue    chan readers.Scan
	sub      *subscriber
	mu       syncutil.Mutex
}

func NewManager(cfg *config.Instance, reg Registry, drivers DriverFactory) *Manager {
	return &Manager{
		cfg:      cfg,
		registry: reg,
		drivers:  drivers,
		detector: NewAutoDetector(),
		queue:    make(chan readers.Scan, scanQueueSize),
	}
}

// Queue is the channel readers send their scans to.
func (m *Manager) Queue() chan<- readers.Scan {
	return m.queue
}

// Connected returns the readers that are currently connected.
func (m *Manager) Connected() []readers.Reader {
	rs := m.registry.ListReaders()
	out := make([]readers.Reader, 0, len(rs))
	for _, r := range rs {
		if r != nil && r.Connected() {
			out = append(out, r)
		}
	}
	return out
}

// Scan returns a channel receiving every scan from every reader until ctx
// is done, at which point the channel is closed. Only one subscriber is
// served: a new call replaces, and closes, the previous channel.
func (m *Manager) Scan(ctx context.Context) (<-chan readers.Scan, error) {
	if len(readers.FilterByCapability(m.Connected(), readers.CapabilityRead)) == 0 {
		return nil, ErrCapabilityUnavailable
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscriber{
		ctx:    subCtx,
		cancel: cancel,
		ch:     make(chan readers.Scan, subscriberChanSize),
	}

	m.mu.Lock()
	prev := m.sub
	m.sub = sub
	m.mu.Unlock()

	if prev != nil {
		log.Debug().Msg("replacing previous scan subscriber")
		prev.cancel()
	}

	go func() {
		<-subCtx.Done()
		m.mu.Lock()
		if m.sub == sub {
			m.sub = nil
		}
		m.mu.Unlock()
		sub.close()
	}()

	return sub.ch, nil
}

// Write programs the next tag presented to a write-capable reader.
func (m *Manager) Write(ctx context.Context, req readers.WriteRequest) error {
	r, err := readers.SelectWriterPreferred(m.Connected(), nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCapabilityUnavailable, err)
	}

	log.Info().Str("reader", r.ReaderID()).Str("kind", string(req.Kind)).Msg("writing tag")
	if err := r.Write(ctx, req); err != nil {
		return fmt.Errorf("write via %s: %w", r.ReaderID(), err)
	}
	return nil
}

// CancelWrite aborts a pending write on every reader.
func (m *Manager) CancelWrite() {
	for _, r := range readers.FilterByCapability(m.Connected(), readers.CapabilityWrite) {
		r.CancelWrite()
	}
}

func (m *Manager) dispatch(ctx context.Context, scan readers.Scan) {
	if scan.Error == nil && scan.Event == nil {
		log.Debug().Str("source", scan.Source).Msg("tag removed")
		return
	}

	m.mu.Lock()
	sub := m.sub
	m.mu.Unlock()

	if sub == nil {
		log.Debug().Str("source", scan.Source).Msg("no scan session listening, ignoring scan")
		return
	}
	sub.deliver(ctx, scan)
}

type toConnectDevice struct {
	connectionString string
	device           config.ReadersConnect
}

func isPathConnected(rs []readers.Reader, device string) bool {
	for _, r := range rs {
		if r != nil && r.Device() == device {
			return true
		}
	}
	return false
}

func deviceStrings(rs []readers.Reader) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r.Device())
		}
	}
	return out
}

// ConnectReaders opens every configured reader that is not yet connected,
// then runs auto-detection if it is enabled.
func (m *Manager) ConnectReaders(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	rs := m.registry.ListReaders()
	var toConnect []toConnectDevice
	seen := make(map[string]string)

	for _, device := range m.cfg.Readers().Connect {
		conn := device.ConnectionString()
		if isPathConnected(rs, conn) {
			continue
		}
		if first, ok := seen[device.Path]; ok {
			log.Warn().Msgf(
				"device path %s configured for multiple readers (%s and %s), ignoring %s",
				device.Path, first, conn, conn,
			)
			continue
		}
		seen[device.Path] = conn
		toConnect = append(toConnect, toConnectDevice{connectionString: conn, device: device})
	}

	for _, tc := range toConnect {
		m.connectConfigured(tc)
	}

	if m.cfg.AutoDetect() {
		m.detector.DetectReaders(m.cfg, m.drivers(m.cfg), m.registry, m.queue)
	}
}

func (m *Manager) connectConfigured(tc toConnectDevice) {
	driverID := readers.NormalizeDriverID(tc.device.Driver)
	for _, r := range m.drivers(m.cfg) {
		meta := r.Metadata()
		if !m.cfg.IsDriverEnabled(meta.ID, true) {
			continue
		}

		ids := make([]string, 0, len(r.IDs()))
		for _, id := range r.IDs() {
			ids = append(ids, readers.NormalizeDriverID(id))
		}
		if !helpers.Contains(ids, driverID) {
			continue
		}

		log.Debug().Msgf("connecting to reader: %s", tc.connectionString)
		if err := r.Open(tc.device, m.queue); err != nil {
			log.Warn().Err(err).Msgf("error opening reader: %s", tc.connectionString)
			return
		}
		m.registry.SetReader(r)
		log.Info().Msgf("opened reader: %s", tc.connectionString)
		return
	}
	log.Warn().Msgf("no driver available for reader: %s", tc.connectionString)
}

func (m *Manager) prune() {
	for _, r := range m.registry.ListReaders() {
		if r == nil || r.Connected() {
			continue
		}
		id := r.ReaderID()
		log.Debug().Msgf("pruning disconnected reader: %s", id)
		if rc, err := config.ParseConnectionString(r.Device()); err == nil {
			m.detector.ClearDevice(rc.Path)
		}
		m.detector.ClearFailed(r.Device())
		m.registry.RemoveReader(id)
	}
}

func newReconnectBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = pollInterval
	b.MaxInterval = maxReconnectWait
	b.MaxElapsedTime = 0
	return b
}

// Run keeps readers connected and forwards their scans until ctx is done,
// then closes every reader. While no reader is connected, connection
// attempts back off exponentially.
func (m *Manager) Run(ctx context.Context) error {
	log.Info().Msgf("reader manager started, auto-detect=%v", m.cfg.AutoDetect())

	bo := newReconnectBackOff()
	timer := time.NewTimer(0)
	defer timer.Stop()
	lastCount := 0

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			log.Info().Msg("reader manager stopped")
			return nil
		case scan := <-m.queue:
			m.dispatch(ctx, scan)
		case <-timer.C:
			m.prune()
			m.ConnectReaders(ctx)

			count := len(m.Connected())
			if count != lastCount {
				log.Info().Msgf("reader count changed: %d connected", count)
				lastCount = count
			}

			next := pollInterval
			if count > 0 {
				bo.Reset()
			} else {
				next = bo.NextBackOff()
			}
			timer.Reset(next)
		}
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	sub := m.sub
	m.mu.Unlock()
	if sub != nil {
		sub.cancel()
	}

	for _, r := range m.registry.ListReaders() {
		if r != nil {
			m.registry.RemoveReader(r.ReaderID())
		}
	}
}
