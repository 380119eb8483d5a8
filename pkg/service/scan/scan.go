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

// Package scan runs the listening session that turns tag presentations
// into card playback.
//
// A session moves Idle -> Listening -> Idle, or Listening -> Aborting ->
// Idle when it is cancelled or times out. Only one session listens at a
// time; a second Start is rejected rather than queued.
package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/database"
	"github.com/tapdeck/tapdeck/pkg/helpers/syncutil"
	"github.com/tapdeck/tapdeck/pkg/payload"
	"github.com/tapdeck/tapdeck/pkg/readers"
	"github.com/tapdeck/tapdeck/pkg/readers/shared/ndef"
	"github.com/tapdeck/tapdeck/pkg/service/resolver"
)

var ErrAlreadyListening = errors.New("scan session already listening")

type State int

const (
	Idle State = iota
	Listening
	Aborting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Aborting:
		return "aborting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Mode int

const (
	// ModePlay resolves candidates and starts playback.
	ModePlay Mode = iota
	// ModeTest only reports the decoded payload of each tag.
	ModeTest
)

func (m Mode) String() string {
	if m == ModeTest {
		return "test"
	}
	return "play"
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "play":
		return ModePlay, nil
	case "test":
		return ModeTest, nil
	default:
		return ModePlay, fmt.Errorf("unknown scan mode: %q", s)
	}
}

// Reason says why a session left Listening.
type Reason string

const (
	ReasonCancelled Reason = "cancelled"
	ReasonTimeout   Reason = "timeout"
	// ReasonClosed means the read channel closed underneath the session.
	ReasonClosed Reason = "closed"
)

type ObservationKind string

const (
	Blank        ObservationKind = "blank"
	Unrecognized ObservationKind = "unrecognized"
	NotFound     ObservationKind = "not_found"
	ReadError    ObservationKind = "read_error"
	ResolveError ObservationKind = "resolve_error"
	Resolved     ObservationKind = "resolved"
	// Payload is reported in ModeTest instead of resolving.
	Payload ObservationKind = "payload"
)

// Observation is one processed read event.
type Observation struct {
	Time      time.Time
	Err       error
	Kind      ObservationKind
	Candidate string
	Payload   string
	CardID    string
	UID       string
	Source    string
}

type Scanner interface {
	Scan(ctx context.Context) (<-chan readers.Scan, error)
}

type Resolver interface {
	Resolve(ctx context.Context, candidate string) (database.Card, error)
}

// UIDLookup maps a tag UID to a card for tags without a usable payload.
type UIDLookup interface {
	GetCardIDByUID(ctx context.Context, uid string) (string, error)
}

type Options struct {
	Scanner  Scanner
	Resolver Resolver
	// UIDs is optional.
	UIDs  UIDLookup
	Clock clockwork.Clock
	// Timeout is read on every Start. A nil func or a non-positive result
	// disables the inactivity timeout.
	Timeout       func() time.Duration
	Observe       func(Observation)
	OnStateChange func(state State, mode Mode, reason Reason)
}

type Session struct {
	opts        Options
	timer       clockwork.Timer
	cancel      context.CancelFunc
	done        chan struct{}
	reason      Reason
	lastPayload string
	gen         uint64
	state       State
	mode        Mode
	mu          syncutil.Mutex
	callbacks   atomic.Int32
}

func NewSession(opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Session{opts: opts}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// LastPayload returns the text of the last record a candidate was decoded
// from, in any mode.
func (s *Session) LastPayload() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPayload
}

// Done returns a channel closed when the current or most recent session
// has returned to Idle. It is nil before the first Start.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Session) notifyState(state State, mode Mode, reason Reason) {
	if s.opts.OnStateChange != nil {
		s.callbacks.Add(1)
		defer s.callbacks.Add(-1)
		s.opts.OnStateChange(state, mode, reason)
	}
}

// Start begins listening. The session ends on Cancel, on the inactivity
// timeout, when ctx is done or when the read channel closes.
func (s *Session) Start(ctx context.Context, mode Mode) error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return ErrAlreadyListening
	}

	readCtx, cancel := context.WithCancel(ctx)
	ch, err := s.opts.Scanner.Scan(readCtx)
	if err != nil {
		s.mu.Unlock()
		cancel()
		return fmt.Errorf("failed to open read channel: %w", err)
	}

	s.gen++
	gen := s.gen
	s.state = Listening
	s.mode = mode
	s.reason = ""
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done

	var timeout time.Duration
	if s.opts.Timeout != nil {
		timeout = s.opts.Timeout()
	}
	if timeout > 0 {
		s.timer = s.opts.Clock.AfterFunc(timeout, func() {
			log.Info().Dur("timeout", timeout).Msg("scan session timed out")
			s.stop(gen, ReasonTimeout)
		})
	}
	s.mu.Unlock()

	log.Info().Stringer("mode", mode).Msg("scan session listening")
	s.notifyState(Listening, mode, "")

	go s.dispatch(readCtx, gen, mode, ch, done)
	return nil
}

// Cancel stops a listening session and waits for it to return to Idle.
// It is a no-op when Idle. While an Observe or OnStateChange callback is
// running, Cancel returns once the session is Aborting and Done reports
// when it reaches Idle.
func (s *Session) Cancel() {
	s.mu.Lock()
	gen := s.gen
	done := s.done
	state := s.state
	s.mu.Unlock()

	if state == Idle {
		return
	}
	s.stop(gen, ReasonCancelled)
	if s.callbacks.Load() > 0 {
		return
	}
	<-done
}

// stop moves a Listening session of generation gen to Aborting. A stale
// generation, from a timer armed by an earlier session, is ignored.
func (s *Session) stop(gen uint64, reason Reason) {
	s.mu.Lock()
	if s.gen != gen || s.state != Listening {
		s.mu.Unlock()
		return
	}
	s.state = Aborting
	s.reason = reason
	s.disarmLocked()
	cancel := s.cancel
	mode := s.mode
	s.mu.Unlock()

	cancel()
	s.notifyState(Aborting, mode, reason)
}

func (s *Session) disarmLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) finish(gen uint64, done chan struct{}) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		close(done)
		return
	}
	reason := s.reason
	if reason == "" {
		reason = ReasonClosed
	}
	s.disarmLocked()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = Idle
	mode := s.mode
	s.mu.Unlock()

	close(done)
	log.Info().Str("reason", string(reason)).Msg("scan session idle")
	s.notifyState(Idle, mode, reason)
}

func (s *Session) dispatch(
	ctx context.Context,
	gen uint64,
	mode Mode,
	ch <-chan readers.Scan,
	done chan struct{},
) {
	defer s.finish(gen, done)

	for {
		select {
		case <-ctx.Done():
			return
		case sc, ok := <-ch:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}
			s.handle(ctx, mode, sc)
		}
	}
}

func (s *Session) observe(o Observation) {
	if s.opts.Observe != nil {
		s.callbacks.Add(1)
		defer s.callbacks.Add(-1)
		s.opts.Observe(o)
	}
}

func (s *Session) handle(ctx context.Context, mode Mode, sc readers.Scan) {
	if sc.Error != nil {
		log.Warn().Err(sc.Error).Str("source", sc.Source).Msg("error reading tag")
		s.observe(Observation{
			Time:   s.opts.Clock.Now(),
			Kind:   ReadError,
			Source: sc.Source,
			Err:    sc.Error,
		})
		return
	}
	ev := sc.Event
	if ev == nil {
		return
	}

	obs := Observation{
		Time:   s.opts.Clock.Now(),
		UID:    ev.UID,
		Source: ev.Source,
	}
	if obs.Source == "" {
		obs.Source = sc.Source
	}

	candidate, text, found := firstCandidate(ev.Records)
	if found {
		s.mu.Lock()
		s.lastPayload = text
		s.mu.Unlock()
		obs.Payload = text
		obs.Candidate = candidate
	}

	if mode == ModeTest {
		obs.Kind = Payload
		if !found {
			obs.Kind = blankOrUnrecognized(ev)
		}
		s.observe(obs)
		return
	}

	if !found && !ev.Blank() {
		if id := s.lookupUID(ctx, ev.UID); id != "" {
			log.Debug().Str("uid", ev.UID).Str("card", id).Msg("tag uid mapped to card")
			candidate = id
			found = true
			obs.Candidate = id
		}
	}
	if !found {
		obs.Kind = blankOrUnrecognized(ev)
		log.Info().Str("kind", string(obs.Kind)).Str("uid", ev.UID).Msg("tag has no card reference")
		s.observe(obs)
		return
	}

	card, err := s.opts.Resolver.Resolve(ctx, candidate)
	switch {
	case errors.Is(err, resolver.ErrNotFound):
		obs.Kind = NotFound
		obs.Err = err
	case err != nil:
		log.Error().Err(err).Msg("failed to resolve card")
		obs.Kind = ResolveError
		obs.Err = err
	default:
		obs.Kind = Resolved
		obs.CardID = card.ID
	}
	s.observe(obs)
}

func blankOrUnrecognized(ev *readers.ReadEvent) ObservationKind {
	if ev.Blank() {
		return Blank
	}
	return Unrecognized
}

// firstCandidate decodes records in order and stops at the first one that
// yields a non-empty candidate.
func firstCandidate(records []ndef.Record) (candidate, text string, ok bool) {
	for _, rec := range records {
		c, err := payload.Decode(rec.Text)
		if err != nil || c == "" {
			continue
		}
		return c, rec.Text, true
	}
	return "", "", false
}

func (s *Session) lookupUID(ctx context.Context, uid string) string {
	if s.opts.UIDs == nil || strings.TrimSpace(uid) == "" {
		return ""
	}
	id, err := s.opts.UIDs.GetCardIDByUID(ctx, uid)
	if err != nil {
		if !errors.Is(err, database.ErrUIDNotMapped) {
			log.Warn().Err(err).Str("uid", uid).Msg("failed to look up tag uid")
		}
		return ""
	}
	return id
}
