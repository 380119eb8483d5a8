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

// Package write programs a card reference onto the next presented tag.
package write

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/payload"
	"github.com/tapdeck/tapdeck/pkg/readers"
	"github.com/tapdeck/tapdeck/pkg/readers/shared/ndef"
	"github.com/tapdeck/tapdeck/pkg/service/nfc"
)

var (
	ErrNoTargetSelected = errors.New("no card selected")
	ErrWriteInProgress  = errors.New("a write is already in progress")
)

type OutcomeKind string

const (
	Success           OutcomeKind = "success"
	PermissionDenied  OutcomeKind = "permission_denied"
	UnsupportedTarget OutcomeKind = "unsupported_target"
	OtherFailure      OutcomeKind = "other_failure"
	// NoTargetSelected is reported by callers that surface
	// ErrNoTargetSelected as an outcome.
	NoTargetSelected OutcomeKind = "no_target_selected"
)

// Outcome reports how a write ended. Payload is the exact string written
// on success; Message carries the error text of an OtherFailure.
type Outcome struct {
	Kind    OutcomeKind `json:"outcome"`
	Payload string      `json:"payload,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Writer is the tag writing capability.
type Writer interface {
	Write(ctx context.Context, req readers.WriteRequest) error
	CancelWrite()
}

// BaseFunc returns the deep-link base address for a write. requested is
// the base of the client asking for the write and may be empty.
type BaseFunc func(requested string) string

type Session struct {
	writer   Writer
	baseURL  BaseFunc
	onResult func(Outcome)
	busy     atomic.Bool
}

// NewSession returns a write session. baseURL supplies the deep-link base
// address and onResult, which may be nil, sees every outcome.
func NewSession(w Writer, baseURL BaseFunc, onResult func(Outcome)) *Session {
	return &Session{writer: w, baseURL: baseURL, onResult: onResult}
}

func kindFor(d payload.Dialect) ndef.RecordKind {
	if d == payload.DeepLinkURL {
		return ndef.KindURI
	}
	return ndef.KindText
}

// classify maps a write error onto an outcome.
func classify(err error) Outcome {
	if kind, ok := readers.WriteErrorKindOf(err); ok {
		switch kind {
		case readers.KindNotAllowed:
			return Outcome{Kind: PermissionDenied}
		case readers.KindNotSupported:
			return Outcome{Kind: UnsupportedTarget}
		}
	}
	if errors.Is(err, nfc.ErrCapabilityUnavailable) {
		return Outcome{Kind: UnsupportedTarget}
	}
	return Outcome{Kind: OtherFailure, Message: err.Error()}
}

// Write encodes identifier in the given dialect and writes it to the next
// tag. Errors are returned only for requests that never reached a reader;
// reader failures are reported as the outcome.
func (s *Session) Write(ctx context.Context, identifier string, dialect payload.Dialect) (Outcome, error) {
	return s.WriteWithBase(ctx, identifier, dialect, "")
}

// WriteWithBase is Write for a client whose own deep-link base is
// requested. The base is only used by the URL dialect.
func (s *Session) WriteWithBase(
	ctx context.Context,
	identifier string,
	dialect payload.Dialect,
	requested string,
) (Outcome, error) {
	if strings.TrimSpace(identifier) == "" {
		return Outcome{}, ErrNoTargetSelected
	}

	base := ""
	if dialect == payload.DeepLinkURL && s.baseURL != nil {
		base = s.baseURL(requested)
	}
	text, err := payload.Encode(identifier, dialect, base)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to encode payload: %w", err)
	}

	if !s.busy.CompareAndSwap(false, true) {
		return Outcome{}, ErrWriteInProgress
	}
	defer s.busy.Store(false)

	log.Info().Str("payload", text).Stringer("dialect", dialect).Msg("writing tag")

	out := Outcome{Kind: Success, Payload: text}
	if err := s.writer.Write(ctx, readers.WriteRequest{Kind: kindFor(dialect), Payload: text}); err != nil {
		log.Warn().Err(err).Msg("tag write failed")
		out = classify(err)
	}

	if s.onResult != nil {
		s.onResult(out)
	}
	return out, nil
}

// Cancel aborts a pending write. It is a no-op when none is running.
func (s *Session) Cancel() {
	if s.busy.Load() {
		s.writer.CancelWrite()
	}
}

// Busy reports whether a write is waiting for a tag.
func (s *Session) Busy() bool {
	return s.busy.Load()
}
