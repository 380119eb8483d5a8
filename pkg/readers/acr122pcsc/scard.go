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

package acr122pcsc

import (
	"fmt"
	"time"

	"github.com/ebfe/scard"
)

// ScardCard is the subset of scard.Card used by the reader.
type ScardCard interface {
	Status() (*scard.CardStatus, error)
	Transmit([]byte) ([]byte, error)
	Disconnect(scard.Disposition) error
}

// ScardContext is the subset of scard.Context used by the reader.
type ScardContext interface {
	ListReaders() ([]string, error)
	GetStatusChange([]scard.ReaderState, time.Duration) error
	Connect(string, scard.ShareMode, scard.Protocol) (ScardCard, error)
	Release() error
}

type pcscContext struct {
	ctx *scard.Context
}

func (p *pcscContext) ListReaders() ([]string, error) {
	names, err := p.ctx.ListReaders()
	if err != nil {
		return nil, fmt.Errorf("failed to list readers: %w", err)
	}
	return names, nil
}

func (p *pcscContext) GetStatusChange(rs []scard.ReaderState, timeout time.Duration) error {
	if err := p.ctx.GetStatusChange(rs, timeout); err != nil {
		return fmt.Errorf("failed to get status change: %w", err)
	}
	return nil
}

func (p *pcscContext) Connect(reader string, mode scard.ShareMode, proto scard.Protocol) (ScardCard, error) {
	card, err := p.ctx.Connect(reader, mode, proto)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to reader: %w", err)
	}
	return card, nil
}

func (p *pcscContext) Release() error {
	if err := p.ctx.Release(); err != nil {
		return fmt.Errorf("failed to release context: %w", err)
	}
	return nil
}

type ScardContextFactory func() (ScardContext, error)

func DefaultScardContextFactory() (ScardContext, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("failed to establish scard context: %w", err)
	}
	return &pcscContext{ctx: ctx}, nil
}
