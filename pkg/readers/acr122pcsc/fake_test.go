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
	"bytes"
	"time"

	"github.com/ebfe/scard"
	"github.com/tapdeck/tapdeck/pkg/helpers/syncutil"
)

const testReaderName = "ACS ACR122U PICC Interface"

// fakeTag emulates the memory of a small Type 2 tag behind the ACR122
// pseudo-APDUs.
type fakeTag struct {
	uid    []byte
	memory []byte
	mu     syncutil.Mutex
}

func newFakeTag(dataPages int) *fakeTag {
	mem := make([]byte, (firstDataPage+dataPages)*pageSize)
	mem[ccPage*pageSize] = ccMagic
	mem[ccPage*pageSize+1] = 0x10
	mem[ccPage*pageSize+2] = byte(dataPages * pageSize / 8)
	return &fakeTag{uid: []byte{0x04, 0xAA, 0xBB, 0xCC}, memory: mem}
}

func (f *fakeTag) setData(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy(f.memory[firstDataPage*pageSize:], data)
}

func (f *fakeTag) data(n int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	start := firstDataPage * pageSize
	return append([]byte(nil), f.memory[start:start+n]...)
}

func (f *fakeTag) Status() (*scard.CardStatus, error) {
	return &scard.CardStatus{Atr: []byte{0x3B, 0x8F, 0x80, 0x01}}, nil
}

func (f *fakeTag) Transmit(apdu []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case bytes.Equal(apdu, apduGetUID):
		return append(append([]byte(nil), f.uid...), statusOK...), nil
	case len(apdu) == 5 && apdu[1] == 0xB0:
		start := int(apdu[3]) * pageSize
		if start+pageSize > len(f.memory) {
			return []byte{0x6A, 0x82}, nil
		}
		return append(append([]byte(nil), f.memory[start:start+pageSize]...), statusOK...), nil
	case len(apdu) == 9 && apdu[1] == 0xD6:
		start := int(apdu[3]) * pageSize
		if start+pageSize > len(f.memory) {
			return []byte{0x6A, 0x82}, nil
		}
		copy(f.memory[start:], apdu[5:])
		return append([]byte(nil), statusOK...), nil
	}
	return []byte{0x6D, 0x00}, nil
}

func (*fakeTag) Disconnect(scard.Disposition) error {
	return nil
}

// fakeContext is a PC/SC context with one reader and an optional tag in
// its field.
type fakeContext struct {
	tag      *fakeTag
	listErr  error
	readers  []string
	released bool
	mu       syncutil.Mutex
}

func newFakeContext() *fakeContext {
	return &fakeContext{readers: []string{testReaderName}}
}

func (c *fakeContext) present(tag *fakeTag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tag = tag
}

func (c *fakeContext) ListReaders() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listErr != nil {
		return nil, c.listErr
	}
	return append([]string(nil), c.readers...), nil
}

func (c *fakeContext) GetStatusChange(rs []scard.ReaderState, timeout time.Duration) error {
	c.mu.Lock()
	present := c.tag != nil
	c.mu.Unlock()

	wasPresent := rs[0].CurrentState&scard.StatePresent != 0
	if present == wasPresent {
		time.Sleep(timeout / 10)
		return scard.ErrTimeout
	}
	if present {
		rs[0].EventState = scard.StatePresent
	} else {
		rs[0].EventState = scard.StateEmpty
	}
	return nil
}

func (c *fakeContext) Connect(string, scard.ShareMode, scard.Protocol) (ScardCard, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tag == nil {
		return nil, scard.ErrNoSmartcard
	}
	return c.tag, nil
}

func (c *fakeContext) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = true
	return nil
}
