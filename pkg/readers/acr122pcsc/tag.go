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
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/readers"
	"github.com/tapdeck/tapdeck/pkg/readers/shared/ndef"
)

// NFC Forum Type 2 tag layout as seen through the ACR122 pseudo-APDUs.
const (
	pageSize      = 4
	ccPage        = 3
	firstDataPage = 4
	maxPages      = 221
	ccMagic       = 0xE1
)

var (
	apduGetUID  = []byte{0xFF, 0xCA, 0x00, 0x00, 0x00}
	statusOK    = []byte{0x90, 0x00}
	emptyPageOK = []byte{0x00, 0x00, 0x00, 0x00, 0x90, 0x00}

	errBadResponse = errors.New("invalid response from reader")
)

func readPageAPDU(page int) []byte {
	return []byte{0xFF, 0xB0, 0x00, byte(page), pageSize}
}

func writePageAPDU(page int, data []byte) []byte {
	apdu := []byte{0xFF, 0xD6, 0x00, byte(page), pageSize}
	return append(apdu, data...)
}

func transmitOK(tag ScardCard, apdu []byte) ([]byte, error) {
	res, err := tag.Transmit(apdu)
	if err != nil {
		return nil, fmt.Errorf("transmit failed: %w", err)
	}
	if len(res) < 2 || !bytes.Equal(res[len(res)-2:], statusOK) {
		return nil, fmt.Errorf("%w: %x", errBadResponse, res)
	}
	return res[:len(res)-2], nil
}

func readUID(tag ScardCard) (string, error) {
	uid, err := transmitOK(tag, apduGetUID)
	if err != nil {
		return "", fmt.Errorf("failed to read UID: %w", err)
	}
	return hex.EncodeToString(uid), nil
}

// readData reads the data area page by page until an empty page, a complete
// message or the end of memory.
func readData(tag ScardCard) []byte {
	data := make([]byte, 0, 64)
	for page := firstDataPage; page < maxPages; page++ {
		res, err := tag.Transmit(readPageAPDU(page))
		switch {
		case err != nil:
			log.Debug().Err(err).Int("page", page).Msg("error reading page")
			return data
		case bytes.Equal(res, emptyPageOK):
			return data
		case len(res) < pageSize+2:
			log.Debug().Msgf("invalid page response: %x", res)
			return data
		}

		data = append(data, res[:pageSize]...)
		if ndef.Complete(data) {
			return data
		}
	}
	return data
}

// capabilityContainer is the decoded CC page of a Type 2 tag.
type capabilityContainer struct {
	size     int
	readOnly bool
}

func readCC(tag ScardCard) (capabilityContainer, error) {
	page, err := transmitOK(tag, readPageAPDU(ccPage))
	if err != nil {
		return capabilityContainer{}, fmt.Errorf("failed to read capability container: %w", err)
	}
	if len(page) < pageSize || page[0] != ccMagic {
		return capabilityContainer{}, readers.NotSupported(errors.New("tag is not NDEF formatted"))
	}
	return capabilityContainer{
		size:     int(page[2]) * 8,
		readOnly: page[3]&0x0F != 0,
	}, nil
}

// writeData writes a TLV-wrapped message to the data area.
func writeData(tag ScardCard, data []byte) error {
	cc, err := readCC(tag)
	if err != nil {
		return err
	}
	if cc.readOnly {
		return readers.NotAllowed(errors.New("tag is write protected"))
	}
	if len(data) > cc.size {
		return readers.NotSupported(fmt.Errorf("message of %d bytes exceeds tag capacity of %d", len(data), cc.size))
	}

	for offset := 0; offset < len(data); offset += pageSize {
		chunk := make([]byte, pageSize)
		copy(chunk, data[offset:])
		page := firstDataPage + offset/pageSize
		if _, err := transmitOK(tag, writePageAPDU(page, chunk)); err != nil {
			return fmt.Errorf("failed to write page %d: %w", page, err)
		}
	}
	return nil
}
