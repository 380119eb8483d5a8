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

package readers

import (
	"context"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/readers/shared/ndef"
)

type Capability string

const (
	CapabilityRead  Capability = "read"
	CapabilityWrite Capability = "write"
)

type DriverMetadata struct {
	ID                string
	Description       string
	DefaultEnabled    bool
	DefaultAutoDetect bool
}

// ReadEvent is one tag presentation. Records holds the tag's NDEF records
// in the order they were stored; an empty list means the tag was blank.
type ReadEvent struct {
	ScanTime time.Time
	UID      string
	Source   string
	Records  []ndef.Record
}

func (e *ReadEvent) Blank() bool {
	return len(e.Records) == 0
}

// Scan is sent by a reader on its scan channel. Exactly one of Error and
// Event is set, except when a tag is removed, where both are nil.
type Scan struct {
	Error  error
	Event  *ReadEvent
	Source string
}

// WriteRequest is a payload to be programmed onto the next presented tag.
type WriteRequest struct {
	Kind    ndef.RecordKind
	Payload string
}

type WriteErrorKind string

const (
	// KindNotAllowed means the user or host refused access to the tag.
	KindNotAllowed WriteErrorKind = "not_allowed"
	// KindNotSupported means the tag or reader cannot hold the payload.
	KindNotSupported WriteErrorKind = "not_supported"
)

// WriteError is returned by drivers for write failures that have a well
// known cause. Any other error is treated as a generic failure.
type WriteError struct {
	Err  error
	Kind WriteErrorKind
}

func (e *WriteError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

func NotAllowed(err error) error {
	return &WriteError{Kind: KindNotAllowed, Err: err}
}

func NotSupported(err error) error {
	return &WriteError{Kind: KindNotSupported, Err: err}
}

// WriteErrorKindOf reports the kind of a WriteError anywhere in err's chain.
func WriteErrorKindOf(err error) (WriteErrorKind, bool) {
	var we *WriteError
	if errors.As(err, &we) {
		return we.Kind, true
	}
	return "", false
}

var (
	ErrWriteCancelled = errors.New("write cancelled")
	ErrWriteTimeout   = errors.New("timed out waiting for tag")
	ErrNotConnected   = errors.New("reader not connected")
)

type Reader interface {
	// Metadata returns static configuration for this driver.
	Metadata() DriverMetadata
	// IDs returns the device string prefixes supported by this reader.
	IDs() []string
	// Open connects to the device and starts polling, sending every tag
	// presentation to the scan channel until Close is called.
	Open(config.ReadersConnect, chan<- Scan) error
	Close() error
	// Detect searches for a device not in the given list of connected
	// device strings and returns its connection string, or "".
	Detect([]string) string
	Device() string
	Connected() bool
	Info() string
	// ReaderID is a stable identifier for this reader instance.
	ReaderID() string
	// Write programs the next presented tag. It blocks until the write
	// completes, fails, or ctx is done.
	Write(ctx context.Context, req WriteRequest) error
	CancelWrite()
	Capabilities() []Capability
}

// GenerateReaderID derives a deterministic "{driver}-{hash}" identifier from
// a driver name and a path that survives restarts, such as a PC/SC reader
// name or a broker topic. Case and path separators are normalized.
func GenerateReaderID(driverName, stablePath string) string {
	driver := NormalizeDriverID(driverName)
	path := strings.ToLower(strings.ReplaceAll(stablePath, "\\", "/"))

	hash := sha256.Sum256([]byte(driver + "\x00" + path))
	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(hash[:5])

	return driver + "-" + strings.ToLower(encoded)
}

// NormalizeDriverID lowercases a driver id and strips underscores so that
// "acr122_pcsc" and "acr122pcsc" name the same driver.
func NormalizeDriverID(id string) string {
	return strings.ToLower(strings.ReplaceAll(id, "_", ""))
}
