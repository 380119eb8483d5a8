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

// Package file implements a reader backed by a plain text file. Writing a
// payload into the file simulates presenting a tag, and emptying it
// simulates removing the tag.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/helpers"
	"github.com/tapdeck/tapdeck/pkg/helpers/syncutil"
	"github.com/tapdeck/tapdeck/pkg/readers"
	"github.com/tapdeck/tapdeck/pkg/readers/shared/ndef"
)

const DriverID = "file"

type Reader struct {
	cfg      *config.Instance
	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopped  chan struct{}
	device   config.ReadersConnect
	path     string
	readerID string
	last     string
	mu       syncutil.RWMutex
	writeMu  syncutil.Mutex
	polling  bool
}

func NewReader(cfg *config.Instance) *Reader {
	return &Reader{cfg: cfg}
}

func (*Reader) Metadata() readers.DriverMetadata {
	return readers.DriverMetadata{
		ID:                DriverID,
		Description:       "File-based tag simulator",
		DefaultEnabled:    true,
		DefaultAutoDetect: false,
	}
}

func (*Reader) IDs() []string {
	return []string{DriverID}
}

func (r *Reader) Open(device config.ReadersConnect, iq chan<- readers.Scan) error {
	if !helpers.Contains(r.IDs(), readers.NormalizeDriverID(device.Driver)) {
		return errors.New("invalid reader id: " + device.Driver)
	}

	path := filepath.Clean(device.Path)
	if !filepath.IsAbs(path) {
		return errors.New("invalid device path, must be absolute")
	}

	parent := filepath.Dir(path)
	if _, err := os.Stat(parent); err != nil {
		return fmt.Errorf("failed to stat parent directory: %w", err)
	}

	if _, err := os.Stat(path); err != nil {
		//nolint:gosec // path is configured by the user
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create file: %w", err)
		}
		_ = f.Close()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// watch the directory so editors that replace the file are seen
	if err := watcher.Add(parent); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", parent, err)
	}

	r.mu.Lock()
	r.device = device
	r.path = path
	r.readerID = readers.GenerateReaderID(DriverID, path)
	r.watcher = watcher
	r.done = make(chan struct{})
	r.stopped = make(chan struct{})
	r.last = ""
	r.polling = true
	done, stopped := r.done, r.stopped
	r.mu.Unlock()

	go r.watch(watcher, iq, done, stopped)
	return nil
}

func (r *Reader) watch(w *fsnotify.Watcher, iq chan<- readers.Scan, done, stopped chan struct{}) {
	defer close(stopped)

	r.check(iq, done)
	for {
		select {
		case <-done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != r.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) {
				r.check(iq, done)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("path", r.path).Msg("file watcher error")
			r.send(iq, done, readers.Scan{Source: r.Device(), Error: err})
		}
	}
}

// check reads the file and reports a new event when its contents changed.
func (r *Reader) check(iq chan<- readers.Scan, done <-chan struct{}) {
	contents, err := os.ReadFile(r.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.send(iq, done, readers.Scan{Source: r.Device(), Error: err})
		return
	}

	text := strings.TrimSpace(string(contents))

	r.mu.Lock()
	previous := r.last
	r.last = text
	r.mu.Unlock()

	switch {
	case text == previous:
		return
	case text == "":
		log.Debug().Msg("file is empty, removing tag")
		r.send(iq, done, readers.Scan{Source: r.Device()})
		return
	}

	log.Debug().Msgf("new file tag: %s", text)
	r.send(iq, done, readers.Scan{
		Source: r.Device(),
		Event: &readers.ReadEvent{
			ScanTime: time.Now(),
			Source:   r.Device(),
			Records: []ndef.Record{{
				Kind:    ndef.KindText,
				Type:    "T",
				Text:    text,
				Payload: contents,
			}},
		},
	})
}

func (*Reader) send(iq chan<- readers.Scan, done <-chan struct{}, scan readers.Scan) {
	select {
	case iq <- scan:
	case <-done:
	}
}

func (r *Reader) Close() error {
	r.mu.Lock()
	if !r.polling {
		r.mu.Unlock()
		return nil
	}
	r.polling = false
	close(r.done)
	watcher, stopped := r.watcher, r.stopped
	r.mu.Unlock()

	err := watcher.Close()
	<-stopped
	if err != nil {
		return fmt.Errorf("failed to close file watcher: %w", err)
	}
	return nil
}

func (*Reader) Detect(_ []string) string {
	return ""
}

func (r *Reader) Device() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.device.ConnectionString()
}

func (r *Reader) Connected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.polling
}

func (r *Reader) Info() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.path
}

func (r *Reader) ReaderID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.readerID
}

// Write replaces the file contents with the payload. The watcher then
// reports it like any other tag.
func (r *Reader) Write(ctx context.Context, req readers.WriteRequest) error {
	if !r.Connected() {
		return readers.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("write aborted: %w", err)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := os.WriteFile(r.Info(), []byte(req.Payload), 0o600); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return readers.NotAllowed(err)
		}
		return fmt.Errorf("failed to write tag file: %w", err)
	}
	return nil
}

func (*Reader) CancelWrite() {}

func (*Reader) Capabilities() []readers.Capability {
	return []readers.Capability{readers.CapabilityRead, readers.CapabilityWrite}
}
