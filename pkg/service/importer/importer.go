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

// Package importer adds audio files dropped into the library watch folder
// as tracks.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gabriel-vasile/mimetype"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/tapdeck/tapdeck/pkg/database"
	"github.com/tapdeck/tapdeck/pkg/helpers/syncutil"
)

// SettleDelay is how long a file must go without further writes before it
// is imported.
const SettleDelay = 2 * time.Second

var ErrNotAudio = errors.New("not an audio file")

type TrackStore interface {
	AddTrack(ctx context.Context, t *database.Track, data []byte) error
}

type Importer struct {
	fs       afero.Fs
	store    TrackStore
	clock    clockwork.Clock
	onImport func(database.Track)
	pending  map[string]time.Time
	imported map[string]int64
	dir      string
	mu       syncutil.Mutex
}

// New returns an importer for dir. onImport is called after every track
// that was added and may be nil.
func New(
	fsys afero.Fs,
	clock clockwork.Clock,
	store TrackStore,
	dir string,
	onImport func(database.Track),
) *Importer {
	return &Importer{
		fs:       fsys,
		store:    store,
		clock:    clock,
		dir:      filepath.Clean(dir),
		onImport: onImport,
		pending:  make(map[string]time.Time),
		imported: make(map[string]int64),
	}
}

// ImportFile adds the file at path as a track named after the file. Files
// whose content does not sniff as audio/* are rejected with ErrNotAudio.
func (im *Importer) ImportFile(ctx context.Context, path string) (database.Track, error) {
	data, err := afero.ReadFile(im.fs, path)
	if err != nil {
		return database.Track{}, fmt.Errorf("read %s: %w", path, err)
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "audio/") {
		return database.Track{}, fmt.Errorf("%w: %s is %s", ErrNotAudio, path, mt.String())
	}

	base := filepath.Base(path)
	t := database.Track{
		Name: strings.TrimSuffix(base, filepath.Ext(base)),
		Type: mt.String(),
		Size: int64(len(data)),
	}
	if err := im.store.AddTrack(ctx, &t, data); err != nil {
		return database.Track{}, fmt.Errorf("add track %q: %w", t.Name, err)
	}

	im.mu.Lock()
	im.imported[path] = t.Size
	im.mu.Unlock()

	log.Info().Str("path", path).Str("track", t.ID).Msg("imported track")
	if im.onImport != nil {
		im.onImport(t)
	}
	return t, nil
}

// ScanDir imports every file already in the watch folder that has not been
// imported yet. Non-audio files are skipped.
func (im *Importer) ScanDir(ctx context.Context) (int, error) {
	count := 0
	err := afero.Walk(im.fs, im.dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || im.alreadyImported(path, info.Size()) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := im.ImportFile(ctx, path); err != nil {
			if errors.Is(err, ErrNotAudio) {
				log.Debug().Err(err).Msg("skipping file")
				return nil
			}
			log.Warn().Err(err).Msg("failed to import file")
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("scan %s: %w", im.dir, err)
	}
	return count, nil
}

func (im *Importer) alreadyImported(path string, size int64) bool {
	im.mu.Lock()
	defer im.mu.Unlock()
	prev, ok := im.imported[path]
	return ok && prev == size
}

// Touch marks path as changed. It will be imported by Flush once it has
// settled.
func (im *Importer) Touch(path string) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.pending[filepath.Clean(path)] = im.clock.Now()
}

// Flush imports every pending file that has settled and returns how many
// tracks were added.
func (im *Importer) Flush(ctx context.Context) int {
	now := im.clock.Now()

	im.mu.Lock()
	var ready []string
	for path, touched := range im.pending {
		if now.Sub(touched) >= SettleDelay {
			ready = append(ready, path)
			delete(im.pending, path)
		}
	}
	im.mu.Unlock()

	count := 0
	for _, path := range ready {
		info, err := im.fs.Stat(path)
		if err != nil || info.IsDir() || im.alreadyImported(path, info.Size()) {
			continue
		}
		if _, err := im.ImportFile(ctx, path); err != nil {
			log.Warn().Err(err).Msg("failed to import watched file")
			continue
		}
		count++
	}
	return count
}

// Run imports existing files and then watches the folder until ctx is
// done.
func (im *Importer) Run(ctx context.Context) error {
	if err := im.fs.MkdirAll(im.dir, 0o750); err != nil {
		return fmt.Errorf("create watch dir: %w", err)
	}
	if _, err := im.ScanDir(ctx); err != nil {
		log.Warn().Err(err).Msg("initial library scan failed")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		if err := w.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing library watcher")
		}
	}()
	if err := w.Add(im.dir); err != nil {
		return fmt.Errorf("watch %s: %w", im.dir, err)
	}
	log.Info().Str("dir", im.dir).Msg("watching library folder")

	ticker := im.clock.NewTicker(SettleDelay / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				im.Touch(ev.Name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("library watcher error")
		case <-ticker.Chan():
			im.Flush(ctx)
		}
	}
}
