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

package nfc

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/helpers/syncutil"
	"github.com/tapdeck/tapdeck/pkg/readers"
)

// AutoDetector remembers which device paths are in use and which detected
// connection strings failed to open, so a broken device is not retried on
// every tick.
type AutoDetector struct {
	lastLogTime time.Time
	connected   map[string]bool
	failed      map[string]bool
	lastSummary string
	mu          syncutil.RWMutex
}

func NewAutoDetector() *AutoDetector {
	return &AutoDetector{
		connected: make(map[string]bool),
		failed:    make(map[string]bool),
	}
}

// DetectReaders asks each enabled driver for a device not already in use
// and opens it.
func (ad *AutoDetector) DetectReaders(
	cfg *config.Instance,
	drivers []readers.Reader,
	reg Registry,
	iq chan<- readers.Scan,
) {
	if len(drivers) == 0 {
		return
	}

	devices := deviceStrings(reg.ListReaders())
	ad.updateConnected(devices)

	var detected []string
	for _, r := range drivers {
		meta := r.Metadata()
		if !cfg.IsDriverEnabled(meta.ID, meta.DefaultEnabled) ||
			!cfg.IsDriverAutoDetectEnabled(meta.ID, meta.DefaultAutoDetect) {
			continue
		}

		exclude := make([]string, 0, len(devices))
		exclude = append(exclude, devices...)
		exclude = append(exclude, ad.failedFor(r.IDs())...)

		found := r.Detect(exclude)
		if found == "" {
			continue
		}

		device, err := config.ParseConnectionString(found)
		if err != nil {
			log.Error().Err(err).Msg("invalid auto-detect string")
			continue
		}
		if device.Path != "" {
			detected = append(detected, found)
		}

		if ad.isConnected(device.Path) {
			continue
		}

		if err := ad.connect(r, device, reg, iq); err != nil {
			log.Trace().Err(err).Str("device", found).Msg("failed to connect detected reader")
			ad.setFailed(found)
		}
	}

	ad.logResults(detected)
}

func (ad *AutoDetector) connect(
	r readers.Reader,
	device config.ReadersConnect,
	reg Registry,
	iq chan<- readers.Scan,
) error {
	conn := device.ConnectionString()
	if err := r.Open(device, iq); err != nil {
		return fmt.Errorf("error opening detected reader %s: %w", conn, err)
	}

	if !r.Connected() {
		if err := r.Close(); err != nil {
			log.Debug().Err(err).Msg("error closing reader after failed connection")
		}
		return fmt.Errorf("reader failed to connect: %s", conn)
	}

	reg.SetReader(r)
	ad.setConnected(device.Path)
	ad.ClearFailed(conn)
	log.Info().Msgf("connected auto-detected reader: %s", conn)
	return nil
}

func (ad *AutoDetector) logResults(detected []string) {
	const heartbeat = 30 * time.Second

	ad.mu.Lock()
	defer ad.mu.Unlock()

	summary := fmt.Sprintf("detected:%d failed:%d", len(detected), len(ad.failed))
	beat := ad.lastLogTime.IsZero() || time.Since(ad.lastLogTime) > heartbeat
	if summary == ad.lastSummary && !beat {
		return
	}

	if len(detected) > 0 {
		log.Debug().Strs("devices", detected).Msg("auto-detect found devices")
	} else if beat {
		log.Trace().Int("failed", len(ad.failed)).Msg("auto-detect active, no new devices")
	}
	ad.lastSummary = summary
	ad.lastLogTime = time.Now()
}

func (ad *AutoDetector) updateConnected(devices []string) {
	ad.mu.Lock()
	defer ad.mu.Unlock()

	ad.connected = make(map[string]bool, len(devices))
	for _, d := range devices {
		if rc, err := config.ParseConnectionString(d); err == nil {
			ad.connected[rc.Path] = true
		}
	}
}

func (ad *AutoDetector) isConnected(path string) bool {
	ad.mu.RLock()
	defer ad.mu.RUnlock()
	return ad.connected[path]
}

func (ad *AutoDetector) setConnected(path string) {
	ad.mu.Lock()
	defer ad.mu.Unlock()
	ad.connected[path] = true
}

// ClearDevice forgets a device path after its reader disconnects.
func (ad *AutoDetector) ClearDevice(path string) {
	ad.mu.Lock()
	defer ad.mu.Unlock()
	delete(ad.connected, path)
}

func (ad *AutoDetector) setFailed(conn string) {
	ad.mu.Lock()
	defer ad.mu.Unlock()
	ad.failed[conn] = true
}

func (ad *AutoDetector) ClearFailed(conn string) {
	ad.mu.Lock()
	defer ad.mu.Unlock()
	delete(ad.failed, conn)
}

// failedFor returns the failed connection strings whose driver matches one
// of ids.
func (ad *AutoDetector) failedFor(ids []string) []string {
	ad.mu.RLock()
	defer ad.mu.RUnlock()

	var out []string
	for conn := range ad.failed {
		rc, err := config.ParseConnectionString(conn)
		if err != nil {
			continue
		}
		driver := readers.NormalizeDriverID(rc.Driver)
		for _, id := range ids {
			if readers.NormalizeDriverID(id) == driver {
				out = append(out, conn)
				break
			}
		}
	}
	return out
}
