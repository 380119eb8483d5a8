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

// Package acr122pcsc drives ACS ACR122U readers through PC/SC. It reads and
// writes NFC Forum Type 2 tags such as NTAG21x.
package acr122pcsc

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ebfe/scard"
	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/helpers"
	"github.com/tapdeck/tapdeck/pkg/helpers/syncutil"
	"github.com/tapdeck/tapdeck/pkg/readers"
	"github.com/tapdeck/tapdeck/pkg/readers/shared/ndef"
)

const (
	DriverID     = "acr122pcsc"
	readerPrefix = "ACS ACR122"
	pollTimeout  = 250 * time.Millisecond
)

type writeJob struct {
	result chan error
	data   []byte
}

type ACR122PCSC struct {
	ctx            ScardContext
	cfg            *config.Instance
	contextFactory ScardContextFactory
	job            *writeJob
	done           chan struct{}
	device         config.ReadersConnect
	name           string
	mu             syncutil.RWMutex
	polling        bool
}

func NewAcr122Pcsc(cfg *config.Instance) *ACR122PCSC {
	return &ACR122PCSC{
		cfg:            cfg,
		contextFactory: DefaultScardContextFactory,
	}
}

func (*ACR122PCSC) Metadata() readers.DriverMetadata {
	return readers.DriverMetadata{
		ID:                DriverID,
		DefaultEnabled:    true,
		DefaultAutoDetect: true,
		Description:       "ACR122 NFC reader via PC/SC",
	}
}

func (*ACR122PCSC) IDs() []string {
	return []string{DriverID}
}

func (r *ACR122PCSC) Open(device config.ReadersConnect, iq chan<- readers.Scan) error {
	if !helpers.Contains(r.IDs(), readers.NormalizeDriverID(device.Driver)) {
		return errors.New("invalid reader id: " + device.Driver)
	}

	ctx, err := r.contextFactory()
	if err != nil {
		return fmt.Errorf("failed to establish scard context: %w", err)
	}

	rls, err := ctx.ListReaders()
	if err != nil {
		_ = ctx.Release()
		return fmt.Errorf("failed to list scard readers: %w", err)
	}
	if !helpers.Contains(rls, device.Path) {
		_ = ctx.Release()
		return errors.New("reader not found: " + device.Path)
	}

	r.mu.Lock()
	r.ctx = ctx
	r.device = device
	r.name = device.Path
	r.polling = true
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go r.poll(ctx, iq, done)
	return nil
}

func (r *ACR122PCSC) isPolling() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.polling
}

func (r *ACR122PCSC) stop() {
	r.mu.Lock()
	r.polling = false
	r.mu.Unlock()
}

func (r *ACR122PCSC) send(iq chan<- readers.Scan, done <-chan struct{}, scan readers.Scan) {
	scan.Source = r.Device()
	select {
	case iq <- scan:
	case <-done:
	}
}

func (r *ACR122PCSC) poll(ctx ScardContext, iq chan<- readers.Scan, done <-chan struct{}) {
	for r.isPolling() {
		rls, err := ctx.ListReaders()
		if err != nil {
			log.Debug().Err(err).Msg("error listing pcsc readers")
			r.stop()
			return
		}
		if !helpers.Contains(rls, r.name) {
			log.Debug().Msgf("reader not found: %s", r.name)
			r.stop()
			return
		}

		rs := []scard.ReaderState{{Reader: r.name, CurrentState: scard.StateUnaware}}
		if err := ctx.GetStatusChange(rs, pollTimeout); err != nil {
			log.Debug().Err(err).Msg("error getting status change")
			continue
		}
		if rs[0].EventState&scard.StatePresent == 0 {
			continue
		}

		r.handleTag(ctx, iq, done)
		r.waitRemoval(ctx)
		if r.isPolling() {
			r.send(iq, done, readers.Scan{})
		}
	}
}

// handleTag serves a pending write if there is one, otherwise reads the tag
// and reports it.
func (r *ACR122PCSC) handleTag(ctx ScardContext, iq chan<- readers.Scan, done <-chan struct{}) {
	tag, err := ctx.Connect(r.name, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		log.Debug().Err(err).Msg("error connecting to tag")
		return
	}
	defer func() {
		if err := tag.Disconnect(scard.ResetCard); err != nil {
			log.Debug().Err(err).Msg("error disconnecting tag")
		}
	}()

	if job := r.takeJob(); job != nil {
		job.result <- writeData(tag, job.data)
		return
	}

	if status, err := tag.Status(); err == nil {
		log.Debug().Msgf("atr: %s", hex.EncodeToString(status.Atr))
	}

	uid, err := readUID(tag)
	if err != nil {
		r.send(iq, done, readers.Scan{Error: err})
		return
	}

	data := readData(tag)
	log.Debug().Msgf("data: %x", data)

	records, err := ndef.ParseRecords(data)
	switch {
	case errors.Is(err, ndef.ErrNoNDEF) || (err != nil && len(data) == 0):
		records = []ndef.Record{}
	case err != nil:
		r.send(iq, done, readers.Scan{Error: fmt.Errorf("failed to parse tag %s: %w", uid, err)})
		return
	}

	r.send(iq, done, readers.Scan{
		Event: &readers.ReadEvent{
			UID:      uid,
			Records:  records,
			ScanTime: time.Now(),
			Source:   r.Device(),
		},
	})
}

// waitRemoval blocks until the tag leaves the field. A write requested
// while the tag is still present is applied to it.
func (r *ACR122PCSC) waitRemoval(ctx ScardContext) {
	for r.isPolling() {
		rs := []scard.ReaderState{{Reader: r.name, CurrentState: scard.StatePresent}}
		if err := ctx.GetStatusChange(rs, pollTimeout); err != nil {
			if !errors.Is(err, scard.ErrTimeout) {
				log.Debug().Err(err).Msg("error waiting for tag removal")
				return
			}
		} else if rs[0].EventState&scard.StatePresent == 0 {
			return
		}

		if job := r.takeJob(); job != nil {
			job.result <- r.writePresent(ctx, job.data)
		}
	}
}

func (r *ACR122PCSC) writePresent(ctx ScardContext, data []byte) error {
	tag, err := ctx.Connect(r.name, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		return fmt.Errorf("failed to connect to tag: %w", err)
	}
	defer func() {
		_ = tag.Disconnect(scard.LeaveCard)
	}()
	return writeData(tag, data)
}

func (r *ACR122PCSC) takeJob() *writeJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := r.job
	r.job = nil
	return job
}

func (r *ACR122PCSC) Close() error {
	r.CancelWrite()

	r.mu.Lock()
	wasPolling := r.polling
	r.polling = false
	ctx := r.ctx
	r.ctx = nil
	if wasPolling {
		close(r.done)
	}
	r.mu.Unlock()

	if ctx != nil {
		if err := ctx.Release(); err != nil {
			return fmt.Errorf("failed to release scard context: %w", err)
		}
	}
	return nil
}

var detectErrorOnce sync.Once

func (r *ACR122PCSC) Detect(connected []string) string {
	ctx, err := r.contextFactory()
	if err != nil {
		return ""
	}
	defer func() {
		if releaseErr := ctx.Release(); releaseErr != nil {
			log.Warn().Err(releaseErr).Msg("error releasing pcsc context")
		}
	}()

	rs, err := ctx.ListReaders()
	if err != nil {
		detectErrorOnce.Do(func() {
			log.Trace().Err(err).Msg("listing pcsc readers")
		})
		return ""
	}

	for _, name := range rs {
		conn := DriverID + ":" + name
		if strings.HasPrefix(name, readerPrefix) && !helpers.Contains(connected, conn) {
			log.Trace().Msgf("acr122 reader found: %s", name)
			return conn
		}
	}
	return ""
}

func (r *ACR122PCSC) Device() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.device.ConnectionString()
}

func (r *ACR122PCSC) Connected() bool {
	return r.isPolling()
}

func (r *ACR122PCSC) Info() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.name
}

func (r *ACR122PCSC) ReaderID() string {
	return readers.GenerateReaderID(DriverID, r.Info())
}

// Write queues the payload for the next tag in the field and waits for the
// poll loop to write it.
func (r *ACR122PCSC) Write(ctx context.Context, req readers.WriteRequest) error {
	if !r.Connected() {
		return readers.ErrNotConnected
	}

	data, err := ndef.BuildMessage(req.Kind, req.Payload)
	if err != nil {
		return readers.NotSupported(err)
	}

	job := &writeJob{data: data, result: make(chan error, 1)}
	r.mu.Lock()
	if r.job != nil {
		r.job.result <- readers.ErrWriteCancelled
	}
	r.job = job
	r.mu.Unlock()

	select {
	case err := <-job.result:
		if err != nil {
			return err
		}
		log.Info().Msgf("acr122: wrote %d bytes", len(data))
		return nil
	case <-ctx.Done():
		r.mu.Lock()
		if r.job == job {
			r.job = nil
		}
		r.mu.Unlock()
		return fmt.Errorf("%w: %w", readers.ErrWriteTimeout, ctx.Err())
	}
}

func (r *ACR122PCSC) CancelWrite() {
	if job := r.takeJob(); job != nil {
		job.result <- readers.ErrWriteCancelled
	}
}

func (*ACR122PCSC) Capabilities() []readers.Capability {
	return []readers.Capability{readers.CapabilityRead, readers.CapabilityWrite}
}
