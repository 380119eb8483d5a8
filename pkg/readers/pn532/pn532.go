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

// Package pn532 drives PN532 NFC modules over UART, I2C or SPI.
package pn532

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/go-pn532"
	"github.com/ZaparooProject/go-pn532/detection"
	_ "github.com/ZaparooProject/go-pn532/detection/uart"
	"github.com/ZaparooProject/go-pn532/polling"
	"github.com/ZaparooProject/go-pn532/tagops"
	"github.com/ZaparooProject/go-pn532/transport/i2c"
	"github.com/ZaparooProject/go-pn532/transport/spi"
	"github.com/ZaparooProject/go-pn532/transport/uart"
	gondef "github.com/hsanjuan/go-ndef"
	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/helpers"
	"github.com/tapdeck/tapdeck/pkg/helpers/syncutil"
	"github.com/tapdeck/tapdeck/pkg/readers"
	"github.com/tapdeck/tapdeck/pkg/readers/shared/ndef"
)

const (
	DriverID = "pn532"

	quickDetectionTimeout = 5 * time.Second
	ndefReadTimeout       = 2 * time.Second
	deviceTimeout         = 5 * time.Second
)

// PN532Device abstracts the pn532.Device for testing.
type PN532Device interface {
	Init(ctx context.Context) error
	SetTimeout(timeout time.Duration) error
	Close() error
}

// PollingSession abstracts the polling.Session for testing.
type PollingSession interface {
	Start(ctx context.Context) error
	Close() error
	SetOnCardDetected(callback func(context.Context, *pn532.DetectedTag) error)
	SetOnCardRemoved(callback func())
	SetOnCardChanged(callback func(context.Context, *pn532.DetectedTag) error)
	WriteToNextTag(
		ctx, writeCtx context.Context,
		timeout time.Duration,
		writeFunc func(context.Context, pn532.Tag) error,
	) error
}

type (
	TransportFactory func(deviceInfo detection.DeviceInfo) (pn532.Transport, error)
	DeviceFactory    func(transport pn532.Transport) (PN532Device, error)
	SessionFactory   func(device PN532Device, sessionConfig *polling.Config) PollingSession
	// MessageReader loads the NDEF message of a tag that was just detected.
	MessageReader func(ctx context.Context, device PN532Device, tag *pn532.DetectedTag) (*gondef.Message, error)
)

func DefaultTransportFactory(deviceInfo detection.DeviceInfo) (pn532.Transport, error) {
	var (
		transport pn532.Transport
		err       error
	)
	switch deviceInfo.Transport {
	case "uart":
		transport, err = uart.New(deviceInfo.Path)
	case "i2c":
		transport, err = i2c.New(deviceInfo.Path)
	case "spi":
		transport, err = spi.New(deviceInfo.Path)
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", deviceInfo.Transport)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s transport: %w", deviceInfo.Transport, err)
	}
	return transport, nil
}

func DefaultDeviceFactory(transport pn532.Transport) (PN532Device, error) {
	device, err := pn532.New(transport)
	if err != nil {
		return nil, fmt.Errorf("failed to create PN532 device: %w", err)
	}
	return device, nil
}

type realSession struct {
	session *polling.Session
}

func (s *realSession) Start(ctx context.Context) error {
	if err := s.session.Start(ctx); err != nil {
		return fmt.Errorf("polling session: %w", err)
	}
	return nil
}

func (s *realSession) Close() error {
	if err := s.session.Close(); err != nil {
		return fmt.Errorf("failed to close polling session: %w", err)
	}
	return nil
}

func (s *realSession) SetOnCardDetected(callback func(context.Context, *pn532.DetectedTag) error) {
	s.session.OnCardDetected = callback
}

func (s *realSession) SetOnCardRemoved(callback func()) {
	s.session.OnCardRemoved = callback
}

func (s *realSession) SetOnCardChanged(callback func(context.Context, *pn532.DetectedTag) error) {
	s.session.OnCardChanged = callback
}

func (s *realSession) WriteToNextTag(
	ctx, writeCtx context.Context,
	timeout time.Duration,
	writeFunc func(context.Context, pn532.Tag) error,
) error {
	//nolint:wrapcheck // callers inspect the write callback's error
	return s.session.WriteToNextTag(ctx, writeCtx, timeout, writeFunc)
}

func DefaultSessionFactory(device PN532Device, sessionConfig *polling.Config) PollingSession {
	if dev, ok := device.(*pn532.Device); ok {
		return &realSession{session: polling.NewSession(dev, sessionConfig)}
	}
	return nil
}

// DefaultMessageReader reads NDEF data with tagops. Devices that aren't
// real hardware report no records.
func DefaultMessageReader(ctx context.Context, device PN532Device, tag *pn532.DetectedTag) (*gondef.Message, error) {
	dev, ok := device.(*pn532.Device)
	if !ok {
		return nil, nil
	}

	ops := tagops.New(dev)
	if err := ops.DetectTag(ctx); err != nil {
		return nil, fmt.Errorf("failed to detect tag %s: %w", tag.UID, err)
	}
	msg, err := ops.ReadNDEF(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read NDEF from %s: %w", tag.UID, err)
	}
	return msg, nil
}

// USB serial adapters that enumerate like a PN532 but are light guns.
func createVIDPIDBlocklist() []string {
	return []string{
		"16C0:0F38", "16C0:0F39", "16C0:0F01", "16C0:0F02",
		"16D0:0F38", "16D0:0F39", "16D0:0F01", "16D0:0F02",
		"16D0:1094", "16D0:1095", "16D0:1096", "16D0:1097",
		"16D0:1098", "16D0:1099", "16D0:109A", "16D0:109B",
		"16D0:109C", "16D0:109D",
	}
}

type Reader struct {
	session          PollingSession
	device           PN532Device
	ctx              context.Context
	cancel           context.CancelFunc
	writeCancel      context.CancelFunc
	cfg              *config.Instance
	transportFactory TransportFactory
	deviceFactory    DeviceFactory
	sessionFactory   SessionFactory
	messageReader    MessageReader
	stopped          chan struct{}
	deviceInfo       config.ReadersConnect
	name             string
	readerID         string
	writeTimeout     time.Duration
	mutex            syncutil.RWMutex
	writeMutex       syncutil.Mutex
	present          bool
}

func NewReader(cfg *config.Instance) *Reader {
	return &Reader{
		cfg:              cfg,
		transportFactory: DefaultTransportFactory,
		deviceFactory:    DefaultDeviceFactory,
		sessionFactory:   DefaultSessionFactory,
		messageReader:    DefaultMessageReader,
	}
}

func (*Reader) Metadata() readers.DriverMetadata {
	return readers.DriverMetadata{
		ID:                DriverID,
		DefaultEnabled:    true,
		DefaultAutoDetect: true,
		Description:       "PN532 NFC reader (UART/I2C/SPI)",
	}
}

func (*Reader) IDs() []string {
	return []string{
		"pn532",
		"pn532_uart",
		"pn532_i2c",
		"pn532_spi",
	}
}

// transportFor maps "pn532_i2c" to "i2c". The bare driver name means UART.
func transportFor(driver string) string {
	t := strings.TrimPrefix(strings.ToLower(driver), "pn532_")
	if t == strings.ToLower(driver) {
		return "uart"
	}
	return t
}

func (r *Reader) Open(device config.ReadersConnect, iq chan<- readers.Scan) error {
	if !helpers.Contains(r.IDs(), strings.ToLower(device.Driver)) {
		return errors.New("invalid reader id: " + device.Driver)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	transport, err := r.transportFactory(detection.DeviceInfo{
		Transport: transportFor(device.Driver),
		Path:      device.Path,
	})
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}

	r.name = device.ConnectionString()
	log.Debug().Msgf("opening PN532 device: %s", r.name)

	dev, err := r.deviceFactory(transport)
	if err != nil {
		if transport != nil {
			_ = transport.Close()
		}
		return fmt.Errorf("failed to create PN532 device: %w", err)
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), deviceTimeout)
	err = dev.Init(initCtx)
	initCancel()
	if err != nil {
		_ = dev.Close()
		return fmt.Errorf("failed to initialize PN532 device: %w", err)
	}

	if err := dev.SetTimeout(deviceTimeout); err != nil {
		_ = dev.Close()
		return fmt.Errorf("failed to set device timeout: %w", err)
	}

	session := r.sessionFactory(dev, polling.DefaultConfig())
	if session == nil {
		_ = dev.Close()
		return errors.New("failed to create polling session")
	}

	r.device = dev
	r.session = session
	r.deviceInfo = device
	r.readerID = readers.GenerateReaderID(DriverID, device.Path)
	r.writeTimeout = r.cfg.ScanTimeout()
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.stopped = make(chan struct{})
	r.present = false

	session.SetOnCardDetected(func(ctx context.Context, tag *pn532.DetectedTag) error {
		r.handleTagDetected(ctx, tag, iq)
		return nil
	})
	session.SetOnCardChanged(func(ctx context.Context, tag *pn532.DetectedTag) error {
		r.handleTagDetected(ctx, tag, iq)
		return nil
	})
	session.SetOnCardRemoved(func() {
		r.handleTagRemoved(iq)
	})

	go func(ctx context.Context, cancel context.CancelFunc, stopped chan struct{}) {
		defer close(stopped)
		err := session.Start(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		log.Error().Err(err).Msg("PN532 session ended with error")
		r.send(ctx, iq, readers.Scan{Source: device.ConnectionString(), Error: err})
		cancel()
	}(r.ctx, r.cancel, r.stopped)

	log.Info().Msgf("PN532 reader opened: %s", r.name)
	return nil
}

func (*Reader) send(ctx context.Context, iq chan<- readers.Scan, scan readers.Scan) {
	select {
	case iq <- scan:
	case <-ctx.Done():
	}
}

func (r *Reader) handleTagDetected(ctx context.Context, tag *pn532.DetectedTag, iq chan<- readers.Scan) {
	log.Info().Msgf("new tag detected: %s (%s)", tag.Type, tag.UID)

	r.mutex.RLock()
	device, readerCtx, source := r.device, r.ctx, r.deviceInfo.ConnectionString()
	r.mutex.RUnlock()

	readCtx, cancel := context.WithTimeout(ctx, ndefReadTimeout)
	defer cancel()

	msg, err := r.messageReader(readCtx, device, tag)
	if err != nil {
		// tags without NDEF data are reported blank rather than failed
		log.Debug().Err(err).Str("uid", tag.UID).Msg("failed to read NDEF data")
	}

	r.mutex.Lock()
	r.present = true
	r.mutex.Unlock()

	r.send(readerCtx, iq, readers.Scan{
		Source: source,
		Event: &readers.ReadEvent{
			ScanTime: time.Now(),
			UID:      tag.UID,
			Source:   source,
			Records:  ndef.FromMessage(msg),
		},
	})
}

func (r *Reader) handleTagRemoved(iq chan<- readers.Scan) {
	r.mutex.Lock()
	wasPresent := r.present
	r.present = false
	readerCtx, source := r.ctx, r.deviceInfo.ConnectionString()
	r.mutex.Unlock()

	if !wasPresent {
		return
	}
	log.Info().Msg("tag removed")
	r.send(readerCtx, iq, readers.Scan{Source: source})
}

func (r *Reader) Close() error {
	r.mutex.Lock()
	if r.cancel == nil {
		r.mutex.Unlock()
		return nil
	}
	r.cancel()
	r.cancel = nil
	session, device, stopped := r.session, r.device, r.stopped
	r.mutex.Unlock()

	r.CancelWrite()

	var errs []error
	if err := session.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close PN532 session: %w", err))
	}
	<-stopped
	if err := device.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close PN532 device: %w", err))
	}
	return errors.Join(errs...)
}

func (*Reader) Detect(connected []string) string {
	ignorePaths := make([]string, 0, len(connected))
	for _, conn := range connected {
		if _, path, ok := strings.Cut(conn, ":"); ok && path != "" {
			ignorePaths = append(ignorePaths, path)
		}
	}

	opts := detection.DefaultOptions()
	opts.Timeout = quickDetectionTimeout
	opts.Mode = detection.Safe
	opts.Blocklist = createVIDPIDBlocklist()
	opts.IgnorePaths = ignorePaths

	devices, err := detection.DetectAll(context.Background(), &opts)
	if err != nil {
		log.Trace().Err(err).Msg("PN532 detection failed")
		return ""
	}

	for _, device := range devices {
		if helpers.Contains(ignorePaths, device.Path) {
			continue
		}
		found := fmt.Sprintf("pn532_%s:%s", device.Transport, device.Path)
		log.Trace().Msgf("detected PN532 device: %s", found)
		return found
	}
	return ""
}

func (r *Reader) Device() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.deviceInfo.ConnectionString()
}

func (r *Reader) Connected() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.device != nil && r.ctx != nil && r.ctx.Err() == nil
}

func (r *Reader) Info() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return "PN532 (" + r.name + ")"
}

func (r *Reader) ReaderID() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.readerID
}

func recordFor(req readers.WriteRequest) (pn532.NDEFRecord, error) {
	switch req.Kind {
	case ndef.KindText:
		return pn532.NDEFRecord{Type: pn532.NDEFTypeText, Text: req.Payload}, nil
	case ndef.KindURI:
		return pn532.NDEFRecord{Type: pn532.NDEFTypeURI, URI: req.Payload}, nil
	default:
		return pn532.NDEFRecord{}, readers.NotSupported(fmt.Errorf("%w: %v", ndef.ErrUnknownKind, req.Kind))
	}
}

func (r *Reader) Write(ctx context.Context, req readers.WriteRequest) error {
	record, err := recordFor(req)
	if err != nil {
		return err
	}

	if !r.Connected() {
		return readers.ErrNotConnected
	}

	r.mutex.RLock()
	session, timeout := r.session, r.writeTimeout
	r.mutex.RUnlock()

	// one write at a time; a new request waits for the previous to finish
	r.writeMutex.Lock()
	writeCtx, cancel := context.WithCancel(ctx)
	r.writeCancel = cancel
	r.writeMutex.Unlock()

	defer func() {
		r.writeMutex.Lock()
		cancel()
		r.writeCancel = nil
		r.writeMutex.Unlock()
	}()

	var writeErr error
	err = session.WriteToNextTag(ctx, writeCtx, timeout, func(tagCtx context.Context, tag pn532.Tag) error {
		if tag.Type() == pn532.TagTypeUnknown {
			writeErr = readers.NotSupported(fmt.Errorf("tag %s has an unsupported type", tag.UID()))
			return writeErr
		}
		msg := &pn532.NDEFMessage{Records: []pn532.NDEFRecord{record}}
		if err := tag.WriteNDEF(tagCtx, msg); err != nil {
			writeErr = fmt.Errorf("failed to write NDEF to tag: %w", err)
			return writeErr
		}
		log.Info().Str("uid", tag.UID()).Msg("wrote payload to PN532 tag")
		return nil
	})

	switch {
	case writeErr != nil:
		return writeErr
	case err == nil:
		return nil
	case errors.Is(ctx.Err(), context.Canceled):
		return readers.ErrWriteCancelled
	case ctx.Err() != nil:
		return readers.ErrWriteTimeout
	case writeCtx.Err() != nil:
		return readers.ErrWriteCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return readers.ErrWriteTimeout
	default:
		return fmt.Errorf("failed to write to tag: %w", err)
	}
}

func (r *Reader) CancelWrite() {
	r.writeMutex.Lock()
	defer r.writeMutex.Unlock()

	if r.writeCancel != nil {
		log.Debug().Msg("cancelling ongoing write operation")
		r.writeCancel()
	}
}

func (*Reader) Capabilities() []readers.Capability {
	return []readers.Capability{readers.CapabilityRead, readers.CapabilityWrite}
}
