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

// Package mqtt implements a reader that receives tag reads from an MQTT
// topic and forwards write requests to "<topic>/write".
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/helpers"
	"github.com/tapdeck/tapdeck/pkg/helpers/syncutil"
	"github.com/tapdeck/tapdeck/pkg/readers"
)

const (
	DriverID       = "mqtt"
	WriteSuffix    = "/write"
	connectWait    = 5 * time.Second
	disconnectMS   = 250
	publishQoS     = 1
	subscribeQoS   = 1
	clientIDPrefix = "tapdeck-mqtt-"
)

// ClientFactory builds the paho client; tests swap it for a fake.
type ClientFactory func(*mqtt.ClientOptions) mqtt.Client

var DefaultClientFactory ClientFactory = mqtt.NewClient

type Reader struct {
	client        mqtt.Client
	cfg           *config.Instance
	scanCh        chan<- readers.Scan
	clientFactory ClientFactory
	cancelWrite   context.CancelFunc
	device        config.ReadersConnect
	broker        string
	topic         string
	mu            syncutil.RWMutex
}

func NewReader(cfg *config.Instance) *Reader {
	return &Reader{
		cfg:           cfg,
		clientFactory: DefaultClientFactory,
	}
}

func (*Reader) Metadata() readers.DriverMetadata {
	return readers.DriverMetadata{
		ID:                DriverID,
		Description:       "MQTT tag bridge",
		DefaultEnabled:    true,
		DefaultAutoDetect: false,
	}
}

func (*Reader) IDs() []string {
	return []string{DriverID}
}

func (r *Reader) Open(device config.ReadersConnect, scanQueue chan<- readers.Scan) error {
	if !helpers.Contains(r.IDs(), readers.NormalizeDriverID(device.Driver)) {
		return errors.New("invalid reader id: " + device.Driver)
	}

	broker, topic, err := ParseMQTTPath(device.Path)
	if err != nil {
		return fmt.Errorf("failed to parse MQTT path: %w", err)
	}

	r.mu.Lock()
	r.device = device
	r.broker = broker
	r.topic = topic
	r.scanCh = scanQueue
	r.mu.Unlock()

	brokerURL := broker
	if scheme, _, ok := strings.Cut(device.Path, "://"); ok {
		brokerURL = scheme + "://" + broker
	}

	opts := NewClientOptions(brokerURL, clientIDPrefix)
	opts.OnConnect = func(client mqtt.Client) {
		log.Info().Msgf("mqtt reader: connected to %s", broker)

		token := client.Subscribe(topic, subscribeQoS, r.createMessageHandler())
		if token.Wait() && token.Error() != nil {
			log.Error().Err(token.Error()).Msgf("mqtt reader: failed to subscribe to %s", topic)
			scanQueue <- readers.Scan{
				Source: device.ConnectionString(),
				Error:  fmt.Errorf("failed to subscribe to topic: %w", token.Error()),
			}
			return
		}
		log.Info().Msgf("mqtt reader: subscribed to topic %s", topic)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt reader: connection lost")
	}

	client := r.clientFactory(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectWait) {
		client.Disconnect(0)
		return errors.New("failed to connect to MQTT broker: connection timeout")
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	r.mu.Lock()
	r.client = client
	r.mu.Unlock()

	log.Info().Msgf("mqtt reader: opened connection to %s (topic: %s)", broker, topic)
	return nil
}

func (r *Reader) Close() error {
	r.CancelWrite()

	r.mu.RLock()
	client := r.client
	r.mu.RUnlock()

	if client != nil && client.IsConnected() {
		log.Debug().Msg("mqtt reader: disconnecting")
		client.Disconnect(disconnectMS)
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
	return r.client != nil && r.client.IsConnected()
}

func (r *Reader) Info() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return "MQTT: " + r.topic
}

func (r *Reader) ReaderID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return readers.GenerateReaderID(DriverID, r.broker+"/"+r.topic)
}

// Write publishes the payload to the write topic and waits for the broker
// to acknowledge it.
func (r *Reader) Write(ctx context.Context, req readers.WriteRequest) error {
	r.mu.Lock()
	client, topic := r.client, r.topic
	if client == nil || !client.IsConnected() {
		r.mu.Unlock()
		return readers.ErrNotConnected
	}
	if r.cancelWrite != nil {
		r.cancelWrite()
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancelWrite = cancel
	r.mu.Unlock()
	defer cancel()

	body, err := EncodeWrite(req.Kind, req.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode write request: %w", err)
	}

	token := client.Publish(topic+WriteSuffix, publishQoS, false, body)
	select {
	case <-token.Done():
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return readers.ErrWriteCancelled
		}
		return fmt.Errorf("%w: %w", readers.ErrWriteTimeout, ctx.Err())
	}

	if err := token.Error(); err != nil {
		if errors.Is(err, packets.ErrorRefusedNotAuthorised) || errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword) {
			return readers.NotAllowed(err)
		}
		return fmt.Errorf("failed to publish write request: %w", err)
	}

	log.Info().Msgf("mqtt reader: published %s payload to %s%s", req.Kind, topic, WriteSuffix)
	return nil
}

func (r *Reader) CancelWrite() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelWrite != nil {
		r.cancelWrite()
		r.cancelWrite = nil
	}
}

func (*Reader) Capabilities() []readers.Capability {
	return []readers.Capability{readers.CapabilityRead, readers.CapabilityWrite}
}

func (r *Reader) createMessageHandler() mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()
		if len(payload) == 0 {
			log.Debug().Msg("mqtt reader: ignoring empty message")
			return
		}

		uid, records := ParseMessage(payload)
		log.Debug().Msgf("mqtt reader: received message with %d records", len(records))

		source := r.Device()
		r.mu.RLock()
		ch := r.scanCh
		r.mu.RUnlock()

		ch <- readers.Scan{
			Source: source,
			Event: &readers.ReadEvent{
				UID:      uid,
				Records:  records,
				ScanTime: time.Now(),
				Source:   source,
			},
		}
	}
}
