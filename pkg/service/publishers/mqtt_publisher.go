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

// Package publishers forwards service notifications to external systems.
package publishers

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/api/models"
	"github.com/tapdeck/tapdeck/pkg/config"
	mqttshared "github.com/tapdeck/tapdeck/pkg/readers/mqtt"
	"github.com/tapdeck/tapdeck/pkg/service/broker"
)

const (
	subscriberBuffer  = 50
	disconnectQuiesce = 250
)

// ClientFactory builds the paho client. Tests replace it with a fake.
type ClientFactory func(opts *mqtt.ClientOptions) mqtt.Client

// MQTTPublisher publishes each notification's params as JSON to
// "<topic>/<method>".
type MQTTPublisher struct {
	client    mqtt.Client
	newClient ClientFactory
	stopCh    chan struct{}
	done      chan struct{}
	broker    string
	topic     string
	filter    []string
	stopOnce  sync.Once
}

// NewMQTTPublisher returns a publisher for brokerURL. An empty filter
// publishes every notification.
func NewMQTTPublisher(brokerURL, topic string, filter []string) *MQTTPublisher {
	return &MQTTPublisher{
		broker:    brokerURL,
		topic:     strings.TrimSuffix(topic, "/"),
		filter:    filter,
		newClient: mqtt.NewClient,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start connects to the broker and publishes notifications from ns in the
// background until Stop is called or ns is closed.
func (p *MQTTPublisher) Start(ns <-chan models.Notification) error {
	opts := mqttshared.NewClientOptions(p.broker, "tapdeck-publisher-")
	opts.OnConnect = func(mqtt.Client) {
		log.Info().Msgf("mqtt publisher: connected to %s", p.broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt publisher: connection lost")
	}

	p.client = p.newClient(opts)
	token := p.client.Connect()
	if token.Wait() && token.Error() != nil {
		close(p.done)
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	go p.publish(ns)
	return nil
}

// Stop is safe to call more than once.
func (p *MQTTPublisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		<-p.done
		if p.client != nil && p.client.IsConnected() {
			p.client.Disconnect(disconnectQuiesce)
		}
	})
}

func (p *MQTTPublisher) publish(ns <-chan models.Notification) {
	defer close(p.done)
	for {
		select {
		case <-p.stopCh:
			return
		case n, ok := <-ns:
			if !ok {
				log.Debug().Msg("mqtt publisher: notification channel closed")
				return
			}
			if !p.matchesFilter(n.Method) {
				continue
			}

			payload := []byte(n.Params)
			if len(payload) == 0 {
				payload = []byte("{}")
			}
			if !json.Valid(payload) {
				log.Error().Str("method", n.Method).Msg("mqtt publisher: invalid notification payload")
				continue
			}

			topic := p.topic + "/" + n.Method
			token := p.client.Publish(topic, 0, false, payload)
			if token.Wait() && token.Error() != nil {
				log.Error().Err(token.Error()).Msg("mqtt publisher: failed to publish")
				continue
			}
			log.Debug().Str("topic", topic).Msg("mqtt publisher: published notification")
		}
	}
}

func (p *MQTTPublisher) matchesFilter(method string) bool {
	return len(p.filter) == 0 || slices.Contains(p.filter, method)
}

// StartMQTT starts a publisher for every enabled entry in the config, each
// with its own broker subscription. Publishers that fail to connect are
// logged and skipped. The returned publishers stop when ctx is done.
func StartMQTT(ctx context.Context, cfg *config.Instance, b *broker.Broker) []*MQTTPublisher {
	var started []*MQTTPublisher
	for _, pc := range cfg.GetMQTTPublishers() {
		if pc.Enabled != nil && !*pc.Enabled {
			continue
		}
		if pc.Broker == "" || pc.Topic == "" {
			log.Warn().Msg("mqtt publisher: broker and topic are required, skipping")
			continue
		}

		ch, id := b.Subscribe(subscriberBuffer)
		pub := NewMQTTPublisher(pc.Broker, pc.Topic, pc.Filter)
		if err := pub.Start(ch); err != nil {
			log.Error().Err(err).Str("broker", pc.Broker).Msg("mqtt publisher: failed to start")
			b.Unsubscribe(id)
			continue
		}
		started = append(started, pub)

		go func() {
			<-ctx.Done()
			pub.Stop()
			b.Unsubscribe(id)
		}()
	}
	return started
}
