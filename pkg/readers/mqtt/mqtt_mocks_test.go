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

package mqtt

import (
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/tapdeck/tapdeck/pkg/helpers/syncutil"
)

// mockMQTTClient is a minimal in-memory mqtt.Client.
type mockMQTTClient struct {
	connectError    error
	subscribeError  error
	publishError    error
	publishBlock    chan struct{}
	messageHandler  mqtt.MessageHandler
	published       []publishedMessage
	disconnectCalls int
	connected       bool
	mu              syncutil.Mutex
}

type publishedMessage struct {
	topic   string
	payload []byte
}

func newMockMQTTClient() *mockMQTTClient {
	return &mockMQTTClient{
		connected: false,
	}
}

func (m *mockMQTTClient) IsConnected() bool {
	return m.connected
}

func (m *mockMQTTClient) IsConnectionOpen() bool {
	return m.connected
}

func (m *mockMQTTClient) Connect() mqtt.Token {
	if m.connectError != nil {
		return &mockToken{err: m.connectError}
	}
	m.connected = true
	return &mockToken{complete: true}
}

func (m *mockMQTTClient) Disconnect(_ uint) {
	m.connected = false
	m.disconnectCalls++
}

func (m *mockMQTTClient) Publish(topic string, _ byte, _ bool, payload any) mqtt.Token {
	if m.publishBlock != nil {
		return &mockToken{done: m.publishBlock}
	}
	if m.publishError != nil {
		return &mockToken{err: m.publishError, complete: true}
	}
	body, _ := payload.([]byte)
	m.mu.Lock()
	m.published = append(m.published, publishedMessage{topic: topic, payload: body})
	m.mu.Unlock()
	return &mockToken{complete: true}
}

func (m *mockMQTTClient) publishedMessages() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publishedMessage(nil), m.published...)
}

func (m *mockMQTTClient) Subscribe(_ string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	if m.subscribeError != nil {
		return &mockToken{err: m.subscribeError}
	}
	m.messageHandler = callback
	return &mockToken{complete: true}
}

func (*mockMQTTClient) SubscribeMultiple(_ map[string]byte, _ mqtt.MessageHandler) mqtt.Token {
	return &mockToken{complete: true}
}

func (*mockMQTTClient) Unsubscribe(_ ...string) mqtt.Token {
	return &mockToken{complete: true}
}

func (m *mockMQTTClient) AddRoute(_ string, callback mqtt.MessageHandler) {
	m.messageHandler = callback
}

func (*mockMQTTClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

type mockToken struct {
	err      error
	done     chan struct{}
	complete bool
}

func (*mockToken) Wait() bool {
	return true
}

func (t *mockToken) WaitTimeout(_ time.Duration) bool {
	return t.complete
}

func (t *mockToken) Done() <-chan struct{} {
	if t.done != nil {
		return t.done
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (t *mockToken) Error() error {
	return t.err
}
