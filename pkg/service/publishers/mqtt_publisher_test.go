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

package publishers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tapdeck/tapdeck/pkg/api/models"
	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/service/broker"
	"github.com/tapdeck/tapdeck/pkg/testing/helpers"
)

func withClient(p *MQTTPublisher, c mqtt.Client) *MQTTPublisher {
	p.newClient = func(*mqtt.ClientOptions) mqtt.Client { return c }
	return p
}

func TestNewMQTTPublisher(t *testing.T) {
	t.Parallel()

	p := NewMQTTPublisher("localhost:1883", "tapdeck/events/", []string{models.NotificationScanObservation})
	assert.Equal(t, "localhost:1883", p.broker)
	assert.Equal(t, "tapdeck/events", p.topic)
	assert.Equal(t, []string{models.NotificationScanObservation}, p.filter)
}

func TestMatchesFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		filter []string
		want   bool
	}{
		{name: "empty filter matches all", method: models.NotificationPlaybackStarted, want: true},
		{
			name:   "listed method",
			filter: []string{models.NotificationPlaybackStarted, models.NotificationPlaybackStopped},
			method: models.NotificationPlaybackStopped,
			want:   true,
		},
		{
			name:   "unlisted method",
			filter: []string{models.NotificationPlaybackStarted},
			method: models.NotificationScanObservation,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := NewMQTTPublisher("localhost:1883", "t", tt.filter)
			assert.Equal(t, tt.want, p.matchesFilter(tt.method))
		})
	}
}

func TestStart_ConnectError(t *testing.T) {
	t.Parallel()

	client := newMockMQTTClient()
	client.connectError = errors.New("refused")
	p := withClient(NewMQTTPublisher("localhost:1883", "t", nil), client)

	err := p.Start(make(chan models.Notification))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")

	// Stop after a failed start must not hang.
	p.Stop()
}

func TestPublish_TopicAndPayload(t *testing.T) {
	t.Parallel()

	client := newMockMQTTClient()
	p := withClient(NewMQTTPublisher("localhost:1883", "tapdeck", []string{
		models.NotificationPlaybackStarted,
	}), client)

	ns := make(chan models.Notification, 3)
	require.NoError(t, p.Start(ns))

	ns <- models.Notification{Method: models.NotificationScanObservation, Params: json.RawMessage(`{"kind":"blank"}`)}
	ns <- models.Notification{Method: models.NotificationPlaybackStarted, Params: json.RawMessage(`{"cardId":"abc"}`)}
	ns <- models.Notification{Method: models.NotificationPlaybackStarted}

	require.Eventually(t, func() bool {
		return len(client.published()) == 2
	}, time.Second, 5*time.Millisecond)

	p.Stop()
	p.Stop()

	msgs := client.published()
	assert.Equal(t, "tapdeck/"+models.NotificationPlaybackStarted, msgs[0].topic)
	assert.JSONEq(t, `{"cardId":"abc"}`, string(msgs[0].payload.([]byte)))
	assert.JSONEq(t, `{}`, string(msgs[1].payload.([]byte)))
	assert.Equal(t, 1, client.disconnects())
}

func TestPublish_ErrorKeepsRunning(t *testing.T) {
	t.Parallel()

	client := newMockMQTTClient()
	client.publishError = errors.New("broker gone")
	p := withClient(NewMQTTPublisher("localhost:1883", "t", nil), client)

	ns := make(chan models.Notification)
	require.NoError(t, p.Start(ns))

	ns <- models.Notification{Method: models.NotificationLibraryChanged}
	ns <- models.Notification{Method: models.NotificationLibraryChanged}

	close(ns)
	p.Stop()
	assert.Empty(t, client.published())
}

func TestStartMQTT_SkipsDisabledAndIncomplete(t *testing.T) {
	t.Parallel()

	disabled := false
	cfg := helpers.NewTestConfig(t, func(v *config.Values) {
		v.Service.Publishers.MQTT = []config.MQTTPublisher{
			{Enabled: &disabled, Broker: "localhost:1883", Topic: "t"},
			{Broker: "", Topic: "t"},
			{Broker: "localhost:1883", Topic: ""},
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := make(chan models.Notification)
	b := broker.NewBroker(ctx, src)
	b.Start()

	assert.Empty(t, StartMQTT(ctx, cfg, b))
}
