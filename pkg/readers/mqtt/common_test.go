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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tapdeck/tapdeck/pkg/config"
)

func TestParseMQTTPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path       string
		wantBroker string
		wantTopic  string
		wantErr    string
	}{
		{path: "localhost:1883/tapdeck/tags", wantBroker: "localhost:1883", wantTopic: "tapdeck/tags"},
		{path: "mqtts://secure.example:8883/a/b", wantBroker: "secure.example:8883", wantTopic: "a/b"},
		{path: "192.168.1.100:1883/tapdeck", wantBroker: "192.168.1.100:1883", wantTopic: "tapdeck"},
		{path: "", wantErr: "path cannot be empty"},
		{path: "localhost:1883", wantErr: "topic is required"},
		{path: "localhost:1883/", wantErr: "topic is required"},
		{path: "/topic/only", wantErr: "broker address"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			broker, topic, err := ParseMQTTPath(tt.path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBroker, broker)
			assert.Equal(t, tt.wantTopic, topic)
		})
	}
}

func TestParseMQTTProtocol(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url      string
		protocol string
		tls      bool
	}{
		{url: "mqtts://broker:8883", protocol: "ssl", tls: true},
		{url: "ssl://broker:8883", protocol: "ssl", tls: true},
		{url: "mqtt://broker:1883", protocol: "tcp"},
		{url: "broker:1883", protocol: "tcp"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			info := ParseMQTTProtocol(tt.url)
			assert.Equal(t, tt.protocol, info.Protocol)
			assert.Equal(t, tt.tls, info.UseTLS)
		})
	}
}

//nolint:paralleltest // modifies global auth config
func TestNewClientOptions_Auth(t *testing.T) {
	config.SetAuthCfgForTesting(config.Auth{
		Creds: map[string]config.CredentialEntry{
			"mqtts://broker.example:8883": {Username: "deck", Password: "secret"},
		},
	})
	t.Cleanup(config.ClearAuthCfgForTesting)

	opts := NewClientOptions("mqtts://broker.example:8883", "tapdeck-test-")
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "ssl://broker.example:8883", opts.Servers[0].String())
	assert.Equal(t, "deck", opts.Username)
	assert.NotNil(t, opts.TLSConfig)
	assert.Contains(t, opts.ClientID, "tapdeck-test-")
}
