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
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/config"
)

// ParseMQTTPath splits a "[scheme://]broker:port/topic" connection path,
// e.g. "localhost:1883/tapdeck/tags" into "localhost:1883" and
// "tapdeck/tags".
func ParseMQTTPath(path string) (broker, topic string, err error) {
	if path == "" {
		return "", "", errors.New("path cannot be empty")
	}

	urlStr := path
	if !strings.HasPrefix(path, "mqtt://") && !strings.HasPrefix(path, "mqtts://") {
		urlStr = "mqtt://" + path
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse MQTT URL: %w", err)
	}

	if u.Host == "" {
		return "", "", errors.New("broker address (host:port) is required")
	}

	broker = u.Host

	topic = strings.TrimLeft(u.Path, "/")
	if topic == "" {
		return "", "", errors.New("topic is required")
	}

	return broker, topic, nil
}

// MQTTProtocolInfo contains parsed MQTT protocol information.
type MQTTProtocolInfo struct {
	Protocol  string
	Scheme    string
	Remainder string
	UseTLS    bool
}

// ParseMQTTProtocol maps an optional mqtt/mqtts/ssl scheme onto the paho
// transport name. Addresses without a scheme use plain TCP.
func ParseMQTTProtocol(urlStr string) MQTTProtocolInfo {
	info := MQTTProtocolInfo{
		Protocol:  "tcp",
		UseTLS:    false,
		Scheme:    "",
		Remainder: urlStr,
	}

	if strings.Contains(urlStr, "://") {
		parts := strings.SplitN(urlStr, "://", 2)
		info.Scheme = parts[0]
		info.Remainder = parts[1]

		if info.Scheme == "mqtts" || info.Scheme == "ssl" {
			info.Protocol = "ssl"
			info.UseTLS = true
		}
	}

	return info
}

// NewClientOptions returns paho options for brokerURL with a random client
// id starting with clientIDPrefix. Credentials come from auth.toml.
func NewClientOptions(brokerURL, clientIDPrefix string) *mqtt.ClientOptions {
	protocolInfo := ParseMQTTProtocol(brokerURL)
	fullBrokerURL := fmt.Sprintf("%s://%s", protocolInfo.Protocol, protocolInfo.Remainder)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fullBrokerURL)
	opts.SetClientID(clientIDPrefix + uuid.New().String()[:8])
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetOrderMatters(false)

	creds := config.LookupAuth(config.GetAuthCfg(), brokerURL)
	if creds != nil && creds.Username != "" {
		opts.SetUsername(creds.Username)
		opts.SetPassword(creds.Password)
		log.Debug().Msgf("mqtt: using authentication for %s", protocolInfo.Remainder)
	}

	if protocolInfo.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
		log.Debug().Msgf("mqtt: using TLS for %s", protocolInfo.Remainder)
	}

	return opts
}
