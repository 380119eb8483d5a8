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

// Package discovery advertises the service on the local network over
// mDNS so companion apps can find it without a configured address.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/helpers/syncutil"
)

const ServiceType = "_tapdeck._tcp"

const (
	retryInitial = 2 * time.Second
	retryMax     = 30 * time.Second
	retryFor     = 5 * time.Minute
)

var virtualPrefixes = []string{
	"docker", "br-", "veth", "virbr", "lxc", "lxd",
	"cni", "flannel", "cali", "tunl", "wg", "tailscale",
}

// registerFunc matches zeroconf.Register.
type registerFunc func(
	instance, service, domain string,
	port int,
	text []string,
	ifaces []net.Interface,
) (*zeroconf.Server, error)

type Service struct {
	server     *zeroconf.Server
	cfg        *config.Instance
	cancel     context.CancelFunc
	register   registerFunc
	interfaces func() ([]net.Interface, error)
	hostname   func() (string, error)
	instance   string
	mu         syncutil.Mutex
	stopped    bool
}

func New(cfg *config.Instance) *Service {
	return &Service{
		cfg:        cfg,
		register:   zeroconf.Register,
		interfaces: net.Interfaces,
		hostname:   os.Hostname,
	}
}

// Start advertises the service. When the network is not ready yet the
// registration is retried in the background with an exponential backoff
// for a limited time. Start only fails when the instance name cannot be
// determined.
func (s *Service) Start() error {
	if !s.cfg.DiscoveryEnabled() {
		log.Info().Msg("discovery: disabled by configuration")
		return nil
	}

	name, err := s.instanceName()
	if err != nil {
		return fmt.Errorf("resolve instance name: %w", err)
	}
	s.mu.Lock()
	s.instance = name
	s.mu.Unlock()

	err = s.tryRegister()
	if err == nil {
		return nil
	}
	log.Info().Err(err).Msg("discovery: registration failed, retrying in background")

	ctx, cancel := context.WithTimeout(context.Background(), retryFor)
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		cancel()
		return nil
	}
	s.cancel = cancel
	s.mu.Unlock()

	go s.retry(ctx)
	return nil
}

func (s *Service) retry(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitial
	bo.MaxInterval = retryMax
	bo.MaxElapsedTime = 0

	err := backoff.Retry(s.tryRegister, backoff.WithContext(bo, ctx))
	if err != nil {
		log.Warn().Err(err).Msg("discovery: giving up, service will not be advertised")
		return
	}
	log.Info().Msg("discovery: registration succeeded after retry")
}

// TXT returns the TXT records advertised with the service.
func (s *Service) TXT() []string {
	return []string{
		"id=" + s.cfg.DeviceID(),
		"version=" + config.AppVersion,
		"base=" + s.cfg.BaseURL(),
	}
}

func (s *Service) tryRegister() error {
	all, err := s.interfaces()
	if err != nil {
		return fmt.Errorf("list network interfaces: %w", err)
	}
	ifaces := usableInterfaces(all)
	if len(ifaces) == 0 {
		return errors.New("no usable network interfaces")
	}

	names := make([]string, 0, len(ifaces))
	for _, iface := range ifaces {
		names = append(names, iface.Name)
	}

	s.mu.Lock()
	name := s.instance
	s.mu.Unlock()

	port := s.cfg.APIPort()
	server, err := s.register(name, ServiceType, "local.", port, s.TXT(), ifaces)
	if err != nil {
		return fmt.Errorf("register %s: %w", ServiceType, err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		if server != nil {
			server.Shutdown()
		}
		return backoff.Permanent(errors.New("discovery stopped"))
	}
	s.server = server
	s.mu.Unlock()

	log.Info().
		Str("instance", name).
		Int("port", port).
		Strs("interfaces", names).
		Msg("discovery: advertising service")
	return nil
}

// Stop withdraws the advertisement. It is safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.server != nil {
		s.server.Shutdown()
		s.server = nil
	}
}

func (s *Service) InstanceName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instance
}

// instanceName prefers the configured name, then the hostname, then a
// name derived from the device ID.
func (s *Service) instanceName() (string, error) {
	if name := s.cfg.DiscoveryInstanceName(); name != "" {
		return name, nil
	}

	host, err := s.hostname()
	if err == nil && host != "" {
		return host, nil
	}
	log.Warn().Err(err).Msg("discovery: no hostname, using device id")

	id := s.cfg.DeviceID()
	if len(id) >= 8 {
		return "tapdeck-" + id[:8], nil
	}
	return "tapdeck", nil
}

func usableInterfaces(ifaces []net.Interface) []net.Interface {
	out := make([]net.Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		switch {
		case iface.Flags&net.FlagUp == 0,
			iface.Flags&net.FlagLoopback != 0,
			iface.Flags&net.FlagMulticast == 0,
			isVirtual(iface.Name):
			continue
		}
		out = append(out, iface)
	}
	return out
}

func isVirtual(name string) bool {
	lower := strings.ToLower(name)
	return slices.ContainsFunc(virtualPrefixes, func(p string) bool {
		return strings.HasPrefix(lower, p)
	})
}
