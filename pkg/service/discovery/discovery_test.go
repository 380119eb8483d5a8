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

package discovery

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/helpers/syncutil"
	"github.com/tapdeck/tapdeck/pkg/testing/helpers"
)

var upMulticast = net.FlagUp | net.FlagMulticast

type registerCall struct {
	instance string
	service  string
	text     []string
	ifaces   []string
	port     int
}

type fakeRegistrar struct {
	err   error
	calls []registerCall
	mu    syncutil.Mutex
}

func (f *fakeRegistrar) register(
	instance, service, _ string,
	port int,
	text []string,
	ifaces []net.Interface,
) (*zeroconf.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(ifaces))
	for _, i := range ifaces {
		names = append(names, i.Name)
	}
	f.calls = append(f.calls, registerCall{
		instance: instance, service: service, port: port, text: text, ifaces: names,
	})
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

func (f *fakeRegistrar) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestService(t *testing.T, reg *fakeRegistrar, opts ...func(*config.Values)) *Service {
	t.Helper()
	s := New(helpers.NewTestConfig(t, opts...))
	s.register = reg.register
	s.interfaces = func() ([]net.Interface, error) {
		return []net.Interface{
			{Name: "eth0", Flags: upMulticast},
			{Name: "lo", Flags: upMulticast | net.FlagLoopback},
		}, nil
	}
	s.hostname = func() (string, error) { return "den-pi", nil }
	return s
}

func TestUsableInterfaces(t *testing.T) {
	t.Parallel()

	in := []net.Interface{
		{Name: "eth0", Flags: upMulticast},
		{Name: "wlan0", Flags: upMulticast},
		{Name: "lo", Flags: upMulticast | net.FlagLoopback},
		{Name: "eth1", Flags: net.FlagMulticast},
		{Name: "ppp0", Flags: net.FlagUp},
		{Name: "docker0", Flags: upMulticast},
		{Name: "veth12ab", Flags: upMulticast},
		{Name: "Tailscale0", Flags: upMulticast},
	}

	var names []string
	for _, i := range usableInterfaces(in) {
		names = append(names, i.Name)
	}
	assert.Equal(t, []string{"eth0", "wlan0"}, names)
}

func TestStart_Registers(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistrar{}
	s := newTestService(t, reg, func(v *config.Values) {
		v.Service.DeviceID = "0123456789abcdef"
		v.Service.BaseURL = "http://den-pi.local:7580"
	})

	require.NoError(t, s.Start())
	require.Equal(t, 1, reg.count())

	call := reg.calls[0]
	assert.Equal(t, "den-pi", call.instance)
	assert.Equal(t, ServiceType, call.service)
	assert.Equal(t, config.DefaultAPIPort, call.port)
	assert.Equal(t, []string{"eth0"}, call.ifaces)
	assert.Contains(t, call.text, "id=0123456789abcdef")
	assert.Contains(t, call.text, "base=http://den-pi.local:7580")
	assert.Contains(t, call.text, "version="+config.AppVersion)

	s.Stop()
	s.Stop()
}

func TestStart_Disabled(t *testing.T) {
	t.Parallel()

	disabled := false
	reg := &fakeRegistrar{}
	s := newTestService(t, reg, func(v *config.Values) {
		v.Service.Discovery.Enabled = &disabled
	})

	require.NoError(t, s.Start())
	assert.Zero(t, reg.count())
	assert.Empty(t, s.InstanceName())
}

func TestInstanceName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		hostErr  error
		name     string
		cfgName  string
		deviceID string
		host     string
		want     string
	}{
		{name: "configured", cfgName: "Living Room", host: "den-pi", want: "Living Room"},
		{name: "hostname", host: "den-pi", want: "den-pi"},
		{name: "device id", hostErr: errors.New("no host"), deviceID: "abcdef0123", want: "tapdeck-abcdef01"},
		{name: "fallback", hostErr: errors.New("no host"), want: "tapdeck"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestService(t, &fakeRegistrar{}, func(v *config.Values) {
				v.Service.Discovery.InstanceName = tt.cfgName
				v.Service.DeviceID = tt.deviceID
			})
			s.hostname = func() (string, error) { return tt.host, tt.hostErr }

			got, err := s.instanceName()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStart_RetriesInBackground(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistrar{err: errors.New("network down")}
	s := newTestService(t, reg)

	require.NoError(t, s.Start())
	assert.Equal(t, 1, reg.count())

	reg.mu.Lock()
	reg.err = nil
	reg.mu.Unlock()

	require.Eventually(t, func() bool {
		return reg.count() >= 2
	}, 10*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestStop_BeforeStart(t *testing.T) {
	t.Parallel()

	s := New(nil)
	s.Stop()
	s.Stop()
	assert.Nil(t, s.server)
}
