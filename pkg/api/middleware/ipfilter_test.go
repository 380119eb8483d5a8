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

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIPFilter_IsAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		addr    string
		allowed []string
		want    bool
	}{
		{name: "empty allows all", addr: "8.8.8.8:1", want: true},
		{name: "exact match", allowed: []string{"192.168.1.10"}, addr: "192.168.1.10:4000", want: true},
		{name: "exact miss", allowed: []string{"192.168.1.10"}, addr: "192.168.1.11:4000", want: false},
		{name: "cidr", allowed: []string{"10.0.0.0/8"}, addr: "10.20.30.40:1", want: true},
		{name: "entry with port", allowed: []string{"192.168.1.10:7580"}, addr: "192.168.1.10:1", want: true},
		{name: "ipv6 loopback", allowed: []string{"::1"}, addr: "[::1]:1", want: true},
		{name: "v4 mapped", allowed: []string{"127.0.0.1"}, addr: "[::ffff:127.0.0.1]:1", want: true},
		{name: "unparseable remote", allowed: []string{"10.0.0.0/8"}, addr: "garbage", want: false},
		{name: "only invalid entries", allowed: []string{"nope"}, addr: "1.2.3.4:1", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NewIPFilter(tt.allowed).IsAllowed(tt.addr))
		})
	}
}

func TestHTTPIPFilter(t *testing.T) {
	t.Parallel()
	h := HTTPIPFilter(NewIPFilter([]string{"127.0.0.1"}))(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
	)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = "192.168.0.2:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req.RemoteAddr = "127.0.0.1:1234"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	assert.True(t, IsLoopbackAddr("127.0.0.1:80"))
	assert.True(t, IsLoopbackAddr("[::1]:80"))
	assert.False(t, IsLoopbackAddr("192.168.1.1:80"))
	assert.False(t, IsLoopbackAddr(""))
}
