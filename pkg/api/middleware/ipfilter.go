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
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/rs/zerolog/log"
)

// ParseRemoteIP returns the address part of a host:port string, or nil.
func ParseRemoteIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return net.ParseIP(host)
}

func IsLoopbackAddr(remoteAddr string) bool {
	ip := ParseRemoteIP(remoteAddr)
	return ip != nil && ip.IsLoopback()
}

// IPFilter is an allowlist of addresses and prefixes. An empty list allows
// everyone.
type IPFilter struct {
	prefixes   []netip.Prefix
	configured bool
}

// NewIPFilter accepts plain addresses, CIDR prefixes and addresses pasted
// with a port. Invalid entries are logged and ignored.
func NewIPFilter(allowed []string) *IPFilter {
	f := &IPFilter{configured: len(allowed) > 0}
	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		if host, _, err := net.SplitHostPort(entry); err == nil {
			entry = host
		}

		if p, err := netip.ParsePrefix(entry); err == nil {
			f.prefixes = append(f.prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(entry); err == nil {
			a = a.Unmap()
			f.prefixes = append(f.prefixes, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		log.Warn().Str("entry", entry).Msg("ignoring invalid allowed_ips entry")
	}
	return f
}

func (f *IPFilter) Empty() bool {
	return !f.configured
}

func (f *IPFilter) IsAllowed(remoteAddr string) bool {
	if f.Empty() {
		return true
	}
	ip := ParseRemoteIP(remoteAddr)
	if ip == nil {
		return false
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return false
	}
	addr = addr.Unmap()
	for _, p := range f.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func HTTPIPFilter(f *IPFilter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !f.IsAllowed(r.RemoteAddr) {
				log.Debug().Str("addr", r.RemoteAddr).Str("path", r.URL.Path).Msg("blocked request")
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
