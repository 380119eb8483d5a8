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

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/helpers/syncutil"
)

const PlayPath = "/play"

func firstHeader(r *http.Request, name string) string {
	v, _, _ := strings.Cut(r.Header.Get(name), ",")
	return strings.TrimSpace(v)
}

// DeepLinkBase derives the public deep-link address from a request,
// honouring the X-Forwarded headers set by reverse proxies.
func DeepLinkBase(r *http.Request) string {
	scheme := firstHeader(r, "X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
		if r.TLS != nil {
			scheme = "https"
		}
	}
	host := firstHeader(r, "X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	prefix := strings.TrimSuffix(firstHeader(r, "X-Forwarded-Prefix"), "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return scheme + "://" + host + prefix + PlayPath
}

// BaseAddress picks the deep-link base for URL tags. The configured
// base_url always wins, then the base of the requesting client, then the
// base of the most recent request.
type BaseAddress struct {
	cfg  *config.Instance
	last string
	mu   syncutil.RWMutex
}

func NewBaseAddress(cfg *config.Instance) *BaseAddress {
	return &BaseAddress{cfg: cfg}
}

func (b *BaseAddress) Observe(r *http.Request) {
	base := DeepLinkBase(r)
	b.mu.Lock()
	b.last = base
	b.mu.Unlock()
}

// Get returns the base address when no client base is known.
func (b *BaseAddress) Get() string {
	return b.For("")
}

// For returns the base address for a write requested by a client whose
// deep-link base is requested.
func (b *BaseAddress) For(requested string) string {
	if override := b.cfg.BaseURL(); override != "" {
		return override
	}
	if requested != "" {
		return requested
	}
	b.mu.RLock()
	last := b.last
	b.mu.RUnlock()
	if last != "" {
		return last
	}
	return "http://localhost:" + strconv.Itoa(b.cfg.APIPort()) + PlayPath
}

func (b *BaseAddress) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.Observe(r)
		next.ServeHTTP(w, r)
	})
}
