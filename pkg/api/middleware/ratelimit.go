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

// Package middleware holds the HTTP and WebSocket guards shared by the API
// routes.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/olahol/melody"
	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/api/models"
	"github.com/tapdeck/tapdeck/pkg/helpers/syncutil"
	"golang.org/x/time/rate"
)

const (
	DefaultPerMinute = 120
	DefaultBurst     = 30
	idleExpiry       = 10 * time.Minute
	sweepInterval    = 5 * time.Minute
)

// RateLimitErrorCode is the JSON-RPC server error code sent to clients
// that exceed their budget.
const RateLimitErrorCode = -32029

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client address.
type IPRateLimiter struct {
	clock    clockwork.Clock
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	mu       syncutil.Mutex
}

func NewIPRateLimiter(clock clockwork.Clock, perMinute, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		clock:    clock,
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
	}
}

// Allow spends one token from the bucket of ip.
func (rl *IPRateLimiter) Allow(ip string) bool {
	now := rl.clock.Now()

	rl.mu.Lock()
	e, ok := rl.limiters[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[ip] = e
	}
	e.lastSeen = now
	lim := e.limiter
	rl.mu.Unlock()

	return lim.AllowN(now, 1)
}

// Sweep forgets addresses idle for longer than the expiry.
func (rl *IPRateLimiter) Sweep() int {
	now := rl.clock.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for ip, e := range rl.limiters {
		if now.Sub(e.lastSeen) > idleExpiry {
			delete(rl.limiters, ip)
			removed++
		}
	}
	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("swept idle rate limiters")
	}
	return removed
}

func (rl *IPRateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// RunSweeper sweeps periodically until ctx is done.
func (rl *IPRateLimiter) RunSweeper(ctx context.Context) {
	ticker := rl.clock.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			rl.Sweep()
		}
	}
}

func HTTPRateLimit(rl *IPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := ParseRemoteIP(r.RemoteAddr).String()
			if !rl.Allow(host) {
				log.Warn().Str("ip", host).Str("path", r.URL.Path).Msg("http rate limit exceeded")
				w.Header().Set("Retry-After", "1")
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WebSocketRateLimit drops messages over budget and answers them with a
// JSON-RPC error that carries a null id.
func WebSocketRateLimit(
	rl *IPRateLimiter,
	handler func(*melody.Session, []byte),
) func(*melody.Session, []byte) {
	limited, _ := json.Marshal(models.ResponseErrorObject{ //nolint:errchkjson // static value
		JSONRPC: "2.0",
		ID:      models.NullRPCID,
		Error: &models.ErrorObject{
			Code:    RateLimitErrorCode,
			Message: "rate limit exceeded",
		},
	})

	return func(session *melody.Session, msg []byte) {
		host := ParseRemoteIP(session.Request.RemoteAddr).String()
		if !rl.Allow(host) {
			log.Warn().Str("ip", host).Int("size", len(msg)).Msg("websocket rate limit exceeded")
			if err := session.Write(limited); err != nil {
				log.Error().Err(err).Msg("failed to send rate limit error")
			}
			return
		}
		handler(session, msg)
	}
}
