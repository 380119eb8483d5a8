/*
Tapdeck
Copyright (c) 2026 The Tapdeck Contributors.
SPDX-License-Identifier: GPL-3.0-or-later

This file is part of Tapdeck.

Tapdeck is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Tapdeck is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Tapdeck.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package broker fans service notifications out to any number of
// consumers: WebSocket clients, MQTT publishers and in-process listeners.
package broker

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/api/models"
	"github.com/tapdeck/tapdeck/pkg/helpers/syncutil"
)

// Broker reads one source channel and copies every notification to each
// subscriber. Sends never block. A subscriber whose buffer is full misses
// the notification.
type Broker struct {
	ctx         context.Context
	source      <-chan models.Notification
	subscribers map[int]chan models.Notification
	done        chan struct{}
	mu          syncutil.RWMutex
	nextID      int
	closed      bool
}

func NewBroker(ctx context.Context, source <-chan models.Notification) *Broker {
	return &Broker{
		ctx:         ctx,
		source:      source,
		subscribers: make(map[int]chan models.Notification),
		done:        make(chan struct{}),
	}
}

// Start runs the broadcast loop until the source closes or the context
// ends, then closes every subscriber channel.
func (b *Broker) Start() {
	go func() {
		defer close(b.done)
		defer b.closeAll()
		for {
			select {
			case n, ok := <-b.source:
				if !ok {
					log.Debug().Msg("broker: source closed")
					return
				}
				b.broadcast(n)
			case <-b.ctx.Done():
				log.Debug().Msg("broker: context done")
				return
			}
		}
	}()
}

// Done is closed once the broadcast loop has exited.
func (b *Broker) Done() <-chan struct{} {
	return b.done
}

func (b *Broker) broadcast(n models.Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- n:
		default:
			log.Warn().
				Int("subscriber_id", id).
				Str("method", n.Method).
				Msg("subscriber channel full, dropping notification")
		}
	}
}

// Subscribe registers a consumer with a buffer of bufferSize. The channel
// is closed by Unsubscribe or when the broker stops.
func (b *Broker) Subscribe(bufferSize int) (ch <-chan models.Notification, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := make(chan models.Notification, bufferSize)
	if b.closed {
		close(c)
		return c, -1
	}

	id = b.nextID
	b.nextID++
	b.subscribers[id] = c
	log.Debug().Int("subscriber_id", id).Int("buffer_size", bufferSize).Msg("subscriber registered")
	return c, id
}

// Unsubscribe is safe to call more than once.
func (b *Broker) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}

func (b *Broker) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
	b.closed = true
}
