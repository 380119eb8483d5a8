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

// Package client talks to a running service over the WebSocket API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/api/models"
	"github.com/tapdeck/tapdeck/pkg/config"
)

var (
	ErrRequestTimeout   = errors.New("request timed out")
	ErrInvalidParams    = errors.New("invalid params")
	ErrRequestCancelled = errors.New("request cancelled")
	ErrConnectionClosed = errors.New("connection closed before a reply")
)

const APIPath = "/api"

// RPCError is an error object returned by the service.
type RPCError struct {
	Message string
	Code    int
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

type Client struct {
	dialer  *websocket.Dialer
	url     string
	timeout time.Duration
}

// New returns a client for the API at wsURL. A zero timeout waits until
// ctx is done.
func New(wsURL string, timeout time.Duration) *Client {
	return &Client{
		url:     wsURL,
		timeout: timeout,
		dialer:  websocket.DefaultDialer,
	}
}

// LocalURL is the WebSocket address of the service on this machine.
func LocalURL(cfg *config.Instance) string {
	u := url.URL{
		Scheme: "ws",
		Host:   "localhost:" + strconv.Itoa(cfg.APIPort()),
		Path:   APIPath,
	}
	return u.String()
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}
	return conn, nil
}

// await reads frames until match accepts one, the timeout elapses or ctx
// is done. The connection is closed on return.
func (c *Client) await(
	ctx context.Context,
	conn *websocket.Conn,
	match func([]byte) bool,
) ([]byte, error) {
	found := make(chan []byte, 1)
	go func() {
		defer close(found)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Msg("api client: read ended")
				return
			}
			if match(msg) {
				found <- msg
				return
			}
		}
	}()
	defer func() {
		if err := conn.Close(); err != nil {
			log.Debug().Err(err).Msg("api client: error closing websocket")
		}
	}()

	var timeout <-chan time.Time
	if c.timeout > 0 {
		t := time.NewTimer(c.timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case msg, ok := <-found:
		if !ok {
			return nil, ErrConnectionClosed
		}
		return msg, nil
	case <-timeout:
		return nil, ErrRequestTimeout
	case <-ctx.Done():
		return nil, ErrRequestCancelled
	}
}

// Call invokes method and returns the raw result. params may be nil.
func (c *Client) Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	if len(params) > 0 && !json.Valid(params) {
		return nil, ErrInvalidParams
	}

	id := models.NewStringID(uuid.NewString())
	req := models.RequestObject{
		JSONRPC: "2.0",
		ID:      &id,
		Method:  method,
		Params:  params,
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(req); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	raw, err := c.await(ctx, conn, func(msg []byte) bool {
		var m struct {
			ID      models.RPCID `json:"id"`
			JSONRPC string       `json:"jsonrpc"`
		}
		if json.Unmarshal(msg, &m) != nil || m.JSONRPC != "2.0" {
			return false
		}
		return m.ID.String() == id.String()
	})
	if err != nil {
		return nil, err
	}

	var body struct {
		Error  *models.ErrorObject `json:"error"`
		Result json.RawMessage     `json:"result"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if body.Error != nil {
		return nil, &RPCError{Code: body.Error.Code, Message: body.Error.Message}
	}
	return body.Result, nil
}

// WaitNotification returns the params of the next notification named
// method.
func (c *Client) WaitNotification(ctx context.Context, method string) (json.RawMessage, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := c.await(ctx, conn, func(msg []byte) bool {
		var m models.RequestObject
		if json.Unmarshal(msg, &m) != nil || m.JSONRPC != "2.0" {
			return false
		}
		return m.ID == nil && m.Method == method
	})
	if err != nil {
		return nil, err
	}

	var n models.NotificationObject
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("failed to decode notification: %w", err)
	}
	return n.Params, nil
}

// LocalClient sends one request to the service on this machine and returns
// the result as a JSON string.
func LocalClient(ctx context.Context, cfg *config.Instance, method, params string) (string, error) {
	c := New(LocalURL(cfg), config.APIRequestTimeout)
	var p json.RawMessage
	if params != "" {
		p = json.RawMessage(params)
	}
	res, err := c.Call(ctx, method, p)
	if err != nil {
		return "", err
	}
	return string(res), nil
}

// WaitNotification waits on the local service. A zero timeout uses the
// default request timeout and a negative one waits until ctx is done.
func WaitNotification(
	ctx context.Context,
	timeout time.Duration,
	cfg *config.Instance,
	method string,
) (string, error) {
	switch {
	case timeout == 0:
		timeout = config.APIRequestTimeout
	case timeout < 0:
		timeout = 0
	}
	res, err := New(LocalURL(cfg), timeout).WaitNotification(ctx, method)
	if err != nil {
		return "", err
	}
	return string(res), nil
}
