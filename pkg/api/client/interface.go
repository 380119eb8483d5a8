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

package client

import (
	"context"
	"time"

	"github.com/tapdeck/tapdeck/pkg/config"
)

// APIClient is what the CLI needs from a running service.
type APIClient interface {
	Call(ctx context.Context, method, params string) (string, error)
	WaitNotification(ctx context.Context, timeout time.Duration, method string) (string, error)
}

type LocalAPIClient struct {
	cfg *config.Instance
}

func NewLocalAPIClient(cfg *config.Instance) *LocalAPIClient {
	return &LocalAPIClient{cfg: cfg}
}

func (c *LocalAPIClient) Call(ctx context.Context, method, params string) (string, error) {
	return LocalClient(ctx, c.cfg, method, params)
}

func (c *LocalAPIClient) WaitNotification(ctx context.Context, timeout time.Duration, method string) (string, error) {
	return WaitNotification(ctx, timeout, c.cfg, method)
}
