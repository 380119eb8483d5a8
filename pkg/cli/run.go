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

package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/helpers"
	"github.com/tapdeck/tapdeck/pkg/service"
)

var ErrAlreadyRunning = errors.New("service is already running")

// ServiceEntry starts the service, see service.Start.
type ServiceEntry func() (stop func() error, done <-chan struct{}, err error)

// AcquireLock takes the single instance lock in dir. The returned release
// func must be called on exit.
func AcquireLock(dir string) (release func(), err error) {
	lock := flock.New(filepath.Join(dir, config.LockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("taking lock %s: %w", lock.Path(), err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			log.Warn().Err(err).Msg("releasing lock")
		}
	}, nil
}

// RunService holds the instance lock in lockDir and runs entry until ctx
// is done or the service stops by itself.
func RunService(ctx context.Context, lockDir string, entry ServiceEntry) (returnErr error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("panic recovered: %v", r)
			returnErr = fmt.Errorf("panic: %v", r)
		}
	}()

	release, err := AcquireLock(lockDir)
	if err != nil {
		return err
	}
	defer release()

	log.Info().Msg("starting service in daemon mode")
	stop, done, err := entry()
	if err != nil {
		return fmt.Errorf("error starting service: %w", err)
	}
	log.Info().Msg("started in daemon mode")

	select {
	case <-ctx.Done():
		log.Info().Msg("stop requested")
	case <-done:
		log.Info().Msg("service shut down internally")
	}
	if err := stop(); err != nil {
		return fmt.Errorf("error stopping service: %w", err)
	}
	return nil
}

// RunDaemon runs the real service with the given config.
func RunDaemon(ctx context.Context, cfg *config.Instance, paths helpers.Paths) error {
	return RunService(ctx, paths.StateDir, func() (func() error, <-chan struct{}, error) {
		return service.Start(cfg, paths, service.Options{})
	})
}
