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

// Package service wires the long-running parts of Tapdeck together: the
// reader manager, the scan and write sessions, audio playback, the API and
// the notification consumers.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/tapdeck/tapdeck/pkg/api"
	"github.com/tapdeck/tapdeck/pkg/api/models"
	"github.com/tapdeck/tapdeck/pkg/api/notifications"
	"github.com/tapdeck/tapdeck/pkg/audio"
	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/database"
	"github.com/tapdeck/tapdeck/pkg/database/library"
	"github.com/tapdeck/tapdeck/pkg/helpers"
	"github.com/tapdeck/tapdeck/pkg/metrics"
	"github.com/tapdeck/tapdeck/pkg/service/broker"
	"github.com/tapdeck/tapdeck/pkg/service/discovery"
	"github.com/tapdeck/tapdeck/pkg/service/importer"
	"github.com/tapdeck/tapdeck/pkg/service/nfc"
	"github.com/tapdeck/tapdeck/pkg/service/publishers"
	"github.com/tapdeck/tapdeck/pkg/service/resolver"
	"github.com/tapdeck/tapdeck/pkg/service/scan"
	"github.com/tapdeck/tapdeck/pkg/service/state"
	"github.com/tapdeck/tapdeck/pkg/service/write"
	"golang.org/x/sync/errgroup"
)

const apiSubscriberBuffer = 100

// Options replaces parts of the running service, mostly for tests. The
// zero value runs the real drivers and sound output.
type Options struct {
	Drivers nfc.DriverFactory
	Output  audio.Output
	Fs      afero.Fs
	Clock   clockwork.Clock
	// Library is used instead of opening the library in the data dir.
	Library database.LibraryDBI
}

func (o *Options) defaults() {
	if o.Drivers == nil {
		o.Drivers = SupportedReaders
	}
	if o.Output == nil {
		o.Output = audio.NewMalgoOutput()
	}
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
}

func openLibrary(paths helpers.Paths) (database.LibraryDBI, error) {
	log.Debug().Msg("opening library database")
	db, err := library.OpenLibrary(paths.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open library database: %w", err)
	}

	log.Debug().Msg("running library database migrations")
	if err := db.MigrateUp(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error migrating library database: %w", err)
	}
	return db, nil
}

func observationParams(o scan.Observation) models.ScanObservationParams {
	p := models.ScanObservationParams{
		Time:      o.Time,
		Kind:      string(o.Kind),
		Candidate: o.Candidate,
		Payload:   o.Payload,
		CardID:    o.CardID,
		UID:       o.UID,
		Source:    o.Source,
	}
	if o.Err != nil {
		p.Error = o.Err.Error()
	}
	return p
}

// Start brings the service up and returns once every component is running.
// stop cancels the service and waits for cleanup; done is closed when the
// service has fully stopped, whichever way it was stopped.
func Start(
	cfg *config.Instance,
	paths helpers.Paths,
	opts Options,
) (stop func() error, done <-chan struct{}, err error) {
	opts.defaults()
	log.Info().Msgf("version: %s", config.AppVersion)

	bootUUID := uuid.New().String()
	log.Info().Msgf("boot session UUID: %s", bootUUID)

	if err := paths.Ensure(); err != nil {
		return nil, nil, fmt.Errorf("failed to create directories: %w", err)
	}

	db := opts.Library
	if db == nil {
		db, err = openLibrary(paths)
		if err != nil {
			log.Error().Err(err).Msg("error opening library")
			return nil, nil, err
		}
	}

	st, ns := state.NewState(bootUUID)
	notifBroker := broker.NewBroker(st.GetContext(), ns)
	notifBroker.Start()

	m := metrics.New()

	player := audio.NewController(db, opts.Output, cfg, st.Notifications)
	player.SetVolume(cfg.Volume())

	res := resolver.New(db, player, func(r resolver.Result) {
		m.Resolve(string(r))
	})

	readerManager := nfc.NewManager(cfg, st, opts.Drivers)
	base := api.NewBaseAddress(cfg)

	st.SetWriteSession(write.NewSession(readerManager, base.For, func(o write.Outcome) {
		m.WriteOutcome(string(o.Kind))
	}))

	st.SetScanSession(scan.NewSession(scan.Options{
		Scanner:  readerManager,
		Resolver: res,
		UIDs:     db,
		Clock:    opts.Clock,
		Timeout:  cfg.ScanTimeout,
		Observe: func(o scan.Observation) {
			m.Observation(string(o.Kind))
			notifications.ScanObservation(st.Notifications, observationParams(o))
		},
		OnStateChange: func(s scan.State, _ scan.Mode, reason scan.Reason) {
			if s == scan.Idle {
				m.ScanSessionEnded(string(reason))
			}
			notifications.ScanState(st.Notifications, models.ScanStateParams{
				State:  s.String(),
				Reason: string(reason),
			})
		},
	}))

	g, gctx := errgroup.WithContext(st.GetContext())

	log.Info().Msg("starting reader manager")
	g.Go(func() error {
		return readerManager.Run(gctx)
	})

	if dir := cfg.LibraryWatchDir(); dir != "" {
		log.Info().Str("dir", dir).Msg("starting library folder importer")
		im := importer.New(opts.Fs, opts.Clock, db, dir, func(database.Track) {
			notifications.LibraryChanged(st.Notifications)
		})
		g.Go(func() error {
			if err := im.Run(gctx); err != nil {
				log.Error().Err(err).Msg("library importer stopped")
			}
			return nil
		})
	}

	log.Info().Msg("starting mDNS discovery service")
	discoveryService := discovery.New(cfg)
	if discoveryErr := discoveryService.Start(); discoveryErr != nil {
		log.Error().Err(discoveryErr).Msg("mDNS discovery failed to start (continuing without discovery)")
	}

	log.Info().Msg("starting API service")
	apiNotifications, apiSubID := notifBroker.Subscribe(apiSubscriberBuffer)
	g.Go(func() error {
		defer notifBroker.Unsubscribe(apiSubID)
		return api.Start(gctx, api.Deps{
			Config:        cfg,
			State:         st,
			Library:       db,
			Player:        player,
			Resolver:      res,
			Metrics:       m,
			Base:          base,
			Notifications: apiNotifications,
			Clock:         opts.Clock,
		})
	})

	log.Info().Msg("starting publishers")
	activePublishers := publishers.StartMQTT(gctx, cfg, notifBroker)
	log.Info().Msgf("%d publishers active", len(activePublishers))

	doneCh := make(chan struct{})
	go func() {
		runErr := g.Wait()
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			log.Error().Err(runErr).Msg("service component failed, stopping")
		}
		st.StopService()
		log.Info().Msg("service context cancelled, running cleanup")

		if session := st.ScanSession(); session != nil {
			session.Cancel()
		}
		if session := st.WriteSession(); session != nil {
			session.Cancel()
		}
		player.Stop()
		discoveryService.Stop()
		for _, publisher := range activePublishers {
			publisher.Stop()
		}
		<-notifBroker.Done()
		if closeErr := db.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing library database")
		}

		log.Info().Msg("service cleanup completed")
		close(doneCh)
	}()

	stop = func() error {
		st.StopService()
		<-doneCh
		return nil
	}
	return stop, doneCh, nil
}
