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

// Package api serves the JSON-RPC WebSocket API and the REST routes used
// for uploads, audio streaming and deep links.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"
	"github.com/olahol/melody"
	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/api/methods"
	"github.com/tapdeck/tapdeck/pkg/api/middleware"
	"github.com/tapdeck/tapdeck/pkg/api/models"
	"github.com/tapdeck/tapdeck/pkg/api/models/requests"
	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/database"
	"github.com/tapdeck/tapdeck/pkg/metrics"
	"github.com/tapdeck/tapdeck/pkg/service/state"
)

var (
	ErrParse          = models.ErrorObject{Code: -32700, Message: "Parse error"}
	ErrInvalidRequest = models.ErrorObject{Code: -32600, Message: "Invalid Request"}
	ErrMethodNotFound = models.ErrorObject{Code: -32601, Message: "Method not found"}
)

const (
	codeInvalidParams = -32602
	codeServerError   = -32000
	sessionCtxKey     = "ctx"
	sessionCancelKey  = "cancel"
	sessionBaseKey    = "base"
	shutdownTimeout   = 5 * time.Second
)

var defaultOrigins = []string{"https://*", "http://*", "capacitor://*"}

var methodMap = map[string]func(requests.RequestEnv) (any, error){
	// cards
	models.MethodCards:          methods.HandleCards,
	models.MethodCardsNew:       methods.HandleCardsNew,
	models.MethodCardsUpdate:    methods.HandleCardsUpdate,
	models.MethodCardsDelete:    methods.HandleCardsDelete,
	models.MethodCardsTracksAdd: methods.HandleCardsTracksAdd,
	// tracks
	models.MethodTracks:       methods.HandleTracks,
	models.MethodTracksDelete: methods.HandleTracksDelete,
	models.MethodUIDsMap:      methods.HandleUIDsMap,
	// scan
	models.MethodScanStart:  methods.HandleScanStart,
	models.MethodScanCancel: methods.HandleScanCancel,
	models.MethodScanStatus: methods.HandleScanStatus,
	// readers
	models.MethodReaders:          methods.HandleReaders,
	models.MethodReadersWrite:     methods.HandleReaderWrite,
	models.MethodReadersWriteStop: methods.HandleReaderWriteCancel,
	// playback
	models.MethodResolve:        methods.HandleResolve,
	models.MethodPlaybackStatus: methods.HandlePlaybackStatus,
	models.MethodPlaybackNext:   methods.HandlePlaybackNext,
	models.MethodPlaybackPrev:   methods.HandlePlaybackPrev,
	models.MethodPlaybackToggle: methods.HandlePlaybackToggle,
	models.MethodPlaybackStop:   methods.HandlePlaybackStop,
	models.MethodPlaybackSeek:   methods.HandlePlaybackSeek,
	models.MethodPlaybackVolume: methods.HandlePlaybackVolume,
	// library
	models.MethodLibraryExport: methods.HandleLibraryExport,
	models.MethodLibraryImport: methods.HandleLibraryImport,
	// settings
	models.MethodSettings:       methods.HandleSettings,
	models.MethodSettingsUpdate: methods.HandleSettingsUpdate,
	models.MethodVersion:        methods.HandleVersion,
}

// Deps are the services the API exposes.
type Deps struct {
	Config        *config.Instance
	State         *state.State
	Library       database.LibraryDBI
	Player        requests.Player
	Resolver      requests.DeepLinkResolver
	Metrics       *metrics.Metrics
	Base          *BaseAddress
	Notifications <-chan models.Notification
	Clock         clockwork.Clock
}

type server struct {
	deps    Deps
	melody  *melody.Melody
	limiter *middleware.IPRateLimiter
}

func errorObjectFor(err error) models.ErrorObject {
	if errors.Is(err, methods.ErrInvalidParams) {
		return models.ErrorObject{Code: codeInvalidParams, Message: err.Error()}
	}
	return models.ErrorObject{Code: codeServerError, Message: err.Error()}
}

// originAllowed matches origin against patterns that may contain a single
// "*" wildcard, the same form accepted by the CORS middleware.
func originAllowed(patterns []string, origin string) bool {
	origin = strings.ToLower(origin)
	for _, p := range patterns {
		p = strings.ToLower(p)
		if p == "*" || p == origin {
			return true
		}
		if before, after, ok := strings.Cut(p, "*"); ok &&
			len(origin) >= len(before)+len(after) &&
			strings.HasPrefix(origin, before) && strings.HasSuffix(origin, after) {
			return true
		}
	}
	return false
}

func writeJSON(session *melody.Session, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("error marshalling response")
		return
	}
	if err := session.Write(data); err != nil {
		log.Error().Err(err).Msg("error sending response")
	}
}

func sendError(session *melody.Session, id models.RPCID, e models.ErrorObject) {
	log.Debug().Int("code", e.Code).Str("message", e.Message).Msg("sending error")
	writeJSON(session, models.ResponseErrorObject{JSONRPC: "2.0", ID: id, Error: &e})
}

func (s *server) sessionContext(session *melody.Session) context.Context {
	if v, ok := session.Get(sessionCtxKey); ok {
		if ctx, ok := v.(context.Context); ok {
			return ctx
		}
	}
	return s.deps.State.GetContext()
}

func sessionBase(session *melody.Session) string {
	if v, ok := session.Get(sessionBaseKey); ok {
		if base, ok := v.(string); ok {
			return base
		}
	}
	return ""
}

// handleRequest runs one method call. It returns the error object to send
// when the call failed.
func (s *server) handleRequest(
	ctx context.Context,
	remoteAddr, base string,
	req models.RequestObject,
) (any, *models.ErrorObject) {
	fn, ok := methodMap[strings.ToLower(req.Method)]
	if !ok {
		e := ErrMethodNotFound
		return nil, &e
	}

	env := requests.RequestEnv{
		Context:  ctx,
		Config:   s.deps.Config,
		State:    s.deps.State,
		Library:  s.deps.Library,
		Player:   s.deps.Player,
		Resolver: s.deps.Resolver,
		Params:   req.Params,
		ID:       *req.ID,
		IsLocal:  middleware.IsLoopbackAddr(remoteAddr),
		BaseURL:  base,
	}

	resp, err := fn(env)
	if err != nil {
		log.Warn().Err(err).Str("method", req.Method).Msg("api method failed")
		e := errorObjectFor(err)
		return nil, &e
	}
	return resp, nil
}

func (s *server) handleWSMessage(session *melody.Session, msg []byte) {
	if bytes.Equal(msg, []byte("ping")) {
		if err := session.Write([]byte("pong")); err != nil {
			log.Error().Err(err).Msg("sending pong")
		}
		return
	}

	if !json.Valid(msg) {
		sendError(session, models.NullRPCID, ErrParse)
		return
	}

	var req models.RequestObject
	if err := json.Unmarshal(msg, &req); err != nil {
		sendError(session, models.NullRPCID, ErrInvalidRequest)
		return
	}
	id := models.NullRPCID
	if !req.ID.IsAbsent() {
		id = *req.ID
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		sendError(session, id, ErrInvalidRequest)
		return
	}
	if req.ID.IsAbsent() {
		log.Debug().Str("method", req.Method).Msg("ignoring client notification")
		return
	}

	// Calls such as readers.write block until a tag is presented, so each
	// request runs on its own goroutine to keep the session responsive.
	ctx := s.sessionContext(session)
	base := sessionBase(session)
	go func() {
		result, rpcErr := s.handleRequest(ctx, session.Request.RemoteAddr, base, req)
		if rpcErr != nil {
			sendError(session, id, *rpcErr)
			return
		}
		writeJSON(session, models.ResponseObject{JSONRPC: "2.0", ID: id, Result: result})
	}()
}

func (s *server) broadcast(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-s.deps.Notifications:
			if !ok {
				return
			}
			data, err := json.Marshal(models.NotificationObject{
				JSONRPC: "2.0",
				Method:  n.Method,
				Params:  n.Params,
			})
			if err != nil {
				log.Error().Err(err).Msg("marshalling notification")
				continue
			}
			if err := s.melody.Broadcast(data); err != nil && !errors.Is(err, melody.ErrClosed) {
				log.Error().Err(err).Msg("broadcasting notification")
			}
		}
	}
}

// NewRouter builds the HTTP handler and starts the notification
// broadcaster, which runs until ctx is done.
func NewRouter(ctx context.Context, deps Deps) (http.Handler, *melody.Melody) {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Base == nil {
		deps.Base = NewBaseAddress(deps.Config)
	}

	s := &server{
		deps:    deps,
		melody:  melody.New(),
		limiter: middleware.NewIPRateLimiter(deps.Clock, middleware.DefaultPerMinute, middleware.DefaultBurst),
	}
	go s.limiter.RunSweeper(ctx)

	origins := deps.Config.AllowedOrigins()
	if len(origins) == 0 {
		origins = defaultOrigins
	}
	s.melody.Upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || originAllowed(origins, origin)
	}
	s.melody.HandleConnect(func(session *melody.Session) {
		sctx, cancel := context.WithCancel(s.deps.State.GetContext())
		session.Set(sessionCtxKey, sctx)
		session.Set(sessionCancelKey, cancel)
		session.Set(sessionBaseKey, DeepLinkBase(session.Request))
	})
	s.melody.HandleDisconnect(func(session *melody.Session) {
		if v, ok := session.Get(sessionCancelKey); ok {
			if cancel, ok := v.(context.CancelFunc); ok {
				cancel()
			}
		}
	})
	s.melody.HandleMessage(middleware.WebSocketRateLimit(s.limiter, s.handleWSMessage))

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.HTTPIPFilter(middleware.NewIPFilter(deps.Config.AllowedIPs())))
	r.Use(middleware.HTTPRateLimit(s.limiter))
	r.Use(deps.Base.middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/api", func(w http.ResponseWriter, r *http.Request) {
		if err := s.melody.HandleRequest(w, r); err != nil {
			log.Error().Err(err).Msg("handling websocket request")
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(chimw.NoCache)
		r.Use(chimw.Timeout(config.APIRequestTimeout))
		r.Post("/api/tracks", s.handleUpload)
		r.Get("/api/tracks/{id}/audio", s.handleAudio)
		r.Get(PlayPath, s.handlePlay)
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	if deps.Notifications != nil {
		go s.broadcast(ctx)
	}
	return r, s.melody
}

// Start serves the API on the configured listen address until ctx is
// done.
func Start(ctx context.Context, deps Deps) error {
	handler, m := NewRouter(ctx, deps)
	srv := &http.Server{
		Addr:              deps.Config.APIListen(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting api server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		_ = m.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("stopping api server")
	if err := m.Close(); err != nil && !errors.Is(err, melody.ErrClosed) {
		log.Warn().Err(err).Msg("error closing websocket sessions")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}
