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
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/api/notifications"
	"github.com/tapdeck/tapdeck/pkg/database"
	"github.com/tapdeck/tapdeck/pkg/service/resolver"
)

const (
	MaxUploadSize   = 200 << 20
	uploadMemory    = 32 << 20
	uploadFieldFile = "file"
	uploadFieldName = "name"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("error writing json response")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// handleUpload adds an audio track from a multipart form with a "file"
// part and an optional "name" field.
func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		respondError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	f, header, err := r.FormFile(uploadFieldFile)
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		respondError(w, http.StatusBadRequest, "error reading upload")
		return
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "audio/") {
		respondError(w, http.StatusUnsupportedMediaType, "not an audio file: "+mt.String())
		return
	}

	name := strings.TrimSpace(r.FormValue(uploadFieldName))
	if name == "" {
		base := filepath.Base(header.Filename)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	track := database.Track{
		Name: name,
		Type: mt.String(),
		Size: int64(len(data)),
	}
	if err := s.deps.Library.AddTrack(r.Context(), &track, data); err != nil {
		log.Error().Err(err).Msg("error storing uploaded track")
		respondError(w, http.StatusInternalServerError, "error storing track")
		return
	}

	log.Info().Str("id", track.ID).Str("name", track.Name).Msg("uploaded track")
	notifications.LibraryChanged(s.deps.State.Notifications)
	respondJSON(w, http.StatusCreated, track)
}

func (s *server) handleAudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	track, err := s.deps.Library.GetTrack(r.Context(), id)
	if errors.Is(err, database.ErrTrackNotFound) {
		respondError(w, http.StatusNotFound, "track not found")
		return
	} else if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	data, err := s.deps.Library.GetTrackData(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if track.Type != "" {
		w.Header().Set("Content-Type", track.Type)
	}
	modified := time.UnixMilli(track.Created)
	http.ServeContent(w, r, track.Name, modified, bytes.NewReader(data))
}

// handlePlay is the deep-link entry: the same URL that is written to tags.
func (s *server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if !r.URL.Query().Has("card") {
		respondError(w, http.StatusBadRequest, "missing card parameter")
		return
	}
	link := DeepLinkBase(r)
	if r.URL.RawQuery != "" {
		link += "?" + r.URL.RawQuery
	}

	card, err := s.deps.Resolver.ResolveDeepLink(s.deps.State.GetContext(), link)
	switch {
	case errors.Is(err, resolver.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case err != nil:
		log.Error().Err(err).Str("link", link).Msg("deep link failed")
		respondError(w, http.StatusInternalServerError, err.Error())
	default:
		respondJSON(w, http.StatusOK, card)
	}
}
