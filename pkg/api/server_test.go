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
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tapdeck/tapdeck/pkg/api/models"
	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/database"
	"github.com/tapdeck/tapdeck/pkg/metrics"
	"github.com/tapdeck/tapdeck/pkg/readers"
	"github.com/tapdeck/tapdeck/pkg/service/resolver"
	"github.com/tapdeck/tapdeck/pkg/service/state"
	"github.com/tapdeck/tapdeck/pkg/service/write"
	"github.com/tapdeck/tapdeck/pkg/testing/helpers"
	"github.com/tapdeck/tapdeck/pkg/testing/mocks"
)

var wavHeader = []byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00\x01\x00\x01\x00" +
	"\x80\xbb\x00\x00\x00\x77\x01\x00\x02\x00\x10\x00data\x00\x00\x00\x00")

type fixture struct {
	srv     *httptest.Server
	lib     *mocks.MockLibrary
	player  *mocks.MockPlayer
	st      *state.State
	notify  chan models.Notification
	base    *BaseAddress
	cfg     *config.Instance
	deepRaw atomic.Value
}

type recordingResolver struct {
	f *fixture
}

func (r recordingResolver) ResolveDeepLink(_ context.Context, raw string) (database.Card, error) {
	r.f.deepRaw.Store(raw)
	if strings.Contains(raw, "card=missing") {
		return database.Card{}, resolver.ErrNotFound
	}
	return database.Card{ID: "c1", Name: "Dinosaurs"}, nil
}

func newFixture(t *testing.T, opts ...func(*config.Values)) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	st, _ := state.NewState("boot")
	t.Cleanup(st.StopService)

	f := &fixture{
		lib:    mocks.NewMockLibrary(),
		player: mocks.NewMockPlayer(),
		st:     st,
		notify: make(chan models.Notification, 4),
		cfg:    helpers.NewTestConfig(t, opts...),
	}
	f.base = NewBaseAddress(f.cfg)

	handler, m := NewRouter(ctx, Deps{
		Config:        f.cfg,
		State:         st,
		Library:       f.lib,
		Player:        f.player,
		Resolver:      recordingResolver{f: f},
		Metrics:       metrics.New(),
		Base:          f.base,
		Notifications: f.notify,
	})
	f.srv = httptest.NewServer(handler)
	t.Cleanup(func() {
		_ = m.Close()
		f.srv.Close()
	})
	return f
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	return f.dialWith(t, nil)
}

func (f *fixture) dialWith(t *testing.T, header http.Header) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api"
	conn, resp, err := websocket.DefaultDialer.Dial(u, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(msg, &out))
	return out
}

func TestWebSocket_PingPong(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(msg))
}

func TestWebSocket_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		msg      string
		wantID   string
		wantCode int
	}{
		{name: "parse error", msg: `{nope`, wantCode: -32700, wantID: "null"},
		{name: "wrong version", msg: `{"jsonrpc":"1.0","id":7,"method":"version"}`, wantCode: -32600, wantID: "7"},
		{name: "unknown method", msg: `{"jsonrpc":"2.0","id":"a","method":"launch"}`, wantCode: -32601, wantID: `"a"`},
		{
			name:     "invalid params",
			msg:      `{"jsonrpc":"2.0","id":3,"method":"playback.volume","params":{"volume":9}}`,
			wantCode: -32602,
			wantID:   "3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			conn := f.dial(t)

			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.msg)))
			resp := readJSON(t, conn)

			var e models.ErrorObject
			require.NoError(t, json.Unmarshal(resp["error"], &e))
			assert.Equal(t, tt.wantCode, e.Code)
			assert.JSONEq(t, tt.wantID, string(resp["id"]))
			_, hasResult := resp["result"]
			assert.False(t, hasResult)
		})
	}
}

func TestWebSocket_CallEchoesID(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.lib.On("ListCards", mock.Anything).Return([]database.Card{{ID: "c1", Name: "Dinosaurs"}}, nil)
	conn := f.dial(t)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"jsonrpc": "2.0", "id": 42, "method": "cards",
	}))
	resp := readJSON(t, conn)

	assert.JSONEq(t, "42", string(resp["id"]))
	var cards models.CardsResponse
	require.NoError(t, json.Unmarshal(resp["result"], &cards))
	require.Len(t, cards.Cards, 1)
	assert.Equal(t, "Dinosaurs", cards.Cards[0].Name)
}

func TestWebSocket_BroadcastsNotifications(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	conn := f.dial(t)

	// Wait until the session is registered before broadcasting.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)

	f.notify <- models.Notification{
		Method: models.NotificationPlaybackStarted,
		Params: json.RawMessage(`{"cardId":"c1"}`),
	}

	msg := readJSON(t, conn)
	assert.JSONEq(t, `"playback.started"`, string(msg["method"]))
	assert.JSONEq(t, `{"cardId":"c1"}`, string(msg["params"]))
	_, hasID := msg["id"]
	assert.False(t, hasID)
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(v *config.Values) {
		v.Service.AllowedOrigins = []string{"https://app.example"}
	})
	u := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api"

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(u, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDeepLinkBase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		headers map[string]string
		tls     bool
		name    string
		want    string
	}{
		{name: "plain host", want: "http://tapdeck.local:7580/play"},
		{name: "tls", tls: true, want: "https://tapdeck.local:7580/play"},
		{
			name: "proxied",
			headers: map[string]string{
				"X-Forwarded-Proto":  "https, http",
				"X-Forwarded-Host":   "music.example.com",
				"X-Forwarded-Prefix": "/tapdeck/",
			},
			want: "https://music.example.com/tapdeck/play",
		},
		{
			name:    "prefix without slash",
			headers: map[string]string{"X-Forwarded-Prefix": "kids"},
			want:    "http://tapdeck.local:7580/kids/play",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "http://tapdeck.local:7580/api", http.NoBody)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if tt.tls {
				r.TLS = &tls.ConnectionState{}
			}
			assert.Equal(t, tt.want, DeepLinkBase(r))
		})
	}
}

func TestBaseAddress(t *testing.T) {
	t.Parallel()
	cfg := helpers.NewTestConfig(t)
	b := NewBaseAddress(cfg)

	assert.Equal(t, "http://localhost:7580/play", b.Get())

	b.Observe(httptest.NewRequest(http.MethodGet, "http://den-pi:7580/api", http.NoBody))
	assert.Equal(t, "http://den-pi:7580/play", b.Get())

	assert.Equal(t, "http://phone.lan/play", b.For("http://phone.lan/play"))

	cfg.SetBaseURL("https://tags.example/play")
	assert.Equal(t, "https://tags.example/play", b.Get())
	assert.Equal(t, "https://tags.example/play", b.For("http://phone.lan/play"))
}

func TestOriginAllowed(t *testing.T) {
	t.Parallel()
	assert.True(t, originAllowed(defaultOrigins, "http://192.168.1.5:8080"))
	assert.True(t, originAllowed(defaultOrigins, "capacitor://localhost"))
	assert.False(t, originAllowed(defaultOrigins, "file://"))
	assert.True(t, originAllowed([]string{"https://*.example.com"}, "https://app.example.com"))
	assert.False(t, originAllowed([]string{"https://*.example.com"}, "https://example.org"))
}

func upload(t *testing.T, f *fixture, filename string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		f.srv.URL+"/api/tracks", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestUpload(t *testing.T) {
	t.Parallel()

	t.Run("audio is stored", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.lib.On("AddTrack", mock.Anything, mock.MatchedBy(func(tr *database.Track) bool {
			return tr.Name == "Lullaby" && strings.HasPrefix(tr.Type, "audio/")
		}), wavHeader).Run(func(args mock.Arguments) {
			args.Get(1).(*database.Track).ID = "track-9"
		}).Return(nil)

		resp := upload(t, f, "Lullaby.wav", wavHeader)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var tr database.Track
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&tr))
		assert.Equal(t, "track-9", tr.ID)
	})

	t.Run("non audio is rejected", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		resp := upload(t, f, "notes.txt", []byte("hello there"))
		assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
		f.lib.AssertNotCalled(t, "AddTrack", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAudio(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.lib.On("GetTrack", mock.Anything, "t1").Return(database.Track{
		ID: "t1", Name: "Lullaby", Type: "audio/wav",
	}, nil)
	f.lib.On("GetTrackData", mock.Anything, "t1").Return(wavHeader, nil)
	f.lib.On("GetTrack", mock.Anything, "nope").Return(database.Track{}, database.ErrTrackNotFound)

	resp, err := http.Get(f.srv.URL + "/api/tracks/t1/audio") //nolint:noctx // test
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, wavHeader, body)

	missing, err := http.Get(f.srv.URL + "/api/tracks/nope/audio") //nolint:noctx // test
	require.NoError(t, err)
	_ = missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestPlay(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	get := func(path string) int {
		resp, err := http.Get(f.srv.URL + path) //nolint:noctx // test
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, get("/play?card=c1"))
	assert.True(t, strings.HasSuffix(f.deepRaw.Load().(string), "/play?card=c1"))
	assert.Equal(t, http.StatusNotFound, get("/play?card=missing"))
	assert.Equal(t, http.StatusBadRequest, get("/play"))
}

func TestMetricsRoute(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	resp, err := http.Get(f.srv.URL + "/metrics") //nolint:noctx // test
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}

type recordingWriter struct {
	payloads []string
	mu       sync.Mutex
}

func (w *recordingWriter) Write(_ context.Context, req readers.WriteRequest) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.payloads = append(w.payloads, req.Payload)
	return nil
}

func (*recordingWriter) CancelWrite() {}

func TestWebSocket_WriteUsesClientBase(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.st.SetWriteSession(write.NewSession(&recordingWriter{}, f.base.For, nil))

	phone := f.dialWith(t, http.Header{"X-Forwarded-Host": {"phone.lan:7497"}})
	desk := f.dialWith(t, http.Header{"X-Forwarded-Host": {"desk.lan:7497"}})

	resp, err := http.Get(f.srv.URL + "/metrics") //nolint:noctx // test
	require.NoError(t, err)
	_ = resp.Body.Close()

	writeTag := func(conn *websocket.Conn, cardID string) models.WriteResponse {
		t.Helper()
		require.NoError(t, conn.WriteJSON(map[string]any{
			"jsonrpc": "2.0", "id": 1, "method": models.MethodReadersWrite,
			"params": map[string]string{"cardId": cardID, "dialect": "url"},
		}))
		msg := readJSON(t, conn)
		var out models.WriteResponse
		require.NoError(t, json.Unmarshal(msg["result"], &out))
		return out
	}

	assert.Equal(t, "http://phone.lan:7497/play?card=c1", writeTag(phone, "c1").Payload)
	assert.Equal(t, "http://desk.lan:7497/play?card=c2", writeTag(desk, "c2").Payload)
	assert.True(t, strings.HasPrefix(f.base.Get(), "http://127.0.0.1:"))
}
