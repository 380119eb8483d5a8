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

// Package telemetry sends error level log events to Sentry when the user
// has opted in.
package telemetry

import (
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	sentryzerolog "github.com/getsentry/sentry-go/zerolog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/helpers"
)

// DSNEnv overrides the report destination.
const DSNEnv = "TAPDECK_SENTRY_DSN"

const flushTimeout = 2 * time.Second

var (
	mu           sync.Mutex
	enabled      bool
	sentryWriter *sentryzerolog.Writer

	userPathRes = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`(?i)/home/[^/]+/`), "/home/<user>/"},
		{regexp.MustCompile(`(?i)/Users/[^/]+/`), "/Users/<user>/"},
		{regexp.MustCompile(`(?i)[a-z]:\\Users\\[^\\]+\\`), `C:\Users\<user>\`},
	}
	// Deep links carry card ids, which are user data.
	cardFragmentRe = regexp.MustCompile(`([#?&]card=)[^&#\s"]*`)
)

// Options configures Init.
type Options struct {
	DeviceID   string
	AppVersion string
	DSN        string
	Enabled    bool
}

// Init installs the Sentry writer next to the regular log writer. It is a
// no-op when reporting is disabled or no DSN is available.
func Init(opts Options) error {
	if !opts.Enabled {
		log.Debug().Msg("error reporting disabled")
		return nil
	}
	dsn := opts.DSN
	if v := os.Getenv(DSNEnv); v != "" {
		dsn = v
	}
	if dsn == "" {
		log.Warn().Msg("error reporting enabled but no DSN configured")
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          "tapdeck@" + opts.AppVersion,
		Environment:      runtime.GOOS,
		AttachStacktrace: true,
		SendDefaultPII:   false,
		MaxBreadcrumbs:   0,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return scrubEvent(event)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{ID: opts.DeviceID})
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
	})

	w, err := sentryzerolog.NewWithHub(sentry.CurrentHub(), sentryzerolog.Options{
		Levels:       []zerolog.Level{zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel},
		FlushTimeout: flushTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create sentry zerolog writer: %w", err)
	}

	mu.Lock()
	sentryWriter = w
	enabled = true
	mu.Unlock()

	log.Logger = log.Output(zerolog.MultiLevelWriter(helpers.LogWriter(), w)).
		With().Timestamp().Caller().Logger()
	log.Info().Msg("error reporting enabled")
	return nil
}

// Close flushes pending events. Safe to call when reporting is off and
// more than once.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return
	}
	_ = sentryWriter.Close()
	sentry.Flush(flushTimeout)
	enabled = false
}

func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

func scrubEvent(event *sentry.Event) *sentry.Event {
	event.ServerName = ""
	event.Message = scrub(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = scrub(event.Exception[i].Value)
		if st := event.Exception[i].Stacktrace; st != nil {
			for j := range st.Frames {
				st.Frames[j].AbsPath = scrub(st.Frames[j].AbsPath)
				st.Frames[j].Filename = scrub(st.Frames[j].Filename)
			}
		}
	}
	for k, v := range event.Extra {
		if s, ok := v.(string); ok {
			event.Extra[k] = scrub(s)
		}
	}
	return event
}

// scrub removes user names from paths and card ids from deep links.
func scrub(s string) string {
	if s == "" {
		return s
	}
	for _, p := range userPathRes {
		s = p.re.ReplaceAllString(s, p.repl)
	}
	if strings.Contains(s, "card=") {
		s = cardFragmentRe.ReplaceAllString(s, "${1}<card>")
	}
	return s
}
