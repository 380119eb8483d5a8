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

// Package cli holds the flags shared by the tapdeck binary and the helpers
// that talk to a running service.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/internal/telemetry"
	"github.com/tapdeck/tapdeck/pkg/api/client"
	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/helpers"
)

var ErrMissingValue = errors.New("flag requires a value")

type Flags struct {
	Daemon  *bool
	Version *bool
	Write   *string
	URL     *bool
	Copy    *bool
	Read    *bool
	Open    *string
	List    *bool
	CSV     *bool
	Export  *string
	Import  *string
	API     *string
}

// SetupFlags defines the CLI flags on fs.
func SetupFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		Daemon:  fs.Bool("daemon", false, "run the service in the foreground"),
		Version: fs.Bool("version", false, "print version and exit"),
		Write:   fs.String("write", "", "program the next presented tag with a card id"),
		URL:     fs.Bool("url", false, "with -write, store a deep link instead of the plain id"),
		Copy:    fs.Bool("copy", false, "with -write, copy the written payload to the clipboard"),
		Read:    fs.Bool("read", false, "print the payload of the next presented tag"),
		Open:    fs.String("open", "", "resolve a deep link and start playback"),
		List:    fs.Bool("list", false, "list cards"),
		CSV:     fs.Bool("csv", false, "with -list, print CSV instead of a table"),
		Export:  fs.String("export", "", "write a library backup to a file"),
		Import:  fs.String("import", "", "restore a library backup from a file"),
		API:     fs.String("api", "", "send method:params to the API and print the response"),
	}
}

func isFlagPassed(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// Pre parses args and handles flags that need no environment.
func (f *Flags) Pre(fs *flag.FlagSet, args []string, out io.Writer) (exit bool, err error) {
	if err := fs.Parse(args); err != nil {
		return true, fmt.Errorf("parsing flags: %w", err)
	}
	if *f.Version {
		_, _ = fmt.Fprintf(out, "%s v%s\n", config.AppName, config.AppVersion)
		return true, nil
	}
	for _, name := range []string{"write", "open", "export", "import", "api"} {
		if isFlagPassed(fs, name) && *lookupString(f, name) == "" {
			return true, fmt.Errorf("-%s: %w", name, ErrMissingValue)
		}
	}
	return false, nil
}

func lookupString(f *Flags, name string) *string {
	switch name {
	case "write":
		return f.Write
	case "open":
		return f.Open
	case "export":
		return f.Export
	case "import":
		return f.Import
	default:
		return f.API
	}
}

// Post runs the first client flag that was given against the running
// service. handled is false when no client flag was passed.
func (f *Flags) Post(ctx context.Context, c client.APIClient, out io.Writer) (handled bool, err error) {
	switch {
	case *f.Write != "":
		return true, writeCard(ctx, c, out, *f.Write, *f.URL, *f.Copy)
	case *f.Read:
		return true, readTag(ctx, c, out)
	case *f.Open != "":
		return true, openLink(ctx, c, out, *f.Open)
	case *f.List:
		return true, listCards(ctx, c, out, *f.CSV)
	case *f.Export != "":
		return true, exportLibrary(ctx, c, *f.Export)
	case *f.Import != "":
		return true, importLibrary(ctx, c, out, *f.Import)
	case *f.API != "":
		return true, callAPI(ctx, c, out, *f.API)
	}
	return false, nil
}

// Setup prepares directories, logging, config and error reporting.
//
//nolint:gocritic // config struct copied for immutability
func Setup(paths helpers.Paths, defaults config.Values, writers []io.Writer) (*config.Instance, error) {
	if err := paths.Ensure(); err != nil {
		return nil, fmt.Errorf("error creating directories: %w", err)
	}
	if err := helpers.InitLogging(paths.StateDir, writers); err != nil {
		return nil, fmt.Errorf("error initializing logging: %w", err)
	}

	cfg, err := config.NewConfig(paths.ConfigDir, defaults)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	cfg.SetDebugLogging(cfg.DebugLogging())

	if err := telemetry.Init(telemetry.Options{
		Enabled:    cfg.ErrorReporting(),
		DeviceID:   cfg.DeviceID(),
		AppVersion: config.AppVersion,
	}); err != nil {
		log.Warn().Err(err).Msg("failed to initialize error reporting")
	}
	return cfg, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func decodeResult[T any](raw string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, fmt.Errorf("decoding response: %w", err)
	}
	return v, nil
}
