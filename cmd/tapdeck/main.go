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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/internal/telemetry"
	"github.com/tapdeck/tapdeck/pkg/api/client"
	"github.com/tapdeck/tapdeck/pkg/cli"
	"github.com/tapdeck/tapdeck/pkg/config"
	"github.com/tapdeck/tapdeck/pkg/helpers"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet(config.AppName, flag.ContinueOnError)
	flags := cli.SetupFlags(fs)

	exit, err := flags.Pre(fs, os.Args[1:], os.Stdout)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if exit {
		return nil
	}

	var logWriters []io.Writer
	if *flags.Daemon {
		logWriters = []io.Writer{helpers.ConsoleWriter()}
	}

	paths := helpers.DefaultPaths()
	cfg, err := cli.Setup(paths, config.BaseDefaults, logWriters)
	if err != nil {
		return err
	}
	defer telemetry.Close()

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	if *flags.Daemon {
		return cli.RunDaemon(ctx, cfg, paths)
	}

	handled, err := flags.Post(ctx, client.NewLocalAPIClient(cfg), os.Stdout)
	if err != nil {
		log.Error().Err(err).Msg("command failed")
		return err
	}
	if !handled {
		fs.Usage()
	}
	return nil
}
