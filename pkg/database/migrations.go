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

package database

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/helpers/syncutil"
)

var migrationMutex syncutil.Mutex

// gooseLogger sends goose output to zerolog.
type gooseLogger struct{}

func (*gooseLogger) Printf(format string, v ...any) {
	log.Debug().Msgf(strings.TrimSuffix(format, "\n"), v...)
}

func (*gooseLogger) Fatalf(format string, v ...any) {
	log.Error().Msgf(format, v...)
}

// MigrateUp applies every pending migration in dir of files. goose keeps
// its filesystem and dialect in package globals, so runs are serialized.
func MigrateUp(db *sql.DB, files embed.FS, dir string) error {
	migrationMutex.Lock()
	defer migrationMutex.Unlock()

	goose.SetLogger(&gooseLogger{})
	goose.SetBaseFS(files)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("error setting goose dialect: %w", err)
	}

	log.Debug().Str("dir", dir).Msg("running migrations")
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("error running migrations up: %w", err)
	}
	return nil
}

// SchemaVersion reports the newest applied migration.
func SchemaVersion(db *sql.DB) (int64, error) {
	migrationMutex.Lock()
	defer migrationMutex.Unlock()

	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, fmt.Errorf("error setting goose dialect: %w", err)
	}
	v, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}
