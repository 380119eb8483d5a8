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

package helpers

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tapdeck/tapdeck/pkg/database/blobs"
	"github.com/tapdeck/tapdeck/pkg/database/library"
)

// NewTestLibrary opens a migrated library backed by files in a temporary
// directory. It is closed when the test ends.
func NewTestLibrary(t *testing.T) *library.Library {
	t.Helper()

	dir := t.TempDir()
	sqlDB, err := sql.Open("sqlite3", filepath.Join(dir, "library_test.db")+"?_foreign_keys=ON&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	store, err := blobs.Open(filepath.Join(dir, "blobs_test.db"))
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("Failed to open test blob store: %v", err)
	}

	db := &library.Library{}
	if err := db.SetSQLForTesting(sqlDB, store); err != nil {
		_ = sqlDB.Close()
		_ = store.Close()
		t.Fatalf("Failed to set up library for testing: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close library: %v", err)
		}
	})
	return db
}
