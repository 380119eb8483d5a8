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

// Package blobs keeps uploaded audio bytes in a bbolt file, keyed by
// track id.
package blobs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const BucketTracks = "tracks"

var ErrBlobNotFound = errors.New("blob not found")

type Store struct {
	bdb  *bolt.DB
	path string
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketTracks))
		return err //nolint:wrapcheck // wrapped below
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create %s bucket: %w", BucketTracks, err)
	}

	return &Store{bdb: db, path: path}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	if err := s.bdb.Close(); err != nil {
		return fmt.Errorf("failed to close bolt database: %w", err)
	}
	return nil
}

func (s *Store) Put(id string, data []byte) error {
	err := s.bdb.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketTracks)).Put([]byte(id), data) //nolint:wrapcheck // wrapped below
	})
	if err != nil {
		return fmt.Errorf("failed to store blob %s: %w", id, err)
	}
	return nil
}

// Get returns a copy of the blob, since bbolt memory is only valid inside
// the transaction.
func (s *Store) Get(id string) ([]byte, error) {
	var data []byte
	err := s.bdb.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(BucketTracks)).Get([]byte(id))
		if v == nil {
			return ErrBlobNotFound
		}
		data = make([]byte, len(v))
		copy(data, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", id, err)
	}
	return data, nil
}

// Delete removes a blob. Missing ids are not an error.
func (s *Store) Delete(id string) error {
	err := s.bdb.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketTracks)).Delete([]byte(id)) //nolint:wrapcheck // wrapped below
	})
	if err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", id, err)
	}
	return nil
}

// Keys lists every stored id.
func (s *Store) Keys() ([]string, error) {
	keys := make([]string, 0)
	err := s.bdb.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketTracks)).ForEach(func(k, _ []byte) error { //nolint:wrapcheck // wrapped below
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	return keys, nil
}
