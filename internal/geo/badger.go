// Plexatlas - Media Server Access Map Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexatlas

package geo

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// geoKeyPrefix namespaces geocode entries in the BadgerDB keyspace.
const geoKeyPrefix = "geo:"

// BadgerCache implements Cache on BadgerDB for durable storage across
// runs. IPs resolved on an earlier day never cost another provider call,
// and failure sentinels persist too - clear the cache directory to retry
// stale failures.
type BadgerCache struct {
	db *badger.DB
}

// OpenBadgerCache opens (creating if needed) a disk-backed cache at path.
func OpenBadgerCache(path string) (*BadgerCache, error) {
	if path == "" {
		return nil, errors.New("badger cache path is empty")
	}

	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open geocode cache at %s: %w", path, err)
	}

	return &BadgerCache{db: db}, nil
}

// Get returns the cached entry for an IP and whether one exists.
func (c *BadgerCache) Get(ipAddress string) (*Entry, bool) {
	var entry Entry

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(geoKeyPrefix + ipAddress))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return nil, false
	}

	return &entry, true
}

// Put stores an entry keyed by its IP address.
func (c *BadgerCache) Put(entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(geoKeyPrefix+entry.IPAddress), data)
	})
}

// Close flushes and closes the underlying database.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}
