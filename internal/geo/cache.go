// Plexatlas - Media Server Access Map Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexatlas

package geo

import (
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/plexatlas/internal/config"
	"github.com/tomtom215/plexatlas/internal/models"
)

// Entry is one cached resolution result, keyed by IP address.
//
// Entries are write-once: a result (or failure) recorded for an IP is
// never mutated. Resolved=false is the failure sentinel that prevents the
// provider from being retried for that IP.
type Entry struct {
	IPAddress  string    `json:"ip_address"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	City       *string   `json:"city,omitempty"`
	Region     *string   `json:"region,omitempty"`
	Country    string    `json:"country,omitempty"`
	Resolved   bool      `json:"resolved"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// Geolocation converts a resolved entry back into the domain struct.
// Returns nil for failure sentinels.
func (e *Entry) Geolocation() *models.Geolocation {
	if !e.Resolved {
		return nil
	}
	return &models.Geolocation{
		IPAddress:  e.IPAddress,
		Latitude:   e.Latitude,
		Longitude:  e.Longitude,
		City:       e.City,
		Region:     e.Region,
		Country:    e.Country,
		ResolvedAt: e.ResolvedAt,
	}
}

// entryFromGeolocation builds a resolved cache entry.
func entryFromGeolocation(geo *models.Geolocation) *Entry {
	return &Entry{
		IPAddress:  geo.IPAddress,
		Latitude:   geo.Latitude,
		Longitude:  geo.Longitude,
		City:       geo.City,
		Region:     geo.Region,
		Country:    geo.Country,
		Resolved:   true,
		ResolvedAt: geo.ResolvedAt,
	}
}

// failureEntry builds the sentinel recorded when a lookup fails.
func failureEntry(ipAddress string) *Entry {
	return &Entry{
		IPAddress:  ipAddress,
		Resolved:   false,
		ResolvedAt: time.Now().UTC(),
	}
}

// Cache is the key-value store the resolver memoizes results in.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the cached entry for an IP and whether one exists.
	Get(ipAddress string) (*Entry, bool)

	// Put stores an entry keyed by its IP address.
	Put(entry *Entry) error

	// Close releases any backing resources.
	Close() error
}

// OpenCache constructs the cache backend selected by configuration.
func OpenCache(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "badger":
		return OpenBadgerCache(cfg.Path)
	case "memory", "":
		return NewMemoryCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// MemoryCache is a map-backed cache living for the process lifetime.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*Entry),
	}
}

// Get returns the cached entry for an IP and whether one exists.
func (c *MemoryCache) Get(ipAddress string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[ipAddress]
	return entry, ok
}

// Put stores an entry keyed by its IP address.
func (c *MemoryCache) Put(entry *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.IPAddress] = entry
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close is a no-op for the in-memory cache.
func (c *MemoryCache) Close() error {
	return nil
}
