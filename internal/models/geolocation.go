// Plexatlas - Media Server Access Map Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexatlas

// Package models holds the shared domain structs passed between the
// geocode resolver, the aggregator and the renderer.
package models

import (
	"strings"
	"time"
)

// Geolocation represents resolved geographic data for an IP address.
// City and Region are pointers because providers may omit them.
type Geolocation struct {
	IPAddress  string    `json:"ip_address"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	City       *string   `json:"city,omitempty"`
	Region     *string   `json:"region,omitempty"`
	Country    string    `json:"country"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// Label returns a human-readable place label like "Amsterdam, Netherlands".
// Empty components are skipped; an entirely unlabeled location returns "".
func (g *Geolocation) Label() string {
	parts := make([]string, 0, 2)
	if g.City != nil && *g.City != "" {
		parts = append(parts, *g.City)
	}
	if g.Country != "" {
		parts = append(parts, g.Country)
	}
	return strings.Join(parts, ", ")
}
