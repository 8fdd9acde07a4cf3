// Plexatlas - Media Server Access Map Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexatlas

// Package tautulli defines typed responses for the Tautulli API v2
// endpoints plexatlas consumes. Only the fields this tool reads are
// mapped; Tautulli returns many more.
package tautulli

import "time"

// History represents the API response from Tautulli's get_history endpoint.
type History struct {
	Response HistoryResponse `json:"response"`
}

type HistoryResponse struct {
	Result  string      `json:"result"`
	Message *string     `json:"message,omitempty"`
	Data    HistoryData `json:"data"`
}

type HistoryData struct {
	RecordsFiltered int             `json:"recordsFiltered"`
	RecordsTotal    int             `json:"recordsTotal"`
	Data            []HistoryRecord `json:"data"`
}

// HistoryRecord is a single playback history record.
//
// Nullable API fields are pointers so null can be distinguished from a
// zero value. Timestamps (date/started/stopped) are Unix seconds.
type HistoryRecord struct {
	// Session identification
	RowID      *int    `json:"row_id"`      // Tautulli database row ID (nullable)
	SessionKey *string `json:"session_key"` // Nullable - null when session ended
	Date       int64   `json:"date"`
	Started    int64   `json:"started"`
	Stopped    int64   `json:"stopped"`

	// GroupCount is the number of grouped plays when Tautulli session
	// grouping is active; null or 0 means the record is a single play.
	GroupCount *int `json:"group_count"`

	// User information
	UserID          *int   `json:"user_id"` // Nullable - may be null in edge cases
	User            string `json:"user"`
	FriendlyName    string `json:"friendly_name"`
	IPAddress       string `json:"ip_address"`
	IPAddressPublic string `json:"ip_address_public"` // Public IP for accurate geolocation

	// Client information
	Platform string `json:"platform"`
	Player   string `json:"player"`
	Product  string `json:"product"`

	// Media identification
	MediaType string `json:"media_type"`
	Title     string `json:"title"`
	FullTitle string `json:"full_title"`
}

// PlayCount returns the number of plays this record represents:
// the group count when grouping produced one, otherwise 1.
func (r *HistoryRecord) PlayCount() int {
	if r.GroupCount != nil && *r.GroupCount > 0 {
		return *r.GroupCount
	}
	return 1
}

// ClientIP returns the best available client address for geolocation,
// preferring ip_address_public over ip_address. Tautulli fills
// ip_address_public with the routable address when the client connected
// through a LAN hop.
func (r *HistoryRecord) ClientIP() string {
	if r.IPAddressPublic != "" {
		return r.IPAddressPublic
	}
	return r.IPAddress
}

// StartedAt returns the playback start time, falling back to the record
// date when started is unset.
func (r *HistoryRecord) StartedAt() time.Time {
	ts := r.Started
	if ts == 0 {
		ts = r.Date
	}
	return time.Unix(ts, 0).UTC()
}
