// Plexatlas - Media Server Access Map Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexatlas

// Package aggregate groups resolved access records into per-location
// statistics. Coordinates are bucketed to a fixed decimal precision so
// near-identical geocode results for the same IP block or city merge
// into one aggregate instead of stacking markers on the same pixel.
package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/tomtom215/plexatlas/internal/models"
)

// Bucket is a coordinate rounded to the aggregator's precision.
// It is the map key identifying one location aggregate.
type Bucket struct {
	Lat float64
	Lon float64
}

// LocationAggregate accumulates playback statistics for one coordinate
// bucket. Mutated only through Aggregator.Add; read-only once rendering
// begins.
type LocationAggregate struct {
	Bucket     Bucket
	TotalPlays int
	Label      string // first non-empty place label seen for this bucket
	FirstSeen  time.Time
	LastSeen   time.Time

	ips map[string]struct{}
}

// DistinctIPCount returns the number of distinct IPs seen at this
// location - always the cardinality of the IP set, never the raw count
// of contributing records.
func (a *LocationAggregate) DistinctIPCount() int {
	return len(a.ips)
}

// IPs returns the distinct IPs at this location in sorted order.
func (a *LocationAggregate) IPs() []string {
	ips := make([]string, 0, len(a.ips))
	for ip := range a.ips {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	return ips
}

// Aggregator buckets resolved coordinates and accumulates per-location
// totals. Accumulation is commutative and associative per bucket, so any
// permutation of the same input stream yields identical aggregates.
//
// Single-owner: the pipeline is the only writer, so no locking.
type Aggregator struct {
	precision int
	buckets   map[Bucket]*LocationAggregate
}

// New creates an aggregator that rounds coordinates to the given number
// of decimal places. Two decimals (~1.1 km cells at the equator) merge
// city-level geocode jitter without collapsing distinct cities.
func New(precision int) *Aggregator {
	if precision < 0 {
		precision = 0
	}
	return &Aggregator{
		precision: precision,
		buckets:   make(map[Bucket]*LocationAggregate),
	}
}

// BucketCoordinate rounds a coordinate pair to precision decimal places.
func BucketCoordinate(lat, lon float64, precision int) Bucket {
	scale := math.Pow10(precision)
	return Bucket{
		Lat: math.Round(lat*scale) / scale,
		Lon: math.Round(lon*scale) / scale,
	}
}

// Add folds one resolved record into its location aggregate: TotalPlays
// grows by playCount (treated as 1 when below 1), the IP joins the set,
// and the seen-time window widens. The place label is kept from the
// first record that has one.
func (g *Aggregator) Add(geo *models.Geolocation, playCount int, ts time.Time) {
	if playCount < 1 {
		playCount = 1
	}

	bucket := BucketCoordinate(geo.Latitude, geo.Longitude, g.precision)

	agg, ok := g.buckets[bucket]
	if !ok {
		agg = &LocationAggregate{
			Bucket:    bucket,
			FirstSeen: ts,
			LastSeen:  ts,
			ips:       make(map[string]struct{}),
		}
		g.buckets[bucket] = agg
	}

	agg.TotalPlays += playCount
	agg.ips[geo.IPAddress] = struct{}{}

	if agg.Label == "" {
		agg.Label = geo.Label()
	}
	if !ts.IsZero() {
		if agg.FirstSeen.IsZero() || ts.Before(agg.FirstSeen) {
			agg.FirstSeen = ts
		}
		if ts.After(agg.LastSeen) {
			agg.LastSeen = ts
		}
	}
}

// Len returns the number of distinct location buckets.
func (g *Aggregator) Len() int {
	return len(g.buckets)
}

// Aggregates returns all location aggregates in deterministic order
// (by latitude, then longitude), ready for rendering.
func (g *Aggregator) Aggregates() []*LocationAggregate {
	aggs := make([]*LocationAggregate, 0, len(g.buckets))
	for _, agg := range g.buckets {
		aggs = append(aggs, agg)
	}

	sort.Slice(aggs, func(i, j int) bool {
		if aggs[i].Bucket.Lat != aggs[j].Bucket.Lat {
			return aggs[i].Bucket.Lat < aggs[j].Bucket.Lat
		}
		return aggs[i].Bucket.Lon < aggs[j].Bucket.Lon
	})

	return aggs
}
