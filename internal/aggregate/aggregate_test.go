// Plexatlas - Media Server Access Map Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexatlas

package aggregate

import (
	"math/rand"
	"testing"
	"time"

	"github.com/tomtom215/plexatlas/internal/models"
)

func geoAt(ip string, lat, lon float64, city string) *models.Geolocation {
	return &models.Geolocation{
		IPAddress: ip,
		Latitude:  lat,
		Longitude: lon,
		City:      &city,
		Country:   "Testland",
	}
}

func TestBucketCoordinate(t *testing.T) {
	tests := []struct {
		name      string
		lat, lon  float64
		precision int
		want      Bucket
	}{
		{"two decimals", 40.71283, -74.00604, 2, Bucket{40.71, -74.01}},
		{"rounds up past midpoint", 40.716, -74.006, 2, Bucket{40.72, -74.01}},
		{"zero precision", 40.71283, -74.00604, 0, Bucket{41, -74}},
		{"exact values unchanged", 40.71, -74.01, 2, Bucket{40.71, -74.01}},
		{"negative coordinates", -33.8688, 151.2093, 2, Bucket{-33.87, 151.21}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BucketCoordinate(tt.lat, tt.lon, tt.precision)
			if got != tt.want {
				t.Errorf("BucketCoordinate(%v, %v, %d) = %+v, want %+v",
					tt.lat, tt.lon, tt.precision, got, tt.want)
			}
		})
	}
}

func TestAggregatorMergesNearbyCoordinates(t *testing.T) {
	g := New(2)
	ts := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	// Three records: A plays 3 times, B plays 2 times from a jittered
	// coordinate in the same bucket. Both must land in one aggregate.
	g.Add(geoAt("198.51.100.1", 40.7128, -74.0060, "New York"), 3, ts)
	g.Add(geoAt("198.51.100.2", 40.7131, -74.0058, "New York"), 2, ts.Add(time.Hour))

	if g.Len() != 1 {
		t.Fatalf("expected 1 bucket, got %d", g.Len())
	}

	agg := g.Aggregates()[0]
	if agg.TotalPlays != 5 {
		t.Errorf("TotalPlays = %d, want 5", agg.TotalPlays)
	}
	if agg.DistinctIPCount() != 2 {
		t.Errorf("DistinctIPCount = %d, want 2", agg.DistinctIPCount())
	}
	if agg.Label != "New York, Testland" {
		t.Errorf("Label = %q", agg.Label)
	}
	if !agg.FirstSeen.Equal(ts) || !agg.LastSeen.Equal(ts.Add(time.Hour)) {
		t.Errorf("seen window [%v, %v] not widened correctly", agg.FirstSeen, agg.LastSeen)
	}
}

func TestAggregatorDistinctIPsNotRecordCount(t *testing.T) {
	g := New(2)
	ts := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	// Same IP contributes 4 records; cardinality stays 1.
	for i := 0; i < 4; i++ {
		g.Add(geoAt("198.51.100.1", 40.7128, -74.0060, "New York"), 1, ts)
	}

	agg := g.Aggregates()[0]
	if agg.DistinctIPCount() != 1 {
		t.Errorf("DistinctIPCount = %d, want 1", agg.DistinctIPCount())
	}
	if agg.TotalPlays != 4 {
		t.Errorf("TotalPlays = %d, want 4", agg.TotalPlays)
	}
}

func TestAggregatorOrderIndependent(t *testing.T) {
	type record struct {
		geo   *models.Geolocation
		plays int
		ts    time.Time
	}

	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	records := []record{
		{geoAt("198.51.100.1", 40.7128, -74.0060, "New York"), 3, base},
		{geoAt("198.51.100.2", 40.7131, -74.0058, "New York"), 2, base.Add(2 * time.Hour)},
		{geoAt("203.0.113.7", 51.5074, -0.1278, "London"), 1, base.Add(time.Hour)},
		{geoAt("203.0.113.8", 51.5072, -0.1280, "London"), 4, base.Add(3 * time.Hour)},
		{geoAt("198.51.100.1", 40.7128, -74.0060, "New York"), 1, base.Add(4 * time.Hour)},
	}

	build := func(order []int) []*LocationAggregate {
		g := New(2)
		for _, i := range order {
			g.Add(records[i].geo, records[i].plays, records[i].ts)
		}
		return g.Aggregates()
	}

	reference := build([]int{0, 1, 2, 3, 4})

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 10; trial++ {
		order := rng.Perm(len(records))
		got := build(order)

		if len(got) != len(reference) {
			t.Fatalf("permutation %v: %d buckets, want %d", order, len(got), len(reference))
		}
		for i := range reference {
			if got[i].Bucket != reference[i].Bucket ||
				got[i].TotalPlays != reference[i].TotalPlays ||
				got[i].DistinctIPCount() != reference[i].DistinctIPCount() ||
				!got[i].FirstSeen.Equal(reference[i].FirstSeen) ||
				!got[i].LastSeen.Equal(reference[i].LastSeen) {
				t.Errorf("permutation %v: aggregate %d differs: got %+v, want %+v",
					order, i, got[i], reference[i])
			}
		}
	}
}

func TestAggregatorSortedOutput(t *testing.T) {
	g := New(2)
	ts := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	g.Add(geoAt("203.0.113.7", 51.5074, -0.1278, "London"), 1, ts)
	g.Add(geoAt("198.51.100.1", 40.7128, -74.0060, "New York"), 1, ts)
	g.Add(geoAt("198.51.100.9", 40.7128, -73.0060, "Long Island"), 1, ts)

	aggs := g.Aggregates()
	for i := 1; i < len(aggs); i++ {
		prev, cur := aggs[i-1].Bucket, aggs[i].Bucket
		if prev.Lat > cur.Lat || (prev.Lat == cur.Lat && prev.Lon > cur.Lon) {
			t.Errorf("aggregates not sorted: %+v before %+v", prev, cur)
		}
	}
}

func TestAggregatorClampsPlayCount(t *testing.T) {
	g := New(2)
	g.Add(geoAt("198.51.100.1", 40.7128, -74.0060, "New York"), 0, time.Time{})
	g.Add(geoAt("198.51.100.1", 40.7128, -74.0060, "New York"), -7, time.Time{})

	if got := g.Aggregates()[0].TotalPlays; got != 2 {
		t.Errorf("TotalPlays = %d, want 2 (counts below 1 clamp to 1)", got)
	}
}

func TestAggregatorIPsSorted(t *testing.T) {
	g := New(2)
	ts := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	for _, ip := range []string{"203.0.113.9", "198.51.100.1", "203.0.113.1"} {
		g.Add(geoAt(ip, 40.71, -74.01, "New York"), 1, ts)
	}

	ips := g.Aggregates()[0].IPs()
	want := []string{"198.51.100.1", "203.0.113.1", "203.0.113.9"}
	if len(ips) != len(want) {
		t.Fatalf("IPs() = %v, want %v", ips, want)
	}
	for i := range want {
		if ips[i] != want[i] {
			t.Errorf("IPs()[%d] = %q, want %q", i, ips[i], want[i])
		}
	}
}
