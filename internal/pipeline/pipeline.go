// Plexatlas - Media Server Access Map Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexatlas

// Package pipeline runs the single-pass fetch -> filter -> resolve ->
// aggregate -> render flow. Everything is sequential and single-owner:
// one fetch, one walk over the records, one render.
package pipeline

import (
	"context"
	"fmt"

	"github.com/tomtom215/plexatlas/internal/aggregate"
	"github.com/tomtom215/plexatlas/internal/geo"
	"github.com/tomtom215/plexatlas/internal/logging"
	"github.com/tomtom215/plexatlas/internal/models"
	"github.com/tomtom215/plexatlas/internal/models/tautulli"
	"github.com/tomtom215/plexatlas/internal/render"
)

// HistoryFetcher is the history source. A limit of 0 fetches everything.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, limit int) ([]tautulli.HistoryRecord, error)
}

// IPResolver resolves a public IP to a geolocation, reporting success.
type IPResolver interface {
	Resolve(ctx context.Context, ip string) (*models.Geolocation, bool)
}

// Stats summarizes one run for the final log line.
type Stats struct {
	Fetched    int // records returned by the history source
	Private    int // dropped before resolution: missing, private or malformed IP
	Unresolved int // dropped after a failed geocode lookup
	Plotted    int // records folded into an aggregate
	Locations  int // distinct coordinate buckets rendered
}

// Pipeline wires the stages together. Construct with New.
type Pipeline struct {
	fetcher    HistoryFetcher
	resolver   IPResolver
	agg        *aggregate.Aggregator
	renderer   *render.Renderer
	outputFile string
}

// New creates a pipeline writing its map document to outputFile.
func New(fetcher HistoryFetcher, resolver IPResolver, agg *aggregate.Aggregator, renderer *render.Renderer, outputFile string) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		resolver:   resolver,
		agg:        agg,
		renderer:   renderer,
		outputFile: outputFile,
	}
}

// Run executes one pass. Fetch and render failures are fatal and abort
// the run; per-record resolution failures only exclude that record.
func (p *Pipeline) Run(ctx context.Context, limit int) (Stats, error) {
	var stats Stats

	records, err := p.fetcher.FetchHistory(ctx, limit)
	if err != nil {
		return stats, fmt.Errorf("history fetch failed: %w", err)
	}
	stats.Fetched = len(records)

	for i := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		record := &records[i]
		ip := geo.NormalizeIPAddress(record.ClientIP())

		// Private and malformed addresses never reach the resolver.
		if !geo.IsValidPublicIP(ip) {
			stats.Private++
			continue
		}

		geoloc, ok := p.resolver.Resolve(ctx, ip)
		if !ok {
			stats.Unresolved++
			continue
		}

		p.agg.Add(geoloc, record.PlayCount(), record.StartedAt())
		stats.Plotted++
	}

	aggs := p.agg.Aggregates()
	stats.Locations = len(aggs)

	if err := p.renderer.RenderFile(p.outputFile, aggs); err != nil {
		return stats, fmt.Errorf("map render failed: %w", err)
	}

	logging.Info().
		Int("fetched", stats.Fetched).
		Int("private", stats.Private).
		Int("unresolved", stats.Unresolved).
		Int("plotted", stats.Plotted).
		Int("locations", stats.Locations).
		Str("output", p.outputFile).
		Msg("map written")

	return stats, nil
}
