// Plexatlas - Media Server Access Map Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexatlas

package geo

import (
	"context"

	"github.com/tomtom215/plexatlas/internal/logging"
	"github.com/tomtom215/plexatlas/internal/models"
)

// Resolver memoizes geocode lookups in a Cache so each distinct public
// IP costs at most one provider invocation per cache lifetime, no matter
// how many access records reference it. Geocode providers are metered or
// rate-limited; this bound is what makes unbounded history runs viable.
//
// Providers are tried in order until one succeeds. Lookup failures are
// recorded as failure sentinels: a later record for the same IP
// short-circuits on the cached failure instead of retrying the provider.
type Resolver struct {
	cache     Cache
	providers []Provider
}

// NewResolver creates a resolver over the given cache and providers.
func NewResolver(cache Cache, providers ...Provider) *Resolver {
	return &Resolver{
		cache:     cache,
		providers: providers,
	}
}

// Resolve returns the geolocation for ip and whether resolution
// succeeded. It never returns an error: failures are cached and absorbed,
// excluding only the records that reference that IP.
func (r *Resolver) Resolve(ctx context.Context, ip string) (*models.Geolocation, bool) {
	ip = NormalizeIPAddress(ip)

	// Callers filter private addresses before resolving; refuse them here
	// too so a missed filter can never consume a provider call.
	if !IsValidPublicIP(ip) {
		return nil, false
	}

	if entry, ok := r.cache.Get(ip); ok {
		if !entry.Resolved {
			return nil, false
		}
		return entry.Geolocation(), true
	}

	geo := r.lookup(ctx, ip)
	if geo == nil {
		if err := r.cache.Put(failureEntry(ip)); err != nil {
			logging.Warn().Err(err).Str("ip", ip).Msg("failed to cache lookup failure")
		}
		return nil, false
	}

	if err := r.cache.Put(entryFromGeolocation(geo)); err != nil {
		logging.Warn().Err(err).Str("ip", ip).Msg("failed to cache geolocation")
	}

	return geo, true
}

// lookup tries each available provider in order, returning the first
// successful result or nil when all fail.
func (r *Resolver) lookup(ctx context.Context, ip string) *models.Geolocation {
	for _, provider := range r.providers {
		if !provider.IsAvailable() {
			continue
		}

		geo, err := provider.Lookup(ctx, ip)
		if err != nil {
			logging.Debug().Err(err).Str("provider", provider.Name()).Str("ip", ip).Msg("geocode provider failed")
			continue
		}

		logging.Debug().Str("provider", provider.Name()).Str("ip", ip).Str("label", geo.Label()).Msg("geolocated new IP")
		return geo
	}

	return nil
}
