// Plexatlas - Media Server Access Map Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexatlas

package geo

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/plexatlas/internal/logging"
	"github.com/tomtom215/plexatlas/internal/models"
)

// BreakerProvider wraps a Provider with a circuit breaker so a dead or
// degraded geocode service is not hammered for the remainder of a long
// run: after repeated consecutive failures, lookups fail fast until the
// breaker's recovery timeout elapses. Individual failures stay non-fatal
// to the pipeline either way - they only exclude that record.
type BreakerProvider struct {
	inner Provider
	cb    *gobreaker.CircuitBreaker[*models.Geolocation]
}

// NewBreakerProvider wraps the given provider. The breaker opens after
// 5 consecutive failures and probes recovery after 30 seconds.
func NewBreakerProvider(inner Provider) *BreakerProvider {
	cb := gobreaker.NewCircuitBreaker[*models.Geolocation](gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: 1, // single probe in half-open state; the pipeline is sequential
		Interval:    time.Minute,
		Timeout:     30 * time.Second,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("geocode circuit breaker state change")
		},
	})

	return &BreakerProvider{inner: inner, cb: cb}
}

// Lookup executes the wrapped provider's lookup under the breaker.
func (p *BreakerProvider) Lookup(ctx context.Context, ipAddress string) (*models.Geolocation, error) {
	return p.cb.Execute(func() (*models.Geolocation, error) {
		return p.inner.Lookup(ctx, ipAddress)
	})
}

// Name returns the wrapped provider's name.
func (p *BreakerProvider) Name() string {
	return p.inner.Name()
}

// IsAvailable reports whether the wrapped provider is configured and the
// breaker is not open.
func (p *BreakerProvider) IsAvailable() bool {
	return p.inner.IsAvailable() && p.cb.State() != gobreaker.StateOpen
}
