// Plexatlas - Media Server Access Map Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexatlas

package geo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/plexatlas/internal/models"
)

// countingProvider records lookups so tests can verify how many calls
// the resolver actually makes.
type countingProvider struct {
	calls     map[string]int
	available bool
	fail      map[string]bool
}

func newCountingProvider() *countingProvider {
	return &countingProvider{
		calls:     make(map[string]int),
		available: true,
		fail:      make(map[string]bool),
	}
}

func (p *countingProvider) Lookup(_ context.Context, ip string) (*models.Geolocation, error) {
	p.calls[ip]++
	if p.fail[ip] {
		return nil, errors.New("simulated provider failure")
	}
	city := "Testville"
	return &models.Geolocation{
		IPAddress:  ip,
		Latitude:   52.37,
		Longitude:  4.89,
		City:       &city,
		Country:    "Testland",
		ResolvedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, nil
}

func (p *countingProvider) Name() string      { return "counting" }
func (p *countingProvider) IsAvailable() bool { return p.available }

func (p *countingProvider) totalCalls() int {
	total := 0
	for _, n := range p.calls {
		total += n
	}
	return total
}

func TestResolverCachesSuccess(t *testing.T) {
	provider := newCountingProvider()
	r := NewResolver(NewMemoryCache(), provider)
	ctx := context.Background()

	geo1, ok := r.Resolve(ctx, "8.8.8.8")
	if !ok {
		t.Fatal("expected first resolve to succeed")
	}
	geo2, ok := r.Resolve(ctx, "8.8.8.8")
	if !ok {
		t.Fatal("expected second resolve to succeed")
	}

	if provider.calls["8.8.8.8"] != 1 {
		t.Errorf("provider invoked %d times for one IP, expected 1", provider.calls["8.8.8.8"])
	}
	if geo1.Latitude != geo2.Latitude || geo1.Longitude != geo2.Longitude {
		t.Error("cached result differs from original")
	}
}

func TestResolverCachesFailure(t *testing.T) {
	provider := newCountingProvider()
	provider.fail["203.0.113.7"] = true
	r := NewResolver(NewMemoryCache(), provider)
	ctx := context.Background()

	if _, ok := r.Resolve(ctx, "203.0.113.7"); ok {
		t.Fatal("expected resolve to fail")
	}
	// A second record for the same IP must short-circuit on the cached
	// failure instead of re-invoking the provider.
	if _, ok := r.Resolve(ctx, "203.0.113.7"); ok {
		t.Fatal("expected cached failure")
	}

	if provider.calls["203.0.113.7"] != 1 {
		t.Errorf("provider invoked %d times for failed IP, expected 1", provider.calls["203.0.113.7"])
	}
}

func TestResolverNeverCallsProviderForPrivateIPs(t *testing.T) {
	provider := newCountingProvider()
	r := NewResolver(NewMemoryCache(), provider)
	ctx := context.Background()

	for _, ip := range []string{"192.168.1.10", "10.0.0.5", "127.0.0.1", "fe80::1", "not-an-ip", ""} {
		if _, ok := r.Resolve(ctx, ip); ok {
			t.Errorf("Resolve(%q) succeeded, expected refusal", ip)
		}
	}

	if n := provider.totalCalls(); n != 0 {
		t.Errorf("provider invoked %d times for private/malformed IPs, expected 0", n)
	}
}

func TestResolverNormalizesBeforeLookup(t *testing.T) {
	provider := newCountingProvider()
	r := NewResolver(NewMemoryCache(), provider)
	ctx := context.Background()

	if _, ok := r.Resolve(ctx, "8.8.8.8:32400"); !ok {
		t.Fatal("expected resolve of ported address to succeed")
	}
	if _, ok := r.Resolve(ctx, "8.8.8.8"); !ok {
		t.Fatal("expected resolve of bare address to succeed")
	}

	if provider.calls["8.8.8.8"] != 1 {
		t.Errorf("ported and bare forms of the same IP cost %d lookups, expected 1", provider.calls["8.8.8.8"])
	}
}

func TestResolverFallsBackAcrossProviders(t *testing.T) {
	primary := newCountingProvider()
	primary.fail["8.8.8.8"] = true
	secondary := newCountingProvider()

	r := NewResolver(NewMemoryCache(), primary, secondary)

	geo, ok := r.Resolve(context.Background(), "8.8.8.8")
	if !ok {
		t.Fatal("expected fallback provider to succeed")
	}
	if geo.Country != "Testland" {
		t.Errorf("unexpected country %q", geo.Country)
	}
	if primary.calls["8.8.8.8"] != 1 || secondary.calls["8.8.8.8"] != 1 {
		t.Errorf("expected one call each, got primary=%d secondary=%d",
			primary.calls["8.8.8.8"], secondary.calls["8.8.8.8"])
	}
}

func TestResolverSkipsUnavailableProviders(t *testing.T) {
	unavailable := newCountingProvider()
	unavailable.available = false
	fallback := newCountingProvider()

	r := NewResolver(NewMemoryCache(), unavailable, fallback)

	if _, ok := r.Resolve(context.Background(), "8.8.8.8"); !ok {
		t.Fatal("expected available provider to be used")
	}
	if n := unavailable.totalCalls(); n != 0 {
		t.Errorf("unavailable provider invoked %d times, expected 0", n)
	}
}
