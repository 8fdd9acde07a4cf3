// Plexatlas - Media Server Access Map Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexatlas

package geo

import (
	"context"
	"testing"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := newCountingProvider()
	inner.fail["203.0.113.1"] = true
	p := NewBreakerProvider(inner)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := p.Lookup(ctx, "203.0.113.1"); err == nil {
			t.Fatalf("lookup %d unexpectedly succeeded", i+1)
		}
	}

	if inner.calls["203.0.113.1"] != 5 {
		t.Fatalf("inner provider invoked %d times before trip, expected 5", inner.calls["203.0.113.1"])
	}
	if p.IsAvailable() {
		t.Error("breaker should report unavailable once open")
	}

	// Further lookups fail fast without touching the inner provider.
	if _, err := p.Lookup(ctx, "203.0.113.1"); err == nil {
		t.Error("expected fail-fast error from open breaker")
	}
	if inner.calls["203.0.113.1"] != 5 {
		t.Errorf("inner provider invoked while breaker open: %d calls", inner.calls["203.0.113.1"])
	}
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	inner := newCountingProvider()
	p := NewBreakerProvider(inner)

	geo, err := p.Lookup(context.Background(), "8.8.8.8")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if geo.IPAddress != "8.8.8.8" {
		t.Errorf("unexpected result %+v", geo)
	}
	if p.Name() != inner.Name() {
		t.Errorf("Name() = %q, expected inner name %q", p.Name(), inner.Name())
	}
	if !p.IsAvailable() {
		t.Error("closed breaker over available provider must be available")
	}
}

func TestBreakerUnavailableWhenInnerUnavailable(t *testing.T) {
	inner := newCountingProvider()
	inner.available = false
	p := NewBreakerProvider(inner)

	if p.IsAvailable() {
		t.Error("breaker must mirror inner unavailability")
	}
}
