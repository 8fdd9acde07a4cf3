// Plexatlas - Media Server Access Map Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexatlas

package geo

import "testing"

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		name     string
		ip       string
		expected bool
	}{
		// IPv4 private ranges (RFC 1918)
		{"10.0.0.0/8 start", "10.0.0.1", true},
		{"10.0.0.0/8 middle", "10.100.50.25", true},
		{"10.0.0.0/8 end", "10.255.255.255", true},
		{"172.16.0.0/12 start", "172.16.0.1", true},
		{"172.16.0.0/12 middle", "172.20.0.1", true},
		{"172.16.0.0/12 end", "172.31.255.255", true},
		{"192.168.0.0/16 start", "192.168.0.1", true},
		{"192.168.0.0/16 middle", "192.168.100.50", true},

		// Loopback
		{"loopback IPv4", "127.0.0.1", true},
		{"loopback IPv4 other", "127.100.50.25", true},

		// Link-local
		{"link-local start", "169.254.0.1", true},
		{"link-local middle", "169.254.100.50", true},

		// IPv6 private/local
		{"IPv6 loopback", "::1", true},
		{"IPv6 link-local", "fe80::1", true},
		{"IPv6 unique local fc00", "fc00::1", true},
		{"IPv6 unique local fd00", "fd00::1234:5678", true},

		// Public IPs
		{"public IP 1", "8.8.8.8", false},
		{"public IP 2", "1.1.1.1", false},
		{"public IP 3", "93.184.216.34", false},
		{"public IPv6", "2001:4860:4860::8888", false},

		// Edge cases
		{"not in 172.16/12", "172.32.0.1", false},
		{"just below 172.16", "172.15.255.255", false},
		{"invalid IP", "not-an-ip", false},
		{"empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := IsPrivateIP(tt.ip); result != tt.expected {
				t.Errorf("IsPrivateIP(%q) = %v, expected %v", tt.ip, result, tt.expected)
			}
		})
	}
}

func TestIsValidPublicIP(t *testing.T) {
	tests := []struct {
		name     string
		ip       string
		expected bool
	}{
		{"public IPv4", "8.8.8.8", true},
		{"public IPv6", "2001:4860:4860::8888", true},
		{"private IP", "192.168.1.1", false},
		{"loopback", "127.0.0.1", false},
		{"link-local", "169.254.1.1", false},
		{"unspecified IPv4", "0.0.0.0", false},
		{"unspecified IPv6", "::", false},
		{"malformed", "not-an-ip", false},
		{"empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := IsValidPublicIP(tt.ip); result != tt.expected {
				t.Errorf("IsValidPublicIP(%q) = %v, expected %v", tt.ip, result, tt.expected)
			}
		})
	}
}

func TestNormalizeIPAddress(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"IPv4 simple", "192.168.1.1", "192.168.1.1"},
		{"IPv4 public", "8.8.8.8", "8.8.8.8"},
		{"IPv4 with port", "192.168.1.1:8096", "192.168.1.1"},
		{"IPv4 with port 32400", "10.0.0.1:32400", "10.0.0.1"},
		{"IPv6 loopback", "::1", "::1"},
		{"IPv6 full", "2001:4860:4860::8888", "2001:4860:4860::8888"},
		{"IPv6 bracketed with port", "[::1]:8096", "::1"},
		{"IPv6 full bracketed with port", "[2001:4860:4860::8888]:32400", "2001:4860:4860::8888"},
		{"IPv6 bracketed no port", "[::1]", "::1"},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := NormalizeIPAddress(tt.input); result != tt.expected {
				t.Errorf("NormalizeIPAddress(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}
