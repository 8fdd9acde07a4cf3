// Plexatlas - Media Server Access Map Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexatlas

// Package geo implements IP-to-location resolution: public-address
// filtering, geocode provider lookups, and the write-once result cache
// that bounds provider calls to one per distinct IP.
package geo

import (
	"net"
	"strings"
)

// privateRanges are the non-routable networks an access record's IP may
// fall into. Addresses in these ranges are never geolocated.
//
// RFC 1918: 10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16
// Loopback: 127.0.0.0/8, Link-local: 169.254.0.0/16
// IPv6: loopback, unique local, link-local
var privateRanges = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("geo: invalid private range " + cidr)
		}
		nets = append(nets, network)
	}
	return nets
}

// IsPrivateIP reports whether the IP address is in a private/local range.
// Private IPs cannot be geolocated and must be handled before resolution.
// Malformed addresses return false; use IsValidPublicIP to reject both.
func IsPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	for _, network := range privateRanges {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// IsValidPublicIP reports whether the IP address is a valid, routable
// public address. Malformed, unspecified and private addresses all fail.
func IsValidPublicIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	if ip.IsUnspecified() {
		return false
	}
	return !IsPrivateIP(ipStr)
}

// NormalizeIPAddress strips a port suffix and IPv6 brackets from an
// address as reported by media clients, e.g. "192.168.1.1:32400" or
// "[::1]:32400".
func NormalizeIPAddress(ipAddr string) string {
	if strings.HasPrefix(ipAddr, "[") {
		return normalizeIPv6Address(ipAddr)
	}
	return normalizeIPv4Address(ipAddr)
}

func normalizeIPv6Address(ipAddr string) string {
	// [::1]:8096 -> ::1
	if idx := strings.LastIndex(ipAddr, "]:"); idx != -1 {
		return ipAddr[1:idx]
	}
	return strings.Trim(ipAddr, "[]")
}

func normalizeIPv4Address(ipAddr string) string {
	// Only strip when it looks like host:port (a bare IPv6 address has
	// more than one colon and no brackets).
	if strings.Count(ipAddr, ":") != 1 {
		return ipAddr
	}
	if idx := strings.LastIndex(ipAddr, ":"); idx != -1 {
		return ipAddr[:idx]
	}
	return ipAddr
}
