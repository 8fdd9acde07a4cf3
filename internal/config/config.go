// Plexatlas - Media Server Access Map Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexatlas

// Package config provides layered application configuration via Koanf v2.
//
// Configuration is loaded from three sources, highest priority last:
//  1. Built-in defaults
//  2. Optional YAML config file (config.yaml, or CONFIG_PATH / --config)
//  3. Environment variables (TAUTULLI_URL, TAUTULLI_API_KEY, ...)
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration.
type Config struct {
	Tautulli TautulliConfig `koanf:"tautulli"`
	GeoIP    GeoIPConfig    `koanf:"geoip"`
	Cache    CacheConfig    `koanf:"cache"`
	Map      MapConfig      `koanf:"map"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// TautulliConfig holds Tautulli connection settings. URL and APIKey are
// required; everything else has sensible defaults.
//
// Environment Variables:
//   - TAUTULLI_URL: Tautulli server URL (e.g., http://localhost:8181)
//   - TAUTULLI_API_KEY: API key from Settings > Web Interface
type TautulliConfig struct {
	URL      string        `koanf:"url" validate:"required,url"`
	APIKey   string        `koanf:"api_key" validate:"required"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
	PageSize int           `koanf:"page_size" validate:"gt=0,lte=5000"` // records per get_history request
}

// GeoIPConfig holds geocode provider settings.
//
// ip-api.com is always available as the fallback provider (free, no key,
// 45 req/min). MaxMind GeoLite2 is tried first when credentials are set -
// Tautulli users typically already have these, as Tautulli uses MaxMind.
type GeoIPConfig struct {
	MaxMindAccountID  string `koanf:"maxmind_account_id"`
	MaxMindLicenseKey string `koanf:"maxmind_license_key"`
	RequestsPerMinute int    `koanf:"requests_per_minute" validate:"gt=0"` // ip-api.com free tier budget
}

// CacheConfig selects the geocode cache backend.
//
// "memory" keeps resolved IPs for the lifetime of a single run.
// "badger" persists them on disk so repeat runs skip already-seen IPs.
type CacheConfig struct {
	Backend string `koanf:"backend" validate:"oneof=memory badger"`
	Path    string `koanf:"path"` // badger directory; required for the badger backend
}

// MapConfig controls the rendered output document.
type MapConfig struct {
	OutputFile      string `koanf:"output_file" validate:"required"`
	BucketPrecision int    `koanf:"bucket_precision" validate:"min=0,max=6"` // decimal places for coordinate bucketing
	HeatRadius      int    `koanf:"heat_radius" validate:"gt=0"`
	HeatBlur        int    `koanf:"heat_blur" validate:"gt=0"`
	MaxPopupIPs     int    `koanf:"max_popup_ips" validate:"gt=0"` // IPs listed per marker popup before truncation
	ZoomStart       int    `koanf:"zoom_start" validate:"min=1,max=18"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for correctness. It is called by
// Load() after all layers are merged, so a failure here means the run
// aborts before any network call is made.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q validation", fieldPath(fe), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Cache.Backend == "badger" && c.Cache.Path == "" {
		return errors.New("invalid configuration: cache.path is required for the badger cache backend")
	}

	return nil
}

// fieldPath converts a validator namespace like "Config.Tautulli.URL"
// into the koanf-style path "tautulli.url" used in error messages.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx != -1 {
		ns = ns[idx+1:]
	}
	parts := strings.Split(ns, ".")
	for i, p := range parts {
		parts[i] = camelToSnake(p)
	}
	return strings.Join(parts, ".")
}

func camelToSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			// Split before a capital that starts a word, keeping acronym
			// runs intact: URL -> url, APIKey -> api_key.
			if i > 0 {
				prevUpper := s[i-1] >= 'A' && s[i-1] <= 'Z'
				nextLower := i+1 < len(s) && s[i+1] >= 'a' && s[i+1] <= 'z'
				if !prevUpper || nextLower {
					b.WriteByte('_')
				}
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
