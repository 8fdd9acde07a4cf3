// Plexatlas - Media Server Access Map Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexatlas

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/plexatlas/config.yaml",
	"/etc/plexatlas/config.yml",
}

// ConfigPathEnvVar overrides the config file search when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config populated with all default values.
// Defaults are applied first, then overridden by file and env layers.
func defaultConfig() *Config {
	return &Config{
		Tautulli: TautulliConfig{
			URL:      "",
			APIKey:   "",
			Timeout:  30 * time.Second,
			PageSize: 1000,
		},
		GeoIP: GeoIPConfig{
			MaxMindAccountID:  "",
			MaxMindLicenseKey: "",
			RequestsPerMinute: 45, // ip-api.com free tier limit
		},
		Cache: CacheConfig{
			Backend: "memory",
			Path:    "",
		},
		Map: MapConfig{
			OutputFile:      "plex_map.html",
			BucketPrecision: 2,
			HeatRadius:      25,
			HeatBlur:        15,
			MaxPopupIPs:     3,
			ZoomStart:       3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config File: optional YAML file (explicit path > CONFIG_PATH > defaults)
//  3. Environment Variables: override any setting
//
// path may be empty, in which case the usual search order applies.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional unless explicitly requested)
	configPath, explicit, err := resolveConfigFile(path)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s not found", path)
	}

	// Layer 3: environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolveConfigFile picks the config file to load. An explicitly passed
// path must exist; search paths are all optional.
func resolveConfigFile(path string) (found string, explicit bool, err error) {
	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			return path, true, nil
		}
		return "", true, nil
	}

	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, statErr := os.Stat(envPath); statErr == nil {
			return envPath, false, nil
		}
	}

	for _, p := range DefaultConfigPaths {
		if _, statErr := os.Stat(p); statErr == nil {
			return p, false, nil
		}
	}

	return "", false, nil
}

// envMappings maps environment variable names (lowercased) to koanf
// config paths. Unmapped variables are ignored so random environment
// noise cannot pollute the configuration.
var envMappings = map[string]string{
	// Tautulli mappings
	"tautulli_url":       "tautulli.url",
	"tautulli_api_key":   "tautulli.api_key",
	"tautulli_timeout":   "tautulli.timeout",
	"tautulli_page_size": "tautulli.page_size",

	// GeoIP provider mappings
	"maxmind_account_id":        "geoip.maxmind_account_id",
	"maxmind_license_key":       "geoip.maxmind_license_key",
	"geoip_requests_per_minute": "geoip.requests_per_minute",

	// Cache mappings
	"geo_cache_backend": "cache.backend",
	"geo_cache_path":    "cache.path",

	// Map output mappings
	"map_output_file":      "map.output_file",
	"map_bucket_precision": "map.bucket_precision",
	"map_heat_radius":      "map.heat_radius",
	"map_heat_blur":        "map.heat_blur",
	"map_max_popup_ips":    "map.max_popup_ips",
	"map_zoom_start":       "map.zoom_start",

	// Logging mappings
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf paths,
// e.g. TAUTULLI_API_KEY -> tautulli.api_key. Returns "" to skip the key.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
