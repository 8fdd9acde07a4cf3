// Plexatlas - Media Server Access Map Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexatlas

// Package main is the plexatlas command: fetch playback history from
// Tautulli, geolocate the public client IPs, and write an interactive
// HTML map (heatmap + clustered markers) to the working directory.
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, optional config.yaml, built-in
// defaults. The only required settings are the Tautulli connection:
//
//	export TAUTULLI_URL=http://localhost:8181
//	export TAUTULLI_API_KEY=your-api-key
//	plexatlas --length 0
//
// Optional settings:
//
//	MAXMIND_ACCOUNT_ID / MAXMIND_LICENSE_KEY - prefer MaxMind GeoLite2
//	    over ip-api.com for lookups (same credentials Tautulli uses)
//	GEO_CACHE_BACKEND=badger GEO_CACHE_PATH=.plexatlas-cache - persist
//	    geocode results between runs
//
// Exit status is 0 when the map document was written, 1 on any
// configuration, fetch or render failure.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/plexatlas/internal/aggregate"
	"github.com/tomtom215/plexatlas/internal/config"
	"github.com/tomtom215/plexatlas/internal/geo"
	"github.com/tomtom215/plexatlas/internal/logging"
	"github.com/tomtom215/plexatlas/internal/pipeline"
	"github.com/tomtom215/plexatlas/internal/render"
	"github.com/tomtom215/plexatlas/internal/tautulli"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath string
		length  int
		output  string
	)

	cmd := &cobra.Command{
		Use:   "plexatlas",
		Short: "Render Tautulli playback history as an interactive access map",
		Long: "plexatlas fetches media-server playback history from Tautulli, resolves\n" +
			"public client IPs to coordinates, and writes a self-contained HTML map\n" +
			"with a heatmap layer and clustered markers.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if length < 0 {
				return fmt.Errorf("--length must be non-negative, got %d", length)
			}
			return run(cmd, cfgPath, length, output)
		},
	}

	cmd.Flags().IntVar(&length, "length", 0, "maximum history records to fetch (0 = all)")
	cmd.Flags().StringVar(&output, "output", "", "output HTML file (overrides map.output_file)")
	cmd.Flags().StringVar(&cfgPath, "config", "", "path to config file")

	return cmd
}

func run(cmd *cobra.Command, cfgPath string, length int, output string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if output != "" {
		cfg.Map.OutputFile = output
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := tautulli.New(&cfg.Tautulli)
	if err := client.Ping(ctx); err != nil {
		return err
	}
	logging.Info().Str("url", cfg.Tautulli.URL).Msg("connected to Tautulli")

	cache, err := geo.OpenCache(cfg.Cache)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := cache.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Msg("failed to close geocode cache")
		}
	}()

	resolver := geo.NewResolver(cache, buildProviders(cfg)...)

	pipe := pipeline.New(
		client,
		resolver,
		aggregate.New(cfg.Map.BucketPrecision),
		render.New(cfg.Map),
		cfg.Map.OutputFile,
	)

	if _, err := pipe.Run(ctx, length); err != nil {
		return err
	}

	fmt.Printf("Done! Open %q in your web browser to view the map.\n", cfg.Map.OutputFile)
	return nil
}

// buildProviders assembles the geocode provider chain in priority order:
// MaxMind GeoLite2 when credentials are configured, ip-api.com always as
// the free fallback. Each provider is wrapped in a circuit breaker.
func buildProviders(cfg *config.Config) []geo.Provider {
	var providers []geo.Provider

	if cfg.GeoIP.MaxMindAccountID != "" && cfg.GeoIP.MaxMindLicenseKey != "" {
		providers = append(providers, geo.NewBreakerProvider(
			geo.NewMaxMindProvider(cfg.GeoIP.MaxMindAccountID, cfg.GeoIP.MaxMindLicenseKey)))
		logging.Debug().Msg("MaxMind GeoLite2 provider configured")
	}

	providers = append(providers, geo.NewBreakerProvider(
		geo.NewIPAPIProvider(cfg.GeoIP.RequestsPerMinute)))

	return providers
}
