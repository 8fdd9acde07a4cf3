// Plexatlas - Media Server Access Map Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexatlas

// Package tautulli implements the HTTP client for the Tautulli API.
//
// The client handles API key authentication, automatic HTTP 429 rate
// limit backoff (1s, 2s, 4s, 8s, 16s with Retry-After support), and
// Tautulli's response wrapper validation. All methods accept a
// context.Context for cancellation, including during backoff waits.
package tautulli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tomtom215/plexatlas/internal/config"
)

// maxErrorBodySize limits how much of an error response body is read
// for diagnostics, preventing unbounded allocation on large responses.
const maxErrorBodySize = 64 * 1024 // 64KB

// Client communicates with the Tautulli HTTP API.
//
// Safe for concurrent use; each request creates its own HTTP request.
type Client struct {
	baseURL        string
	apiKey         string
	pageSize       int
	client         *http.Client
	maxRetries     int           // maximum retries on HTTP 429
	retryBaseDelay time.Duration // base delay for exponential backoff
}

// New creates a Tautulli API client from the provided configuration.
func New(cfg *config.TautulliConfig) *Client {
	return &Client{
		baseURL:  cfg.URL,
		apiKey:   cfg.APIKey,
		pageSize: cfg.PageSize,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxRetries:     5,
		retryBaseDelay: 1 * time.Second,
	}
}

// doRequestWithRateLimit performs a GET request with automatic HTTP 429
// handling. Backoff doubles each attempt and honors Retry-After.
func (c *Client) doRequestWithRateLimit(ctx context.Context, reqURL string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		// Rate limited - close body and retry with backoff
		_ = resp.Body.Close()

		if attempt == c.maxRetries {
			lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, parseErr := time.ParseDuration(retryAfter + "s"); parseErr == nil {
				delay = seconds
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// Ping verifies connectivity to the Tautulli API.
func (c *Client) Ping(ctx context.Context) error {
	reqURL := fmt.Sprintf("%s/api/v2?apikey=%s&cmd=arnold", c.baseURL, c.apiKey)

	resp, err := c.doRequestWithRateLimit(ctx, reqURL)
	if err != nil {
		return fmt.Errorf("failed to ping Tautulli: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Tautulli ping failed with status: %d", resp.StatusCode)
	}

	return nil
}

// readBodyForError reads a response body for error reporting (max 64KB).
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}
