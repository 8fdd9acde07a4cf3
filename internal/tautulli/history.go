// Plexatlas - Media Server Access Map Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexatlas

package tautulli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/tomtom215/plexatlas/internal/logging"
	"github.com/tomtom215/plexatlas/internal/models/tautulli"
)

// NOTE: History decoding uses encoding/json instead of go-json because
// go-json issue #340 causes "expected comma after object element" parsing
// errors with large Tautulli API responses (500+ records).

// GetHistory retrieves one page of playback history from Tautulli,
// newest first, with session grouping disabled so each record is an
// individual playback event.
func (c *Client) GetHistory(ctx context.Context, start, length int) (*tautulli.History, error) {
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("cmd", "get_history")
	params.Set("start", fmt.Sprintf("%d", start))
	params.Set("length", fmt.Sprintf("%d", length))
	params.Set("order_column", "started")
	params.Set("order_dir", "desc")
	// Disable session grouping to get individual playback records
	params.Set("grouping", "0")

	reqURL := fmt.Sprintf("%s/api/v2?%s", c.baseURL, params.Encode())

	resp, err := c.doRequestWithRateLimit(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("failed to make history request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body := readBodyForError(resp.Body)
		return nil, fmt.Errorf("history request failed with status %d: %s", resp.StatusCode, string(body))
	}

	// History responses can be several MB; read fully before decoding so
	// a parse failure can report the offending payload.
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read history response body: %w", err)
	}

	var history tautulli.History
	if err := json.Unmarshal(bodyBytes, &history); err != nil {
		maxLen := 2000
		if len(bodyBytes) < maxLen {
			maxLen = len(bodyBytes)
		}
		return nil, fmt.Errorf("failed to decode history response (showing first %d chars): %w\nJSON: %s", maxLen, err, string(bodyBytes[:maxLen]))
	}

	if history.Response.Result != "success" {
		msg := "unknown error"
		if history.Response.Message != nil {
			msg = *history.Response.Message
		}
		return nil, fmt.Errorf("history request failed: %s", msg)
	}

	return &history, nil
}

// FetchHistory retrieves playback history in PageSize batches until the
// server runs dry or limit records are collected. A limit of 0 means
// unbounded: fetch all available history.
//
// Any page failure aborts the whole fetch - partial history would
// silently skew the rendered map.
func (c *Client) FetchHistory(ctx context.Context, limit int) ([]tautulli.HistoryRecord, error) {
	if limit < 0 {
		return nil, fmt.Errorf("history limit must be non-negative, got %d", limit)
	}

	var records []tautulli.HistoryRecord
	start := 0

	for {
		length := c.pageSize
		if limit > 0 {
			if remaining := limit - len(records); remaining < length {
				length = remaining
			}
		}

		history, err := c.GetHistory(ctx, start, length)
		if err != nil {
			return nil, err
		}

		page := history.Response.Data.Data
		if len(page) == 0 {
			break
		}

		records = append(records, page...)
		logging.Debug().Int("fetched", len(records)).Int("total", history.Response.Data.RecordsFiltered).Msg("fetched history page")

		if limit > 0 && len(records) >= limit {
			records = records[:limit]
			break
		}
		if len(page) < length {
			break
		}

		start += len(page)
	}

	logging.Info().Int("records", len(records)).Msg("history fetch complete")
	return records, nil
}
