// Plexatlas - Media Server Access Map Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexatlas

// Package render composes the output HTML map document.
//
// The document is a single self-contained page built with html/template:
// a Leaflet map with two overlapping layers - a heatmap weighted by play
// count (Leaflet.heat) and clustered markers with per-location popups
// (Leaflet.markercluster). Library assets load from pinned CDN URLs, so
// the file opens in any browser with no server required.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"html/template"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/plexatlas/internal/aggregate"
	"github.com/tomtom215/plexatlas/internal/config"
)

// Renderer turns location aggregates into the output map document.
// Given the same aggregate slice, output is byte-for-byte identical.
type Renderer struct {
	cfg config.MapConfig
}

// New creates a renderer with the given map settings.
func New(cfg config.MapConfig) *Renderer {
	return &Renderer{cfg: cfg}
}

// marker is the per-aggregate data embedded in the document as JSON.
type marker struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Popup string  `json:"popup"` // pre-escaped HTML
}

// templateData feeds the page template. HeatData and Markers hold
// pre-marshaled JSON; template.JS keeps html/template from re-escaping it
// inside the script element.
type templateData struct {
	CenterLat  float64
	CenterLon  float64
	ZoomStart  int
	HeatRadius int
	HeatBlur   int
	HeatData   template.JS
	Markers    template.JS
}

// Render writes the composed map document for the given aggregates.
// The aggregate slice must be non-empty - an empty map is a failed run,
// not a valid document.
func (r *Renderer) Render(w io.Writer, aggs []*aggregate.LocationAggregate) error {
	if len(aggs) == 0 {
		return errors.New("no locations to plot")
	}

	heatData := make([][3]float64, 0, len(aggs))
	markers := make([]marker, 0, len(aggs))
	for _, agg := range aggs {
		heatData = append(heatData, [3]float64{agg.Bucket.Lat, agg.Bucket.Lon, float64(agg.TotalPlays)})
		markers = append(markers, marker{
			Lat:   agg.Bucket.Lat,
			Lon:   agg.Bucket.Lon,
			Popup: r.popupHTML(agg),
		})
	}

	heatJSON, err := json.Marshal(heatData)
	if err != nil {
		return fmt.Errorf("failed to marshal heatmap data: %w", err)
	}
	markerJSON, err := json.Marshal(markers)
	if err != nil {
		return fmt.Errorf("failed to marshal marker data: %w", err)
	}

	data := templateData{
		CenterLat:  aggs[0].Bucket.Lat,
		CenterLon:  aggs[0].Bucket.Lon,
		ZoomStart:  r.cfg.ZoomStart,
		HeatRadius: r.cfg.HeatRadius,
		HeatBlur:   r.cfg.HeatBlur,
		HeatData:   template.JS(heatJSON),   //nolint:gosec // output of json.Marshal
		Markers:    template.JS(markerJSON), //nolint:gosec // output of json.Marshal
	}

	if err := mapTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render map document: %w", err)
	}

	return nil
}

// RenderFile renders to a buffer first and writes the file in one shot,
// so a template failure never leaves a truncated document behind.
func (r *Renderer) RenderFile(path string, aggs []*aggregate.LocationAggregate) error {
	var buf bytes.Buffer
	if err := r.Render(&buf, aggs); err != nil {
		return err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write map document %s: %w", path, err)
	}

	return nil
}

// popupHTML builds the marker popup: total plays, distinct IP count, and
// the IP list truncated at MaxPopupIPs. IPs and labels are escaped; the
// resulting string is embedded as innerHTML by the page script.
func (r *Renderer) popupHTML(agg *aggregate.LocationAggregate) string {
	var b strings.Builder

	if agg.Label != "" {
		fmt.Fprintf(&b, "<b>%s</b><br>", html.EscapeString(agg.Label))
	}
	fmt.Fprintf(&b, "<b>Plays:</b> %d<br>", agg.TotalPlays)
	fmt.Fprintf(&b, "<b>Distinct IPs:</b> %d<br>", agg.DistinctIPCount())

	ips := agg.IPs()
	shown := ips
	if len(shown) > r.cfg.MaxPopupIPs {
		shown = shown[:r.cfg.MaxPopupIPs]
	}
	escaped := make([]string, len(shown))
	for i, ip := range shown {
		escaped[i] = html.EscapeString(ip)
	}

	fmt.Fprintf(&b, "<b>IPs:</b> %s", strings.Join(escaped, ", "))
	if len(ips) > len(shown) {
		b.WriteString("...")
	}

	return b.String()
}

// mapTemplate is the single-page Leaflet document. Asset versions are
// pinned so regenerated maps stay stable.
var mapTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8"/>
<meta name="viewport" content="width=device-width, initial-scale=1.0"/>
<title>Plex Access Map</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css"/>
<link rel="stylesheet" href="https://unpkg.com/leaflet.markercluster@1.5.3/dist/MarkerCluster.css"/>
<link rel="stylesheet" href="https://unpkg.com/leaflet.markercluster@1.5.3/dist/MarkerCluster.Default.css"/>
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<script src="https://unpkg.com/leaflet.markercluster@1.5.3/dist/leaflet.markercluster.js"></script>
<script src="https://unpkg.com/leaflet.heat@0.2.0/dist/leaflet-heat.js"></script>
<style>html, body, #map { height: 100%; width: 100%; margin: 0; }</style>
</head>
<body>
<div id="map"></div>
<script>
var map = L.map("map").setView([{{.CenterLat}}, {{.CenterLon}}], {{.ZoomStart}});
L.tileLayer("https://tile.openstreetmap.org/{z}/{x}/{y}.png", {
    attribution: "&copy; OpenStreetMap contributors"
}).addTo(map);

var heatData = {{.HeatData}};
L.heatLayer(heatData, {radius: {{.HeatRadius}}, blur: {{.HeatBlur}}, maxZoom: 1}).addTo(map);

var markers = {{.Markers}};
var cluster = L.markerClusterGroup();
markers.forEach(function (m) {
    cluster.addLayer(L.marker([m.lat, m.lon]).bindPopup(m.popup));
});
map.addLayer(cluster);
</script>
</body>
</html>
`))
