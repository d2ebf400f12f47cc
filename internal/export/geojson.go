// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package export

import (
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection builds the GeoJSON view of t: a LineString of the track
// points ([lon, lat]) followed by one Point per waypoint. A track with no
// points has no LineString.
func FeatureCollection(t Track) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	if len(t.Points) > 0 {
		line := make(orb.LineString, 0, len(t.Points))
		for _, p := range t.Points {
			line = append(line, orb.Point{p.Longitude, p.Latitude})
		}
		f := geojson.NewFeature(line)
		f.Properties["name"] = t.name()
		f.Properties["timestamp"] = isoTime(t.Time)
		fc.Append(f)
	}

	for _, wp := range t.Waypoints {
		f := geojson.NewFeature(orb.Point{wp.Position.Longitude, wp.Position.Latitude})
		f.Properties["type"] = wp.Type
		f.Properties["description"] = wp.Note
		f.Properties["timestamp"] = isoTime(wp.Timestamp)
		fc.Append(f)
	}
	return fc
}

// WriteGeoJSON writes the FeatureCollection of t.
func WriteGeoJSON(w io.Writer, t Track) error {
	data, err := FeatureCollection(t).MarshalJSON()
	if err != nil {
		return fmt.Errorf("geojson: marshal: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("geojson: write: %w", err)
	}
	return nil
}
