// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package export writes recorded tracks and waypoints as GPX and GeoJSON.
package export

import (
	"time"

	"github.com/relabs-tech/gps_tracker/internal/session"
)

// DefaultTrackName is used when a Track has no name.
const DefaultTrackName = "GPS Track"

// Track is the data an export consumes: an ordered point list plus the
// waypoints that belong with it.
type Track struct {
	Name      string
	Time      time.Time
	Points    []session.TrackPoint
	Waypoints []session.Waypoint
}

// FromSession builds a Track from a recorded session, stamped with its
// start time.
func FromSession(s session.Session) Track {
	return Track{
		Name:      DefaultTrackName,
		Time:      s.StartTime,
		Points:    s.Positions,
		Waypoints: s.Waypoints,
	}
}

func (t Track) name() string {
	if t.Name == "" {
		return DefaultTrackName
	}
	return t.Name
}

func isoTime(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}
