// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"time"

	"github.com/relabs-tech/gps_tracker/internal/geodesy"
	"github.com/relabs-tech/gps_tracker/internal/gps"
)

// TrackPoint is a fused fix accepted into a session.
type TrackPoint struct {
	gps.Fix `yaml:",inline"`
}

// Default waypoint categories offered by the UI.
const (
	WaypointHazard         = "Hazard"
	WaypointInfo           = "Info"
	WaypointTrafficControl = "Traffic Control"
	WaypointRestStop       = "Rest Stop"
)

// WaypointTypes lists the default waypoint categories.
var WaypointTypes = []string{WaypointHazard, WaypointInfo, WaypointTrafficControl, WaypointRestStop}

// Waypoint is a user-marked point of interest with a snapshot of the
// position at the time it was added.
type Waypoint struct {
	ID        string    `json:"id" yaml:"id"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Type      string    `json:"type" yaml:"type"`
	Note      string    `json:"note" yaml:"note"`
	Position  gps.Fix   `json:"position" yaml:"position"`
}

// Session is one recording. It is owned by the Manager while in progress
// and immutable once it has an EndTime.
type Session struct {
	ID           string       `json:"id" yaml:"id"`
	StartTime    time.Time    `json:"start_time" yaml:"start_time"`
	EndTime      time.Time    `json:"end_time,omitempty" yaml:"end_time,omitempty"`
	Positions    []TrackPoint `json:"positions" yaml:"positions"`
	Waypoints    []Waypoint   `json:"waypoints" yaml:"waypoints"`
	TotalPoints  int          `json:"total_points" yaml:"total_points"`
	DistanceKm   float64      `json:"distance_km" yaml:"distance_km"`
	MaxSpeedKmh  float64      `json:"max_speed_kmh" yaml:"max_speed_kmh"`
	AvgAccuracyM float64      `json:"avg_accuracy_m" yaml:"avg_accuracy_m"`
}

// clone returns s with its own copies of the point and waypoint slices.
func (s Session) clone() Session {
	s.Positions = cloneSlice(s.Positions)
	s.Waypoints = cloneSlice(s.Waypoints)
	return s
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// Finalized reports whether the session has been stopped.
func (s Session) Finalized() bool {
	return !s.EndTime.IsZero()
}

// Stats are the aggregate figures of a finished track.
type Stats struct {
	TotalPoints  int     `json:"total_points"`
	DistanceKm   float64 `json:"distance_km"`
	MaxSpeedKmh  float64 `json:"max_speed_kmh"`
	AvgAccuracyM float64 `json:"avg_accuracy_m"`
}

// ComputeStats sums the great-circle distance over consecutive points, takes
// the maximum consecutive-pair speed and averages the accuracy of the points
// that carry one. A track of fewer than two points has all-zero figures.
func ComputeStats(points []TrackPoint) Stats {
	st := Stats{TotalPoints: len(points)}
	if len(points) < 2 {
		return st
	}

	var accSum float64
	var accN int
	for i, p := range points {
		if p.Accuracy != nil {
			accSum += *p.Accuracy
			accN++
		}
		if i == 0 {
			continue
		}
		prev := points[i-1]
		d := geodesy.DistanceKm(prev.Latitude, prev.Longitude, p.Latitude, p.Longitude)
		st.DistanceKm += d
		if v := geodesy.SpeedKmh(d, prev.Timestamp, p.Timestamp); v > st.MaxSpeedKmh {
			st.MaxSpeedKmh = v
		}
	}
	if accN > 0 {
		st.AvgAccuracyM = accSum / float64(accN)
	}
	return st
}

// LiveStats are the running figures of the session in progress.
type LiveStats struct {
	Points      int     `json:"points"`
	DistanceKm  float64 `json:"distance_km"`
	DurationSec float64 `json:"duration_sec"`
	SpeedKmh    float64 `json:"speed_kmh"` // over the last two points
	MaxSpeedKmh float64 `json:"max_speed_kmh"`
	ElevationM  float64 `json:"elevation_m"`
	Satellites  int     `json:"satellites"`
}

// add folds an accepted point into the running figures.
func (l *LiveStats) add(first, prev *TrackPoint, p TrackPoint) {
	l.Points++
	l.ElevationM = p.Altitude
	l.Satellites = p.Satellites
	if first != nil {
		l.DurationSec = p.Timestamp.Sub(first.Timestamp).Seconds()
	}
	if prev == nil {
		return
	}
	d := geodesy.DistanceKm(prev.Latitude, prev.Longitude, p.Latitude, p.Longitude)
	l.DistanceKm += d
	if dt := p.Timestamp.Sub(prev.Timestamp); dt > 0 {
		l.SpeedKmh = geodesy.SpeedKmh(d, prev.Timestamp, p.Timestamp)
		if l.SpeedKmh > l.MaxSpeedKmh {
			l.MaxSpeedKmh = l.SpeedKmh
		}
	}
}
