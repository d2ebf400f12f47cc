// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import "time"

// PositionFix is a decoded GGA sentence.
type PositionFix struct {
	Talker      string    `json:"talker"`
	UTCTime     string    `json:"utc_time"` // hhmmss.ss as received
	Latitude    float64   `json:"lat"`      // decimal degrees
	Longitude   float64   `json:"lon"`      // decimal degrees
	Altitude    float64   `json:"alt_m"`
	GeoidHeight *float64  `json:"geoid_height_m,omitempty"`
	Quality     int       `json:"quality"` // 0-8, 0 never emitted
	Satellites  int       `json:"satellites"`
	HDOP        *float64  `json:"hdop,omitempty"`
	Accuracy    *float64  `json:"accuracy_m,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NavigationFix is a decoded RMC sentence with status "A".
type NavigationFix struct {
	Talker    string    `json:"talker"`
	UTCTime   string    `json:"utc_time"`
	Date      string    `json:"date"`   // ddmmyy as received
	Status    string    `json:"status"` // always "A" once decoded
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	SpeedKmh  float64   `json:"speed_kmh"`
	CourseDeg float64   `json:"course_deg"`
	Timestamp time.Time `json:"timestamp"` // date+utcTime, capture time if unparsable
}

// CourseFix is a decoded VTG sentence. It carries no coordinates and only
// refreshes course/speed for display.
type CourseFix struct {
	Talker    string    `json:"talker"`
	CourseDeg float64   `json:"course_deg"`
	SpeedKmh  float64   `json:"speed_kmh"`
	Timestamp time.Time `json:"timestamp"`
}

// SatelliteInfo is one satellite block of a GSV sentence.
type SatelliteInfo struct {
	PRN          int  `json:"prn"`
	ElevationDeg *int `json:"elevation_deg,omitempty"`
	AzimuthDeg   *int `json:"azimuth_deg,omitempty"`
	SNRdB        *int `json:"snr_db,omitempty"`
}

// SatelliteView is a decoded GSV sentence. Informational only.
type SatelliteView struct {
	Talker                string          `json:"talker"`
	TotalMessages         int             `json:"total_messages"`
	MessageNumber         int             `json:"message_number"`
	TotalSatellitesInView int             `json:"satellites_in_view"`
	Satellites            []SatelliteInfo `json:"satellites,omitempty"`
	Timestamp             time.Time       `json:"timestamp"`
}

// Fix is a fused GPS fix: a PositionFix plus speed and course from the
// navigation fix it was paired with. Coordinates are always range-valid.
type Fix struct {
	UTCTime     string    `json:"utc_time"`
	Date        string    `json:"date,omitempty"`
	Latitude    float64   `json:"lat"`
	Longitude   float64   `json:"lon"`
	Altitude    float64   `json:"alt_m"`
	GeoidHeight *float64  `json:"geoid_height_m,omitempty"`
	Quality     int       `json:"quality"`
	Satellites  int       `json:"satellites"`
	HDOP        *float64  `json:"hdop,omitempty"`
	Accuracy    *float64  `json:"accuracy_m,omitempty"`
	SpeedKmh    float64   `json:"speed_kmh"`
	CourseDeg   float64   `json:"course_deg"`
	Timestamp   time.Time `json:"timestamp"`
}

// Valid reports whether the fix carries range-valid coordinates.
func (f Fix) Valid() bool {
	return validLatitude(f.Latitude) && validLongitude(f.Longitude)
}

func validLatitude(v float64) bool {
	return v >= -90 && v <= 90
}

func validLongitude(v float64) bool {
	return v >= -180 && v <= 180
}
