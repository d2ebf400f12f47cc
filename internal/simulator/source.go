// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package simulator produces NMEA output for a receiver moving on a circle,
// for running the tracker without hardware.
package simulator

import (
	"fmt"
	"math"
	"time"

	"github.com/adrianmo/go-nmea"
	geo "github.com/kellydunn/golang-geo"

	"github.com/relabs-tech/gps_tracker/internal/gps"
)

// Source is anything that can provide one epoch of receiver output at a
// time.
type Source interface {
	Next() ([]string, error)
}

// Circle describes the simulated route.
type Circle struct {
	Latitude  float64       // center, decimal degrees
	Longitude float64       // center, decimal degrees
	RadiusKm  float64
	Period    time.Duration // one lap
	Altitude  float64       // meters
}

// DefaultCircle is a 200 m loop in Munich, one lap every two minutes.
var DefaultCircle = Circle{
	Latitude:  48.1173,
	Longitude: 11.5167,
	RadiusKm:  0.2,
	Period:    2 * time.Minute,
	Altitude:  520,
}

type mockSource struct {
	route Circle
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a source that emits GGA, RMC and VTG sentences for
// a receiver driving around route at constant speed.
func NewMockSource(route Circle, now func() time.Time) Source {
	return &mockSource{route: route, start: now(), now: now}
}

func (m *mockSource) Next() ([]string, error) {
	now := m.now().UTC()
	elapsed := now.Sub(m.start).Seconds()
	period := m.route.Period.Seconds()
	if period <= 0 || m.route.RadiusKm <= 0 {
		return nil, fmt.Errorf("simulator: invalid route %+v", m.route)
	}

	bearing := math.Mod(360*elapsed/period, 360)
	p := geo.NewPoint(m.route.Latitude, m.route.Longitude).PointAtDistanceAndBearing(m.route.RadiusKm, bearing)
	course := math.Mod(bearing+90, 360)
	speedKmh := 2 * math.Pi * m.route.RadiusKm / period * 3600
	altitude := m.route.Altitude + 5*math.Sin(2*math.Pi*elapsed/period)
	hdop := 0.8 + 0.4*math.Abs(math.Sin(elapsed/10))

	lat, ns := gps.FormatLatitude(p.Lat())
	lon, ew := gps.FormatLongitude(p.Lng())
	utc := now.Format("150405.00")

	return []string{
		Sentence(fmt.Sprintf("GPGGA,%s,%s,%s,%s,%s,1,09,%.1f,%.1f,M,47.0,M,,",
			utc, lat, ns, lon, ew, hdop, altitude)),
		Sentence(fmt.Sprintf("GPRMC,%s,A,%s,%s,%s,%s,%.2f,%.1f,%s,,,A",
			utc, lat, ns, lon, ew, speedKmh/gps.KnotsToKmh, course, now.Format("020106"))),
		Sentence(fmt.Sprintf("GPVTG,%.1f,T,,M,%.2f,N,%.2f,K,A",
			course, speedKmh/gps.KnotsToKmh, speedKmh)),
	}, nil
}

// Sentence wraps payload (without "$" and checksum) into a complete NMEA
// sentence.
func Sentence(payload string) string {
	return nmea.SentenceStart + payload + nmea.ChecksumSep + nmea.Checksum(payload)
}
