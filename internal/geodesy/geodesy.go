// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package geodesy holds the great-circle math used for track statistics.
package geodesy

import (
	"time"

	geo "github.com/kellydunn/golang-geo"
)

// EarthRadiusKm is the mean Earth radius used by the Haversine formula.
const EarthRadiusKm = geo.EARTH_RADIUS

// DistanceKm returns the Haversine distance in kilometers between two
// latitude/longitude pairs in decimal degrees.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}
	return geo.NewPoint(lat1, lon1).GreatCircleDistance(geo.NewPoint(lat2, lon2))
}

// SpeedKmh returns distanceKm covered over the interval from t1 to t2 in
// km/h. A non-positive interval yields 0.
func SpeedKmh(distanceKm float64, t1, t2 time.Time) float64 {
	dt := t2.Sub(t1).Hours()
	if dt <= 0 {
		return 0
	}
	return distanceKm / dt
}
