// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import "math"

// baseAccuracyM is the horizontal error in meters at HDOP 1 for each fix
// quality code.
var baseAccuracyM = map[int]float64{
	1: 3.0, // GPS
	2: 1.0, // DGPS
	3: 0.5, // PPS
	4: 0.3, // RTK fixed
	5: 0.5, // RTK float
	6: 2.0, // estimated
}

const defaultBaseAccuracyM = 5.0

// EstimateAccuracy returns the estimated horizontal error in meters, rounded
// to one decimal. A nil or non-positive hdop counts as 1. The second return
// is false when quality is 0 (no fix), in which case no estimate exists.
func EstimateAccuracy(hdop *float64, quality int) (float64, bool) {
	if quality == 0 {
		return 0, false
	}
	base, ok := baseAccuracyM[quality]
	if !ok {
		base = defaultBaseAccuracyM
	}
	mult := 1.0
	if hdop != nil && *hdop > 0 {
		mult = *hdop
	}
	return math.Round(base*mult*10) / 10, true
}
