// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseCoordinate converts an NMEA ddmm.mmmm (latitude) or dddmm.mmmm
// (longitude) value plus hemisphere letter into signed decimal degrees.
//
// The sentence alone does not say which axis a value belongs to, so the
// digit grouping is resolved in order:
//
//  1. two-digit degrees when degrees <= 90 and minutes < 60
//  2. three-digit degrees (values of 5+ characters) when degrees <= 180 and minutes < 60
//  3. by length: 9+ characters means three-digit degrees, otherwise two
//
// Callers still range-check the result for the axis they asked for.
func ParseCoordinate(value, hemisphere string) (float64, error) {
	value = strings.TrimSpace(value)
	hemi := strings.ToUpper(strings.TrimSpace(hemisphere))
	if value == "" {
		return 0, fmt.Errorf("%w: empty coordinate", ErrMalformedSentence)
	}
	switch hemi {
	case "N", "S", "E", "W":
	default:
		return 0, fmt.Errorf("%w: bad hemisphere %q", ErrMalformedSentence, hemisphere)
	}

	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("%w: bad coordinate %q", ErrMalformedSentence, value)
	}

	deg, mins, ok := splitTwoDigit(v)
	if !ok {
		deg, mins, ok = splitThreeDigit(value)
	}
	if !ok {
		if len(value) >= 9 {
			deg, mins, ok = splitAt(value, 3)
		} else {
			deg, mins, ok = splitAt(value, 2)
		}
		if !ok {
			return 0, fmt.Errorf("%w: bad coordinate %q", ErrMalformedSentence, value)
		}
	}

	dec := deg + mins/60.0
	if hemi == "S" || hemi == "W" {
		dec = -dec
	}
	return dec, nil
}

func splitTwoDigit(v float64) (deg, mins float64, ok bool) {
	deg = math.Floor(v / 100)
	mins = v - deg*100
	return deg, mins, deg <= 90 && mins < 60
}

func splitThreeDigit(value string) (deg, mins float64, ok bool) {
	if len(value) < 5 {
		return 0, 0, false
	}
	deg, mins, ok = splitAt(value, 3)
	return deg, mins, ok && deg <= 180 && mins < 60
}

func splitAt(value string, n int) (deg, mins float64, ok bool) {
	if len(value) <= n {
		return 0, 0, false
	}
	d, err := strconv.Atoi(value[:n])
	if err != nil {
		return 0, 0, false
	}
	m, err := strconv.ParseFloat(value[n:], 64)
	if err != nil {
		return 0, 0, false
	}
	return float64(d), m, true
}

// FormatLatitude renders decimal degrees as an NMEA ddmm.mmmmmm value and
// hemisphere.
func FormatLatitude(deg float64) (string, string) {
	hemi := "N"
	if deg < 0 {
		hemi = "S"
	}
	return formatDegMin(math.Abs(deg), 2), hemi
}

// FormatLongitude renders decimal degrees as an NMEA dddmm.mmmmmm value and
// hemisphere.
func FormatLongitude(deg float64) (string, string) {
	hemi := "E"
	if deg < 0 {
		hemi = "W"
	}
	return formatDegMin(math.Abs(deg), 3), hemi
}

func formatDegMin(abs float64, degDigits int) string {
	d := math.Floor(abs)
	m := math.Round((abs-d)*60*1e6) / 1e6
	if m >= 60 {
		d++
		m -= 60
	}
	return fmt.Sprintf("%0*d%09.6f", degDigits, int(d), m)
}
