// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// KnotsToKmh converts knots to km/h.
const KnotsToKmh = 1.852

// Record is the result of decoding one sentence. Exactly one field is set.
type Record struct {
	Position   *PositionFix
	Navigation *NavigationFix
	Course     *CourseFix
	Satellites *SatelliteView
}

// Decoder turns split sentences into typed records. It holds no state
// besides the clock used to stamp capture time.
type Decoder struct {
	Now func() time.Time
}

// NewDecoder returns a Decoder stamping records with time.Now in UTC.
func NewDecoder() *Decoder {
	return &Decoder{Now: func() time.Time { return time.Now().UTC() }}
}

// Decode dispatches on the sentence type.
func (d *Decoder) Decode(s Sentence) (Record, error) {
	now := d.Now()
	switch s.Type {
	case nmea.TypeGGA:
		p, err := DecodeGGA(s, now)
		if err != nil {
			return Record{}, err
		}
		return Record{Position: &p}, nil
	case nmea.TypeRMC:
		n, err := DecodeRMC(s, now)
		if err != nil {
			return Record{}, err
		}
		return Record{Navigation: &n}, nil
	case nmea.TypeVTG:
		c, err := DecodeVTG(s, now)
		if err != nil {
			return Record{}, err
		}
		return Record{Course: &c}, nil
	case nmea.TypeGSV:
		v, err := DecodeGSV(s, now)
		if err != nil {
			return Record{}, err
		}
		return Record{Satellites: &v}, nil
	default:
		return Record{}, fmt.Errorf("%w: %s", ErrUnknownSentence, s.Type)
	}
}

// DecodeGGA decodes a position fix.
// Fields:
//
//	1: time (hhmmss.ss)
//	2: latitude (ddmm.mmmm)
//	3: N/S
//	4: longitude (dddmm.mmmm)
//	5: E/W
//	6: fix quality (0=invalid)
//	7: satellites in use
//	8: HDOP
//	9: altitude (m)
//
// 11: geoid separation (m)
func DecodeGGA(s Sentence, now time.Time) (PositionFix, error) {
	f := s.Fields
	if len(f) < minFields[nmea.TypeGGA] {
		return PositionFix{}, fmt.Errorf("%w: GGA needs %d fields", ErrMalformedSentence, minFields[nmea.TypeGGA])
	}

	quality, ok := parseInt(f[6])
	if !ok || quality == 0 {
		return PositionFix{}, fmt.Errorf("%w: GGA quality %q", ErrInvalidFix, f[6])
	}
	if quality < 0 || quality > 8 {
		return PositionFix{}, fmt.Errorf("%w: GGA quality %d out of range", ErrInvalidFix, quality)
	}

	lat, lon, err := parseLatLon(f[2], f[3], f[4], f[5])
	if err != nil {
		return PositionFix{}, err
	}

	p := PositionFix{
		Talker:    s.Talker,
		UTCTime:   strings.TrimSpace(f[1]),
		Latitude:  lat,
		Longitude: lon,
		Quality:   quality,
		Timestamp: now,
	}
	if sats, ok := parseInt(f[7]); ok {
		p.Satellites = sats
	}
	if hdop, ok := parseFloat(f[8]); ok {
		p.HDOP = &hdop
	}
	if alt, ok := parseFloat(f[9]); ok {
		p.Altitude = alt
	}
	if geoid, ok := parseFloat(f[11]); ok {
		p.GeoidHeight = &geoid
	}
	if acc, ok := EstimateAccuracy(p.HDOP, quality); ok {
		p.Accuracy = &acc
	}
	return p, nil
}

// DecodeRMC decodes a navigation fix.
// Fields:
//
//	1: time (hhmmss.ss)
//	2: status (A=active, V=void)
//	3: latitude
//	4: N/S
//	5: longitude
//	6: E/W
//	7: speed over ground (knots)
//	8: course over ground (deg)
//	9: date (ddmmyy)
//
// Timestamp is date+time in UTC; when either is unparsable it falls back to
// now.
func DecodeRMC(s Sentence, now time.Time) (NavigationFix, error) {
	f := s.Fields
	if len(f) < minFields[nmea.TypeRMC] {
		return NavigationFix{}, fmt.Errorf("%w: RMC needs %d fields", ErrMalformedSentence, minFields[nmea.TypeRMC])
	}
	status := strings.ToUpper(strings.TrimSpace(f[2]))
	if status != "A" {
		return NavigationFix{}, fmt.Errorf("%w: RMC status %q", ErrInvalidFix, f[2])
	}

	lat, lon, err := parseLatLon(f[3], f[4], f[5], f[6])
	if err != nil {
		return NavigationFix{}, err
	}

	n := NavigationFix{
		Talker:    s.Talker,
		UTCTime:   strings.TrimSpace(f[1]),
		Date:      strings.TrimSpace(f[9]),
		Status:    status,
		Latitude:  lat,
		Longitude: lon,
		Timestamp: now,
	}
	if kn, ok := parseFloat(f[7]); ok {
		n.SpeedKmh = kn * KnotsToKmh
	}
	if crs, ok := parseFloat(f[8]); ok {
		n.CourseDeg = crs
	}
	if ts, ok := ParseRMCTime(n.Date, n.UTCTime); ok {
		n.Timestamp = ts
	}
	return n, nil
}

// DecodeVTG decodes course and speed over ground.
// Fields:
//
//	1: course true (deg)
//	5: speed (knots)
//	7: speed (km/h)
func DecodeVTG(s Sentence, now time.Time) (CourseFix, error) {
	f := s.Fields
	if len(f) < minFields[nmea.TypeVTG] {
		return CourseFix{}, fmt.Errorf("%w: VTG needs %d fields", ErrMalformedSentence, minFields[nmea.TypeVTG])
	}
	c := CourseFix{Talker: s.Talker, Timestamp: now}
	if crs, ok := parseFloat(f[1]); ok {
		c.CourseDeg = crs
	}
	if kmh, ok := parseFloat(f[7]); ok {
		c.SpeedKmh = kmh
	} else if kn, ok := parseFloat(f[5]); ok {
		c.SpeedKmh = kn * KnotsToKmh
	}
	return c, nil
}

// DecodeGSV decodes one satellites-in-view message.
// Fields:
//
//	1: total messages
//	2: message number
//	3: total satellites in view
//	4..: up to four blocks of PRN, elevation, azimuth, SNR
func DecodeGSV(s Sentence, now time.Time) (SatelliteView, error) {
	f := s.Fields
	if len(f) < minFields[nmea.TypeGSV] {
		return SatelliteView{}, fmt.Errorf("%w: GSV needs %d fields", ErrMalformedSentence, minFields[nmea.TypeGSV])
	}
	total, ok1 := parseInt(f[1])
	num, ok2 := parseInt(f[2])
	inView, ok3 := parseInt(f[3])
	if !ok1 || !ok2 || !ok3 {
		return SatelliteView{}, fmt.Errorf("%w: GSV counts %q,%q,%q", ErrMalformedSentence, f[1], f[2], f[3])
	}

	v := SatelliteView{
		Talker:                s.Talker,
		TotalMessages:         total,
		MessageNumber:         num,
		TotalSatellitesInView: inView,
		Timestamp:             now,
	}
	// A trailing field that does not complete a block is the NMEA 4.1
	// signal id, not a satellite.
	for i := 4; i+3 < len(f); i += 4 {
		prn, ok := parseInt(f[i])
		if !ok {
			continue
		}
		sat := SatelliteInfo{PRN: prn}
		sat.ElevationDeg = optInt(f, i+1)
		sat.AzimuthDeg = optInt(f, i+2)
		sat.SNRdB = optInt(f, i+3)
		v.Satellites = append(v.Satellites, sat)
	}
	return v, nil
}

// ParseRMCTime composes a UTC timestamp from an RMC ddmmyy date and
// hhmmss(.sss) time.
func ParseRMCTime(date, utc string) (time.Time, bool) {
	if len(date) != 6 || len(utc) < 6 {
		return time.Time{}, false
	}
	dd, err1 := strconv.Atoi(date[0:2])
	mm, err2 := strconv.Atoi(date[2:4])
	yy, err3 := strconv.Atoi(date[4:6])
	h, err4 := strconv.Atoi(utc[0:2])
	m, err5 := strconv.Atoi(utc[2:4])
	sec, err6 := strconv.ParseFloat(utc[4:], 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil || err6 != nil {
		return time.Time{}, false
	}
	if mm < 1 || mm > 12 || dd < 1 || dd > 31 || h > 23 || m > 59 || sec < 0 || sec >= 61 {
		return time.Time{}, false
	}
	whole := math.Floor(sec)
	nanos := int(math.Round((sec - whole) * 1e9))
	return time.Date(2000+yy, time.Month(mm), dd, h, m, int(whole), nanos, time.UTC), true
}

func parseLatLon(latV, latH, lonV, lonH string) (float64, float64, error) {
	lat, err := ParseCoordinate(latV, latH)
	if err != nil {
		return 0, 0, err
	}
	lon, err := ParseCoordinate(lonV, lonH)
	if err != nil {
		return 0, 0, err
	}
	if !validLatitude(lat) || !validLongitude(lon) {
		return 0, 0, fmt.Errorf("%w: coordinates %f,%f out of range", ErrInvalidFix, lat, lon)
	}
	return lat, lon, nil
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func optInt(f []string, i int) *int {
	if i >= len(f) {
		return nil
	}
	v, ok := parseInt(f[i])
	if !ok {
		return nil
	}
	return &v
}
