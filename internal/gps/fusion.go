// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import "time"

// TimestampPolicy selects the timestamp stamped on fused fixes.
type TimestampPolicy int

const (
	// CaptureTime stamps each fused fix with the wall clock at fusion.
	CaptureTime TimestampPolicy = iota
	// SentenceTime stamps each fused fix with the RMC date+time, falling
	// back to the wall clock when the sentence carried none. Used when
	// replaying recorded logs.
	SentenceTime
)

// Fuser pairs the latest position fix with each navigation fix.
//
// Policy: a GGA position is held, never emitted alone. Every valid RMC that
// arrives while a position is held yields one fused Fix; the held position
// is kept for the next RMC until a fresher GGA replaces it. An RMC with no
// held position is dropped.
type Fuser struct {
	Policy TimestampPolicy
	Now    func() time.Time

	pending *PositionFix
}

// NewFuser returns a Fuser using the CaptureTime policy.
func NewFuser() *Fuser {
	return &Fuser{Now: func() time.Time { return time.Now().UTC() }}
}

// OnPosition stores p as the pending position.
func (f *Fuser) OnPosition(p PositionFix) {
	f.pending = &p
}

// OnNavigation fuses n with the pending position. It returns false when no
// position is pending.
func (f *Fuser) OnNavigation(n NavigationFix) (Fix, bool) {
	if f.pending == nil {
		return Fix{}, false
	}
	p := f.pending
	fix := Fix{
		UTCTime:     p.UTCTime,
		Date:        n.Date,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		Altitude:    p.Altitude,
		GeoidHeight: p.GeoidHeight,
		Quality:     p.Quality,
		Satellites:  p.Satellites,
		HDOP:        p.HDOP,
		Accuracy:    p.Accuracy,
		SpeedKmh:    n.SpeedKmh,
		CourseDeg:   n.CourseDeg,
		Timestamp:   f.Now(),
	}
	if f.Policy == SentenceTime && !n.Timestamp.IsZero() {
		fix.Timestamp = n.Timestamp
	}
	if !fix.Valid() {
		return Fix{}, false
	}
	return fix, true
}

// Pending returns a copy of the pending position, if any.
func (f *Fuser) Pending() (PositionFix, bool) {
	if f.pending == nil {
		return PositionFix{}, false
	}
	return *f.pending, true
}

// Reset drops the pending position.
func (f *Fuser) Reset() {
	f.pending = nil
}
