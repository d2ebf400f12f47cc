// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package tracker runs the per-line pipeline: parse, decode, fuse and, while
// recording, aggregate. Every operation runs under one lock, so lines are
// processed one at a time in arrival order and user commands interleave
// between lines, never inside one.
package tracker

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/gps_tracker/internal/events"
	"github.com/relabs-tech/gps_tracker/internal/gps"
	"github.com/relabs-tech/gps_tracker/internal/session"
)

// Options configure a Tracker.
type Options struct {
	// ValidateChecksum rejects lines whose "*XX" checksum is missing or wrong.
	ValidateChecksum bool
	// Timestamps selects the fused fix timestamp policy.
	Timestamps gps.TimestampPolicy
	// Now overrides the wall clock, mainly for tests.
	Now func() time.Time
}

// Tracker owns the decode/fuse state and the session manager, and publishes
// every outcome on the bus.
type Tracker struct {
	mu sync.Mutex

	opts     Options
	logger   *zap.SugaredLogger
	bus      *events.Bus
	decoder  *gps.Decoder
	fuser    *gps.Fuser
	sessions *session.Manager

	port string
	baud int
}

// New builds a disconnected, idle tracker.
func New(opts Options, settings session.Settings, bus *events.Bus, logger *zap.SugaredLogger) *Tracker {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	opts.Now = now

	sessions := session.NewManager(settings, logger.Named("session"))
	sessions.Now = now

	return &Tracker{
		opts:     opts,
		logger:   logger,
		bus:      bus,
		decoder:  &gps.Decoder{Now: now},
		fuser:    &gps.Fuser{Policy: opts.Timestamps, Now: now},
		sessions: sessions,
	}
}

// HandleLine runs one raw line through the pipeline. Lines that fail to
// parse or decode are logged and dropped.
func (t *Tracker) HandleLine(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := gps.ParseSentence(line, t.opts.ValidateChecksum)
	if err != nil {
		if errors.Is(err, gps.ErrUnknownSentence) {
			t.logger.Debugw("tracker: ignoring sentence", "type", s.Type, "talker", s.Talker)
		} else {
			t.logger.Debugw("tracker: dropping line", "error", err, "line", line)
		}
		return
	}

	rec, err := t.decoder.Decode(s)
	if err != nil {
		t.logger.Debugw("tracker: rejected sentence", "type", s.Type, "error", err)
		return
	}

	now := t.opts.Now()
	switch {
	case rec.Position != nil:
		t.fuser.OnPosition(*rec.Position)
		t.bus.Publish(events.Event{Kind: events.KindPosition, Time: now, Position: rec.Position})

	case rec.Navigation != nil:
		t.bus.Publish(events.Event{Kind: events.KindNavigation, Time: now, Navigation: rec.Navigation})
		fix, ok := t.fuser.OnNavigation(*rec.Navigation)
		if !ok {
			t.logger.Debugw("tracker: navigation fix without position", "utc_time", rec.Navigation.UTCTime)
			return
		}
		t.bus.Publish(events.Event{Kind: events.KindFix, Time: now, Fix: &fix})
		if t.sessions.Update(fix) {
			live := t.sessions.LiveStats()
			t.logger.Debugw("tracker: point recorded", "points", live.Points, "distance_km", live.DistanceKm)
		}

	case rec.Course != nil:
		t.bus.Publish(events.Event{Kind: events.KindCourse, Time: now, Course: rec.Course})

	case rec.Satellites != nil:
		t.bus.Publish(events.Event{Kind: events.KindSatellites, Time: now, Satellites: rec.Satellites})
	}
}

// Connect marks the link as up on port at baud. Any state left from a
// previous connection is discarded.
func (t *Tracker) Connect(port string, baud int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sessions.Connected() {
		t.disconnectLocked(nil)
	}
	t.port, t.baud = port, baud
	t.fuser.Reset()
	t.sessions.Connect()
	t.logger.Infow("tracker: connected", "port", port, "baud", baud)
	t.bus.Publish(events.Event{
		Kind:       events.KindConnection,
		Time:       t.opts.Now(),
		Connection: &events.ConnectionStatus{Connected: true, Port: port, BaudRate: baud},
	})
}

// Disconnect tears the link down. cause is the link failure, if any. A
// session in progress is finalized and published, and the pending position
// is dropped.
func (t *Tracker) Disconnect(cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnectLocked(cause)
}

func (t *Tracker) disconnectLocked(cause error) {
	t.fuser.Reset()
	if s, stopped := t.sessions.Disconnect(); stopped {
		t.publishStopped(s)
	}
	status := &events.ConnectionStatus{Connected: false, Port: t.port}
	if cause != nil {
		status.Error = cause.Error()
		t.logger.Warnw("tracker: link lost", "port", t.port, "error", cause)
	} else {
		t.logger.Infow("tracker: disconnected", "port", t.port)
	}
	t.bus.Publish(events.Event{Kind: events.KindConnection, Time: t.opts.Now(), Connection: status})
}

// LinkFailed reports a failure to open the link. The tracker stays
// disconnected; the caller may retry.
func (t *Tracker) LinkFailed(port string, baud int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logger.Warnw("tracker: link open failed", "port", port, "error", err)
	t.bus.Publish(events.Event{
		Kind:       events.KindConnection,
		Time:       t.opts.Now(),
		Connection: &events.ConnectionStatus{Connected: false, Port: port, BaudRate: baud, Error: err.Error()},
	})
}

// StartRecording begins a session. It fails with session.ErrPrecondition
// when there is no connection or no valid position.
func (t *Tracker) StartRecording() (session.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startLocked(false)
}

// StartRecordingFromCurrent begins a session whose first point is the
// current position, so the fix that triggered the start is not lost.
func (t *Tracker) StartRecordingFromCurrent() (session.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startLocked(true)
}

func (t *Tracker) startLocked(withCurrent bool) (session.Session, error) {
	s, err := t.sessions.Start()
	if err != nil {
		t.logger.Infow("tracker: start recording refused", "error", err)
		return session.Session{}, err
	}
	if withCurrent && t.sessions.RecordCurrent() {
		if active, ok := t.sessions.Active(); ok {
			s = active
		}
	}
	t.bus.Publish(events.Event{
		Kind:      events.KindRecording,
		Time:      t.opts.Now(),
		Recording: &events.RecordingStatus{IsRecording: true, SessionID: s.ID},
	})
	return s, nil
}

// StopRecording finalizes the session in progress.
func (t *Tracker) StopRecording() (session.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.sessions.Stop()
	if err != nil {
		return session.Session{}, err
	}
	t.publishStopped(s)
	return s, nil
}

func (t *Tracker) publishStopped(s session.Session) {
	now := t.opts.Now()
	t.bus.Publish(events.Event{Kind: events.KindRecording, Time: now, Recording: &events.RecordingStatus{IsRecording: false, SessionID: s.ID}})
	t.bus.Publish(events.Event{Kind: events.KindSession, Time: now, Session: &s})
}

// AddWaypoint marks the current position.
func (t *Tracker) AddWaypoint(typ, note string) (session.Waypoint, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions.AddWaypoint(typ, note)
}

// PublishLiveStats broadcasts the running statistics of the session in
// progress. It does nothing while idle.
func (t *Tracker) PublishLiveStats() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessions.State() != session.Recording {
		return
	}
	live := t.sessions.LiveStats()
	t.bus.Publish(events.Event{Kind: events.KindLiveStats, Time: t.opts.Now(), LiveStats: &live})
}

// Status is a point-in-time view of the tracker.
type Status struct {
	Connection events.ConnectionStatus `json:"connection"`
	Recording  events.RecordingStatus  `json:"recording"`
	Position   *gps.Fix                `json:"position,omitempty"`
	LiveStats  *session.LiveStats      `json:"live_stats,omitempty"`
}

// Status returns the current connection, recording state and position.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := Status{Connection: events.ConnectionStatus{Connected: t.sessions.Connected()}}
	if st.Connection.Connected {
		st.Connection.Port, st.Connection.BaudRate = t.port, t.baud
	}
	if fix, ok := t.sessions.Current(); ok {
		st.Position = &fix
	}
	if active, ok := t.sessions.Active(); ok {
		live := t.sessions.LiveStats()
		st.Recording = events.RecordingStatus{IsRecording: true, SessionID: active.ID}
		st.LiveStats = &live
	}
	return st
}

// CurrentPosition returns the latest valid fused fix.
func (t *Tracker) CurrentPosition() (gps.Fix, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions.Current()
}

// ActiveSession returns a copy of the session in progress.
func (t *Tracker) ActiveSession() (session.Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions.Active()
}

// IdleWaypoints returns the waypoints added outside a session.
func (t *Tracker) IdleWaypoints() []session.Waypoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions.IdleWaypoints()
}

// History returns finished sessions, most recent first.
func (t *Tracker) History() []session.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions.History()
}

// Session looks up a finished session.
func (t *Tracker) Session(id string) (session.Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions.Session(id)
}

// LoadHistory restores finished sessions.
func (t *Tracker) LoadHistory(sessions []session.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions.LoadHistory(sessions)
}

// Settings returns the recording settings.
func (t *Tracker) Settings() session.Settings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions.Settings()
}

// SetSettings validates and applies new recording settings.
func (t *Tracker) SetSettings(s session.Settings) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions.SetSettings(s)
}
