// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relabs-tech/gps_tracker/internal/gps"
)

// ErrPrecondition is wrapped by every operation refused because of the
// manager's state. The wrapping error carries the human-readable reason.
var ErrPrecondition = errors.New("precondition not met")

// State is the recording state.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

// Manager owns the connection flag, the current position, the session in
// progress and the session history. It is not safe for concurrent use; the
// tracker serializes all calls.
type Manager struct {
	Now   func() time.Time
	NewID func() string

	logger   *zap.SugaredLogger
	settings Settings

	connected bool
	current   *gps.Fix

	state  State
	active *Session
	live   LiveStats

	idleWaypoints []Waypoint
	history       []Session // most recent first
}

// NewManager returns an idle, disconnected manager.
func NewManager(settings Settings, logger *zap.SugaredLogger) *Manager {
	return &Manager{
		Now:      func() time.Time { return time.Now().UTC() },
		NewID:    newID,
		logger:   logger,
		settings: settings,
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func precondition(reason string) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, reason)
}

// Settings returns the current settings.
func (m *Manager) Settings() Settings {
	return m.settings
}

// SetSettings validates and replaces the settings. A new accuracy threshold
// applies to fixes recorded from now on.
func (m *Manager) SetSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.settings = s
	return nil
}

// Connected reports whether the link is up.
func (m *Manager) Connected() bool {
	return m.connected
}

// Connect marks the link as up and clears the position left over from a
// previous connection. Idle waypoints survive reconnects.
func (m *Manager) Connect() {
	m.connected = true
	m.current = nil
}

// Disconnect marks the link as down. A session in progress is finalized and
// returned.
func (m *Manager) Disconnect() (Session, bool) {
	m.connected = false
	if m.state != Recording {
		return Session{}, false
	}
	s, err := m.Stop()
	if err != nil {
		return Session{}, false
	}
	m.logger.Infow("session: stopped on disconnect", "id", s.ID, "points", s.TotalPoints)
	return s, true
}

// State returns the recording state.
func (m *Manager) State() State {
	return m.state
}

// Current returns the latest valid fix.
func (m *Manager) Current() (gps.Fix, bool) {
	if m.current == nil {
		return gps.Fix{}, false
	}
	return *m.current, true
}

// Update makes fix the current position and, while recording, records it if
// it passes the accuracy gate. It reports whether the fix was recorded.
func (m *Manager) Update(fix gps.Fix) bool {
	if !fix.Valid() {
		return false
	}
	m.current = &fix
	if m.state != Recording {
		return false
	}

	if fix.Accuracy != nil && *fix.Accuracy > m.settings.AccuracyThresholdM {
		m.logger.Debugw("session: fix above accuracy threshold", "accuracy_m", *fix.Accuracy, "threshold_m", m.settings.AccuracyThresholdM)
		return false
	}

	pts := m.active.Positions
	var first, prev *TrackPoint
	if n := len(pts); n > 0 {
		first, prev = &pts[0], &pts[n-1]
		if fix.Timestamp.Before(prev.Timestamp) {
			m.logger.Debugw("session: fix older than last point", "timestamp", fix.Timestamp, "last", prev.Timestamp)
			return false
		}
	}
	p := TrackPoint{Fix: fix}
	if first == nil {
		first = &p
	}
	m.live.add(first, prev, p)
	m.active.Positions = append(m.active.Positions, p)
	m.active.TotalPoints = len(m.active.Positions)
	return true
}

// Start begins a new session. It requires a connection and a current valid
// position.
func (m *Manager) Start() (Session, error) {
	if m.state == Recording {
		return Session{}, precondition("already recording")
	}
	if !m.connected {
		return Session{}, precondition("GPS device not connected")
	}
	if m.current == nil {
		return Session{}, precondition("no valid GPS position")
	}

	m.active = &Session{
		ID:        m.NewID(),
		StartTime: m.Now(),
		Positions: []TrackPoint{},
		Waypoints: []Waypoint{},
	}
	m.live = LiveStats{}
	m.state = Recording
	m.logger.Infow("session: recording started", "id", m.active.ID)
	return *m.active, nil
}

// RecordCurrent offers the current position to the session in progress, as
// if it had just arrived. It reports whether it was recorded.
func (m *Manager) RecordCurrent() bool {
	if m.current == nil || m.state != Recording {
		return false
	}
	return m.Update(*m.current)
}

// Stop finalizes the session in progress, pushes it to the front of the
// history and returns it.
func (m *Manager) Stop() (Session, error) {
	if m.state != Recording {
		return Session{}, precondition("not recording")
	}

	s := *m.active
	s.EndTime = m.Now()
	st := ComputeStats(s.Positions)
	s.TotalPoints = st.TotalPoints
	s.DistanceKm = st.DistanceKm
	s.MaxSpeedKmh = st.MaxSpeedKmh
	s.AvgAccuracyM = st.AvgAccuracyM

	m.history = append([]Session{s}, m.history...)
	m.active = nil
	m.live = LiveStats{}
	m.state = Idle
	m.logger.Infow("session: recording stopped",
		"id", s.ID, "points", s.TotalPoints, "distance_km", s.DistanceKm, "max_speed_kmh", s.MaxSpeedKmh)
	return s.clone(), nil
}

// Active returns a copy of the session in progress.
func (m *Manager) Active() (Session, bool) {
	if m.active == nil {
		return Session{}, false
	}
	return m.active.clone(), true
}

// LiveStats returns the running figures of the session in progress.
func (m *Manager) LiveStats() LiveStats {
	return m.live
}

// AddWaypoint snapshots the current position. It does not need a session:
// while recording the waypoint belongs to the session, otherwise it is kept
// with the idle waypoints. An empty type defaults to Info.
func (m *Manager) AddWaypoint(typ, note string) (Waypoint, error) {
	if m.current == nil {
		return Waypoint{}, precondition("no valid GPS position")
	}
	typ = strings.TrimSpace(typ)
	if typ == "" {
		typ = WaypointInfo
	}
	w := Waypoint{
		ID:        m.NewID(),
		Timestamp: m.Now(),
		Type:      typ,
		Note:      note,
		Position:  *m.current,
	}
	if m.state == Recording {
		m.active.Waypoints = append(m.active.Waypoints, w)
	} else {
		m.idleWaypoints = append(m.idleWaypoints, w)
	}
	return w, nil
}

// IdleWaypoints returns the waypoints added outside a session.
func (m *Manager) IdleWaypoints() []Waypoint {
	return append([]Waypoint(nil), m.idleWaypoints...)
}

// History returns finished sessions, most recent first.
func (m *Manager) History() []Session {
	out := make([]Session, len(m.history))
	for i, s := range m.history {
		out[i] = s.clone()
	}
	return out
}

// Session looks up a finished session by id.
func (m *Manager) Session(id string) (Session, bool) {
	for _, s := range m.history {
		if s.ID == id {
			return s.clone(), true
		}
	}
	return Session{}, false
}

// LoadHistory replaces the history, e.g. with sessions restored from disk.
// Sessions without an end time are dropped.
func (m *Manager) LoadHistory(sessions []Session) {
	m.history = nil
	for _, s := range sessions {
		if !s.Finalized() {
			continue
		}
		m.history = append(m.history, s.clone())
	}
}
