// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package events carries decoded fixes and status changes from the tracker
// to its consumers (MQTT, web clients, stores).
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/gps_tracker/internal/gps"
	"github.com/relabs-tech/gps_tracker/internal/session"
)

// Kind names an event type. The values double as JSON "type" fields.
type Kind string

const (
	KindPosition   Kind = "position"
	KindNavigation Kind = "navigation"
	KindFix        Kind = "gps"
	KindCourse     Kind = "course"
	KindSatellites Kind = "satellites"
	KindConnection Kind = "connection-status"
	KindRecording  Kind = "recording-status"
	KindLiveStats  Kind = "live-stats"
	KindSession    Kind = "session"
)

// ConnectionStatus describes the serial link.
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	Port      string `json:"port,omitempty"`
	BaudRate  int    `json:"baud_rate,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RecordingStatus describes the session manager state.
type RecordingStatus struct {
	IsRecording bool   `json:"is_recording"`
	SessionID   string `json:"session_id,omitempty"`
}

// Event is one typed message. Exactly one payload field is set, matching
// Kind.
type Event struct {
	Kind Kind      `json:"type"`
	Time time.Time `json:"time"`

	Position   *gps.PositionFix   `json:"position,omitempty"`
	Navigation *gps.NavigationFix `json:"navigation,omitempty"`
	Fix        *gps.Fix           `json:"fix,omitempty"`
	Course     *gps.CourseFix     `json:"course,omitempty"`
	Satellites *gps.SatelliteView `json:"satellites,omitempty"`
	Connection *ConnectionStatus  `json:"connection,omitempty"`
	Recording  *RecordingStatus   `json:"recording,omitempty"`
	LiveStats  *session.LiveStats `json:"live_stats,omitempty"`
	Session    *session.Session   `json:"session,omitempty"`
}

// Payload returns the payload field matching Kind.
func (e Event) Payload() interface{} {
	switch e.Kind {
	case KindPosition:
		return e.Position
	case KindNavigation:
		return e.Navigation
	case KindFix:
		return e.Fix
	case KindCourse:
		return e.Course
	case KindSatellites:
		return e.Satellites
	case KindConnection:
		return e.Connection
	case KindRecording:
		return e.Recording
	case KindLiveStats:
		return e.LiveStats
	case KindSession:
		return e.Session
	default:
		return nil
	}
}

// Subscription receives events on C until it is unsubscribed or the bus is
// closed, at which point C is closed.
type Subscription struct {
	C <-chan Event

	ch      chan Event
	kinds   map[Kind]bool
	dropped atomic.Uint64
}

// Dropped returns how many events were discarded because C was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscriber with the given buffer size. With no kinds
// it receives every event, otherwise only the listed kinds. Subscribing to a
// closed bus returns a subscription whose channel is already closed.
func (b *Bus) Subscribe(buffer int, kinds ...Kind) *Subscription {
	ch := make(chan Event, buffer)
	s := &Subscription{C: ch, ch: ch}
	if len(kinds) > 0 {
		s.kinds = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Unsubscribe removes s and closes its channel. It is safe to call more
// than once.
func (b *Bus) Unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; !ok {
		return
	}
	delete(b.subs, s)
	close(s.ch)
}

// Publish delivers e to every matching subscriber without blocking.
func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		if s.kinds != nil && !s.kinds[e.Kind] {
			continue
		}
		select {
		case s.ch <- e:
		default:
			s.dropped.Add(1)
		}
	}
}

// Close unsubscribes everyone. Later publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
		delete(b.subs, s)
	}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
