// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/gps_tracker/internal/events"
	"github.com/relabs-tech/gps_tracker/internal/session"
	"github.com/relabs-tech/gps_tracker/internal/tracker"
)

// sessionSaver is the part of store.Store the history sink needs.
type sessionSaver interface {
	AddSession(session.Session) error
}

// RunHistorySink persists every finished session. Save failures are logged
// and never reach the pipeline.
func RunHistorySink(ctx context.Context, store sessionSaver, bus *events.Bus, logger *zap.SugaredLogger) error {
	sub := bus.Subscribe(16, events.KindSession)
	defer bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := store.AddSession(*e.Session); err != nil {
				logger.Errorw("store: saving session failed", "session", e.Session.ID, "error", err)
				continue
			}
			logger.Infow("store: session saved", "session", e.Session.ID, "points", e.Session.TotalPoints)
		}
	}
}

// RunLiveStats broadcasts the running session statistics every
// RecordingIntervalMs. The interval is re-read on every tick so settings
// changes apply without a restart.
func RunLiveStats(ctx context.Context, t *tracker.Tracker) error {
	interval := liveStatsInterval(t.Settings())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.PublishLiveStats()
			if next := liveStatsInterval(t.Settings()); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

func liveStatsInterval(s session.Settings) time.Duration {
	if s.RecordingIntervalMs <= 0 {
		return time.Duration(session.DefaultSettings().RecordingIntervalMs) * time.Millisecond
	}
	return time.Duration(s.RecordingIntervalMs) * time.Millisecond
}
