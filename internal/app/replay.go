// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/relabs-tech/gps_tracker/internal/export"
	"github.com/relabs-tech/gps_tracker/internal/session"
	"github.com/relabs-tech/gps_tracker/internal/tracker"
)

// ReplayPort is the port name reported while replaying a log.
const ReplayPort = "replay"

// ErrNoFix is returned by Replay when the log never yields a valid fix.
var ErrNoFix = errors.New("replay: no valid fix in input")

// Replay feeds a recorded NMEA log through the tracker as if it came from
// a device. Recording starts with the first valid fix as its first point
// and stops at EOF; the finished session is returned.
func Replay(ctx context.Context, r io.Reader, t *tracker.Tracker, logger *zap.SugaredLogger) (session.Session, error) {
	t.Connect(ReplayPort, 0)
	defer t.Disconnect(nil)

	reader := bufio.NewReader(r)
	recording := false
	lines := 0
	for {
		if err := ctx.Err(); err != nil {
			return session.Session{}, err
		}
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			lines++
			t.HandleLine(line)
			if !recording {
				if _, ok := t.CurrentPosition(); ok {
					started, startErr := t.StartRecordingFromCurrent()
					if startErr != nil {
						return session.Session{}, startErr
					}
					recording = true
					logger.Infow("replay: recording started", "session", started.ID, "line", lines)
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return session.Session{}, fmt.Errorf("replay: read: %w", err)
		}
	}

	if !recording {
		return session.Session{}, ErrNoFix
	}
	done, err := t.StopRecording()
	if err != nil {
		return session.Session{}, err
	}
	logger.Infow("replay: finished",
		"lines", lines,
		"points", done.TotalPoints,
		"distance_km", done.DistanceKm,
		"max_speed_kmh", done.MaxSpeedKmh,
	)
	return done, nil
}

// WriteExports writes s as <base>.gpx and <base>.geojson and returns the
// file names.
func WriteExports(base string, s session.Session) ([]string, error) {
	tr := export.FromSession(s)
	outputs := []struct {
		ext   string
		write func(io.Writer, export.Track) error
	}{
		{".gpx", export.WriteGPX},
		{".geojson", export.WriteGeoJSON},
	}

	var names []string
	for _, o := range outputs {
		name := base + o.ext
		if err := writeFile(name, func(w io.Writer) error { return o.write(w, tr) }); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}

func writeFile(name string, write func(io.Writer) error) (err error) {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return bw.Flush()
}
