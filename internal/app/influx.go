// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"strconv"

	influxdb "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/relabs-tech/gps_tracker/internal/events"
	"github.com/relabs-tech/gps_tracker/internal/gps"
)

// fixMeasurement is the InfluxDB measurement fused fixes are written to.
const fixMeasurement = "gps_fix"

// pointWriter is the part of api.WriteAPI the sink needs.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// fixPoint converts a fused fix into a time-series point stamped with the
// fix timestamp.
func fixPoint(f gps.Fix) *write.Point {
	p := influxdb.NewPointWithMeasurement(fixMeasurement).
		AddTag("quality", strconv.Itoa(f.Quality)).
		AddField("latitude", f.Latitude).
		AddField("longitude", f.Longitude).
		AddField("altitude", f.Altitude).
		AddField("speed_kmh", f.SpeedKmh).
		AddField("course_deg", f.CourseDeg).
		AddField("satellites", f.Satellites).
		SetTime(f.Timestamp)
	if f.HDOP != nil {
		p.AddField("hdop", *f.HDOP)
	}
	if f.Accuracy != nil {
		p.AddField("accuracy_m", *f.Accuracy)
	}
	return p
}

// RunInfluxSink writes every fused fix to InfluxDB until ctx is cancelled
// or the bus is closed. Pending points are flushed on return.
func RunInfluxSink(ctx context.Context, w pointWriter, bus *events.Bus, logger *zap.SugaredLogger) error {
	sub := bus.Subscribe(256, events.KindFix)
	defer bus.Unsubscribe(sub)
	defer func() {
		w.Flush()
		if n := sub.Dropped(); n > 0 {
			logger.Warnw("influx: fixes dropped, writer too slow", "count", n)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-sub.C:
			if !ok {
				return nil
			}
			w.WritePoint(fixPoint(*e.Fix))
		}
	}
}

// NewInfluxWriter opens a non-blocking write API and logs asynchronous
// write errors. The returned close func flushes and closes the client.
func NewInfluxWriter(url, token, org, bucket string, logger *zap.SugaredLogger) (pointWriter, func()) {
	client := influxdb.NewClient(url, token)
	writeAPI := client.WriteAPI(org, bucket)
	go func() {
		for err := range writeAPI.Errors() {
			logger.Warnw("influx: write error", "error", err)
		}
	}()
	logger.Infow("influx: writing fixes", "url", url, "bucket", bucket)
	return writeAPI, func() {
		writeAPI.Flush()
		client.Close()
	}
}
