package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/gps_tracker/internal/config"
	"github.com/relabs-tech/gps_tracker/internal/events"
	"github.com/relabs-tech/gps_tracker/internal/gps"
	"github.com/relabs-tech/gps_tracker/internal/session"
)

// RunConsoleMQTT subscribes to the tracker topics and prints one line per
// message to out until ctx is cancelled.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, out io.Writer, logger *zap.SugaredLogger) error {
	client, err := ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	for kind, topic := range TopicsFromConfig(cfg) {
		if topic == "" {
			continue
		}
		kind := kind
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			line, err := formatConsoleLine(kind, msg.Payload())
			if err != nil {
				logger.Warnw("console: unmarshal error", "topic", msg.Topic(), "error", err)
				return
			}
			fmt.Fprintln(out, line)
		})
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", topic, token.Error())
		}
		logger.Infow("console: subscribed", "topic", topic)
	}

	<-ctx.Done()
	logger.Info("console: shutting down")
	return nil
}

// formatConsoleLine renders one published payload for the terminal.
func formatConsoleLine(kind events.Kind, payload []byte) (string, error) {
	switch kind {
	case events.KindFix:
		var f gps.Fix
		if err := json.Unmarshal(payload, &f); err != nil {
			return "", err
		}
		return fmt.Sprintf("[GPS ]  time=%s date=%s lat=%.6f lon=%.6f alt=%.1fm speed=%.1fkm/h course=%.1f° sats=%d%s",
			f.UTCTime, f.Date, f.Latitude, f.Longitude, f.Altitude, f.SpeedKmh, f.CourseDeg, f.Satellites, accuracySuffix(f.Accuracy)), nil

	case events.KindPosition:
		var p gps.PositionFix
		if err := json.Unmarshal(payload, &p); err != nil {
			return "", err
		}
		return fmt.Sprintf("[GGA ]  time=%s lat=%.6f lon=%.6f alt=%.1fm quality=%d sats=%d%s",
			p.UTCTime, p.Latitude, p.Longitude, p.Altitude, p.Quality, p.Satellites, accuracySuffix(p.Accuracy)), nil

	case events.KindNavigation:
		var n gps.NavigationFix
		if err := json.Unmarshal(payload, &n); err != nil {
			return "", err
		}
		return fmt.Sprintf("[RMC ]  time=%s date=%s lat=%.6f lon=%.6f speed=%.1fkm/h course=%.1f°",
			n.UTCTime, n.Date, n.Latitude, n.Longitude, n.SpeedKmh, n.CourseDeg), nil

	case events.KindCourse:
		var c gps.CourseFix
		if err := json.Unmarshal(payload, &c); err != nil {
			return "", err
		}
		return fmt.Sprintf("[VTG ]  course=%.1f° speed=%.1fkm/h", c.CourseDeg, c.SpeedKmh), nil

	case events.KindSatellites:
		var v gps.SatelliteView
		if err := json.Unmarshal(payload, &v); err != nil {
			return "", err
		}
		return fmt.Sprintf("[GSV ]  %s msg %d/%d in_view=%d listed=%d",
			v.Talker, v.MessageNumber, v.TotalMessages, v.TotalSatellitesInView, len(v.Satellites)), nil

	case events.KindConnection:
		var s events.ConnectionStatus
		if err := json.Unmarshal(payload, &s); err != nil {
			return "", err
		}
		line := fmt.Sprintf("[LINK]  connected=%t port=%s baud=%d", s.Connected, s.Port, s.BaudRate)
		if s.Error != "" {
			line += " error=" + s.Error
		}
		return line, nil

	case events.KindRecording:
		var s events.RecordingStatus
		if err := json.Unmarshal(payload, &s); err != nil {
			return "", err
		}
		return fmt.Sprintf("[REC ]  recording=%t session=%s", s.IsRecording, s.SessionID), nil

	case events.KindLiveStats:
		var l session.LiveStats
		if err := json.Unmarshal(payload, &l); err != nil {
			return "", err
		}
		return fmt.Sprintf("[LIVE]  points=%d distance=%.3fkm duration=%.0fs speed=%.1fkm/h max=%.1fkm/h",
			l.Points, l.DistanceKm, l.DurationSec, l.SpeedKmh, l.MaxSpeedKmh), nil

	case events.KindSession:
		var s session.Session
		if err := json.Unmarshal(payload, &s); err != nil {
			return "", err
		}
		return fmt.Sprintf("[SESS]  id=%s points=%d distance=%.3fkm max_speed=%.1fkm/h avg_accuracy=%.1fm",
			s.ID, s.TotalPoints, s.DistanceKm, s.MaxSpeedKmh, s.AvgAccuracyM), nil
	}
	return "", fmt.Errorf("unknown kind %q", kind)
}

func accuracySuffix(acc *float64) string {
	if acc == nil {
		return ""
	}
	return fmt.Sprintf(" acc=%.1fm", *acc)
}
