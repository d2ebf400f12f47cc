// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/relabs-tech/gps_tracker/internal/config"
	"github.com/relabs-tech/gps_tracker/internal/events"
	"github.com/relabs-tech/gps_tracker/internal/session"
	"github.com/relabs-tech/gps_tracker/internal/store"
	"github.com/relabs-tech/gps_tracker/internal/tracker"
)

// NewLogger builds the console logger shared by the commands: UTC ISO8601
// timestamps, colored levels, no stack traces.
func NewLogger(debug bool) (*zap.Logger, error) {
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}
	cfg := zap.Config{
		Level:    zap.NewAtomicLevelAt(level),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	return cfg.Build()
}

// serialTarget picks the port to open: the user's preferred port and baud
// rate when set, the configured ones otherwise.
func serialTarget(cfg *config.Config, s session.Settings) (string, int) {
	if s.PreferredPort != "" {
		return s.PreferredPort, s.BaudRate
	}
	return cfg.GPSSerialPort, cfg.GPSBaudRate
}

// Run wires the tracker to its collaborators (serial reader, live stats,
// history store, web server and the optional MQTT and InfluxDB sinks) and
// blocks until ctx is cancelled or a collaborator fails.
func Run(ctx context.Context, cfg *config.Config, staticDir string, logger *zap.SugaredLogger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st := store.New(cfg.StorePath, cfg.HistoryLimit)
	state, loadErr := st.Load()
	if loadErr != nil {
		logger.Warnw("store: starting with defaults", "error", loadErr)
	}

	bus := events.NewBus()
	defer bus.Close()

	t := tracker.New(tracker.Options{ValidateChecksum: cfg.GPSValidateChecksum}, state.Settings, bus, logger.Named("tracker"))
	t.LoadHistory(state.History)
	logger.Infow("tracker: ready", "history", len(state.History), "settings", state.Settings)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
				cancel()
			}
		}()
	}

	if cfg.MQTTBroker != "" {
		client, err := ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDTracker, logger.Named("mqtt"))
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		topics := TopicsFromConfig(cfg)
		spawn("mqtt", func(ctx context.Context) error {
			return RunMQTTPublisher(ctx, client, bus, topics, logger.Named("mqtt"))
		})
	}

	if cfg.InfluxURL != "" {
		w, closeInflux := NewInfluxWriter(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, logger.Named("influx"))
		defer closeInflux()
		spawn("influx", func(ctx context.Context) error {
			return RunInfluxSink(ctx, w, bus, logger.Named("influx"))
		})
	}

	// The history sink outlives ctx so the session stopped by the final
	// disconnect is still saved; it returns once the bus is closed.
	historyDone := make(chan struct{})
	go func() {
		defer close(historyDone)
		_ = RunHistorySink(context.Background(), st, bus, logger.Named("store"))
	}()
	spawn("live-stats", func(ctx context.Context) error {
		return RunLiveStats(ctx, t)
	})

	if cfg.WebServerPort > 0 {
		web := NewWebServer(t, bus, st, staticDir, logger.Named("web"))
		addr := fmt.Sprintf(":%d", cfg.WebServerPort)
		spawn("web", func(ctx context.Context) error {
			return RunWeb(ctx, addr, web.Handler(), logger.Named("web"))
		})
	}

	port, baud := serialTarget(cfg, state.Settings)
	serialOpts := SerialOptions{
		Port:           port,
		BaudRate:       baud,
		ReconnectDelay: time.Duration(cfg.GPSReconnectDelay) * time.Millisecond,
	}
	spawn("gps", func(ctx context.Context) error {
		return RunGPSProducer(ctx, serialOpts, t, logger.Named("gps"))
	})

	<-ctx.Done()
	wg.Wait()
	bus.Close()
	<-historyDone
	logger.Info("gps_tracker: shut down")
	return errs
}
