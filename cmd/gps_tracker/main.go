// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/relabs-tech/gps_tracker/internal/app"
	"github.com/relabs-tech/gps_tracker/internal/config"
	"github.com/relabs-tech/gps_tracker/internal/events"
	"github.com/relabs-tech/gps_tracker/internal/gps"
	"github.com/relabs-tech/gps_tracker/internal/session"
	"github.com/relabs-tech/gps_tracker/internal/tracker"
)

const (
	flagConfig = "config"
	flagDebug  = "debug"
	flagStatic = "static"
	flagOut    = "out"
)

func main() {
	cliApp := &cli.App{
		Name:  "gps_tracker",
		Usage: "read NMEA from a serial GPS, record sessions and export tracks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Value:   "gps_tracker_config.txt",
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "track the configured serial device and serve the web UI",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagStatic,
						Value: "web",
						Usage: "serve static files from `DIR` (empty to disable)",
					},
				},
				Action: runAction,
			},
			{
				Name:      "replay",
				Usage:     "record a session from an NMEA log and write GPX and GeoJSON",
				ArgsUsage: "<nmea log>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagOut,
						Usage: "output base name (defaults to the log name without extension)",
					},
				},
				Action: replayAction,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "gps_tracker:", err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	logger, err := app.NewLogger(c.Bool(flagDebug))
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return logger, nil
}

func runAction(c *cli.Context) error {
	if err := config.InitGlobal(c.String(flagConfig)); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() {
		// stdout sync fails on terminals, ignore that one
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sugar := logger.Sugar()
	sugar.Infow("starting gps tracker", "config", c.String(flagConfig))
	return app.Run(ctx, config.Get(), c.String(flagStatic), sugar)
}

func replayAction(c *cli.Context) (err error) {
	if c.NArg() != 1 {
		return cli.Exit("replay needs exactly one NMEA log file", 2)
	}
	path := c.Args().First()

	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	bus := events.NewBus()
	defer bus.Close()
	t := tracker.New(tracker.Options{Timestamps: gps.SentenceTime}, session.DefaultSettings(), bus, sugar.Named("tracker"))

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	done, err := app.Replay(ctx, f, t, sugar)
	if err != nil {
		return err
	}

	base := c.String(flagOut)
	if base == "" {
		base = strings.TrimSuffix(path, ".nmea")
		base = strings.TrimSuffix(base, ".txt")
		base = strings.TrimSuffix(base, ".log")
	}
	names, err := app.WriteExports(base, done)
	if err != nil {
		return err
	}
	for _, n := range names {
		sugar.Infow("replay: wrote export", "file", n, "session", done.ID)
	}
	return nil
}
