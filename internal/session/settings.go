// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import "fmt"

// Settings are the user-facing recording settings, persisted across runs.
type Settings struct {
	// RecordingIntervalMs is the period at which live statistics are
	// broadcast while recording.
	RecordingIntervalMs int `json:"recording_interval_ms" yaml:"recording_interval_ms"`
	// AccuracyThresholdM is the largest estimated error a fix may have to be
	// recorded.
	AccuracyThresholdM float64 `json:"accuracy_threshold_m" yaml:"accuracy_threshold_m"`
	PreferredPort      string  `json:"preferred_port" yaml:"preferred_port"`
	BaudRate           int     `json:"baud_rate" yaml:"baud_rate"`
}

// DefaultSettings returns the settings used on first run.
func DefaultSettings() Settings {
	return Settings{
		RecordingIntervalMs: 1000,
		AccuracyThresholdM:  5.0,
		BaudRate:            115200,
	}
}

// Validate checks ranges.
func (s Settings) Validate() error {
	if s.RecordingIntervalMs <= 0 {
		return fmt.Errorf("recording_interval_ms must be positive, got %d", s.RecordingIntervalMs)
	}
	if s.AccuracyThresholdM <= 0 {
		return fmt.Errorf("accuracy_threshold_m must be positive, got %g", s.AccuracyThresholdM)
	}
	if s.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", s.BaudRate)
	}
	return nil
}
