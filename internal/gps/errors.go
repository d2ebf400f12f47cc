// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"errors"
	"fmt"
)

// Decode errors. None of these leave the pipeline: a line that fails with
// one of them simply produces no event.
var (
	ErrMalformedSentence = errors.New("nmea: malformed sentence")
	ErrUnknownSentence   = errors.New("nmea: unknown sentence")
	ErrInvalidFix        = errors.New("nmea: invalid fix")
)

// ErrChecksum is a malformed sentence whose checksum is missing or wrong.
var ErrChecksum = fmt.Errorf("%w: checksum mismatch", ErrMalformedSentence)
