// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"fmt"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
)

// Sentence is a split NMEA line. Fields[0] is the talker+type address
// (e.g. "GPGGA"); the checksum is stripped.
type Sentence struct {
	Raw      string
	Talker   string // "GP", "GN", "GL", "GA"; informational only
	Type     string // last three characters of the address
	Fields   []string
	Checksum string // as received, empty if absent
}

// minFields is the minimum field count (address included) per sentence type.
var minFields = map[string]int{
	nmea.TypeGGA: 15,
	nmea.TypeRMC: 12,
	nmea.TypeVTG: 9,
	nmea.TypeGSV: 4,
}

// ParseSentence splits a raw line into a Sentence. When validateChecksum is
// set, a line whose "*XX" suffix is missing or does not match is rejected.
// Unknown sentence types return ErrUnknownSentence; too few fields return
// ErrMalformedSentence.
func ParseSentence(line string, validateChecksum bool) (Sentence, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, nmea.SentenceStart) {
		return Sentence{}, fmt.Errorf("%w: missing '$'", ErrMalformedSentence)
	}

	payload := line[1:]
	var ck string
	if star := strings.LastIndex(payload, nmea.ChecksumSep); star != -1 {
		ck = strings.TrimSpace(payload[star+1:])
		payload = payload[:star]
	}
	if validateChecksum {
		if ck == "" {
			return Sentence{}, fmt.Errorf("%w: missing checksum", ErrChecksum)
		}
		if want := nmea.Checksum(payload); !strings.EqualFold(ck, want) {
			return Sentence{}, fmt.Errorf("%w: got %s want %s", ErrChecksum, ck, want)
		}
	}

	fields := strings.Split(payload, nmea.FieldSep)
	addr := strings.ToUpper(strings.TrimSpace(fields[0]))
	if len(addr) < 3 {
		return Sentence{}, fmt.Errorf("%w: short address %q", ErrMalformedSentence, addr)
	}
	s := Sentence{
		Raw:      line,
		Talker:   addr[:len(addr)-3],
		Type:     addr[len(addr)-3:],
		Fields:   fields,
		Checksum: ck,
	}

	need, known := minFields[s.Type]
	if !known {
		return s, fmt.Errorf("%w: %s", ErrUnknownSentence, addr)
	}
	if len(fields) < need {
		return s, fmt.Errorf("%w: %s has %d fields, need %d", ErrMalformedSentence, s.Type, len(fields), need)
	}
	return s, nil
}
