// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package export

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
)

const (
	gpxNamespace = "http://www.topografix.com/GPX/1/1"
	gpxCreator   = "gps_tracker"
)

type gpxDoc struct {
	XMLName   xml.Name `xml:"gpx"`
	Version   string   `xml:"version,attr"`
	Creator   string   `xml:"creator,attr"`
	Xmlns     string   `xml:"xmlns,attr"`
	Waypoints []gpxWpt `xml:"wpt"`
	Track     gpxTrk   `xml:"trk"`
}

type gpxWpt struct {
	Lat  string `xml:"lat,attr"`
	Lon  string `xml:"lon,attr"`
	Name string `xml:"name"`
	Desc string `xml:"desc"`
	Time string `xml:"time"`
}

type gpxTrk struct {
	Name    string    `xml:"name"`
	Segment gpxTrkSeg `xml:"trkseg"`
}

type gpxTrkSeg struct {
	Points []gpxTrkPt `xml:"trkpt"`
}

type gpxTrkPt struct {
	Lat  string  `xml:"lat,attr"`
	Lon  string  `xml:"lon,attr"`
	Ele  float64 `xml:"ele"`
	Time string  `xml:"time"`
	Sat  int     `xml:"sat"`
	HDOP *string `xml:"hdop,omitempty"`
}

// WriteGPX writes t as a GPX 1.1 document: one <wpt> per waypoint and one
// <trk>/<trkseg> holding a <trkpt> per track point, in recording order.
func WriteGPX(w io.Writer, t Track) error {
	doc := gpxDoc{
		Version: "1.1",
		Creator: gpxCreator,
		Xmlns:   gpxNamespace,
		Track:   gpxTrk{Name: t.name()},
	}
	for _, wp := range t.Waypoints {
		doc.Waypoints = append(doc.Waypoints, gpxWpt{
			Lat:  coord(wp.Position.Latitude),
			Lon:  coord(wp.Position.Longitude),
			Name: wp.Type,
			Desc: wp.Note,
			Time: isoTime(wp.Timestamp),
		})
	}
	for _, p := range t.Points {
		pt := gpxTrkPt{
			Lat:  coord(p.Latitude),
			Lon:  coord(p.Longitude),
			Ele:  p.Altitude,
			Time: isoTime(p.Timestamp),
			Sat:  p.Satellites,
		}
		if p.HDOP != nil {
			h := strconv.FormatFloat(*p.HDOP, 'f', -1, 64)
			pt.HDOP = &h
		}
		doc.Track.Segment.Points = append(doc.Track.Segment.Points, pt)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("gpx: write header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("gpx: encode: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("gpx: write: %w", err)
	}
	return nil
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', 7, 64)
}
