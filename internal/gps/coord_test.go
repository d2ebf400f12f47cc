package gps

import (
	"errors"
	"math/rand"
	"testing"

	"go.viam.com/test"
)

func TestParseCoordinate(t *testing.T) {
	for _, tc := range []struct {
		value string
		hemi  string
		want  float64
	}{
		{"4807.038", "N", 48.1173},
		{"01131.000", "E", 11.516666666},
		{"4807.038", "S", -48.1173},
		{"12000.000", "W", -120.0},
		{"17959.999", "E", 179.99998333},
		{"0000.000", "N", 0},
		{"8959.9999", "n", 89.99999833},
		// minutes >= 60 under both groupings; falls back to length
		{"4875.000", "N", 49.25},
	} {
		t.Run(tc.value+tc.hemi, func(t *testing.T) {
			got, err := ParseCoordinate(tc.value, tc.hemi)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, got, test.ShouldAlmostEqual, tc.want, 1e-6)
		})
	}
}

func TestParseCoordinateRejects(t *testing.T) {
	for _, tc := range [][2]string{
		{"", "N"},
		{"abc", "N"},
		{"4807.038", ""},
		{"4807.038", "X"},
		{"-4807.038", "N"},
		{"NaN", "N"},
	} {
		_, err := ParseCoordinate(tc[0], tc[1])
		test.That(t, errors.Is(err, ErrMalformedSentence), test.ShouldBeTrue)
	}
}

func TestCoordinateRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		lat := rng.Float64()*180 - 90
		lon := rng.Float64()*360 - 180

		v, h := FormatLatitude(lat)
		got, err := ParseCoordinate(v, h)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldAlmostEqual, lat, 1e-6)

		v, h = FormatLongitude(lon)
		got, err = ParseCoordinate(v, h)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldAlmostEqual, lon, 1e-6)
	}
}

func TestFormatCoordinate(t *testing.T) {
	v, h := FormatLatitude(-48.1173)
	test.That(t, v, test.ShouldEqual, "4807.038000")
	test.That(t, h, test.ShouldEqual, "S")

	v, h = FormatLongitude(11.5)
	test.That(t, v, test.ShouldEqual, "01130.000000")
	test.That(t, h, test.ShouldEqual, "E")
}
