package gps

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"go.viam.com/test"
)

func nmeaLine(payload string) string {
	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return fmt.Sprintf("$%s*%02X", payload, ck)
}

const (
	ggaMunich = "GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"
	rmcMunich = "GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func mustSentence(t *testing.T, payload string) Sentence {
	t.Helper()
	s, err := ParseSentence(nmeaLine(payload), true)
	test.That(t, err, test.ShouldBeNil)
	return s
}

func TestParseSentence(t *testing.T) {
	t.Run("dispatch ignores talker", func(t *testing.T) {
		for _, talker := range []string{"GP", "GN", "GL", "GA"} {
			s, err := ParseSentence(nmeaLine(talker+ggaMunich[2:]), true)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, s.Type, test.ShouldEqual, "GGA")
			test.That(t, s.Talker, test.ShouldEqual, talker)
		}
	})

	t.Run("missing dollar", func(t *testing.T) {
		_, err := ParseSentence(nmeaLine(ggaMunich)[1:], false)
		test.That(t, errors.Is(err, ErrMalformedSentence), test.ShouldBeTrue)
	})

	t.Run("too few fields", func(t *testing.T) {
		_, err := ParseSentence(nmeaLine("GPGGA,123519,4807.038,N"), true)
		test.That(t, errors.Is(err, ErrMalformedSentence), test.ShouldBeTrue)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := ParseSentence(nmeaLine("GPGSA,A,3,04,05,,09,12,,,24,,,,,2.5,1.3,2.1"), true)
		test.That(t, errors.Is(err, ErrUnknownSentence), test.ShouldBeTrue)
	})

	t.Run("checksum mismatch", func(t *testing.T) {
		good := nmeaLine(rmcMunich)
		bad := good[:len(good)-2] + "00"
		_, err := ParseSentence(bad, true)
		test.That(t, errors.Is(err, ErrChecksum), test.ShouldBeTrue)
		test.That(t, errors.Is(err, ErrMalformedSentence), test.ShouldBeTrue)

		// accepted when validation is off
		s, err := ParseSentence(bad, false)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, s.Type, test.ShouldEqual, "RMC")
	})

	t.Run("no checksum", func(t *testing.T) {
		_, err := ParseSentence("$"+rmcMunich, true)
		test.That(t, errors.Is(err, ErrChecksum), test.ShouldBeTrue)

		s, err := ParseSentence("$"+rmcMunich+"\r\n", false)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, s.Fields, test.ShouldHaveLength, 12)
	})
}

func TestDecodeGGA(t *testing.T) {
	p, err := DecodeGGA(mustSentence(t, ggaMunich), testNow)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Latitude, test.ShouldAlmostEqual, 48.1173, 1e-4)
	test.That(t, p.Longitude, test.ShouldAlmostEqual, 11.5167, 1e-4)
	test.That(t, p.Quality, test.ShouldEqual, 1)
	test.That(t, p.Satellites, test.ShouldEqual, 8)
	test.That(t, *p.HDOP, test.ShouldEqual, 0.9)
	test.That(t, p.Altitude, test.ShouldEqual, 545.4)
	test.That(t, *p.GeoidHeight, test.ShouldEqual, 46.9)
	test.That(t, *p.Accuracy, test.ShouldAlmostEqual, 2.7)
	test.That(t, p.UTCTime, test.ShouldEqual, "123519")
	test.That(t, p.Timestamp, test.ShouldEqual, testNow)

	t.Run("southern western", func(t *testing.T) {
		p, err := DecodeGGA(mustSentence(t, "GNGGA,000001,3351.000,S,15112.000,W,2,10,1.5,10.0,M,,M,,"), testNow)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, p.Latitude, test.ShouldAlmostEqual, -33.85, 1e-9)
		test.That(t, p.Longitude, test.ShouldAlmostEqual, -151.2, 1e-9)
		test.That(t, p.GeoidHeight, test.ShouldBeNil)
		test.That(t, *p.Accuracy, test.ShouldAlmostEqual, 1.5)
	})

	t.Run("rejects", func(t *testing.T) {
		for _, tc := range []struct {
			name    string
			payload string
			want    error
		}{
			{"quality zero", "GPGGA,123519,4807.038,N,01131.000,E,0,08,0.9,545.4,M,46.9,M,,", ErrInvalidFix},
			{"quality empty", "GPGGA,123519,4807.038,N,01131.000,E,,08,0.9,545.4,M,46.9,M,,", ErrInvalidFix},
			{"quality out of range", "GPGGA,123519,4807.038,N,01131.000,E,9,08,0.9,545.4,M,46.9,M,,", ErrInvalidFix},
			{"no latitude", "GPGGA,123519,,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,", ErrMalformedSentence},
			{"no hemisphere", "GPGGA,123519,4807.038,,01131.000,E,1,08,0.9,545.4,M,46.9,M,,", ErrMalformedSentence},
			{"garbage longitude", "GPGGA,123519,4807.038,N,abc,E,1,08,0.9,545.4,M,46.9,M,,", ErrMalformedSentence},
			{"latitude out of range", "GPGGA,123519,9530.000,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,", ErrInvalidFix},
		} {
			t.Run(tc.name, func(t *testing.T) {
				_, err := DecodeGGA(mustSentence(t, tc.payload), testNow)
				test.That(t, errors.Is(err, tc.want), test.ShouldBeTrue)
			})
		}
	})
}

func TestDecodeRMC(t *testing.T) {
	n, err := DecodeRMC(mustSentence(t, rmcMunich), testNow)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n.Status, test.ShouldEqual, "A")
	test.That(t, n.SpeedKmh, test.ShouldAlmostEqual, 41.4848, 1e-9)
	test.That(t, n.CourseDeg, test.ShouldEqual, 84.4)
	test.That(t, n.Date, test.ShouldEqual, "230394")
	test.That(t, n.Timestamp, test.ShouldEqual, time.Date(2094, 3, 23, 12, 35, 19, 0, time.UTC))

	t.Run("void status", func(t *testing.T) {
		_, err := DecodeRMC(mustSentence(t, "GPRMC,123519,V,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"), testNow)
		test.That(t, errors.Is(err, ErrInvalidFix), test.ShouldBeTrue)
	})

	t.Run("unparsable course and date", func(t *testing.T) {
		n, err := DecodeRMC(mustSentence(t, "GNRMC,123519,A,4807.038,N,01131.000,E,1.0,,,,"), testNow)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, n.CourseDeg, test.ShouldEqual, 0.0)
		test.That(t, n.Timestamp, test.ShouldEqual, testNow)
	})

	t.Run("missing coordinates", func(t *testing.T) {
		_, err := DecodeRMC(mustSentence(t, "GPRMC,123519,A,,,,,022.4,084.4,230394,003.1,W"), testNow)
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestDecodeVTG(t *testing.T) {
	c, err := DecodeVTG(mustSentence(t, "GPVTG,054.7,T,034.4,M,005.5,N,010.2,K"), testNow)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.CourseDeg, test.ShouldEqual, 54.7)
	test.That(t, c.SpeedKmh, test.ShouldEqual, 10.2)

	c, err = DecodeVTG(mustSentence(t, "GPVTG,054.7,T,034.4,M,005.5,N,,K"), testNow)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.SpeedKmh, test.ShouldAlmostEqual, 5.5*KnotsToKmh, 1e-9)
}

func TestDecodeGSV(t *testing.T) {
	v, err := DecodeGSV(mustSentence(t, "GPGSV,3,1,11,03,03,111,00,04,15,270,00,06,01,010,00,13,06,292,"), testNow)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v.TotalMessages, test.ShouldEqual, 3)
	test.That(t, v.MessageNumber, test.ShouldEqual, 1)
	test.That(t, v.TotalSatellitesInView, test.ShouldEqual, 11)
	test.That(t, v.Satellites, test.ShouldHaveLength, 4)
	test.That(t, v.Satellites[1].PRN, test.ShouldEqual, 4)
	test.That(t, *v.Satellites[1].AzimuthDeg, test.ShouldEqual, 270)
	test.That(t, v.Satellites[3].SNRdB, test.ShouldBeNil)

	// NMEA 4.1 appends a signal id after the last block
	v, err = DecodeGSV(mustSentence(t, "GPGSV,3,1,11,03,03,111,00,04,15,270,00,06,01,010,00,13,06,292,00,1"), testNow)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v.Satellites, test.ShouldHaveLength, 4)
	test.That(t, v.Satellites[3].PRN, test.ShouldEqual, 13)
	test.That(t, *v.Satellites[3].SNRdB, test.ShouldEqual, 0)

	_, err = DecodeGSV(mustSentence(t, "GPGSV,x,1,11"), testNow)
	test.That(t, errors.Is(err, ErrMalformedSentence), test.ShouldBeTrue)
}

func TestDecoderDispatch(t *testing.T) {
	d := &Decoder{Now: func() time.Time { return testNow }}

	rec, err := d.Decode(mustSentence(t, ggaMunich))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rec.Position, test.ShouldNotBeNil)
	test.That(t, rec.Navigation, test.ShouldBeNil)

	rec, err = d.Decode(mustSentence(t, rmcMunich))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rec.Navigation, test.ShouldNotBeNil)

	_, err = d.Decode(Sentence{Type: "GLL"})
	test.That(t, errors.Is(err, ErrUnknownSentence), test.ShouldBeTrue)
}

func TestParseRMCTime(t *testing.T) {
	ts, ok := ParseRMCTime("010126", "235959.50")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, ts, test.ShouldEqual, time.Date(2026, 1, 1, 23, 59, 59, 500000000, time.UTC))

	for _, tc := range [][2]string{{"", "123519"}, {"230394", ""}, {"321394", "123519"}, {"230394", "2a3519"}} {
		_, ok := ParseRMCTime(tc[0], tc[1])
		test.That(t, ok, test.ShouldBeFalse)
	}
}
