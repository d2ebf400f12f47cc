package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.viam.com/test"

	"github.com/relabs-tech/gps_tracker/internal/config"
	"github.com/relabs-tech/gps_tracker/internal/events"
	"github.com/relabs-tech/gps_tracker/internal/gps"
	"github.com/relabs-tech/gps_tracker/internal/session"
	"github.com/relabs-tech/gps_tracker/internal/tracker"
)

func nmeaLine(payload string) string {
	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return fmt.Sprintf("$%s*%02X\r\n", payload, ck)
}

var (
	gga = nmeaLine("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,")
	rmc = nmeaLine("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W")
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// ggaAt and rmcAt build a matching sentence pair for a position east of
// the Munich fixture, so replayed tracks have distance and speed.
func ggaAt(hhmmss string, lonMin float64) string {
	return nmeaLine(fmt.Sprintf("GPGGA,%s,4807.038,N,011%06.3f,E,1,08,0.9,545.4,M,46.9,M,,", hhmmss, lonMin))
}

func rmcAt(hhmmss string, lonMin float64) string {
	return nmeaLine(fmt.Sprintf("GPRMC,%s,A,4807.038,N,011%06.3f,E,022.4,084.4,230394,003.1,W", hhmmss, lonMin))
}

func configWith(port string, baud int) *config.Config {
	cfg := config.Defaults()
	cfg.GPSSerialPort = port
	cfg.GPSBaudRate = baud
	return cfg
}

func newTestTracker(t *testing.T, opts tracker.Options) (*tracker.Tracker, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	if opts.Now == nil {
		opts.Now = func() time.Time { return t0 }
	}
	return tracker.New(opts, session.DefaultSettings(), bus, zap.NewNop().Sugar()), bus
}

func TestFeedLines(t *testing.T) {
	tr, bus := newTestTracker(t, tracker.Options{ValidateChecksum: true})
	sub := bus.Subscribe(16, events.KindFix)
	tr.Connect("/dev/ttyUSB0", 115200)

	// last line has no newline, the reader still hands it over
	input := "garbage\r\n\r\n" + gga + strings.TrimSpace(rmc)
	err := FeedLines(context.Background(), strings.NewReader(input), tr)
	test.That(t, err, test.ShouldBeNil)

	select {
	case e := <-sub.C:
		test.That(t, e.Fix.Latitude, test.ShouldAlmostEqual, 48.1173, 1e-4)
	default:
		t.Fatal("expected a fused fix")
	}
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestFeedLinesReadError(t *testing.T) {
	tr, _ := newTestTracker(t, tracker.Options{})
	readErr := errors.New("device unplugged")
	err := FeedLines(context.Background(), failingReader{readErr}, tr)
	test.That(t, errors.Is(err, readErr), test.ShouldBeTrue)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = FeedLines(ctx, strings.NewReader(gga), tr)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

type fakePort struct {
	io.Reader
	mu     sync.Mutex
	closed bool
}

func (p *fakePort) Write(b []byte) (int, error) { return len(b), nil }

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func TestRunGPSProducer(t *testing.T) {
	orig := openPort
	t.Cleanup(func() { openPort = orig })

	t.Run("open failure is reported", func(t *testing.T) {
		tr, bus := newTestTracker(t, tracker.Options{})
		sub := bus.Subscribe(16, events.KindConnection)
		openPort = func(port string, baud int) (io.ReadWriteCloser, error) {
			return nil, errors.New("no such device")
		}
		err := RunGPSProducer(context.Background(), SerialOptions{Port: "/dev/ttyX", BaudRate: 9600}, tr, zap.NewNop().Sugar())
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "no such device")

		e := <-sub.C
		test.That(t, e.Connection.Connected, test.ShouldBeFalse)
		test.That(t, e.Connection.Port, test.ShouldEqual, "/dev/ttyX")
		test.That(t, e.Connection.Error, test.ShouldContainSubstring, "no such device")
	})

	t.Run("EOF is a lost link", func(t *testing.T) {
		tr, bus := newTestTracker(t, tracker.Options{})
		sub := bus.Subscribe(16, events.KindConnection, events.KindFix)
		port := &fakePort{Reader: strings.NewReader(gga + rmc)}
		openPort = func(string, int) (io.ReadWriteCloser, error) { return port, nil }

		err := RunGPSProducer(context.Background(), SerialOptions{Port: "/dev/ttyUSB0", BaudRate: 115200}, tr, zap.NewNop().Sugar())
		test.That(t, errors.Is(err, ErrLinkClosed), test.ShouldBeTrue)
		test.That(t, port.closed, test.ShouldBeTrue)

		var got []events.Kind
		for len(sub.C) > 0 {
			got = append(got, (<-sub.C).Kind)
		}
		test.That(t, got, test.ShouldResemble, []events.Kind{events.KindConnection, events.KindFix, events.KindConnection})
		_, ok := tr.CurrentPosition()
		test.That(t, ok, test.ShouldBeTrue)
	})

	t.Run("reconnects until cancelled", func(t *testing.T) {
		tr, _ := newTestTracker(t, tracker.Options{})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		var mu sync.Mutex
		opens := 0
		openPort = func(string, int) (io.ReadWriteCloser, error) {
			mu.Lock()
			defer mu.Unlock()
			opens++
			if opens == 3 {
				cancel()
			}
			return nil, errors.New("busy")
		}
		err := RunGPSProducer(ctx, SerialOptions{Port: "/dev/ttyUSB0", BaudRate: 115200, ReconnectDelay: time.Millisecond}, tr, zap.NewNop().Sugar())
		test.That(t, err, test.ShouldBeNil)
		mu.Lock()
		test.That(t, opens, test.ShouldEqual, 3)
		mu.Unlock()
	})
}

func TestSerialTarget(t *testing.T) {
	cfg := configWith("/dev/ttyAMA0", 9600)
	port, baud := serialTarget(cfg, session.DefaultSettings())
	test.That(t, port, test.ShouldEqual, "/dev/ttyAMA0")
	test.That(t, baud, test.ShouldEqual, 9600)

	s := session.DefaultSettings()
	s.PreferredPort = "/dev/ttyACM0"
	port, baud = serialTarget(cfg, s)
	test.That(t, port, test.ShouldEqual, "/dev/ttyACM0")
	test.That(t, baud, test.ShouldEqual, 115200)
}

func TestReplay(t *testing.T) {
	tr, _ := newTestTracker(t, tracker.Options{Timestamps: gps.SentenceTime})

	var log strings.Builder
	log.WriteString(nmeaLine("GPGSV,3,1,11,03,03,111,00,04,15,270,00,06,01,010,00,13,06,292,"))
	lon := 31.0
	for i := 0; i < 5; i++ {
		hhmmss := fmt.Sprintf("1235%02d", 19+i)
		log.WriteString(ggaAt(hhmmss, lon))
		log.WriteString(rmcAt(hhmmss, lon))
		lon += 0.01
	}

	done, err := Replay(context.Background(), strings.NewReader(log.String()), tr, zap.NewNop().Sugar())
	test.That(t, err, test.ShouldBeNil)
	// the fix that starts the recording is its first point
	test.That(t, done.TotalPoints, test.ShouldEqual, 5)
	test.That(t, done.Positions[0].Timestamp.Equal(time.Date(2094, 3, 23, 12, 35, 19, 0, time.UTC)), test.ShouldBeTrue)
	test.That(t, done.Finalized(), test.ShouldBeTrue)
	test.That(t, done.DistanceKm, test.ShouldBeGreaterThan, 0.0)
	// 0.01' of longitude at 48°N is ~12.4 m, over one second
	test.That(t, done.MaxSpeedKmh, test.ShouldAlmostEqual, 44.6, 0.5)
	test.That(t, tr.History(), test.ShouldHaveLength, 1)
	test.That(t, tr.Status().Connection.Connected, test.ShouldBeFalse)
}

func TestReplayWithoutFix(t *testing.T) {
	tr, _ := newTestTracker(t, tracker.Options{})
	_, err := Replay(context.Background(), strings.NewReader(gga), tr, zap.NewNop().Sugar())
	test.That(t, errors.Is(err, ErrNoFix), test.ShouldBeTrue)
}

type fakeSaver struct {
	mu       sync.Mutex
	sessions []session.Session
	err      error
}

func (f *fakeSaver) AddSession(s session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sessions = append(f.sessions, s)
	return nil
}

func TestHistorySink(t *testing.T) {
	bus := events.NewBus()
	saver := &fakeSaver{}
	done := make(chan error, 1)
	go func() { done <- RunHistorySink(context.Background(), saver, bus, zap.NewNop().Sugar()) }()

	for bus.Len() == 0 {
		time.Sleep(time.Millisecond)
	}
	bus.Publish(events.Event{Kind: events.KindFix, Fix: &gps.Fix{}})
	bus.Publish(events.Event{Kind: events.KindSession, Session: &session.Session{ID: "s1", EndTime: t0}})
	bus.Close()

	test.That(t, <-done, test.ShouldBeNil)
	test.That(t, saver.sessions, test.ShouldHaveLength, 1)
	test.That(t, saver.sessions[0].ID, test.ShouldEqual, "s1")
}

func TestLiveStatsInterval(t *testing.T) {
	test.That(t, liveStatsInterval(session.DefaultSettings()), test.ShouldEqual, time.Second)
	test.That(t, liveStatsInterval(session.Settings{RecordingIntervalMs: 250}), test.ShouldEqual, 250*time.Millisecond)
	test.That(t, liveStatsInterval(session.Settings{}), test.ShouldEqual, time.Second)
}

func TestRunLiveStats(t *testing.T) {
	tr, bus := newTestTracker(t, tracker.Options{})
	s := tr.Settings()
	s.RecordingIntervalMs = 5
	test.That(t, tr.SetSettings(s), test.ShouldBeNil)

	tr.Connect("/dev/ttyUSB0", 115200)
	tr.HandleLine(gga)
	tr.HandleLine(rmc)
	_, err := tr.StartRecording()
	test.That(t, err, test.ShouldBeNil)

	sub := bus.Subscribe(16, events.KindLiveStats)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunLiveStats(ctx, tr) }()

	select {
	case e := <-sub.C:
		test.That(t, e.LiveStats, test.ShouldNotBeNil)
	case <-time.After(5 * time.Second):
		t.Fatal("no live stats broadcast")
	}
	cancel()
	test.That(t, <-done, test.ShouldBeNil)
}

func TestWriteExports(t *testing.T) {
	tr, _ := newTestTracker(t, tracker.Options{Timestamps: gps.SentenceTime})
	var log strings.Builder
	for i := 0; i < 3; i++ {
		hhmmss := fmt.Sprintf("1235%02d", 19+i)
		log.WriteString(ggaAt(hhmmss, 31+0.01*float64(i)))
		log.WriteString(rmcAt(hhmmss, 31+0.01*float64(i)))
	}
	done, err := Replay(context.Background(), strings.NewReader(log.String()), tr, zap.NewNop().Sugar())
	test.That(t, err, test.ShouldBeNil)

	base := filepath.Join(t.TempDir(), "drive")
	names, err := WriteExports(base, done)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, names, test.ShouldResemble, []string{base + ".gpx", base + ".geojson"})

	gpx, err := os.ReadFile(names[0])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, strings.Count(string(gpx), "<trkpt"), test.ShouldEqual, 3)

	gj, err := os.ReadFile(names[1])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(gj), test.ShouldContainSubstring, `"LineString"`)

	_, err = WriteExports(filepath.Join(t.TempDir(), "missing", "drive"), done)
	test.That(t, err, test.ShouldNotBeNil)
}
