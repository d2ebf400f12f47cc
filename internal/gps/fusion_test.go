package gps

import (
	"testing"
	"time"

	"go.viam.com/test"
)

func TestFuser(t *testing.T) {
	now := testNow.Add(5 * time.Second)
	pos, err := DecodeGGA(mustSentence(t, ggaMunich), testNow)
	test.That(t, err, test.ShouldBeNil)
	nav, err := DecodeRMC(mustSentence(t, rmcMunich), testNow)
	test.That(t, err, test.ShouldBeNil)

	t.Run("navigation without position is dropped", func(t *testing.T) {
		f := &Fuser{Now: func() time.Time { return now }}
		_, ok := f.OnNavigation(nav)
		test.That(t, ok, test.ShouldBeFalse)
	})

	t.Run("position alone emits nothing until navigation", func(t *testing.T) {
		f := &Fuser{Now: func() time.Time { return now }}
		f.OnPosition(pos)
		pending, ok := f.Pending()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, pending.Latitude, test.ShouldEqual, pos.Latitude)

		fix, ok := f.OnNavigation(nav)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, fix.Latitude, test.ShouldAlmostEqual, 48.1173, 1e-4)
		test.That(t, fix.Longitude, test.ShouldAlmostEqual, 11.5167, 1e-4)
		test.That(t, fix.SpeedKmh, test.ShouldAlmostEqual, 41.5, 0.05)
		test.That(t, fix.CourseDeg, test.ShouldEqual, 84.4)
		test.That(t, fix.Altitude, test.ShouldEqual, 545.4)
		test.That(t, *fix.Accuracy, test.ShouldAlmostEqual, 2.7)
		test.That(t, fix.Timestamp, test.ShouldEqual, now)

		// pending position is reused by the next navigation fix
		again, ok := f.OnNavigation(nav)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, again.Latitude, test.ShouldEqual, fix.Latitude)
	})

	t.Run("fresher position replaces pending", func(t *testing.T) {
		f := &Fuser{Now: func() time.Time { return now }}
		f.OnPosition(pos)
		moved := pos
		moved.Latitude = 48.2
		f.OnPosition(moved)
		fix, ok := f.OnNavigation(nav)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, fix.Latitude, test.ShouldEqual, 48.2)
	})

	t.Run("sentence time policy", func(t *testing.T) {
		f := &Fuser{Policy: SentenceTime, Now: func() time.Time { return now }}
		f.OnPosition(pos)
		fix, ok := f.OnNavigation(nav)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, fix.Timestamp, test.ShouldEqual, nav.Timestamp)
	})

	t.Run("reset clears pending", func(t *testing.T) {
		f := NewFuser()
		f.OnPosition(pos)
		f.Reset()
		_, ok := f.Pending()
		test.That(t, ok, test.ShouldBeFalse)
		_, ok = f.OnNavigation(nav)
		test.That(t, ok, test.ShouldBeFalse)
	})
}
