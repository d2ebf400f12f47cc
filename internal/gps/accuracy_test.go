package gps

import (
	"testing"

	"go.viam.com/test"
)

func f64(v float64) *float64 { return &v }

func TestEstimateAccuracy(t *testing.T) {
	for _, tc := range []struct {
		quality int
		hdop    *float64
		want    float64
	}{
		{1, nil, 3.0},
		{1, f64(0.9), 2.7},
		{2, f64(2.0), 2.0},
		{3, f64(1.0), 0.5},
		{4, f64(1.33), 0.4},
		{5, f64(3.0), 1.5},
		{6, f64(1.0), 2.0},
		{7, f64(1.0), 5.0},
		{8, f64(0), 5.0},
		{1, f64(-2), 3.0},
	} {
		got, ok := EstimateAccuracy(tc.hdop, tc.quality)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, got, test.ShouldAlmostEqual, tc.want)
	}

	_, ok := EstimateAccuracy(f64(1.0), 0)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestEstimateAccuracyMonotonicInHDOP(t *testing.T) {
	for quality := 1; quality <= 8; quality++ {
		prev := 0.0
		for h := 0.1; h < 50; h += 0.07 {
			got, ok := EstimateAccuracy(f64(h), quality)
			test.That(t, ok, test.ShouldBeTrue)
			test.That(t, got, test.ShouldBeGreaterThanOrEqualTo, prev)
			prev = got
		}
	}
}
