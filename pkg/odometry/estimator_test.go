package odometry

import (
	"math"
	"testing"
	"time"
)

const tolerance = 1e-9

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestNormalizeAngleDeg(t *testing.T) {
	tests := []struct {
		in       float64
		expected float64
	}{
		{0, 0},
		{90, 90},
		{180, 180},
		{-180, 180},
		{181, -179},
		{-181, 179},
		{359, -1},
		{360, 0},
		{540, 180},
		{-540, 180},
		{720.5, 0.5},
		{1e9, -80},
		{-1e9, 80},
	}

	for _, tt := range tests {
		got := NormalizeAngleDeg(tt.in)
		if math.Abs(got-tt.expected) > tolerance {
			t.Errorf("NormalizeAngleDeg(%v) = %v, want %v", tt.in, got, tt.expected)
		}
	}
}

func TestNormalizeAngleDeg_RangeAndIdempotent(t *testing.T) {
	for a := -5000.0; a <= 5000; a += 7.25 {
		n := NormalizeAngleDeg(a)
		if n <= -180 || n > 180 {
			t.Fatalf("NormalizeAngleDeg(%v) = %v, out of (-180, 180]", a, n)
		}
		if again := NormalizeAngleDeg(n); again != n {
			t.Fatalf("NormalizeAngleDeg not idempotent for %v: %v then %v", a, n, again)
		}
	}
}

func TestNormalizeAngleDeg_NonFinite(t *testing.T) {
	for _, in := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := NormalizeAngleDeg(in); !math.IsNaN(got) {
			t.Errorf("NormalizeAngleDeg(%v) = %v, want NaN", in, got)
		}
	}
}

func TestEstimator_EqualRPMDrivesStraight(t *testing.T) {
	geom := DefaultGeometry()
	est := NewEstimator(geom, 1, t0)

	est.Update(60, 60, 45, t0.Add(time.Second))

	if est.theta != 0 {
		t.Errorf("theta = %v, want 0 for equal wheel speeds", est.theta)
	}
	pose := est.Pose()
	want := geom.WheelCircumference()
	if math.Abs(pose.X-want) > tolerance {
		t.Errorf("X = %v, want %v", pose.X, want)
	}
	if math.Abs(pose.Y) > tolerance {
		t.Errorf("Y = %v, want 0", pose.Y)
	}
}

func TestEstimator_ZeroDtIsNoop(t *testing.T) {
	est := NewEstimator(DefaultGeometry(), DefaultAlpha, t0)

	// First call at the construction timestamp.
	est.Update(100, 20, 30, t0)
	if got := est.Pose(); got != (Pose{}) {
		t.Errorf("Pose() = %+v after zero dt, want origin", got)
	}

	now := t0.Add(50 * time.Millisecond)
	est.Update(100, 20, 30, now)
	before := est.Pose()
	est.Update(100, 20, 30, now)
	if after := est.Pose(); after != before {
		t.Errorf("Pose() changed on duplicate timestamp: %+v -> %+v", before, after)
	}
}

func TestEstimator_BackwardsClockIsNoop(t *testing.T) {
	est := NewEstimator(DefaultGeometry(), DefaultAlpha, t0)
	est.Update(100, 100, 0, t0.Add(time.Second))
	before := est.Pose()

	est.Update(100, 100, 0, t0)
	if after := est.Pose(); after != before {
		t.Errorf("Pose() changed on negative dt: %+v -> %+v", before, after)
	}
}

func TestEstimator_AlphaOneIsPureOdometry(t *testing.T) {
	geom := DefaultGeometry()
	est := NewEstimator(geom, 1, t0)

	est.Update(0, 60, 170, t0.Add(500*time.Millisecond))

	omega := geom.RPMToSpeed(60) / geom.TrackWidthMeters
	want := omega * 0.5
	if math.Abs(est.theta-want) > tolerance {
		t.Errorf("theta = %v, want %v (odometry only)", est.theta, want)
	}
}

func TestEstimator_AlphaZeroIsPureIMU(t *testing.T) {
	est := NewEstimator(DefaultGeometry(), 0, t0)

	est.Update(0, 60, 30, t0.Add(500*time.Millisecond))

	if est.theta != Radians(30) {
		t.Errorf("theta = %v, want %v (IMU only)", est.theta, Radians(30))
	}
	if got := est.Pose().Heading; math.Abs(got-30) > tolerance {
		t.Errorf("Heading = %v, want 30", got)
	}
}

func TestEstimator_PositiveOmegaTurnsLeft(t *testing.T) {
	est := NewEstimator(DefaultGeometry(), 1, t0)

	// Right wheel faster than left rotates counter-clockwise.
	est.Update(0, 30, 0, t0.Add(100*time.Millisecond))

	if h := est.Pose().Heading; h <= 0 {
		t.Errorf("Heading = %v, want positive for right wheel faster", h)
	}
}

func TestEstimator_PositionUsesFusedHeading(t *testing.T) {
	geom := DefaultGeometry()
	est := NewEstimator(geom, 0, t0)

	// IMU says 90 degrees, so driving straight must move along +Y.
	est.Update(60, 60, 90, t0.Add(time.Second))

	pose := est.Pose()
	want := geom.WheelCircumference()
	if math.Abs(pose.X) > 1e-6 {
		t.Errorf("X = %v, want ~0", pose.X)
	}
	if math.Abs(pose.Y-want) > tolerance {
		t.Errorf("Y = %v, want %v", pose.Y, want)
	}
}

func TestPose_DistanceTo(t *testing.T) {
	a := Pose{X: 1, Y: 1}
	b := Pose{X: 4, Y: 5, Heading: 90}
	if got := a.DistanceTo(b); math.Abs(got-5) > tolerance {
		t.Errorf("DistanceTo = %v, want 5", got)
	}
}
