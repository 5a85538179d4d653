// Package odometry estimates the rover's 2D pose from wheel encoders and IMU yaw.
package odometry

import (
	"math"
	"time"
)

// Default geometry of the rover chassis.
const (
	DefaultWheelDiameterMM = 134
	DefaultTrackWidthMM    = 230
	DefaultAlpha           = 0.02
)

// Pose is the estimated position (meters) and heading (degrees, (-180, 180]).
type Pose struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"theta"`
}

// DistanceTo returns the euclidean distance between two poses.
func (p Pose) DistanceTo(other Pose) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Geometry describes the drive train.
type Geometry struct {
	WheelDiameterMeters float64
	TrackWidthMeters    float64
}

// DefaultGeometry returns the geometry of the stock chassis.
func DefaultGeometry() Geometry {
	return Geometry{
		WheelDiameterMeters: DefaultWheelDiameterMM / 1000.0,
		TrackWidthMeters:    DefaultTrackWidthMM / 1000.0,
	}
}

// WheelCircumference returns the wheel circumference in meters.
func (g Geometry) WheelCircumference() float64 {
	return math.Pi * g.WheelDiameterMeters
}

// RPMToSpeed converts a wheel RPM to linear speed in m/s.
func (g Geometry) RPMToSpeed(rpm float64) float64 {
	return rpm * g.WheelCircumference() / 60.0
}

// Estimator integrates skid-steer kinematics and blends the result with IMU
// yaw through a complementary filter.
//
// Alpha weights odometry against the IMU: 1 trusts odometry only, 0 trusts
// the IMU only.
//
// Estimator is not safe for concurrent use; share it through a Store.
type Estimator struct {
	geom  Geometry
	alpha float64

	x, y       float64
	theta      float64 // radians, unbounded
	lastUpdate time.Time
}

// NewEstimator creates an estimator at the origin. start is the reference
// timestamp for the first Update.
func NewEstimator(geom Geometry, alpha float64, start time.Time) *Estimator {
	return &Estimator{
		geom:       geom,
		alpha:      alpha,
		lastUpdate: start,
	}
}

// Alpha returns the fusion weight.
func (e *Estimator) Alpha() float64 {
	return e.alpha
}

// Update advances the estimate to now using the wheel RPMs and the IMU yaw in degrees.
// A non-positive time step leaves the pose untouched.
func (e *Estimator) Update(rpmLeft, rpmRight, imuYawDeg float64, now time.Time) {
	dt := now.Sub(e.lastUpdate).Seconds()
	e.lastUpdate = now
	if dt <= 0 {
		return
	}

	vLeft := e.geom.RPMToSpeed(rpmLeft)
	vRight := e.geom.RPMToSpeed(rpmRight)

	v := (vLeft + vRight) / 2
	omega := (vRight - vLeft) / e.geom.TrackWidthMeters

	odom := e.theta + omega*dt
	e.theta = e.alpha*odom + (1-e.alpha)*Radians(imuYawDeg)

	// Position always follows the fused heading.
	e.x += v * math.Cos(e.theta) * dt
	e.y += v * math.Sin(e.theta) * dt
}

// Pose returns the current estimate with the heading in degrees.
func (e *Estimator) Pose() Pose {
	return Pose{
		X:       e.x,
		Y:       e.y,
		Heading: NormalizeAngleDeg(Degrees(e.theta)),
	}
}

// LastUpdate returns the timestamp of the most recent Update call.
func (e *Estimator) LastUpdate() time.Time {
	return e.lastUpdate
}
