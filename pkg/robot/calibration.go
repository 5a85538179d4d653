package robot

// ServoCalibration maps servo angles to pulse widths.
type ServoCalibration struct {
	MinPulseUS int     `json:"min_pulse_us"`
	MaxPulseUS int     `json:"max_pulse_us"`
	MinAngle   float64 `json:"min_angle"`
	MaxAngle   float64 `json:"max_angle"`
}

// DefaultServoCalibration is the 500–2500 µs range of a standard 180° hobby servo.
func DefaultServoCalibration() ServoCalibration {
	return ServoCalibration{
		MinPulseUS: 500,
		MaxPulseUS: 2500,
		MinAngle:   0,
		MaxAngle:   180,
	}
}

// ClampAngle limits angle to the calibrated range.
func (c ServoCalibration) ClampAngle(angle float64) float64 {
	if angle < c.MinAngle {
		return c.MinAngle
	}
	if angle > c.MaxAngle {
		return c.MaxAngle
	}
	return angle
}

// Normalize converts a pulse width in microseconds to an angle in degrees.
func (c ServoCalibration) Normalize(pulseUS int) float64 {
	rangeSize := float64(c.MaxPulseUS - c.MinPulseUS)
	if rangeSize == 0 {
		return c.MinAngle
	}
	return c.MinAngle + float64(pulseUS-c.MinPulseUS)/rangeSize*(c.MaxAngle-c.MinAngle)
}

// Denormalize converts an angle in degrees to a pulse width in microseconds.
// The angle is clamped to the calibrated range first.
func (c ServoCalibration) Denormalize(angle float64) int {
	angleRange := c.MaxAngle - c.MinAngle
	if angleRange == 0 {
		return c.MinPulseUS
	}
	frac := (c.ClampAngle(angle) - c.MinAngle) / angleRange
	return c.MinPulseUS + int(frac*float64(c.MaxPulseUS-c.MinPulseUS))
}

// PWMCounts converts a pulse width to 12-bit PCA9685 counts at the given frequency.
func PWMCounts(pulseUS int, freqHz int) int {
	if freqHz <= 0 {
		return 0
	}
	periodUS := 1_000_000 / freqHz
	return pulseUS * 4096 / periodUS
}
