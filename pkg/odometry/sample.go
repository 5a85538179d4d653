package odometry

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SampleFields is the number of comma-separated values in one feed line.
const SampleFields = 7

var (
	// ErrFieldCount is returned for lines that do not carry exactly SampleFields values.
	ErrFieldCount = errors.New("wrong field count")
	// ErrInvalidSample is returned for lines with a non-numeric or non-finite value.
	ErrInvalidSample = errors.New("invalid sample value")
)

// Sample is one raw reading from the sensor feed.
// Speeds are reported by the microcontroller in cm/s and are not used by the estimator.
type Sample struct {
	YawDeg     float64 `json:"yaw"`
	PitchDeg   float64 `json:"pitch"`
	RollDeg    float64 `json:"roll"`
	RPMLeft    float64 `json:"rpm1"`
	SpeedLeft  float64 `json:"speed1"`
	RPMRight   float64 `json:"rpm2"`
	SpeedRight float64 `json:"speed2"`
}

// ParseSample parses "yaw,pitch,roll,rpmLeft,speedLeft,rpmRight,speedRight".
func ParseSample(line string) (Sample, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != SampleFields {
		return Sample{}, fmt.Errorf("%w: expected %d, got %d", ErrFieldCount, SampleFields, len(parts))
	}

	var vals [SampleFields]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Sample{}, fmt.Errorf("%w: field %d: %v", ErrInvalidSample, i, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Sample{}, fmt.Errorf("%w: field %d is not finite", ErrInvalidSample, i)
		}
		vals[i] = v
	}

	return Sample{
		YawDeg:     vals[0],
		PitchDeg:   vals[1],
		RollDeg:    vals[2],
		RPMLeft:    vals[3],
		SpeedLeft:  vals[4],
		RPMRight:   vals[5],
		SpeedRight: vals[6],
	}, nil
}
