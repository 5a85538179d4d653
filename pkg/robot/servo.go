package robot

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
	"periph.io/x/host/v3"
)

const servoFrequencyHz = 50

// TiltConfig wires the camera tilt servo to a PCA9685 channel.
type TiltConfig struct {
	I2CBus      string           `json:"i2c_bus"`
	Address     uint16           `json:"address"`
	Channel     int              `json:"channel"`
	Calibration ServoCalibration `json:"calibration"`
}

// pwmSetter is the part of the PCA9685 used by TiltServo.
type pwmSetter interface {
	SetPwm(channel int, on, off gpio.Duty) error
}

// TiltServo positions the camera tilt servo.
type TiltServo struct {
	mu      sync.Mutex
	dev     pwmSetter
	bus     i2c.BusCloser
	channel int
	cal     ServoCalibration
	angle   float64
}

// NewTiltServo opens the I2C bus and configures the PCA9685 for servo output.
func NewTiltServo(cfg TiltConfig) (*TiltServo, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", cfg.I2CBus, err)
	}
	dev, err := pca9685.NewI2C(bus, cfg.Address)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("pca9685 at %#x: %w", cfg.Address, err)
	}
	if err := dev.SetPwmFreq(servoFrequencyHz * physic.Hertz); err != nil {
		bus.Close()
		return nil, fmt.Errorf("set servo frequency: %w", err)
	}
	return &TiltServo{
		dev:     dev,
		bus:     bus,
		channel: cfg.Channel,
		cal:     cfg.Calibration,
	}, nil
}

// SetAngle moves the servo. The angle is clamped to the calibrated range and
// the applied angle is returned.
func (s *TiltServo) SetAngle(angle float64) (float64, error) {
	angle = s.cal.ClampAngle(angle)
	counts := PWMCounts(s.cal.Denormalize(angle), servoFrequencyHz)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.dev.SetPwm(s.channel, 0, gpio.Duty(counts)); err != nil {
		return s.angle, fmt.Errorf("set channel %d: %w", s.channel, err)
	}
	s.angle = angle
	return angle, nil
}

// Angle returns the last applied angle.
func (s *TiltServo) Angle() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.angle
}

// Close releases the servo and the I2C bus.
func (s *TiltServo) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.dev.SetPwm(s.channel, 0, 0)
	if s.bus != nil {
		err = multierr.Append(err, s.bus.Close())
	}
	return err
}
