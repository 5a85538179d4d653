package robot

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// MotorConfig wires one side of the drive to a PWM pin and a direction pin.
// Invert flips the direction pin level for motors mounted mirrored.
type MotorConfig struct {
	PWMPin string `json:"pwm_pin"`
	DirPin string `json:"dir_pin"`
	Invert bool   `json:"invert"`
}

// DriveConfig holds the GPIO wiring of the drive.
type DriveConfig struct {
	Left           MotorConfig `json:"left"`
	Right          MotorConfig `json:"right"`
	PWMFrequencyHz int         `json:"pwm_frequency_hz"`
}

type motor struct {
	name   MotorName
	pwm    gpio.PinIO
	dir    gpio.PinIO
	invert bool
}

// set drives the motor forwards or backwards at speed percent.
func (m *motor) set(forward bool, speed int, freq physic.Frequency) error {
	level := gpio.Level(forward != m.invert)
	if err := m.dir.Out(level); err != nil {
		return fmt.Errorf("%s direction: %w", m.name, err)
	}
	duty := gpio.DutyMax * gpio.Duty(ClampSpeed(speed)) / 100
	if err := m.pwm.PWM(duty, freq); err != nil {
		return fmt.Errorf("%s pwm: %w", m.name, err)
	}
	return nil
}

func (m *motor) halt() error {
	var err error
	if e := m.pwm.Out(gpio.Low); e != nil {
		err = multierr.Append(err, fmt.Errorf("%s pwm: %w", m.name, e))
	}
	if e := m.dir.Out(gpio.Low); e != nil {
		err = multierr.Append(err, fmt.Errorf("%s direction: %w", m.name, e))
	}
	return err
}

// GPIODrive drives two DC motors through PWM and direction pins.
type GPIODrive struct {
	mu    sync.Mutex
	left  *motor
	right *motor
	freq  physic.Frequency
}

var _ Drive = (*GPIODrive)(nil)

// NewGPIODrive initializes the host GPIO drivers and resolves the configured pins.
func NewGPIODrive(cfg DriveConfig) (*GPIODrive, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init gpio host: %w", err)
	}

	left, err := openMotor(LeftMotor, cfg.Left)
	if err != nil {
		return nil, err
	}
	right, err := openMotor(RightMotor, cfg.Right)
	if err != nil {
		return nil, err
	}

	freq := physic.Frequency(cfg.PWMFrequencyHz) * physic.Hertz
	if freq <= 0 {
		freq = physic.KiloHertz
	}

	d := &GPIODrive{left: left, right: right, freq: freq}
	if err := d.Stop(); err != nil {
		return nil, fmt.Errorf("initial stop: %w", err)
	}
	return d, nil
}

func openMotor(name MotorName, cfg MotorConfig) (*motor, error) {
	pwm := gpioreg.ByName(cfg.PWMPin)
	if pwm == nil {
		return nil, fmt.Errorf("%s motor: pwm pin %q not found", name, cfg.PWMPin)
	}
	dir := gpioreg.ByName(cfg.DirPin)
	if dir == nil {
		return nil, fmt.Errorf("%s motor: direction pin %q not found", name, cfg.DirPin)
	}
	return &motor{name: name, pwm: pwm, dir: dir, invert: cfg.Invert}, nil
}

func (d *GPIODrive) drive(leftForward, rightForward bool, speed int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return multierr.Combine(
		d.left.set(leftForward, speed, d.freq),
		d.right.set(rightForward, speed, d.freq),
	)
}

// Forward drives both sides forwards.
func (d *GPIODrive) Forward(speed int) error {
	return d.drive(true, true, speed)
}

// Backward drives both sides backwards.
func (d *GPIODrive) Backward(speed int) error {
	return d.drive(false, false, speed)
}

// TurnLeft spins in place counter-clockwise (left backwards, right forwards).
func (d *GPIODrive) TurnLeft(speed int) error {
	return d.drive(false, true, speed)
}

// TurnRight spins in place clockwise (left forwards, right backwards).
func (d *GPIODrive) TurnRight(speed int) error {
	return d.drive(true, false, speed)
}

// Stop sets both duty cycles to zero and resets the direction pins.
func (d *GPIODrive) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return multierr.Combine(d.left.halt(), d.right.halt())
}

// Close stops the motors and releases the pins.
func (d *GPIODrive) Close() error {
	err := d.Stop()
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range []*motor{d.left, d.right} {
		err = multierr.Append(err, m.pwm.Halt())
		err = multierr.Append(err, m.dir.Halt())
	}
	return err
}
