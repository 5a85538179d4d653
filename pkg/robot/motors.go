// Package robot provides the rover's actuators and its configuration.
package robot

import "fmt"

// MotorName identifies one side of the skid-steer drive.
type MotorName string

// Motor names for the two drive sides.
const (
	LeftMotor  MotorName = "left"
	RightMotor MotorName = "right"
)

// AllMotors returns all motor names in wiring order.
func AllMotors() []MotorName {
	return []MotorName{
		LeftMotor,
		RightMotor,
	}
}

// Command is a manual drive command as sent by the web UI.
type Command string

// Manual drive commands.
const (
	CommandForward  Command = "forward"
	CommandBackward Command = "backward"
	CommandLeft     Command = "left"
	CommandRight    Command = "right"
	CommandStop     Command = "stop"
)

// IsMotion reports whether the command energizes the motors.
func (c Command) IsMotion() bool {
	switch c {
	case CommandForward, CommandBackward, CommandLeft, CommandRight:
		return true
	}
	return false
}

// Drive is the set of motion primitives. Speeds are percentages in [0, 100].
type Drive interface {
	Forward(speed int) error
	Backward(speed int) error
	TurnLeft(speed int) error
	TurnRight(speed int) error
	Stop() error
}

// Apply executes a manual command on d.
func Apply(d Drive, cmd Command, speed int) error {
	switch cmd {
	case CommandForward:
		return d.Forward(speed)
	case CommandBackward:
		return d.Backward(speed)
	case CommandLeft:
		return d.TurnLeft(speed)
	case CommandRight:
		return d.TurnRight(speed)
	case CommandStop:
		return d.Stop()
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// ClampSpeed limits a speed percentage to [0, 100].
func ClampSpeed(speed int) int {
	if speed < 0 {
		return 0
	}
	if speed > 100 {
		return 100
	}
	return speed
}
