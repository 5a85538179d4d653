package mission

import (
	"fmt"
	"time"

	"github.com/gwillem/rover/pkg/odometry"
)

// State is the phase of the turn-then-drive sequence.
type State int

// Mission states.
const (
	Idle State = iota
	Turning
	Driving
	Finished
	Stopped
)

var stateNames = map[State]string{
	Idle:     "IDLE",
	Turning:  "TURNING",
	Driving:  "DRIVING",
	Finished: "FINISHED",
	Stopped:  "STOPPED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome records how the last mission ended.
type Outcome string

// Mission outcomes.
const (
	OutcomeNone      Outcome = ""
	OutcomeFinished  Outcome = "finished"
	OutcomeStopped   Outcome = "stopped"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFault     Outcome = "fault"
)

// Target is a relative heading and a straight-line distance.
type Target struct {
	DistanceMeters float64 `json:"distance"`
	HeadingDeg     float64 `json:"direction"`
}

// Status is a point-in-time view of the controller.
type Status struct {
	ID           string        `json:"id,omitempty"`
	State        State         `json:"state"`
	Active       bool          `json:"active"`
	Target       Target        `json:"target"`
	Pending      Target        `json:"pending_target"`
	Speed        int           `json:"speed"`
	Origin       odometry.Pose `json:"origin"`
	Traveled     float64       `json:"traveled"`
	HeadingError float64       `json:"heading_error"`
	StartedAt    time.Time     `json:"started_at"`
	LastOutcome  Outcome       `json:"last_outcome,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
}
