// Package mission runs the rover's autonomous turn-then-drive sequence.
package mission

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gwillem/rover/pkg/odometry"
	"github.com/gwillem/rover/pkg/robot"
)

// Errors returned by the controller.
var (
	ErrAlreadyActive = errors.New("mission already active")
	ErrNotActive     = errors.New("no active mission")
	ErrInvalidTarget = errors.New("invalid mission target")
)

// Controller defaults.
const (
	DefaultSpeed              = 30
	DefaultAlignToleranceDeg  = 2.0
	DefaultDistanceToleranceM = 0.05
	DefaultTick               = 50 * time.Millisecond
)

// PoseSource provides the current pose estimate.
type PoseSource interface {
	Pose() odometry.Pose
}

// Config holds configuration for the controller.
type Config struct {
	Speed              int
	AlignToleranceDeg  float64
	DistanceToleranceM float64
	Tick               time.Duration
	Clock              clock.Clock
	Logger             *zap.SugaredLogger
}

// Controller turns the rover to a target heading, then drives a target
// distance in a straight line.
//
// mu guards the mission state and serializes every motion command issued by
// the run loop with StopMission, so no command from a mission can reach the
// drive after StopMission returns. The pose is always read before taking mu.
type Controller struct {
	drive robot.Drive
	poses PoseSource
	cfg   Config
	clock clock.Clock
	log   *zap.SugaredLogger

	mu       sync.Mutex
	state    State
	active   bool
	gen      uint64
	id       string
	pending  Target
	target   Target
	speed    int
	origin   odometry.Pose
	traveled float64
	headErr  float64
	started  time.Time
	outcome  Outcome
	lastErr  string

	wake  chan struct{}
	logCh chan string
}

// NewController creates a mission controller driving d from the poses in p.
func NewController(d robot.Drive, p PoseSource, cfg Config) *Controller {
	if cfg.Speed <= 0 {
		cfg.Speed = DefaultSpeed
	}
	if cfg.AlignToleranceDeg <= 0 {
		cfg.AlignToleranceDeg = DefaultAlignToleranceDeg
	}
	if cfg.DistanceToleranceM <= 0 {
		cfg.DistanceToleranceM = DefaultDistanceToleranceM
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	return &Controller{
		drive: d,
		poses: p,
		cfg:   cfg,
		clock: cfg.Clock,
		log:   cfg.Logger,
		speed: robot.ClampSpeed(cfg.Speed),
		wake:  make(chan struct{}, 1),
		logCh: make(chan string, 32),
	}
}

// Logs returns a channel that receives human-readable progress messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

func (c *Controller) logf(format string, args ...any) {
	c.log.Infof(format, args...)
	c.notify(format, args...)
}

// notify queues a message for Logs. It never blocks and never takes mu.
func (c *Controller) notify(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", c.clock.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// SetTargets sets the target of the next mission. A mission in progress
// keeps the target it started with.
func (c *Controller) SetTargets(distanceMeters, headingDeg float64) error {
	if math.IsNaN(distanceMeters) || math.IsInf(distanceMeters, 0) || distanceMeters < 0 {
		return fmt.Errorf("%w: distance %v", ErrInvalidTarget, distanceMeters)
	}
	if math.IsNaN(headingDeg) || math.IsInf(headingDeg, 0) {
		return fmt.Errorf("%w: heading %v", ErrInvalidTarget, headingDeg)
	}
	c.mu.Lock()
	c.pending = Target{DistanceMeters: distanceMeters, HeadingDeg: headingDeg}
	c.mu.Unlock()
	c.log.Infow("targets set", "distance", distanceMeters, "heading", headingDeg)
	return nil
}

// SetSpeed sets the automation speed percent, clamped to [0, 100]. It takes
// effect on the next tick.
func (c *Controller) SetSpeed(percent int) {
	c.mu.Lock()
	c.speed = robot.ClampSpeed(percent)
	c.mu.Unlock()
}

// StartMission begins a mission toward the pending target.
func (c *Controller) StartMission() error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return ErrAlreadyActive
	}
	c.active = true
	c.gen++
	c.id = uuid.NewString()
	c.target = c.pending
	c.started = c.clock.Now()
	c.traveled = 0
	c.headErr = 0
	c.lastErr = ""
	id, target := c.id, c.target
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	c.logf("Mission %s started: %.2fm at %.1f°", id[:8], target.DistanceMeters, target.HeadingDeg)
	return nil
}

// StopMission cancels the active mission and stops the motors immediately.
func (c *Controller) StopMission() error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return ErrNotActive
	}
	c.active = false
	c.state = Stopped
	c.outcome = OutcomeStopped
	err := c.drive.Stop()
	c.mu.Unlock()

	c.logf("Mission stopped")
	if err != nil {
		return fmt.Errorf("stop motors: %w", err)
	}
	return nil
}

// IsActive reports whether a mission is in progress.
func (c *Controller) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		ID:           c.id,
		State:        c.state,
		Active:       c.active,
		Target:       c.target,
		Pending:      c.pending,
		Speed:        c.speed,
		Origin:       c.origin,
		Traveled:     c.traveled,
		HeadingError: c.headErr,
		StartedAt:    c.started,
		LastOutcome:  c.outcome,
		LastError:    c.lastErr,
	}
}

// Run executes missions until ctx is cancelled. While idle it blocks until
// StartMission is called.
func (c *Controller) Run(ctx context.Context) error {
	c.log.Infow("mission controller started", "tick", c.cfg.Tick)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.wake:
			c.runMission(ctx)
		}
	}
}

// runMission drives one mission to completion, cancellation or fault.
func (c *Controller) runMission(ctx context.Context) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			c.fault(gen, fmt.Errorf("panic: %v", r))
		}
		c.settle(gen)
	}()

	if !c.begin(gen) {
		return
	}

	ticker := c.clock.Ticker(c.cfg.Tick)
	defer ticker.Stop()

	for {
		done, err := c.tick(gen)
		if err != nil {
			c.fault(gen, err)
			return
		}
		if done {
			return
		}
		select {
		case <-ctx.Done():
			c.cancel(gen)
			return
		case <-ticker.C:
		}
	}
}

// begin enters TURNING and records the distance origin.
func (c *Controller) begin(gen uint64) bool {
	origin := c.poses.Pose()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || c.gen != gen {
		return false
	}
	c.origin = origin
	c.state = Turning
	c.log.Infow("turning", "heading", origin.Heading, "target", c.target.HeadingDeg)
	return true
}

// tick runs one control step. It returns done when the mission is over.
func (c *Controller) tick(gen uint64) (bool, error) {
	pose := c.poses.Pose()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || c.gen != gen {
		return true, nil
	}

	switch c.state {
	case Turning:
		return false, c.turn(pose)
	case Driving:
		return c.driveStep(pose)
	default:
		return true, nil
	}
}

// turn spins toward the target heading. Called with mu held.
func (c *Controller) turn(pose odometry.Pose) error {
	headErr := odometry.NormalizeAngleDeg(c.target.HeadingDeg - pose.Heading)
	c.headErr = headErr

	if math.Abs(headErr) <= c.cfg.AlignToleranceDeg {
		if err := c.drive.Stop(); err != nil {
			return fmt.Errorf("stop after turn: %w", err)
		}
		c.state = Driving
		c.log.Infow("aligned", "heading", pose.Heading, "error", headErr)
		return nil
	}
	if headErr > 0 {
		return c.drive.TurnLeft(c.speed)
	}
	return c.drive.TurnRight(c.speed)
}

// driveStep drives forward until the target distance is reached. Called with
// mu held.
func (c *Controller) driveStep(pose odometry.Pose) (bool, error) {
	c.traveled = pose.DistanceTo(c.origin)
	remaining := c.target.DistanceMeters - c.traveled

	if remaining <= c.cfg.DistanceToleranceM {
		if err := c.drive.Stop(); err != nil {
			return false, fmt.Errorf("stop at target: %w", err)
		}
		c.state = Finished
		c.active = false
		c.outcome = OutcomeFinished
		c.log.Infow("distance reached", "traveled", c.traveled)
		return true, nil
	}
	return false, c.drive.Forward(c.speed)
}

// cancel stops a mission interrupted by shutdown.
func (c *Controller) cancel(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || c.gen != gen {
		return
	}
	c.active = false
	c.state = Stopped
	c.outcome = OutcomeCancelled
	if err := c.drive.Stop(); err != nil {
		c.log.Errorw("stop on shutdown", "error", err)
	}
}

// fault stops the motors unconditionally and records err.
func (c *Controller) fault(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if stopErr := c.drive.Stop(); stopErr != nil {
		c.log.Errorw("stop after fault", "error", stopErr)
	}
	if c.gen != gen {
		return
	}
	c.active = false
	c.state = Stopped
	c.outcome = OutcomeFault
	c.lastErr = err.Error()
	c.log.Errorw("mission fault", "error", err)
	c.notify("Mission fault: %v", err)
}

// settle returns the controller to IDLE once a mission has ended.
func (c *Controller) settle(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.active {
		c.mu.Unlock()
		return
	}
	outcome := c.outcome
	traveled := c.traveled
	c.state = Idle
	c.mu.Unlock()

	switch outcome {
	case OutcomeFinished:
		c.logf("Mission finished after %.2fm", traveled)
	case OutcomeCancelled:
		c.logf("Mission cancelled by shutdown")
	}
}
