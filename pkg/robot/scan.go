package robot

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Angler positions a servo.
type Angler interface {
	SetAngle(angle float64) (float64, error)
}

// ScanConfig bounds the camera sweep.
type ScanConfig struct {
	MinAngle  float64       `json:"min_angle"`
	MaxAngle  float64       `json:"max_angle"`
	Step      float64       `json:"step"`
	Delay     time.Duration `json:"delay"`
	HomeAngle float64       `json:"home_angle"`
}

// DefaultScanConfig sweeps 45–135° in 5° steps around a centered camera.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		MinAngle:  45,
		MaxAngle:  135,
		Step:      5,
		Delay:     10 * time.Millisecond,
		HomeAngle: 90,
	}
}

// Scanner sweeps the camera tilt servo back and forth while active.
type Scanner struct {
	servo Angler
	cfg   ScanConfig
	log   *zap.SugaredLogger

	mu     sync.Mutex
	active bool
	angle  float64
	up     bool
	wake   chan struct{}
}

// NewScanner creates a scanner for servo.
func NewScanner(servo Angler, cfg ScanConfig, logger *zap.SugaredLogger) *Scanner {
	if cfg.Step <= 0 {
		cfg.Step = DefaultScanConfig().Step
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultScanConfig().Delay
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Scanner{
		servo: servo,
		cfg:   cfg,
		log:   logger,
		angle: cfg.HomeAngle,
		up:    true,
		wake:  make(chan struct{}, 1),
	}
}

// Start begins sweeping. It reports false if a sweep was already running.
func (s *Scanner) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return false
	}
	s.active = true
	select {
	case s.wake <- struct{}{}:
	default:
	}
	s.log.Infow("camera scan started", "min", s.cfg.MinAngle, "max", s.cfg.MaxAngle)
	return true
}

// Stop ends the sweep and returns the camera to its home angle. It reports
// false if no sweep was running.
func (s *Scanner) Stop() bool {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return false
	}
	s.active = false
	s.mu.Unlock()

	s.home()
	s.log.Infow("camera scan stopped")
	return true
}

// Scanning reports whether a sweep is running.
func (s *Scanner) Scanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Run sweeps while active until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		}

		for s.Scanning() {
			if err := s.step(); err != nil {
				s.log.Errorw("camera scan failed", "error", err)
				s.mu.Lock()
				s.active = false
				s.mu.Unlock()
				s.home()
				break
			}
			select {
			case <-ctx.Done():
				s.Stop()
				return nil
			case <-time.After(s.cfg.Delay):
			}
		}
	}
}

// step advances one increment, reversing at the sweep limits.
func (s *Scanner) step() error {
	s.mu.Lock()
	if s.up {
		s.angle += s.cfg.Step
		if s.angle > s.cfg.MaxAngle {
			s.angle = s.cfg.MaxAngle
			s.up = false
		}
	} else {
		s.angle -= s.cfg.Step
		if s.angle < s.cfg.MinAngle {
			s.angle = s.cfg.MinAngle
			s.up = true
		}
	}
	angle := s.angle
	s.mu.Unlock()

	_, err := s.servo.SetAngle(angle)
	return err
}

func (s *Scanner) home() {
	if _, err := s.servo.SetAngle(s.cfg.HomeAngle); err != nil {
		s.log.Warnw("return camera home", "error", err)
	}
}
