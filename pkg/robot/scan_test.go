package robot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeAngler struct {
	mu     sync.Mutex
	angles []float64
	err    error
}

func (f *fakeAngler) SetAngle(angle float64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.angles = append(f.angles, angle)
	return angle, nil
}

func (f *fakeAngler) Angles() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.angles...)
}

func TestScanner_StepReversesAtLimits(t *testing.T) {
	servo := &fakeAngler{}
	s := NewScanner(servo, ScanConfig{MinAngle: 80, MaxAngle: 100, Step: 10, HomeAngle: 90}, nil)

	for i := 0; i < 6; i++ {
		if err := s.step(); err != nil {
			t.Fatal(err)
		}
	}

	want := []float64{100, 100, 90, 80, 80, 90}
	got := servo.Angles()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d angle = %v, want %v (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestScanner_StartStop(t *testing.T) {
	servo := &fakeAngler{}
	s := NewScanner(servo, DefaultScanConfig(), nil)

	if s.Stop() {
		t.Error("Stop() on idle scanner = true")
	}
	if !s.Start() {
		t.Fatal("Start() = false")
	}
	if s.Start() {
		t.Error("second Start() = true")
	}
	if !s.Scanning() {
		t.Error("Scanning() = false after Start")
	}
	if !s.Stop() {
		t.Error("Stop() = false while scanning")
	}
	angles := servo.Angles()
	if len(angles) == 0 || angles[len(angles)-1] != 90 {
		t.Errorf("servo not returned home: %v", angles)
	}
}

func TestScanner_RunSweepsUntilStopped(t *testing.T) {
	servo := &fakeAngler{}
	s := NewScanner(servo, ScanConfig{MinAngle: 45, MaxAngle: 135, Step: 5, Delay: time.Millisecond, HomeAngle: 90}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Start()
	deadline := time.Now().Add(2 * time.Second)
	for len(servo.Angles()) < 5 {
		if time.Now().After(deadline) {
			t.Fatal("scanner did not move the servo")
		}
		time.Sleep(time.Millisecond)
	}
	s.Stop()

	for _, a := range servo.Angles() {
		if a < 45 || a > 135 {
			t.Errorf("angle %v outside sweep range", a)
		}
	}
}

func TestScanner_ServoErrorEndsSweep(t *testing.T) {
	servo := &fakeAngler{err: errors.New("i2c nack")}
	s := NewScanner(servo, ScanConfig{MinAngle: 45, MaxAngle: 135, Step: 5, Delay: time.Millisecond, HomeAngle: 90}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Start()
	deadline := time.Now().Add(2 * time.Second)
	for s.Scanning() {
		if time.Now().After(deadline) {
			t.Fatal("scan still active after servo error")
		}
		time.Sleep(time.Millisecond)
	}
}
