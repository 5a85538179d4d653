package odometry

import (
	"sync"
	"time"
)

// Snapshot is a consistent copy of everything held by a Store.
type Snapshot struct {
	Pose       Pose      `json:"pose"`
	Sample     Sample    `json:"sample"`
	Samples    uint64    `json:"samples"`
	LastUpdate time.Time `json:"last_update"`
}

// Store guards one Estimator and the latest raw sample with a single mutex.
//
// Critical sections only copy values in or out. Callers must never hold the
// lock across a motor command or a sleep, which is why the lock is not exported.
type Store struct {
	mu      sync.Mutex
	est     *Estimator
	sample  Sample
	samples uint64
}

// NewStore wraps est. The store takes ownership of est.
func NewStore(est *Estimator) *Store {
	return &Store{est: est}
}

// Update publishes a sample and advances the estimator.
func (s *Store) Update(sample Sample, now time.Time) {
	s.mu.Lock()
	s.sample = sample
	s.samples++
	s.est.Update(sample.RPMLeft, sample.RPMRight, sample.YawDeg, now)
	s.mu.Unlock()
}

// Pose returns the current pose estimate.
func (s *Store) Pose() Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.est.Pose()
}

// Sample returns the most recent raw sample.
func (s *Store) Sample() Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sample
}

// Snapshot returns pose, sample and bookkeeping under one lock hold.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Pose:       s.est.Pose(),
		Sample:     s.sample,
		Samples:    s.samples,
		LastUpdate: s.est.LastUpdate(),
	}
}
