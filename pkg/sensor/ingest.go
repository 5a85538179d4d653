package sensor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/gwillem/rover/pkg/odometry"
)

// Backoff delays used by the ingestion loop.
const (
	DefaultIdleBackoff         = 50 * time.Millisecond
	DefaultDisconnectedBackoff = 5 * time.Second
	DefaultErrorBackoff        = time.Second
)

// IngestorConfig tunes an Ingestor. Zero values select the defaults.
type IngestorConfig struct {
	IdleBackoff         time.Duration
	DisconnectedBackoff time.Duration
	ErrorBackoff        time.Duration
	Clock               clock.Clock
	Logger              *zap.SugaredLogger
}

// Stats counts what the ingestion loop has seen.
type Stats struct {
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
	Errors   uint64 `json:"errors"`
}

// Ingestor moves samples from a Feed into a pose Store.
type Ingestor struct {
	feed  Feed
	store *odometry.Store
	cfg   IngestorConfig
	clock clock.Clock
	log   *zap.SugaredLogger

	accepted atomic.Uint64
	rejected atomic.Uint64
	errors   atomic.Uint64
}

// NewIngestor creates an ingestion loop reading feed into store.
func NewIngestor(feed Feed, store *odometry.Store, cfg IngestorConfig) *Ingestor {
	if cfg.IdleBackoff <= 0 {
		cfg.IdleBackoff = DefaultIdleBackoff
	}
	if cfg.DisconnectedBackoff <= 0 {
		cfg.DisconnectedBackoff = DefaultDisconnectedBackoff
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}
	l := cfg.Logger
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	return &Ingestor{feed: feed, store: store, cfg: cfg, clock: c, log: l}
}

// Run reads the feed until ctx is cancelled. Bad lines and read errors are
// logged and never end the loop.
func (in *Ingestor) Run(ctx context.Context) error {
	in.log.Infow("ingestion started")
	defer in.log.Infow("ingestion stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}
		wait := in.step()
		if wait == 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-in.clock.After(wait):
		}
	}
}

// step performs one read and returns how long to back off before the next.
func (in *Ingestor) step() time.Duration {
	if !in.feed.Connected() {
		r, ok := in.feed.(Reconnector)
		if !ok {
			return in.cfg.DisconnectedBackoff
		}
		if err := r.Reconnect(); err != nil {
			in.log.Warnw("sensor feed unavailable", "error", err, "retry_in", in.cfg.DisconnectedBackoff)
			return in.cfg.DisconnectedBackoff
		}
	}

	line, ok, err := in.feed.ReadLine()
	if err != nil {
		in.errors.Add(1)
		if errors.Is(err, ErrDisconnected) {
			return in.cfg.DisconnectedBackoff
		}
		in.log.Errorw("sensor read failed", "error", err)
		return in.cfg.ErrorBackoff
	}
	if !ok {
		return in.cfg.IdleBackoff
	}

	sample, err := odometry.ParseSample(line)
	if err != nil {
		in.rejected.Add(1)
		in.log.Debugw("discarding sensor line", "line", line, "error", err)
		return 0
	}
	in.store.Update(sample, in.clock.Now())
	in.accepted.Add(1)
	return 0
}

// Stats returns the loop counters.
func (in *Ingestor) Stats() Stats {
	return Stats{
		Accepted: in.accepted.Load(),
		Rejected: in.rejected.Load(),
		Errors:   in.errors.Load(),
	}
}
