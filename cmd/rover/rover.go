package main

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gwillem/rover/internal/log"
	"github.com/gwillem/rover/pkg/camera"
	"github.com/gwillem/rover/pkg/mission"
	"github.com/gwillem/rover/pkg/odometry"
	"github.com/gwillem/rover/pkg/robot"
	"github.com/gwillem/rover/pkg/sensor"
	"github.com/gwillem/rover/pkg/stream"
	"github.com/gwillem/rover/pkg/web"
)

// serialSettle covers the microcontroller reset after the port opens.
const serialSettle = 2 * time.Second

// hardware selects the optional peripherals to bring up.
type hardware struct {
	Camera bool
	Tilt   bool
}

// rover owns every long-running component of the process.
type rover struct {
	cfg *robot.Config
	log *zap.SugaredLogger

	store   *odometry.Store
	feed    *sensor.SerialFeed
	ingest  *sensor.Ingestor
	drive   *robot.GPIODrive
	mission *mission.Controller

	tilt    *robot.TiltServo
	scanner *robot.Scanner
	cam     *camera.Camera
	frames  *stream.Buffer
	codes   *stream.CodeLog
}

// newRover opens the drive and wires the pose store, ingestion and mission
// controller. The camera and tilt servo are optional: when they fail to open
// the rover runs without them.
func newRover(cfg *robot.Config, hw hardware) (*rover, error) {
	r := &rover{cfg: cfg, log: log.Named("rover")}

	r.store = odometry.NewStore(odometry.NewEstimator(cfg.Geometry.Odometry(), cfg.FusionAlpha, time.Now()))
	r.feed = sensor.NewSerialFeed(sensor.SerialConfig{
		Port:     cfg.Serial.Port,
		BaudRate: cfg.Serial.BaudRate,
		Settle:   serialSettle,
	}, log.Named("serial"))
	r.ingest = sensor.NewIngestor(r.feed, r.store, sensor.IngestorConfig{
		Logger: log.Named("ingest"),
	})

	drive, err := robot.NewGPIODrive(cfg.Drive)
	if err != nil {
		return nil, err
	}
	r.drive = drive

	r.mission = mission.NewController(drive, r.store, mission.Config{
		Speed:              cfg.Mission.Speed,
		AlignToleranceDeg:  cfg.Mission.AlignToleranceDeg,
		DistanceToleranceM: cfg.Mission.DistanceToleranceM,
		Tick:               time.Duration(cfg.Mission.TickMS) * time.Millisecond,
		Logger:             log.Named("mission"),
	})

	if hw.Tilt {
		tilt, err := robot.NewTiltServo(cfg.Tilt)
		if err != nil {
			r.log.Warnw("camera servo unavailable", "error", err)
		} else {
			r.tilt = tilt
			r.scanner = robot.NewScanner(tilt, cfg.Scan, log.Named("scan"))
		}
	}

	if hw.Camera && cfg.Camera.Enabled {
		frames, codes := stream.NewBuffer(), stream.NewCodeLog()
		cam, err := camera.Open(camera.Config{
			Device: cfg.Camera.Device,
			Width:  cfg.Camera.Width,
			Height: cfg.Camera.Height,
		}, frames, codes, log.Named("camera"))
		if err != nil {
			r.log.Warnw("camera unavailable", "error", err)
		} else {
			r.cam, r.frames, r.codes = cam, frames, codes
		}
	}

	return r, nil
}

// start launches the background loops on g.
func (r *rover) start(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error { return r.ingest.Run(ctx) })
	g.Go(func() error { return r.mission.Run(ctx) })
	if r.scanner != nil {
		g.Go(func() error { return r.scanner.Run(ctx) })
	}
	if r.cam != nil {
		g.Go(func() error { return r.cam.Run(ctx) })
	}
}

// webDeps exposes the components to the web API. Absent peripherals stay
// nil interfaces.
func (r *rover) webDeps() web.Deps {
	deps := web.Deps{
		Drive:   r.drive,
		Poses:   r.store,
		Mission: r.mission,
		Frames:  r.frames,
		Codes:   r.codes,
		Ingest:  r.ingest,
		Logger:  log.Named("web"),
	}
	if r.tilt != nil {
		deps.Tilt = r.tilt
	}
	if r.scanner != nil {
		deps.Scanner = r.scanner
	}
	return deps
}

// Close stops the motors and releases all hardware.
func (r *rover) Close() error {
	err := r.drive.Stop()
	err = multierr.Append(err, r.drive.Close())
	err = multierr.Append(err, r.feed.Close())
	if r.tilt != nil {
		err = multierr.Append(err, r.tilt.Close())
	}
	if r.cam != nil {
		err = multierr.Append(err, r.cam.Close())
	}
	return err
}
