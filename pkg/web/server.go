// Package web serves the rover's HTTP API, live status websocket and camera
// stream.
package web

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/gwillem/rover/pkg/mission"
	"github.com/gwillem/rover/pkg/odometry"
	"github.com/gwillem/rover/pkg/robot"
	"github.com/gwillem/rover/pkg/sensor"
	"github.com/gwillem/rover/pkg/stream"
)

const shutdownTimeout = 5 * time.Second

// Mission is the mission controller as seen by the API.
type Mission interface {
	SetTargets(distanceMeters, headingDeg float64) error
	SetSpeed(percent int)
	StartMission() error
	StopMission() error
	IsActive() bool
	Status() mission.Status
}

// Poses provides consistent pose and sample snapshots.
type Poses interface {
	Snapshot() odometry.Snapshot
}

// Tilt positions the camera.
type Tilt interface {
	SetAngle(angle float64) (float64, error)
	Angle() float64
}

// Scanner sweeps the camera.
type Scanner interface {
	Start() bool
	Stop() bool
	Scanning() bool
}

// IngestStats reports sensor ingestion counters.
type IngestStats interface {
	Stats() sensor.Stats
}

// Config holds configuration for the server.
type Config struct {
	ManualSpeed int
	DataDir     string
	PhotoDir    string
	StatusRate  time.Duration
	StaticDir   string
	AccessLog   bool
}

// Deps are the rover components behind the API. Drive, Poses and Mission
// are required; the rest may be nil when the hardware is absent.
type Deps struct {
	Drive   robot.Drive
	Poses   Poses
	Mission Mission
	Tilt    Tilt
	Scanner Scanner
	Frames  *stream.Buffer
	Codes   *stream.CodeLog
	Ingest  IngestStats
	Logger  *zap.SugaredLogger
}

// Server is the rover web API.
type Server struct {
	app  *fiber.App
	cfg  Config
	deps Deps
	log  *zap.SugaredLogger

	mu    sync.Mutex
	speed int

	done     chan struct{}
	doneOnce sync.Once
}

// NewServer creates the server and registers all routes.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.ManualSpeed <= 0 {
		cfg.ManualSpeed = 50
	}
	if cfg.StatusRate <= 0 {
		cfg.StatusRate = 100 * time.Millisecond
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.PhotoDir == "" {
		cfg.PhotoDir = cfg.DataDir + "/photos"
	}
	l := deps.Logger
	if l == nil {
		l = zap.NewNop().Sugar()
	}

	s := &Server{
		cfg:   cfg,
		deps:  deps,
		log:   l,
		speed: robot.ClampSpeed(cfg.ManualSpeed),
		done:  make(chan struct{}),
	}

	app := fiber.New(fiber.Config{
		AppName:               "rover",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	if cfg.AccessLog {
		app.Use(logger.New())
	}

	app.Post("/send_command", s.handleSendCommand)
	app.Post("/set_global_speed", s.handleSetSpeed)
	app.Get("/get_encoder_data", s.handleEncoderData)
	app.Get("/get_pose", s.handlePose)
	app.Post("/set_automation_targets", s.handleSetTargets)
	app.Get("/automation_status", s.handleAutomationStatus)
	app.Post("/send_angle", s.handleSendAngle)
	app.Post("/start_scan", s.handleStartScan)
	app.Post("/stop_scan", s.handleStopScan)
	app.Get("/scan_status", s.handleScanStatus)
	app.Get("/mjpeg", s.handleMJPEG)
	app.Post("/take_photo", s.handleTakePhoto)
	app.Get("/qr_codes", s.handleQRCodes)
	app.Static("/data_files", cfg.DataDir)

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/metrics", s.handleMetrics)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("web server listening", "addr", addr)
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		s.close()
		return err
	case <-ctx.Done():
	}

	s.close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return err
	}
	s.log.Infow("web server stopped")
	return nil
}

// close ends long-lived streams.
func (s *Server) close() {
	s.doneOnce.Do(func() { close(s.done) })
}

// ManualSpeed returns the speed used for manual commands.
func (s *Server) ManualSpeed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}
