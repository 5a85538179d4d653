package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gwillem/rover/internal/log"
	"github.com/gwillem/rover/pkg/web"
)

type ServeCommand struct {
	Addr      string `long:"addr" description:"Listen address, overrides http.addr"`
	Static    string `long:"static" description:"Serve the web UI from this directory"`
	NoCamera  bool   `long:"no-camera" description:"Do not open the camera"`
	NoTilt    bool   `long:"no-tilt" description:"Do not open the camera servo"`
	AccessLog bool   `long:"access-log" description:"Log every HTTP request"`
}

func (c *ServeCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initLog(cfg, false)
	defer log.Sync()
	l := log.Named("serve")

	addr := cfg.HTTP.Addr
	if c.Addr != "" {
		addr = c.Addr
	}

	r, err := newRover(cfg, hardware{Camera: !c.NoCamera, Tilt: !c.NoTilt})
	if err != nil {
		return fmt.Errorf("start rover: %w", err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			l.Errorw("shutdown", "error", err)
		}
	}()

	photoDir := cfg.Camera.PhotoDir
	if photoDir == "" {
		photoDir = filepath.Join(cfg.HTTP.DataDir, "photos")
	}
	if err := os.MkdirAll(photoDir, 0o755); err != nil {
		return err
	}

	var rate time.Duration
	if cfg.HTTP.StatusRateHz > 0 {
		rate = time.Second / time.Duration(cfg.HTTP.StatusRateHz)
	}
	srv := web.NewServer(web.Config{
		ManualSpeed: cfg.HTTP.ManualSpeed,
		DataDir:     cfg.HTTP.DataDir,
		PhotoDir:    photoDir,
		StatusRate:  rate,
		StaticDir:   c.Static,
		AccessLog:   c.AccessLog,
	}, r.webDeps())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	r.start(ctx, g)
	g.Go(func() error { return srv.Run(ctx, addr) })

	l.Infow("rover running", "addr", addr, "serial", cfg.Serial.Port,
		"camera", r.cam != nil, "tilt", r.tilt != nil)

	if err := g.Wait(); err != nil {
		return err
	}
	l.Infow("rover stopped")
	return nil
}
