package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gwillem/rover/internal/log"
	"github.com/gwillem/rover/pkg/odometry"
	"github.com/gwillem/rover/pkg/sensor"
)

type SensorsCommand struct {
	Port string `long:"port" description:"Serial port, overrides serial.port"`
	Baud int    `long:"baud" description:"Baud rate, overrides serial.baud_rate"`
	Raw  bool   `long:"raw" description:"Print raw lines instead of the fused pose"`
	Hz   int    `long:"hz" default:"2" description:"Pose print rate"`
}

func (c *SensorsCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initLog(cfg, false)
	defer log.Sync()

	if c.Port != "" {
		cfg.Serial.Port = c.Port
	}
	if c.Baud > 0 {
		cfg.Serial.BaudRate = c.Baud
	}

	fmt.Println(headerStyle.Render("Rover Sensor Monitor"))
	fmt.Println(dimStyle.Render(fmt.Sprintf("%s @ %d baud, ctrl+c to quit", cfg.Serial.Port, cfg.Serial.BaudRate)))
	fmt.Println()

	feed := sensor.NewSerialFeed(sensor.SerialConfig{
		Port:     cfg.Serial.Port,
		BaudRate: cfg.Serial.BaudRate,
		Settle:   serialSettle,
	}, log.Named("serial"))
	defer feed.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Raw {
		return printRaw(ctx, feed)
	}

	store := odometry.NewStore(odometry.NewEstimator(cfg.Geometry.Odometry(), cfg.FusionAlpha, time.Now()))
	ingest := sensor.NewIngestor(feed, store, sensor.IngestorConfig{Logger: log.Named("ingest")})
	go ingest.Run(ctx)

	hz := c.Hz
	if hz <= 0 {
		hz = 2
	}
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			st := ingest.Stats()
			fmt.Printf("\n%d accepted, %d rejected, %d read errors\n", st.Accepted, st.Rejected, st.Errors)
			return nil
		case <-ticker.C:
		}
		snap := store.Snapshot()
		if snap.Samples == 0 {
			fmt.Println(dimStyle.Render("waiting for samples..."))
			continue
		}
		p, s := snap.Pose, snap.Sample
		fmt.Printf("x=%6.2fm y=%6.2fm heading=%7.1f°  yaw=%7.1f° pitch=%6.1f° roll=%6.1f°  rpm=%5.0f/%-5.0f\n",
			p.X, p.Y, p.Heading, s.YawDeg, s.PitchDeg, s.RollDeg, s.RPMLeft, s.RPMRight)
	}
}

// printRaw echoes each line with its parse result until ctx is cancelled.
func printRaw(ctx context.Context, feed *sensor.SerialFeed) error {
	for ctx.Err() == nil {
		if !feed.Connected() {
			if err := feed.Reconnect(); err != nil {
				fmt.Println(dimStyle.Render(fmt.Sprintf("connect: %v", err)))
				sleepCtx(ctx, sensor.DefaultDisconnectedBackoff)
				continue
			}
		}

		line, ok, err := feed.ReadLine()
		if errors.Is(err, sensor.ErrDisconnected) {
			continue
		}
		if err != nil {
			fmt.Println(dimStyle.Render(fmt.Sprintf("read: %v", err)))
			sleepCtx(ctx, sensor.DefaultErrorBackoff)
			continue
		}
		if !ok {
			continue
		}

		if _, err := odometry.ParseSample(line); err != nil {
			fmt.Printf("%s  %s\n", line, dimStyle.Render(err.Error()))
		} else {
			fmt.Printf("%s  %s\n", line, successStyle.Render("ok"))
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
