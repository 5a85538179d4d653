package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/gwillem/rover/internal/log"
	"github.com/gwillem/rover/pkg/robot"
)

type Options struct {
	Config   string `short:"c" long:"config" default:"rover.json" description:"Configuration file"`
	EnvFile  string `long:"env-file" default:".env" description:"Environment file with ROVER_* overrides"`
	LogLevel string `long:"log-level" description:"Override the configured log level"`

	Serve     ServeCommand     `command:"serve" description:"Run sensor ingestion, the mission controller and the web API"`
	Dashboard DashboardCommand `command:"dashboard" alias:"dash" description:"Drive the rover from a terminal dashboard"`
	Setup     SetupCommand     `command:"setup" description:"Pick the sensor port and write the configuration"`
	Sensors   SensorsCommand   `command:"sensors" description:"Print parsed samples from the sensor feed"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "Rover - skid-steer rover with IMU-fused odometry and turn-then-drive missions"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// loadConfig reads the config file, applies .env and ROVER_* overrides and
// validates the result. A missing config file falls back to defaults.
func loadConfig() (*robot.Config, error) {
	if err := robot.LoadEnv(opts.EnvFile); err != nil {
		return nil, err
	}

	cfg, err := robot.LoadConfigFrom(opts.Config)
	if errors.Is(err, os.ErrNotExist) {
		cfg = robot.DefaultConfig()
	} else if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", opts.Config, err)
	}
	return cfg, nil
}

func initLog(cfg *robot.Config, quiet bool) {
	log.Init(log.Options{
		Level: cfg.Log.Level,
		File:  cfg.Log.File,
		JSON:  cfg.Log.JSON,
		Quiet: quiet,
	})
}
