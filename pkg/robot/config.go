package robot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/gwillem/rover/pkg/odometry"
)

const DefaultConfigFile = "rover.json"

// Environment variables that override the config file.
const (
	EnvSerialPort = "ROVER_SERIAL_PORT"
	EnvBaudRate   = "ROVER_BAUD_RATE"
	EnvHTTPAddr   = "ROVER_HTTP_ADDR"
	EnvLogLevel   = "ROVER_LOG_LEVEL"
	EnvLogFile    = "ROVER_LOG_FILE"
)

// Config holds the rover configuration
type Config struct {
	Serial      SerialConfig   `json:"serial"`
	Drive       DriveConfig    `json:"drive"`
	Tilt        TiltConfig     `json:"tilt"`
	Scan        ScanConfig     `json:"scan"`
	Geometry    GeometryConfig `json:"geometry"`
	FusionAlpha float64        `json:"fusion_alpha"`
	Mission     MissionConfig  `json:"mission"`
	HTTP        HTTPConfig     `json:"http"`
	Camera      CameraConfig   `json:"camera"`
	Log         LogConfig      `json:"log"`
}

// SerialConfig describes the link to the sensor microcontroller.
type SerialConfig struct {
	Port     string `json:"port"`
	BaudRate int    `json:"baud_rate"`
}

// GeometryConfig holds chassis dimensions in millimeters.
type GeometryConfig struct {
	WheelDiameterMM float64 `json:"wheel_diameter_mm"`
	TrackWidthMM    float64 `json:"track_width_mm"`
}

// Odometry converts the chassis dimensions to estimator geometry.
func (g GeometryConfig) Odometry() odometry.Geometry {
	return odometry.Geometry{
		WheelDiameterMeters: g.WheelDiameterMM / 1000,
		TrackWidthMeters:    g.TrackWidthMM / 1000,
	}
}

// MissionConfig tunes the turn-then-drive controller.
type MissionConfig struct {
	Speed              int     `json:"speed"`
	AlignToleranceDeg  float64 `json:"align_tolerance_deg"`
	DistanceToleranceM float64 `json:"distance_tolerance_m"`
	TickMS             int     `json:"tick_ms"`
}

// HTTPConfig configures the web API.
type HTTPConfig struct {
	Addr         string `json:"addr"`
	ManualSpeed  int    `json:"manual_speed"`
	DataDir      string `json:"data_dir"`
	StatusRateHz int    `json:"status_rate_hz"`
}

// CameraConfig configures the capture device.
type CameraConfig struct {
	Enabled  bool   `json:"enabled"`
	Device   int    `json:"device"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	PhotoDir string `json:"photo_dir"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file,omitempty"`
	JSON  bool   `json:"json"`
}

// DefaultConfig returns the wiring and tuning of the stock rover.
func DefaultConfig() *Config {
	return &Config{
		Serial: SerialConfig{Port: "/dev/ttyACM0", BaudRate: 115200},
		Drive: DriveConfig{
			Left:           MotorConfig{PWMPin: "GPIO17", DirPin: "GPIO18"},
			Right:          MotorConfig{PWMPin: "GPIO22", DirPin: "GPIO23", Invert: true},
			PWMFrequencyHz: 1000,
		},
		Tilt: TiltConfig{
			Address:     0x40,
			Channel:     3,
			Calibration: DefaultServoCalibration(),
		},
		Scan: DefaultScanConfig(),
		Geometry: GeometryConfig{
			WheelDiameterMM: odometry.DefaultWheelDiameterMM,
			TrackWidthMM:    odometry.DefaultTrackWidthMM,
		},
		FusionAlpha: odometry.DefaultAlpha,
		Mission: MissionConfig{
			Speed:              30,
			AlignToleranceDeg:  2.0,
			DistanceToleranceM: 0.05,
			TickMS:             50,
		},
		HTTP: HTTPConfig{
			Addr:         ":5000",
			ManualSpeed:  50,
			DataDir:      "data",
			StatusRateHz: 10,
		},
		Camera: CameraConfig{
			Enabled:  true,
			Width:    640,
			Height:   480,
			PhotoDir: "data/photos",
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file. Fields missing
// from the file keep their defaults.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}

// LoadEnv reads .env files into the process environment. Missing files are
// ignored; variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides config values from ROVER_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvSerialPort); v != "" {
		c.Serial.Port = v
	}
	if v := os.Getenv(EnvBaudRate); v != "" {
		baud, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBaudRate, err)
		}
		c.Serial.BaudRate = baud
	}
	if v := os.Getenv(EnvHTTPAddr); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.Log.File = v
	}
	return nil
}

// Validate reports every impossible value in the config.
func (c *Config) Validate() error {
	var err error
	if c.Serial.Port == "" {
		err = multierr.Append(err, errors.New("serial.port is empty"))
	}
	if c.Serial.BaudRate <= 0 {
		err = multierr.Append(err, fmt.Errorf("serial.baud_rate %d must be positive", c.Serial.BaudRate))
	}
	if c.Geometry.WheelDiameterMM <= 0 || c.Geometry.TrackWidthMM <= 0 {
		err = multierr.Append(err, errors.New("geometry dimensions must be positive"))
	}
	if c.FusionAlpha < 0 || c.FusionAlpha > 1 {
		err = multierr.Append(err, fmt.Errorf("fusion_alpha %g outside [0, 1]", c.FusionAlpha))
	}
	if c.Mission.Speed < 0 || c.Mission.Speed > 100 {
		err = multierr.Append(err, fmt.Errorf("mission.speed %d outside [0, 100]", c.Mission.Speed))
	}
	if c.Mission.AlignToleranceDeg <= 0 || c.Mission.DistanceToleranceM <= 0 {
		err = multierr.Append(err, errors.New("mission tolerances must be positive"))
	}
	if c.Mission.TickMS <= 0 {
		err = multierr.Append(err, fmt.Errorf("mission.tick_ms %d must be positive", c.Mission.TickMS))
	}
	if c.HTTP.ManualSpeed < 0 || c.HTTP.ManualSpeed > 100 {
		err = multierr.Append(err, fmt.Errorf("http.manual_speed %d outside [0, 100]", c.HTTP.ManualSpeed))
	}
	cal := c.Tilt.Calibration
	if cal.MaxPulseUS <= cal.MinPulseUS || cal.MaxAngle <= cal.MinAngle {
		err = multierr.Append(err, errors.New("tilt.calibration ranges must be increasing"))
	}
	return err
}
