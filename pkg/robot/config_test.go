package robot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rover.json")

	cfg := DefaultConfig()
	cfg.Serial.Port = "/dev/ttyUSB1"
	cfg.Mission.Speed = 45
	if err := cfg.SaveTo(path); err != nil {
		t.Fatal(err)
	}

	got, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Serial.Port != "/dev/ttyUSB1" {
		t.Errorf("Serial.Port = %q, want /dev/ttyUSB1", got.Serial.Port)
	}
	if got.Mission.Speed != 45 {
		t.Errorf("Mission.Speed = %d, want 45", got.Mission.Speed)
	}
	if !got.Drive.Right.Invert {
		t.Error("Drive.Right.Invert lost in round trip")
	}
}

func TestLoadConfigFrom_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rover.json")
	if err := os.WriteFile(path, []byte(`{"serial":{"port":"/dev/ttyS0"}}`), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Serial.Port != "/dev/ttyS0" {
		t.Errorf("Serial.Port = %q, want /dev/ttyS0", got.Serial.Port)
	}
	if got.Serial.BaudRate != 115200 {
		t.Errorf("Serial.BaudRate = %d, want default 115200", got.Serial.BaudRate)
	}
	if got.Mission.TickMS != 50 {
		t.Errorf("Mission.TickMS = %d, want default 50", got.Mission.TickMS)
	}
}

func TestLoadConfigFrom_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rover.json")
	if err := os.WriteFile(path, []byte(`{serial`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfigFrom(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	t.Setenv(EnvSerialPort, "/dev/ttyAMA0")
	t.Setenv(EnvBaudRate, "57600")
	t.Setenv(EnvHTTPAddr, ":8080")
	t.Setenv(EnvLogLevel, "debug")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatal(err)
	}
	if cfg.Serial.Port != "/dev/ttyAMA0" || cfg.Serial.BaudRate != 57600 {
		t.Errorf("serial = %+v, want /dev/ttyAMA0 @ 57600", cfg.Serial)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr = %q, want :8080", cfg.HTTP.Addr)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestConfig_ApplyEnvBadBaud(t *testing.T) {
	t.Setenv(EnvBaudRate, "fast")
	if err := DefaultConfig().ApplyEnv(); err == nil {
		t.Error("expected error for non-numeric baud rate")
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("ROVER_HTTP_ADDR=:9090\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvHTTPAddr, "")
	os.Unsetenv(EnvHTTPAddr)

	if err := LoadEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv(EnvHTTPAddr); got != ":9090" {
		t.Errorf("%s = %q, want :9090", EnvHTTPAddr, got)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Serial.Port = ""
	cfg.FusionAlpha = 1.5
	cfg.Mission.Speed = 120

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"serial.port", "fusion_alpha", "mission.speed"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() = %q, missing %q", err, want)
		}
	}
}

func TestGeometryConfig_Odometry(t *testing.T) {
	g := GeometryConfig{WheelDiameterMM: 134, TrackWidthMM: 230}.Odometry()
	if g.WheelDiameterMeters != 0.134 || g.TrackWidthMeters != 0.23 {
		t.Errorf("Odometry() = %+v, want 0.134/0.23", g)
	}
}
