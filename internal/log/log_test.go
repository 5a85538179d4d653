package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"bogus", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.expected)
		}
	}
}

func TestInit_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rover.log")

	l := Init(Options{Level: "debug", File: path})
	l.Named("test").Infow("pose published", "x", 1.5)
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "pose published") {
		t.Errorf("log file missing entry, got %q", data)
	}
	if L() != l {
		t.Error("L() did not return the logger built by Init")
	}
}

func TestInit_QuietStillWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dash.log")

	l := Init(Options{File: path, Quiet: true})
	l.Infow("mission started")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "mission started") {
		t.Errorf("log file missing entry, got %q", data)
	}
}
