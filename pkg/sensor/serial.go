// Package sensor reads encoder and IMU samples from the rover's
// microcontroller and feeds them into the pose store.
package sensor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// ErrDisconnected is returned when reading from a feed whose port is closed.
var ErrDisconnected = errors.New("sensor feed disconnected")

const maxLineBytes = 4096

// Feed is a line-oriented sensor source.
//
// ReadLine returns ok=false with a nil error when no complete line is
// available yet.
type Feed interface {
	ReadLine() (line string, ok bool, err error)
	Connected() bool
}

// Reconnector is implemented by feeds that can reopen their transport.
type Reconnector interface {
	Reconnect() error
}

// port is the part of serial.Port used by SerialFeed.
type port interface {
	io.ReadCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

func openSerial(name string, mode *serial.Mode) (port, error) {
	return serial.Open(name, mode)
}

// SerialConfig configures a SerialFeed.
type SerialConfig struct {
	Port     string
	BaudRate int
	// ReadTimeout bounds a single read; zero means 50ms.
	ReadTimeout time.Duration
	// Settle is how long to wait after opening for the board to reset and
	// print its start-up banner, which is then discarded.
	Settle time.Duration
}

// SerialFeed reads newline-terminated samples from a serial port.
type SerialFeed struct {
	cfg  SerialConfig
	open func(name string, mode *serial.Mode) (port, error)
	log  *zap.SugaredLogger

	mu      sync.Mutex
	port    port
	pending []byte
	buf     []byte
}

var (
	_ Feed        = (*SerialFeed)(nil)
	_ Reconnector = (*SerialFeed)(nil)
)

// NewSerialFeed creates a feed for cfg. The port is opened lazily by
// Reconnect so that a missing device does not prevent start-up.
func NewSerialFeed(cfg SerialConfig, logger *zap.SugaredLogger) *SerialFeed {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 50 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SerialFeed{
		cfg:  cfg,
		open: openSerial,
		log:  logger,
		buf:  make([]byte, 256),
	}
}

// Connected reports whether the port is open.
func (f *SerialFeed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.port != nil
}

// Reconnect (re)opens the serial port and drains the start-up banner.
func (f *SerialFeed) Reconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.port != nil {
		f.port.Close()
		f.port = nil
	}

	p, err := f.open(f.cfg.Port, &serial.Mode{BaudRate: f.cfg.BaudRate})
	if err != nil {
		return fmt.Errorf("open %s: %w", f.cfg.Port, err)
	}
	if err := p.SetReadTimeout(f.cfg.ReadTimeout); err != nil {
		p.Close()
		return fmt.Errorf("set read timeout: %w", err)
	}
	if f.cfg.Settle > 0 {
		time.Sleep(f.cfg.Settle)
	}
	if err := p.ResetInputBuffer(); err != nil {
		f.log.Warnw("reset input buffer", "port", f.cfg.Port, "error", err)
	}

	f.port = p
	f.pending = f.pending[:0]
	f.log.Infow("serial port open", "port", f.cfg.Port, "baud", f.cfg.BaudRate)
	return nil
}

// ReadLine returns the next complete line without its terminator. A read
// error closes the port; the feed then reports itself disconnected.
func (f *SerialFeed) ReadLine() (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if line, ok := f.nextLine(); ok {
		return line, true, nil
	}
	if f.port == nil {
		return "", false, ErrDisconnected
	}

	n, err := f.port.Read(f.buf)
	if n > 0 {
		f.pending = append(f.pending, f.buf[:n]...)
		if len(f.pending) > maxLineBytes && bytes.IndexByte(f.pending, '\n') < 0 {
			f.log.Warnw("discarding unterminated input", "bytes", len(f.pending))
			f.pending = f.pending[:0]
		}
	}
	if err != nil {
		f.port.Close()
		f.port = nil
		return "", false, fmt.Errorf("read %s: %w", f.cfg.Port, err)
	}

	line, ok := f.nextLine()
	return line, ok, nil
}

func (f *SerialFeed) nextLine() (string, bool) {
	i := bytes.IndexByte(f.pending, '\n')
	if i < 0 {
		return "", false
	}
	line := strings.TrimRight(string(f.pending[:i]), "\r")
	f.pending = f.pending[i+1:]
	return line, true
}

// Close closes the port.
func (f *SerialFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.port == nil {
		return nil
	}
	err := f.port.Close()
	f.port = nil
	return err
}

// Ports lists the serial ports present on the system.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}
