package sensor

import (
	"errors"
	"io"
	"testing"
	"time"

	"go.bug.st/serial"
)

type fakePort struct {
	chunks [][]byte
	err    error
	closed bool
	resets int
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.chunks) == 0 {
		if p.err != nil {
			return 0, p.err
		}
		return 0, nil // read timeout
	}
	n := copy(b, p.chunks[0])
	p.chunks = p.chunks[1:]
	return n, nil
}

func (p *fakePort) Close() error { p.closed = true; return nil }
func (p *fakePort) SetReadTimeout(time.Duration) error { return nil }
func (p *fakePort) ResetInputBuffer() error { p.resets++; return nil }

func newTestFeed(p *fakePort) *SerialFeed {
	f := NewSerialFeed(SerialConfig{Port: "/dev/ttyTEST", BaudRate: 115200}, nil)
	f.open = func(name string, mode *serial.Mode) (port, error) {
		if mode.BaudRate != 115200 {
			return nil, errors.New("unexpected baud rate")
		}
		return p, nil
	}
	return f
}

func TestSerialFeed_SplitsLines(t *testing.T) {
	p := &fakePort{chunks: [][]byte{
		[]byte("1,2,3,4"),
		[]byte(",5,6,7\r\n8,9"),
	}}
	f := newTestFeed(p)

	if f.Connected() {
		t.Fatal("feed connected before Reconnect")
	}
	if err := f.Reconnect(); err != nil {
		t.Fatal(err)
	}
	if p.resets != 1 {
		t.Errorf("input buffer resets = %d, want 1", p.resets)
	}

	if _, ok, err := f.ReadLine(); ok || err != nil {
		t.Fatalf("partial line: ok=%v err=%v, want no line", ok, err)
	}
	line, ok, err := f.ReadLine()
	if err != nil || !ok {
		t.Fatalf("ReadLine() = %q, %v, %v", line, ok, err)
	}
	if line != "1,2,3,4,5,6,7" {
		t.Errorf("ReadLine() = %q, want 1,2,3,4,5,6,7", line)
	}
	if _, ok, _ := f.ReadLine(); ok {
		t.Error("unterminated tail returned as a line")
	}
}

func TestSerialFeed_ReadErrorDisconnects(t *testing.T) {
	p := &fakePort{err: io.EOF}
	f := newTestFeed(p)
	if err := f.Reconnect(); err != nil {
		t.Fatal(err)
	}

	if _, _, err := f.ReadLine(); err == nil {
		t.Fatal("expected read error")
	}
	if f.Connected() {
		t.Error("feed still connected after read error")
	}
	if !p.closed {
		t.Error("port not closed after read error")
	}
	if _, _, err := f.ReadLine(); !errors.Is(err, ErrDisconnected) {
		t.Errorf("ReadLine() on closed feed = %v, want ErrDisconnected", err)
	}
}

func TestSerialFeed_OpenFailure(t *testing.T) {
	f := NewSerialFeed(SerialConfig{Port: "/dev/ttyTEST", BaudRate: 115200}, nil)
	f.open = func(string, *serial.Mode) (port, error) {
		return nil, errors.New("no such file")
	}
	if err := f.Reconnect(); err == nil {
		t.Fatal("expected open error")
	}
	if f.Connected() {
		t.Error("feed connected after failed open")
	}
}
