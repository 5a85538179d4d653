// Package stream holds the latest camera frame and serves it as MJPEG.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Boundary separates parts of the multipart MJPEG stream.
const Boundary = "frame"

// ContentType is the MIME type of an MJPEG stream.
const ContentType = "multipart/x-mixed-replace; boundary=" + Boundary

// ErrNoFrame is returned when no frame has been published yet.
var ErrNoFrame = errors.New("no frame available")

// Frame is one JPEG-encoded image.
type Frame struct {
	JPEG []byte
	Seq  uint64
	At   time.Time
}

// Buffer keeps the most recent frame and wakes waiting readers on every
// publish.
type Buffer struct {
	mu      sync.Mutex
	frame   Frame
	changed chan struct{}
}

// NewBuffer returns an empty frame buffer.
func NewBuffer() *Buffer {
	return &Buffer{changed: make(chan struct{})}
}

// Publish replaces the latest frame. The buffer takes ownership of jpeg.
func (b *Buffer) Publish(jpeg []byte, at time.Time) {
	b.mu.Lock()
	b.frame = Frame{JPEG: jpeg, Seq: b.frame.Seq + 1, At: at}
	close(b.changed)
	b.changed = make(chan struct{})
	b.mu.Unlock()
}

// Latest returns the most recent frame.
func (b *Buffer) Latest() (Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame, b.frame.Seq > 0
}

// Next blocks until a frame newer than seq is published or ctx is done.
func (b *Buffer) Next(ctx context.Context, seq uint64) (Frame, error) {
	for {
		b.mu.Lock()
		f, changed := b.frame, b.changed
		b.mu.Unlock()
		if f.Seq > seq {
			return f, nil
		}
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-changed:
		}
	}
}

// WritePart writes one JPEG as a part of an MJPEG stream.
func WritePart(w io.Writer, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", Boundary, len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

// PhotoName returns the file name used for a photo taken at t.
func PhotoName(t time.Time) string {
	return "photo_" + t.Format("20060102_150405") + ".jpg"
}

// SavePhoto writes the latest frame into dir and returns the file name.
func (b *Buffer) SavePhoto(dir string, now time.Time) (string, error) {
	f, ok := b.Latest()
	if !ok {
		return "", ErrNoFrame
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create photo dir: %w", err)
	}
	name := PhotoName(now)
	if err := os.WriteFile(filepath.Join(dir, name), f.JPEG, 0644); err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}
	return name, nil
}
