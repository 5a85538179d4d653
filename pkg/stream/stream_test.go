package stream

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBuffer_PublishLatest(t *testing.T) {
	b := NewBuffer()
	if _, ok := b.Latest(); ok {
		t.Fatal("empty buffer reported a frame")
	}

	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	b.Publish([]byte{1, 2, 3}, now)
	b.Publish([]byte{4, 5}, now.Add(time.Second))

	f, ok := b.Latest()
	if !ok {
		t.Fatal("Latest() reported no frame")
	}
	if f.Seq != 2 || !bytes.Equal(f.JPEG, []byte{4, 5}) {
		t.Errorf("Latest() = seq %d %v, want seq 2 [4 5]", f.Seq, f.JPEG)
	}
}

func TestBuffer_NextWaitsForNewFrame(t *testing.T) {
	b := NewBuffer()
	b.Publish([]byte{1}, time.Now())

	got := make(chan Frame, 1)
	go func() {
		f, err := b.Next(context.Background(), 1)
		if err == nil {
			got <- f
		}
	}()

	select {
	case <-got:
		t.Fatal("Next returned without a newer frame")
	case <-time.After(20 * time.Millisecond):
	}

	b.Publish([]byte{2}, time.Now())
	select {
	case f := <-got:
		if f.Seq != 2 {
			t.Errorf("Next() seq = %d, want 2", f.Seq)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not wake on publish")
	}
}

func TestBuffer_NextCancelled(t *testing.T) {
	b := NewBuffer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Next(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Next() = %v, want context.Canceled", err)
	}
}

func TestWritePart(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePart(&buf, []byte("JPEG")); err != nil {
		t.Fatal(err)
	}
	want := "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: 4\r\n\r\nJPEG\r\n"
	if buf.String() != want {
		t.Errorf("WritePart = %q, want %q", buf.String(), want)
	}
}

func TestPhotoName(t *testing.T) {
	got := PhotoName(time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC))
	if got != "photo_20250314_092653.jpg" {
		t.Errorf("PhotoName = %q, want photo_20250314_092653.jpg", got)
	}
}

func TestBuffer_SavePhoto(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "photos")
	b := NewBuffer()
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	if _, err := b.SavePhoto(dir, now); !errors.Is(err, ErrNoFrame) {
		t.Errorf("SavePhoto on empty buffer = %v, want ErrNoFrame", err)
	}

	b.Publish([]byte("jpegdata"), now)
	name, err := b.SavePhoto(dir, now)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "jpegdata" {
		t.Errorf("photo contents = %q, want jpegdata", data)
	}
}

func TestCodeLog(t *testing.T) {
	l := NewCodeLog()
	t0 := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	if !l.Record("DOCK-A", t0) {
		t.Error("first sighting not reported as new")
	}
	if l.Record("DOCK-A", t0.Add(time.Second)) {
		t.Error("repeat sighting reported as new")
	}
	l.Record("SHELF-3", t0.Add(2*time.Second))

	codes := l.List()
	if len(codes) != 2 {
		t.Fatalf("List() returned %d codes, want 2", len(codes))
	}
	if codes[0].Data != "DOCK-A" || codes[0].Count != 2 {
		t.Errorf("codes[0] = %+v, want DOCK-A seen twice", codes[0])
	}
	if !codes[0].LastSeen.Equal(t0.Add(time.Second)) {
		t.Errorf("codes[0].LastSeen = %v, want %v", codes[0].LastSeen, t0.Add(time.Second))
	}
	if codes[1].Data != "SHELF-3" {
		t.Errorf("codes[1] = %+v, want SHELF-3", codes[1])
	}
}
