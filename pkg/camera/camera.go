// Package camera captures frames from the rover camera, decodes QR codes and
// publishes annotated JPEG frames.
package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/gwillem/rover/pkg/stream"
)

const retryDelay = 500 * time.Millisecond

var (
	boxColor  = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	textColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}
)

// Config configures the capture device.
type Config struct {
	Device int
	Width  int
	Height int
}

// Camera owns the capture device. Only Run touches the device.
type Camera struct {
	cfg    Config
	cap    *gocv.VideoCapture
	qr     gocv.QRCodeDetector
	frames *stream.Buffer
	codes  *stream.CodeLog
	log    *zap.SugaredLogger
}

// Open opens the capture device and sets the requested resolution.
func Open(cfg Config, frames *stream.Buffer, codes *stream.CodeLog, logger *zap.SugaredLogger) (*Camera, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	vc, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("camera %d not available", cfg.Device)
	}
	if cfg.Width > 0 && cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	logger.Infow("camera open", "device", cfg.Device, "width", cfg.Width, "height", cfg.Height)

	return &Camera{
		cfg:    cfg,
		cap:    vc,
		qr:     gocv.NewQRCodeDetector(),
		frames: frames,
		codes:  codes,
		log:    logger,
	}, nil
}

// Run captures, annotates and publishes frames until ctx is cancelled.
func (c *Camera) Run(ctx context.Context) error {
	img := gocv.NewMat()
	defer img.Close()
	points := gocv.NewMat()
	defer points.Close()
	straight := gocv.NewMat()
	defer straight.Close()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if ok := c.cap.Read(&img); !ok || img.Empty() {
			c.log.Debugw("failed to grab frame, retrying")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
			continue
		}

		c.annotate(&img, &points, &straight)

		buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
		if err != nil {
			c.log.Warnw("jpeg encode failed", "error", err)
			continue
		}
		jpeg := append([]byte(nil), buf.GetBytes()...)
		buf.Close()
		c.frames.Publish(jpeg, time.Now())
	}
}

// annotate decodes a QR code in img and draws its outline and payload.
func (c *Camera) annotate(img, points, straight *gocv.Mat) {
	data := c.qr.DetectAndDecode(*img, points, straight)
	if data == "" || points.Empty() {
		return
	}

	var box image.Rectangle
	for i := 0; i < points.Cols(); i++ {
		v := points.GetVecfAt(0, i)
		if len(v) < 2 {
			continue
		}
		pt := image.Pt(int(v[0]), int(v[1]))
		if i == 0 {
			box = image.Rectangle{Min: pt, Max: pt}
		}
		box = box.Union(image.Rectangle{Min: pt, Max: pt.Add(image.Pt(1, 1))})
	}
	gocv.Rectangle(img, box, boxColor, 2)
	gocv.PutText(img, data, image.Pt(box.Min.X, box.Min.Y-10), gocv.FontHersheySimplex, 0.6, textColor, 2)

	if c.codes.Record(data, time.Now()) {
		c.log.Infow("qr code detected", "data", data)
	}
}

// Close releases the capture device. Call after Run has returned.
func (c *Camera) Close() error {
	c.qr.Close()
	return c.cap.Close()
}
