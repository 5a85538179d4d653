package web

import (
	"bufio"
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/gwillem/rover/pkg/mission"
	"github.com/gwillem/rover/pkg/odometry"
	"github.com/gwillem/rover/pkg/stream"
)

const frameWait = 5 * time.Second

// StatusMessage is pushed to /ws/status subscribers.
type StatusMessage struct {
	Time     time.Time       `json:"time"`
	Pose     PoseResponse    `json:"pose"`
	Sample   odometry.Sample `json:"sample"`
	Samples  uint64          `json:"samples"`
	Mission  mission.Status  `json:"mission"`
	Speed    int             `json:"speed"`
	Tilt     *float64        `json:"tilt,omitempty"`
	Scanning bool            `json:"scanning"`
}

func (s *Server) statusMessage() StatusMessage {
	snap := s.deps.Poses.Snapshot()
	msg := StatusMessage{
		Time: time.Now(),
		Pose: PoseResponse{
			X:        snap.Pose.X,
			Y:        snap.Pose.Y,
			Theta:    snap.Pose.Heading,
			Distance: snap.Pose.DistanceTo(odometry.Pose{}),
		},
		Sample:  snap.Sample,
		Samples: snap.Samples,
		Mission: s.deps.Mission.Status(),
		Speed:   s.ManualSpeed(),
	}
	if s.deps.Tilt != nil {
		angle := s.deps.Tilt.Angle()
		msg.Tilt = &angle
	}
	if s.deps.Scanner != nil {
		msg.Scanning = s.deps.Scanner.Scanning()
	}
	return msg
}

// handleStatusWS pushes pose and mission status at the configured rate until
// the client goes away.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.cfg.StatusRate)
	defer ticker.Stop()

	for {
		if err := c.WriteJSON(s.statusMessage()); err != nil {
			s.log.Debugw("status websocket closed", "error", err)
			return
		}
		select {
		case <-closed:
			return
		case <-s.done:
			return
		case <-ticker.C:
		}
	}
}

// handleMJPEG streams camera frames as multipart JPEG.
func (s *Server) handleMJPEG(c *fiber.Ctx) error {
	if s.deps.Frames == nil {
		return unavailable(c, "Camera")
	}
	frames, done := s.deps.Frames, s.done

	c.Set(fiber.HeaderContentType, stream.ContentType)
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		var seq uint64
		for {
			ctx, cancel := context.WithTimeout(context.Background(), frameWait)
			f, err := frames.Next(ctx, seq)
			cancel()

			select {
			case <-done:
				return
			default:
			}
			if err != nil {
				continue
			}
			seq = f.Seq
			if err := stream.WritePart(w, f.JPEG); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
	return nil
}
