package web

import (
	"errors"
	"fmt"
	"math"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/gwillem/rover/pkg/mission"
	"github.com/gwillem/rover/pkg/robot"
	"github.com/gwillem/rover/pkg/stream"
)

// Automation commands accepted by /send_command next to the manual ones.
const (
	commandStartAutomation = "start_automation"
	commandStopAutomation  = "stop_automation"
)

// CommandRequest is the body of /send_command.
type CommandRequest struct {
	Command string `json:"command"`
}

// SpeedRequest is the body of /set_global_speed.
type SpeedRequest struct {
	Speed *int `json:"speed"`
}

// TargetsRequest is the body of /set_automation_targets.
type TargetsRequest struct {
	Distance  *float64 `json:"distance"`
	Direction *float64 `json:"direction"`
	Speed     *int     `json:"speed,omitempty"`
}

// AngleRequest is the body of /send_angle.
type AngleRequest struct {
	Angle *float64 `json:"angle"`
}

// PoseResponse is returned by /get_pose.
type PoseResponse struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Theta    float64 `json:"theta"`
	Distance float64 `json:"distance"`
}

func errorBody(msg string) fiber.Map {
	return fiber.Map{"status": "error", "message": msg}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(errorBody(msg))
}

func unavailable(c *fiber.Ctx, what string) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(errorBody(what + " not available"))
}

// handleSendCommand runs a manual drive command or starts/stops the mission.
// Manual motion is ignored while a mission is active.
func (s *Server) handleSendCommand(c *fiber.Ctx) error {
	var req CommandRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	cmd := strings.TrimSpace(req.Command)
	s.log.Debugw("command received", "command", cmd)

	switch cmd {
	case commandStartAutomation:
		if err := s.deps.Mission.StartMission(); err != nil {
			if errors.Is(err, mission.ErrAlreadyActive) {
				return c.JSON(fiber.Map{"status": "ignored", "message": "Automation already active"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(errorBody(err.Error()))
		}
		return c.JSON(fiber.Map{"status": "success", "command": cmd})

	case commandStopAutomation, string(robot.CommandStop):
		if err := s.stopAll(); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(errorBody(err.Error()))
		}
		return c.JSON(fiber.Map{"status": "success", "command": cmd})
	}

	manual := robot.Command(cmd)
	if !manual.IsMotion() {
		return badRequest(c, fmt.Sprintf("unknown command %q", cmd))
	}
	if s.deps.Mission.IsActive() {
		s.log.Infow("ignoring manual command during mission", "command", cmd)
		return c.JSON(fiber.Map{"status": "ignored", "message": "Automation active"})
	}
	if err := robot.Apply(s.deps.Drive, manual, s.ManualSpeed()); err != nil {
		s.log.Errorw("manual command failed", "command", cmd, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody(err.Error()))
	}
	return c.JSON(fiber.Map{"status": "success", "command": cmd})
}

// stopAll ends any mission and stops the motors.
func (s *Server) stopAll() error {
	err := s.deps.Mission.StopMission()
	if err == nil {
		return nil
	}
	if !errors.Is(err, mission.ErrNotActive) {
		s.log.Errorw("stop mission", "error", err)
	}
	return s.deps.Drive.Stop()
}

func (s *Server) handleSetSpeed(c *fiber.Ctx) error {
	var req SpeedRequest
	if err := c.BodyParser(&req); err != nil || req.Speed == nil {
		return badRequest(c, "speed must be an integer")
	}
	speed := *req.Speed
	if speed < 0 || speed > 100 {
		return badRequest(c, "speed must be between 0 and 100")
	}
	s.mu.Lock()
	s.speed = speed
	s.mu.Unlock()
	s.log.Infow("manual speed set", "speed", speed)
	return c.JSON(fiber.Map{"status": "success", "speed": speed})
}

func (s *Server) handleEncoderData(c *fiber.Ctx) error {
	return c.JSON(s.deps.Poses.Snapshot().Sample)
}

func (s *Server) handlePose(c *fiber.Ctx) error {
	p := s.deps.Poses.Snapshot().Pose
	return c.JSON(PoseResponse{
		X:        p.X,
		Y:        p.Y,
		Theta:    p.Heading,
		Distance: math.Hypot(p.X, p.Y),
	})
}

func (s *Server) handleSetTargets(c *fiber.Ctx) error {
	var req TargetsRequest
	if err := c.BodyParser(&req); err != nil || req.Distance == nil || req.Direction == nil {
		return badRequest(c, "distance and direction are required")
	}
	if req.Speed != nil && (*req.Speed < 0 || *req.Speed > 100) {
		return badRequest(c, "speed must be between 0 and 100")
	}
	if err := s.deps.Mission.SetTargets(*req.Distance, *req.Direction); err != nil {
		return badRequest(c, err.Error())
	}
	resp := fiber.Map{"status": "success", "distance": *req.Distance, "direction": *req.Direction}
	if req.Speed != nil {
		s.deps.Mission.SetSpeed(*req.Speed)
		resp["speed"] = *req.Speed
	}
	return c.JSON(resp)
}

func (s *Server) handleAutomationStatus(c *fiber.Ctx) error {
	return c.JSON(s.deps.Mission.Status())
}

func (s *Server) handleSendAngle(c *fiber.Ctx) error {
	if s.deps.Tilt == nil {
		return unavailable(c, "Camera servo")
	}
	var req AngleRequest
	if err := c.BodyParser(&req); err != nil || req.Angle == nil {
		return badRequest(c, "angle is required")
	}
	if math.IsNaN(*req.Angle) || math.IsInf(*req.Angle, 0) {
		return badRequest(c, "angle must be finite")
	}
	angle, err := s.deps.Tilt.SetAngle(*req.Angle)
	if err != nil {
		s.log.Errorw("set tilt angle", "angle", *req.Angle, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody(err.Error()))
	}
	return c.JSON(fiber.Map{"status": "success", "angle": angle})
}

func (s *Server) handleStartScan(c *fiber.Ctx) error {
	if s.deps.Scanner == nil {
		return unavailable(c, "Camera scan")
	}
	if !s.deps.Scanner.Start() {
		return c.JSON(fiber.Map{"status": "ignored", "message": "Scan already active"})
	}
	return c.JSON(fiber.Map{"status": "success", "scanning": true})
}

func (s *Server) handleStopScan(c *fiber.Ctx) error {
	if s.deps.Scanner == nil {
		return unavailable(c, "Camera scan")
	}
	if !s.deps.Scanner.Stop() {
		return c.JSON(fiber.Map{"status": "ignored", "message": "Scan not active"})
	}
	return c.JSON(fiber.Map{"status": "success", "scanning": false})
}

func (s *Server) handleScanStatus(c *fiber.Ctx) error {
	scanning := s.deps.Scanner != nil && s.deps.Scanner.Scanning()
	return c.JSON(fiber.Map{"scanning": scanning})
}

func (s *Server) handleTakePhoto(c *fiber.Ctx) error {
	if s.deps.Frames == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody("Camera not available"))
	}
	name, err := s.deps.Frames.SavePhoto(s.cfg.PhotoDir, time.Now())
	if errors.Is(err, stream.ErrNoFrame) {
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody("No frame available"))
	}
	if err != nil {
		s.log.Errorw("save photo", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody(fmt.Sprintf("Failed to save photo: %v", err)))
	}
	s.log.Infow("photo saved", "file", name)
	return c.JSON(fiber.Map{"status": "success", "filename": name, "path": s.photoURL(name)})
}

// photoURL maps a saved photo to its /data_files URL.
func (s *Server) photoURL(name string) string {
	rel, err := filepath.Rel(s.cfg.DataDir, s.cfg.PhotoDir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	return path.Join("/data_files", filepath.ToSlash(rel), name)
}

func (s *Server) handleQRCodes(c *fiber.Ctx) error {
	if s.deps.Codes == nil {
		return c.JSON([]stream.Code{})
	}
	return c.JSON(s.deps.Codes.List())
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	snap := s.deps.Poses.Snapshot()
	resp := fiber.Map{
		"status":        "ok",
		"samples":       snap.Samples,
		"mission_state": s.deps.Mission.Status().State,
		"camera":        s.deps.Frames != nil,
		"tilt":          s.deps.Tilt != nil,
	}
	if snap.Samples > 0 {
		resp["sensor_age_ms"] = time.Since(snap.LastUpdate).Milliseconds()
	}
	return c.JSON(resp)
}

// handleMetrics exposes counters in the Prometheus text format.
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	snap := s.deps.Poses.Snapshot()
	st := s.deps.Mission.Status()
	active := 0
	if st.Active {
		active = 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# HELP rover_pose_x_meters Estimated x position\n# TYPE rover_pose_x_meters gauge\nrover_pose_x_meters %g\n", snap.Pose.X)
	fmt.Fprintf(&b, "# HELP rover_pose_y_meters Estimated y position\n# TYPE rover_pose_y_meters gauge\nrover_pose_y_meters %g\n", snap.Pose.Y)
	fmt.Fprintf(&b, "# HELP rover_heading_degrees Estimated heading\n# TYPE rover_heading_degrees gauge\nrover_heading_degrees %g\n", snap.Pose.Heading)
	fmt.Fprintf(&b, "# HELP rover_mission_active Whether a mission is running\n# TYPE rover_mission_active gauge\nrover_mission_active %d\n", active)
	fmt.Fprintf(&b, "# HELP rover_samples_total Sensor samples applied to the pose\n# TYPE rover_samples_total counter\nrover_samples_total %d\n", snap.Samples)
	if s.deps.Ingest != nil {
		stats := s.deps.Ingest.Stats()
		fmt.Fprintf(&b, "# HELP rover_sensor_lines_rejected_total Sensor lines discarded\n# TYPE rover_sensor_lines_rejected_total counter\nrover_sensor_lines_rejected_total %d\n", stats.Rejected)
		fmt.Fprintf(&b, "# HELP rover_sensor_read_errors_total Sensor read errors\n# TYPE rover_sensor_read_errors_total counter\nrover_sensor_read_errors_total %d\n", stats.Errors)
	}
	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
	return c.SendString(b.String())
}
