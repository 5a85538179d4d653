// Package rover drives a skid-steer rover that fuses wheel encoders with an
// IMU heading and runs turn-then-drive missions.
//
// # Installation
//
//	go install github.com/gwillem/rover/cmd/rover@latest
//
// # Usage
//
// First, run setup to pick the sensor port and describe the chassis:
//
//	rover setup
//
// Check that samples arrive:
//
//	rover sensors
//
// Then start the web API, or drive from the terminal:
//
//	rover serve
//	rover dashboard
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/rover: CLI with serve, dashboard, setup and sensors commands
//   - pkg/odometry: Pose estimator and the shared pose store
//   - pkg/sensor: Serial sensor feed and the ingestion loop
//   - pkg/mission: Turn-then-drive mission controller
//   - pkg/robot: Drive motors, camera servo, scan sweep and configuration
//   - pkg/web: HTTP API, status websocket and MJPEG stream
//   - pkg/camera: Frame capture and QR code detection
//   - pkg/stream: Frame buffer, photos and the QR code log
package rover
