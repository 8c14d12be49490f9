// Package robot provides interfaces and implementations for Reachy Mini robot control.
//
// Interfaces are small and composed as needed. Consumers should depend only
// on the interfaces they actually use.
package robot

import "context"

// HeadController provides head movement control.
type HeadController interface {
	SetHeadPose(ctx context.Context, pose Offset) error
}

// AntennaController provides antenna position control (radians).
type AntennaController interface {
	SetAntennas(ctx context.Context, left, right float64) error
}

// StatusController provides robot status queries.
type StatusController interface {
	GetDaemonStatus(ctx context.Context) (string, error)
}

// VolumeController provides audio volume control.
type VolumeController interface {
	SetVolume(ctx context.Context, level int) error
}

// Mover is what the gesture routines need.
type Mover interface {
	HeadController
	AntennaController
}

// Controller is the composite interface for the daemon HTTP API.
type Controller interface {
	Mover
	StatusController
	VolumeController
}

// Microphone is a source of 16 kHz mono audio from the robot.
type Microphone interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Sample(ctx context.Context) ([]float32, error)
}

var _ Controller = (*HTTPController)(nil)
