package robot

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultProbeInterval is how often Monitor polls the daemon.
const DefaultProbeInterval = 5 * time.Second

// ErrNoMicrophone is returned by recording calls when no microphone is attached.
var ErrNoMicrophone = errors.New("robot: no microphone attached")

// Reachy combines the daemon controller with the robot microphone. It is
// the robot the voice orchestrator talks to.
type Reachy struct {
	ctrl   Controller
	mic    Microphone
	logger *slog.Logger

	// Step is the pause between gesture keyframes.
	Step time.Duration

	connected atomic.Bool
	recording atomic.Bool
}

// NewReachy creates a robot. mic may be nil, in which case AudioSample
// always returns no audio.
func NewReachy(ctrl Controller, mic Microphone, logger *slog.Logger) *Reachy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reachy{
		ctrl:   ctrl,
		mic:    mic,
		logger: logger.With("component", "robot"),
		Step:   GestureStep,
	}
}

// Connected reports the result of the last daemon probe.
func (r *Reachy) Connected() bool {
	return r.connected.Load()
}

// Refresh probes the daemon once and updates Connected.
func (r *Reachy) Refresh(ctx context.Context) bool {
	state, err := r.ctrl.GetDaemonStatus(ctx)
	ok := err == nil
	if was := r.connected.Swap(ok); was != ok {
		if ok {
			r.logger.Info("robot connected", "daemon_state", state)
		} else {
			r.logger.Warn("robot unreachable", "error", err)
		}
	}
	return ok
}

// Monitor probes the daemon every interval until ctx is done.
func (r *Reachy) Monitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	r.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}

// StartRecording starts the microphone session.
func (r *Reachy) StartRecording(ctx context.Context) error {
	if r.mic == nil {
		return ErrNoMicrophone
	}
	if !r.recording.CompareAndSwap(false, true) {
		return nil
	}
	if err := r.mic.Start(ctx); err != nil {
		r.recording.Store(false)
		return err
	}
	return nil
}

// StopRecording stops the microphone session.
func (r *Reachy) StopRecording(ctx context.Context) error {
	if r.mic == nil || !r.recording.CompareAndSwap(true, false) {
		return nil
	}
	return r.mic.Stop(ctx)
}

// AudioSample returns the audio captured since the previous call as
// []float32 at 16 kHz, or nil when nothing is pending.
func (r *Reachy) AudioSample(ctx context.Context) (any, error) {
	if r.mic == nil || !r.recording.Load() {
		return nil, nil
	}
	samples, err := r.mic.Sample(ctx)
	if err != nil || len(samples) == 0 {
		return nil, err
	}
	return samples, nil
}

// Nod acknowledges a command with a head nod.
func (r *Reachy) Nod(ctx context.Context, times int) error {
	return Nod(ctx, r.ctrl, times, r.Step)
}

// WiggleAntennas signals that the robot heard its wake word.
func (r *Reachy) WiggleAntennas(ctx context.Context, times int, angle float64) error {
	return WiggleAntennas(ctx, r.ctrl, times, angle, r.Step)
}
