package robot

import (
	"context"
	"math"
	"time"
)

// Physical limits (radians). Commands outside these ranges are clamped
// before they reach the daemon.
const (
	MaxHeadRoll  = 0.35
	MaxHeadPitch = 0.52
	MaxHeadYaw   = 0.70
	MaxAntenna   = math.Pi / 2
)

// Gesture tuning.
const (
	// NodPitch is how far (radians) the head dips on a nod.
	NodPitch = 0.25

	// GestureStep is the pause between keyframes of a gesture.
	GestureStep = 250 * time.Millisecond
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Offset is a head pose (roll, pitch, yaw in radians).
type Offset struct {
	Roll, Pitch, Yaw float64
}

// Clamp returns a new Offset with values clamped to physical head limits.
func (o Offset) Clamp() Offset {
	return Offset{
		Roll:  clamp(o.Roll, -MaxHeadRoll, MaxHeadRoll),
		Pitch: clamp(o.Pitch, -MaxHeadPitch, MaxHeadPitch),
		Yaw:   clamp(o.Yaw, -MaxHeadYaw, MaxHeadYaw),
	}
}

// Add returns the sum of o and other.
func (o Offset) Add(other Offset) Offset {
	return Offset{
		Roll:  o.Roll + other.Roll,
		Pitch: o.Pitch + other.Pitch,
		Yaw:   o.Yaw + other.Yaw,
	}
}

// Nod dips the head times times and returns it to neutral.
// The head always ends at neutral, even when ctx is cancelled mid-gesture.
func Nod(ctx context.Context, m HeadController, times int, step time.Duration) error {
	if times <= 0 {
		return nil
	}
	defer m.SetHeadPose(context.WithoutCancel(ctx), Offset{})

	for i := 0; i < times; i++ {
		if err := m.SetHeadPose(ctx, Offset{Pitch: NodPitch}); err != nil {
			return err
		}
		if err := sleep(ctx, step); err != nil {
			return err
		}
		if err := m.SetHeadPose(ctx, Offset{}); err != nil {
			return err
		}
		if err := sleep(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// WiggleAntennas swings the antennas in opposite directions by angle
// degrees, times times, then centres them.
func WiggleAntennas(ctx context.Context, m AntennaController, times int, angle float64, step time.Duration) error {
	if times <= 0 {
		return nil
	}
	defer m.SetAntennas(context.WithoutCancel(ctx), 0, 0)

	rad := angle * math.Pi / 180
	for i := 0; i < times; i++ {
		if err := m.SetAntennas(ctx, rad, -rad); err != nil {
			return err
		}
		if err := sleep(ctx, step); err != nil {
			return err
		}
		if err := m.SetAntennas(ctx, -rad, rad); err != nil {
			return err
		}
		if err := sleep(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
