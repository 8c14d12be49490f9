package voice

import (
	"errors"
	"time"
)

// Config holds orchestrator timing and gesture parameters.
type Config struct {
	// ChunkInterval is the microphone poll period (20 Hz).
	ChunkInterval time.Duration `yaml:"chunk_interval"`

	// ErrorBackoff is the pause after a failed poll.
	ErrorBackoff time.Duration `yaml:"error_backoff"`

	// ListeningTimeout finalizes a command that never completed. Zero disables it.
	ListeningTimeout time.Duration `yaml:"listening_timeout"`

	// GestureTimeout bounds each detached robot gesture.
	GestureTimeout time.Duration `yaml:"gesture_timeout"`

	// SpeakTimeout bounds synthesis plus playback of one response.
	SpeakTimeout time.Duration `yaml:"speak_timeout"`

	// Gestures
	WakeWiggles int     `yaml:"wake_wiggles"`
	WiggleAngle float64 `yaml:"wiggle_angle"`
	AckNods     int     `yaml:"ack_nods"`
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		ChunkInterval:    50 * time.Millisecond,
		ErrorBackoff:     100 * time.Millisecond,
		ListeningTimeout: 10 * time.Second,
		GestureTimeout:   5 * time.Second,
		SpeakTimeout:     60 * time.Second,
		WakeWiggles:      2,
		WiggleAngle:      20,
		AckNods:          1,
	}
}

// Validate checks the config for values that would stall the loop.
func (c Config) Validate() error {
	if c.ChunkInterval <= 0 {
		return errors.New("voice: chunk interval must be positive")
	}
	if c.ErrorBackoff < 0 || c.ListeningTimeout < 0 {
		return errors.New("voice: durations must not be negative")
	}
	return nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ChunkInterval <= 0 {
		c.ChunkInterval = d.ChunkInterval
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = d.ErrorBackoff
	}
	if c.GestureTimeout <= 0 {
		c.GestureTimeout = d.GestureTimeout
	}
	if c.SpeakTimeout <= 0 {
		c.SpeakTimeout = d.SpeakTimeout
	}
	return c
}
