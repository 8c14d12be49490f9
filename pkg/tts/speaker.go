package tts

import (
	"context"
	"fmt"
	"log/slog"
)

// Player plays synthesized audio, typically on the robot's speaker.
type Player interface {
	Play(ctx context.Context, audio *AudioResult) error
}

// Speaker synthesizes text and plays it.
type Speaker struct {
	provider Provider
	player   Player
	logger   *slog.Logger
}

// NewSpeaker creates a speaker. A nil provider yields an unconfigured
// speaker whose Speak always fails with ErrNotConfigured.
func NewSpeaker(provider Provider, player Player, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Speaker{provider: provider, player: player, logger: logger.With("component", "tts.speaker")}
}

// Configured reports whether a provider and player are present.
func (s *Speaker) Configured() bool {
	return s != nil && s.provider != nil && s.player != nil
}

// Speak cleans text, synthesizes it and blocks until playback finishes.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	clean := CleanForSpeech(text)
	if clean == "" {
		return ErrEmptyText
	}

	res, err := s.provider.Synthesize(ctx, clean)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	s.logger.Debug("playing speech", "chars", len(clean), "duration", res.Duration)
	if err := s.player.Play(ctx, res); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}
