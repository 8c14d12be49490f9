// Package tts turns response text into speech audio.
//
// Providers (Deepgram Aura, OpenAI) implement Provider and can be stacked in a
// Chain for fallback. A Speaker combines a provider with a Player so callers
// can simply Speak a sentence on the robot.
package tts

import (
	"context"
	"time"
)

// Provider synthesizes speech.
type Provider interface {
	// Synthesize converts text to a complete audio buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks connectivity and credentials.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult is a synthesized utterance.
type AudioResult struct {
	Audio     []byte
	Format    AudioFormat
	Duration  time.Duration
	CharCount int
	LatencyMs int64
}

// AudioFormat describes encoded audio.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
	BitDepth   int
}

// Encoding names an audio encoding.
type Encoding string

const (
	EncodingLinear16 Encoding = "linear16" // raw little-endian PCM16
	EncodingMP3      Encoding = "mp3"
)

// PCM16 returns a mono 16-bit PCM format at rate.
func PCM16(rate int) AudioFormat {
	return AudioFormat{Encoding: EncodingLinear16, SampleRate: rate, Channels: 1, BitDepth: 16}
}

// pcmDuration estimates playback time of mono PCM16 audio.
func pcmDuration(n int, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(n/2) * time.Second / time.Duration(rate)
}
