package tts

import (
	"context"
	"sync"
)

// Mock is a Provider for tests. Leave SynthesizeFunc nil for silent audio.
type Mock struct {
	SynthesizeFunc func(ctx context.Context, text string) (*AudioResult, error)
	HealthFunc     func(ctx context.Context) error

	mu    sync.Mutex
	texts []string
}

var _ Provider = (*Mock)(nil)

// NewMock creates a mock producing 20ms of silence per character.
func NewMock() *Mock {
	return &Mock{}
}

// WithError returns a mock whose every call fails with err.
func WithError(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(context.Context, string) (*AudioResult, error) { return nil, err },
		HealthFunc:     func(context.Context) error { return err },
	}
}

func (m *Mock) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()

	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	const bytesPerChar = 960 // 20ms at 24 kHz
	audio := make([]byte, len(text)*bytesPerChar)
	return &AudioResult{
		Audio:     audio,
		Format:    PCM16(24000),
		Duration:  pcmDuration(len(audio), 24000),
		CharCount: len(text),
	}, nil
}

func (m *Mock) Health(ctx context.Context) error {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

func (m *Mock) Close() error { return nil }

// Texts returns every text passed to Synthesize.
func (m *Mock) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}
