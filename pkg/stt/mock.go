package stt

import (
	"context"
	"sync"
)

// Mock is an in-memory Transcriber for tests. Transcripts are injected with
// Emit.
type Mock struct {
	StartErr error
	SendErr  error

	// Unconfigured makes Configured report false.
	Unconfigured bool

	cbs *callbacks

	mu        sync.Mutex
	listening bool
	starts    int
	stops     int
	audio     [][]byte
}

var _ Transcriber = (*Mock)(nil)

// NewMock creates a configured mock.
func NewMock() *Mock {
	return &Mock{cbs: newCallbacks()}
}

func (m *Mock) Configured() bool { return !m.Unconfigured }

func (m *Mock) Start(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	if m.StartErr != nil {
		return m.StartErr
	}
	m.listening = true
	return nil
}

func (m *Mock) Stop(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.listening = false
	return nil
}

func (m *Mock) SendAudio(pcm []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.listening {
		return ErrNotListening
	}
	if m.SendErr != nil {
		return m.SendErr
	}
	m.audio = append(m.audio, append([]byte(nil), pcm...))
	return nil
}

func (m *Mock) OnTranscript(fn TranscriptFunc) func() {
	return m.cbs.onTranscript(fn)
}

func (m *Mock) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{Configured: m.Configured(), Listening: m.listening, CallbackCount: m.cbs.count()}
}

// Emit delivers a transcript to every registered callback synchronously.
func (m *Mock) Emit(text string, isFinal bool) {
	m.cbs.transcript(text, isFinal, func(any) {})
}

// Frames returns copies of every audio frame received.
func (m *Mock) Frames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.audio...)
}

// Starts returns how many times Start was called.
func (m *Mock) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Stops returns how many times Stop was called.
func (m *Mock) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}
