package voice

import (
	"context"

	"github.com/teslashibe/reachy-voice/pkg/executor"
	"github.com/teslashibe/reachy-voice/pkg/stt"
)

// Transcriber is the streaming speech recognizer. *stt.Deepgram satisfies it.
type Transcriber interface {
	Configured() bool
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	SendAudio(pcm []byte) error
	OnTranscript(fn stt.TranscriptFunc) (remove func())
	Status() stt.Status
}

// Robot is the physical robot: microphone and feedback gestures.
// *robot.Reachy satisfies it.
type Robot interface {
	Connected() bool
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
	// AudioSample returns the audio captured since the last call, or nil.
	AudioSample(ctx context.Context) (any, error)
	Nod(ctx context.Context, times int) error
	WiggleAntennas(ctx context.Context, times int, angle float64) error
}

// Speaker speaks text aloud. *tts.Speaker satisfies it.
type Speaker interface {
	Configured() bool
	Speak(ctx context.Context, text string) error
}

// Chatter answers conversational requests. *inference.Conversation satisfies it.
type Chatter interface {
	Chat(ctx context.Context, text string) (string, error)
}

// CommandExecutor runs automation commands. *executor.Executor satisfies it.
type CommandExecutor interface {
	Execute(ctx context.Context, command string) executor.Result
	Cancel() error
	Status() executor.Info
}

var _ CommandExecutor = (*executor.Executor)(nil)
var _ Transcriber = (*stt.Deepgram)(nil)
