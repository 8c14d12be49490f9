// Package audio plays synthesized speech on the robot's speaker by piping it
// into a GStreamer pipeline over ssh.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/teslashibe/reachy-voice/pkg/tts"
)

// ErrUnsupportedEncoding is returned for audio the pipeline cannot decode.
var ErrUnsupportedEncoding = errors.New("audio: unsupported encoding")

// Player sends audio to the robot for playback. Only one clip plays at a
// time; concurrent calls queue on an internal mutex.
type Player struct {
	robotIP string
	sshUser string
	sshPass string
	logger  *slog.Logger

	mu sync.Mutex

	// commandContext is overridable for testing.
	commandContext func(ctx context.Context, name string, args ...string) *exec.Cmd
}

var _ tts.Player = (*Player)(nil)

// NewPlayer creates a player for the robot at robotIP.
func NewPlayer(robotIP, sshUser, sshPass string, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{
		robotIP:        robotIP,
		sshUser:        sshUser,
		sshPass:        sshPass,
		logger:         logger.With("component", "audio"),
		commandContext: exec.CommandContext,
	}
}

// Play blocks until the clip has been played or ctx is cancelled.
func (p *Player) Play(ctx context.Context, clip *tts.AudioResult) error {
	if clip == nil || len(clip.Audio) == 0 {
		return nil
	}
	pipeline, err := Pipeline(clip.Format)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cmd := p.commandContext(ctx, "sshpass", "-p", p.sshPass,
		"ssh", "-o", "StrictHostKeyChecking=no",
		fmt.Sprintf("%s@%s", p.sshUser, p.robotIP),
		pipeline)
	cmd.Stdin = bytes.NewReader(clip.Audio)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	p.logger.Debug("playing clip", "bytes", len(clip.Audio), "encoding", clip.Format.Encoding)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("playback: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}

// Playing reports whether a clip is being played.
func (p *Player) Playing() bool {
	if !p.mu.TryLock() {
		return true
	}
	p.mu.Unlock()
	return false
}

// Pipeline returns the gst-launch command that decodes format from stdin and
// feeds the daemon's audio input.
func Pipeline(format tts.AudioFormat) (string, error) {
	switch format.Encoding {
	case tts.EncodingLinear16:
		rate := format.SampleRate
		if rate == 0 {
			rate = 24000
		}
		return fmt.Sprintf("gst-launch-1.0 -q fdsrc fd=0 ! rawaudioparse format=pcm pcm-format=s16le sample-rate=%d num-channels=1 "+
			"! audioconvert ! audioresample ! audio/x-raw,rate=48000,channels=1,layout=interleaved "+
			"! queue ! opusenc frame-size=20 ! rtpopuspay pt=96 ! udpsink host=127.0.0.1 port=5000 sync=true", rate), nil
	case tts.EncodingMP3:
		return "gst-launch-1.0 -q fdsrc fd=0 ! mpegaudioparse ! mpg123audiodec ! audioconvert ! audioresample ! alsasink device=default", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedEncoding, format.Encoding)
	}
}
