// Package stt streams microphone audio to a speech recognizer and reports
// interim and final transcripts through callbacks.
package stt

import (
	"context"
	"errors"

	"github.com/teslashibe/reachy-voice/internal/callback"
)

// Errors returned by transcribers.
var (
	ErrNotConfigured = errors.New("stt: not configured - missing API key")
	ErrNotListening  = errors.New("stt: not listening")
)

// TranscriptFunc receives recognized text. isFinal is false for interim
// hypotheses that may still change.
type TranscriptFunc func(text string, isFinal bool)

// Status is a snapshot of a transcriber.
type Status struct {
	Configured    bool `json:"configured"`
	Listening     bool `json:"listening"`
	CallbackCount int  `json:"callback_count"`
}

// Transcriber is a streaming speech recognizer.
type Transcriber interface {
	Configured() bool
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	SendAudio(pcm []byte) error
	OnTranscript(fn TranscriptFunc) (remove func())
	Status() Status
}

// callbacks is a registry of transcript and error listeners shared by the
// transcriber implementations.
type callbacks struct {
	transcripts callback.List[TranscriptFunc]
	errs        callback.List[func(error)]
}

func newCallbacks() *callbacks {
	return &callbacks{}
}

func (c *callbacks) onTranscript(fn TranscriptFunc) func() {
	return c.transcripts.Add(fn)
}

func (c *callbacks) onError(fn func(error)) func() {
	return c.errs.Add(fn)
}

func (c *callbacks) count() int {
	return c.transcripts.Len()
}

func (c *callbacks) transcript(text string, isFinal bool, recovered func(any)) {
	for _, fn := range c.transcripts.Snapshot() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					recovered(r)
				}
			}()
			fn(text, isFinal)
		}()
	}
}

func (c *callbacks) error(err error) {
	for _, fn := range c.errs.Snapshot() {
		fn(err)
	}
}
