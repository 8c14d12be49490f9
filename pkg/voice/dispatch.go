package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/teslashibe/reachy-voice/pkg/command"
	"github.com/teslashibe/reachy-voice/pkg/events"
	"github.com/teslashibe/reachy-voice/pkg/executor"
)

// Spoken replies for commands that produced no output of their own.
const (
	ChatUnavailableResponse = "Chat service not available"
	busyResponse            = "I'm still working on the previous command."
	notInstalledResponse    = "Claude Code is not installed."
	failedResponse          = "Sorry, that command failed."
	cancelledResponse       = "The command was cancelled."
)

// handleAsync handles cmd on its own goroutine. The parser stays in
// PROCESSING until the handler finishes, so handlers never overlap.
// Commands arriving after Stop are dropped.
func (o *Orchestrator) handleAsync(cmd command.Parsed) {
	o.mu.Lock()
	s := o.session
	if s == nil {
		o.mu.Unlock()
		o.logger.Info("voice control stopped, command dropped", "command", cmd.Command)
		return
	}
	s.handlers.Add(1)
	o.mu.Unlock()

	go func() {
		defer s.handlers.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("command handler panicked", "panic", r, "command", cmd.Command)
				o.bus.Publish(events.TypeError, events.Data{"message": fmt.Sprintf("command handling failed: %v", r)})
			}
		}()
		o.handleCommand(context.Background(), s, cmd)
	}()
}

// handleCommand runs one command of session s end to end. While s is
// running the parser is always released and the orchestrator returned to
// RUNNING, whatever fails on the way.
func (o *Orchestrator) handleCommand(ctx context.Context, s *session, cmd command.Parsed) {
	start := time.Now()
	defer func() {
		if !o.current(s) {
			o.logger.Debug("command finished after stop", "command", cmd.Command)
			return
		}
		o.parser.CommandCompleted()
		o.transitionFor(s, StateRunning, StateProcessing, StateSpeaking)
	}()

	o.bus.Publish(events.TypeCommand, events.Data{
		"text":           cmd.Command,
		"is_claude_code": cmd.IsClaudeCode,
		"confidence":     cmd.Confidence,
	})
	o.gesture(s, "wiggle antennas", func(ctx context.Context) error {
		return o.robot.WiggleAntennas(ctx, o.cfg.WakeWiggles, o.cfg.WiggleAngle)
	})

	o.transitionFor(s, StateProcessing, StateRunning, StateStarting)
	o.mu.Lock()
	o.lastCommand = cmd.Command
	o.mu.Unlock()

	defer func() { o.metrics.turn(ctx, time.Since(start)) }()
	result := o.dispatch(ctx, s, cmd.Command, cmd.IsClaudeCode)

	o.mu.Lock()
	o.lastResponse = result.Response
	o.mu.Unlock()

	if result.Response == "" {
		return
	}
	if !o.transitionFor(s, StateSpeaking, StateProcessing) {
		o.logger.Info("stopped while handling command, response not spoken", "command", cmd.Command)
		return
	}
	o.speak(ctx, result.Response)
}

// dispatch routes text to the assistant CLI or the chat fallback. Gestures
// are tracked by s when it is not nil.
func (o *Orchestrator) dispatch(ctx context.Context, s *session, text string, useClaudeCode bool) DispatchResult {
	if useClaudeCode {
		return o.executeClaudeCode(ctx, s, text)
	}
	return o.executeChat(ctx, text)
}

func (o *Orchestrator) executeClaudeCode(ctx context.Context, s *session, text string) DispatchResult {
	if o.executor == nil {
		res := DispatchResult{Response: notInstalledResponse, Error: ErrExecutorUnavailable.Error()}
		o.publishResponse(text, "", res.Response, executor.StatusFailed)
		return res
	}

	o.gesture(s, "nod", func(ctx context.Context) error {
		return o.robot.Nod(ctx, o.cfg.AckNods)
	})
	o.bus.Publish(events.TypeStatus, events.Data{"message": "Executing: " + truncate(text, 50) + "..."})

	start := time.Now()
	res := o.executor.Execute(ctx, text)
	o.metrics.execution(ctx, res.Status, time.Since(start))

	response := ExtractResponse(res.Output)
	if res.Status != executor.StatusCompleted && strings.TrimSpace(res.Output) == "" {
		response = failureResponse(res)
	}
	o.publishResponse(text, res.Output, response, res.Status)

	if res.Status != executor.StatusCompleted {
		o.logger.Warn("command failed", "command", text, "status", res.Status, "error", res.Error)
	}
	return DispatchResult{
		Success:  res.Status == executor.StatusCompleted,
		Output:   res.Output,
		Response: response,
		Error:    res.Error,
	}
}

func failureResponse(res executor.Result) string {
	switch {
	case errors.Is(res.Err, executor.ErrAlreadyExecuting):
		return busyResponse
	case errors.Is(res.Err, executor.ErrBinaryNotFound):
		return notInstalledResponse
	case res.Status == executor.StatusCancelled:
		return cancelledResponse
	default:
		return failedResponse
	}
}

func (o *Orchestrator) executeChat(ctx context.Context, text string) DispatchResult {
	if o.chat == nil {
		res := DispatchResult{Response: ChatUnavailableResponse, Error: ChatUnavailableResponse}
		o.publishResponse(text, "", res.Response, executor.StatusFailed)
		return res
	}

	reply, err := o.chat.Chat(ctx, text)
	if err != nil {
		o.logger.Warn("chat failed", "error", err)
		res := DispatchResult{Response: "Error: " + err.Error(), Error: err.Error()}
		o.publishResponse(text, "", res.Response, executor.StatusFailed)
		return res
	}

	o.publishResponse(text, "", reply, executor.StatusCompleted)
	return DispatchResult{Success: true, Response: reply}
}

func (o *Orchestrator) publishResponse(cmd, output, response string, status executor.Status) {
	o.bus.Publish(events.TypeResponse, events.Data{
		"command":  cmd,
		"output":   output,
		"response": response,
		"status":   string(status),
	})
}

// speak says text through the speaker. Failures are logged and reported as
// events, never returned.
func (o *Orchestrator) speak(ctx context.Context, text string) {
	ok := false
	if o.speaker != nil && o.speaker.Configured() {
		ctx, cancel := context.WithTimeout(ctx, o.cfg.SpeakTimeout)
		start := time.Now()
		err := o.speaker.Speak(ctx, text)
		cancel()
		ok = err == nil
		o.metrics.speech(ctx, ok, time.Since(start))
		if err != nil {
			o.logger.Warn("speech failed", "error", err)
			o.bus.Publish(events.TypeError, events.Data{"message": "Speech failed: " + err.Error()})
		}
	}

	o.bus.Publish(events.TypeSpoke, events.Data{"text": text, "success": ok})
}

// gesture runs fn on a detached goroutine when the robot is connected.
// Gestures are bounded by GestureTimeout and are not ordered relative to
// later state changes. The caller must be a handler of s, or pass nil.
func (o *Orchestrator) gesture(s *session, name string, fn func(ctx context.Context) error) {
	if o.robot == nil || !o.robot.Connected() {
		return
	}
	if s != nil {
		s.gestures.Add(1)
	}
	go func() {
		if s != nil {
			defer s.gestures.Done()
		}
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("gesture panicked", "gesture", name, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.GestureTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			o.logger.Debug("gesture failed", "gesture", name, "error", err)
		}
	}()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
