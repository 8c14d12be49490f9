package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/reachy-voice/pkg/audioio"
	"github.com/teslashibe/reachy-voice/pkg/command"
	"github.com/teslashibe/reachy-voice/pkg/events"
	"github.com/teslashibe/reachy-voice/pkg/executor"
	"github.com/teslashibe/reachy-voice/pkg/stt"
)

// Errors returned by the orchestrator.
var (
	ErrSTTNotConfigured    = errors.New("voice: STT not configured - check DEEPGRAM_API_KEY")
	ErrExecutorUnavailable = errors.New("voice: command executor not available")
	ErrEmptyCommand        = errors.New("voice: empty command")
)

// Deps are the orchestrator's collaborators. Any of them except STT may be
// nil; the matching capability is then skipped.
type Deps struct {
	STT      Transcriber
	Parser   *command.Parser
	Executor CommandExecutor
	Robot    Robot
	Speaker  Speaker
	Chat     Chatter
	Bus      *events.Bus
	Metrics  *Metrics
	Logger   *slog.Logger
}

// Services reports collaborator status.
type Services struct {
	STT            *stt.Status    `json:"stt"`
	Parser         command.Status `json:"parser"`
	ClaudeCode     *executor.Info `json:"claude_code"`
	RobotConnected bool           `json:"robot_connected"`
	TTSConfigured  bool           `json:"tts_configured"`
	ChatAvailable  bool           `json:"chat_available"`
}

// Status is a snapshot of the orchestrator.
type Status struct {
	State        State    `json:"state"`
	IsRunning    bool     `json:"is_running"`
	LastCommand  string   `json:"last_command"`
	LastResponse string   `json:"last_response"`
	Services     Services `json:"services"`
}

// DispatchResult is the outcome of one command.
type DispatchResult struct {
	Success  bool   `json:"success"`
	Output   string `json:"output,omitempty"`
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Orchestrator drives the voice control pipeline. It is safe for concurrent
// use; Start and Stop are serialized.
type Orchestrator struct {
	stt      Transcriber
	parser   *command.Parser
	executor CommandExecutor
	robot    Robot
	speaker  Speaker
	chat     Chatter
	bus      *events.Bus
	metrics  *Metrics
	cfg      Config
	logger   *slog.Logger

	lifecycle sync.Mutex

	mu           sync.RWMutex
	state        State
	session      *session
	lastCommand  string
	lastResponse string

	// Guarded by lifecycle.
	stopAudio        context.CancelFunc
	audioDone        chan struct{}
	removeTranscript func()
	removeCommand    func()
}

// session tracks the goroutines started on behalf of one Start. Handlers
// of a stopped session no longer touch the parser or the state.
type session struct {
	handlers sync.WaitGroup
	gestures sync.WaitGroup
}

// wait blocks until every handler and gesture of s has returned.
func (s *session) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		s.gestures.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// New creates a stopped orchestrator.
func New(deps Deps, cfg Config) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "voice")

	o := &Orchestrator{
		stt:      deps.STT,
		parser:   deps.Parser,
		executor: deps.Executor,
		robot:    deps.Robot,
		speaker:  deps.Speaker,
		chat:     deps.Chat,
		bus:      deps.Bus,
		metrics:  deps.Metrics,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		state:    StateStopped,
	}
	if o.parser == nil {
		o.parser = command.NewParser(command.DefaultVocabulary(), logger)
	}
	if o.bus == nil {
		o.bus = events.NewBus(logger)
	}
	if o.metrics == nil {
		o.metrics = noopMetrics()
	}
	return o
}

// Events returns the bus every pipeline event is published on.
func (o *Orchestrator) Events() *events.Bus { return o.bus }

// Parser returns the command parser.
func (o *Orchestrator) Parser() *command.Parser { return o.parser }

// Executor returns the command executor, or nil.
func (o *Orchestrator) Executor() CommandExecutor { return o.executor }

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// IsRunning reports whether the orchestrator has been started.
func (o *Orchestrator) IsRunning() bool {
	return o.State().Active()
}

// Start begins listening. It returns nil if already running.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()

	if o.IsRunning() {
		return nil
	}
	o.setState(StateStarting)

	if o.stt == nil || !o.stt.Configured() {
		o.fail(ErrSTTNotConfigured)
		return ErrSTTNotConfigured
	}

	o.parser.Reset()
	o.mu.Lock()
	o.session = &session{}
	o.mu.Unlock()

	o.removeTranscript = o.stt.OnTranscript(o.onTranscript)
	if err := o.stt.Start(ctx); err != nil {
		o.removeTranscript()
		o.removeTranscript = nil
		err = fmt.Errorf("start stt: %w", err)
		o.fail(err)
		return err
	}

	o.removeCommand = o.parser.OnCommand(o.onParsed)

	audioCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.stopAudio = cancel
	o.audioDone = make(chan struct{})
	go o.audioLoop(audioCtx, o.audioDone)

	o.setState(StateRunning)
	o.bus.Publish(events.TypeStatus, events.Data{"message": "Voice control started"})
	o.logger.Info("voice control started")
	return nil
}

// Stop stops listening, waits for the command being handled and resets the
// parser. It returns nil if already stopped. Every step runs even if an
// earlier one fails; the orchestrator always ends STOPPED. A handler still
// running when ctx expires finishes on its own without touching the parser.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()

	if !o.IsRunning() {
		return nil
	}

	var errs []error
	if o.stopAudio != nil {
		o.stopAudio()
		select {
		case <-o.audioDone:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("audio loop: %w", ctx.Err()))
		}
		o.stopAudio, o.audioDone = nil, nil
	}

	if o.removeTranscript != nil {
		o.removeTranscript()
		o.removeTranscript = nil
	}
	if err := o.stt.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop stt: %w", err))
	}

	if o.removeCommand != nil {
		o.removeCommand()
		o.removeCommand = nil
	}

	o.mu.Lock()
	s := o.session
	o.session = nil
	o.transitionLocked(StateStopped)
	o.mu.Unlock()

	if s != nil {
		if err := s.wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("command handler: %w", err))
		}
	}
	o.parser.Reset()
	o.bus.Publish(events.TypeStatus, events.Data{"message": "Voice control stopped"})

	err := errors.Join(errs...)
	if err != nil {
		o.logger.Warn("voice control stopped with errors", "error", err)
	} else {
		o.logger.Info("voice control stopped")
	}
	return err
}

// ExecuteManualCommand dispatches command directly, bypassing the wake
// phrase. It does not change state or speak.
func (o *Orchestrator) ExecuteManualCommand(ctx context.Context, text string, useClaudeCode bool) DispatchResult {
	text = strings.TrimSpace(text)
	if text == "" {
		return DispatchResult{Error: ErrEmptyCommand.Error()}
	}
	return o.dispatch(ctx, nil, text, useClaudeCode)
}

// CancelExecution cancels the running assistant CLI command.
func (o *Orchestrator) CancelExecution() error {
	if o.executor == nil {
		return ErrExecutorUnavailable
	}
	return o.executor.Cancel()
}

// Status returns a snapshot of the orchestrator and its collaborators.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	s := Status{
		State:        o.state,
		IsRunning:    o.state.Active(),
		LastCommand:  o.lastCommand,
		LastResponse: o.lastResponse,
	}
	o.mu.RUnlock()

	s.Services.Parser = o.parser.Status()
	if o.stt != nil {
		st := o.stt.Status()
		s.Services.STT = &st
	}
	if o.executor != nil {
		info := o.executor.Status()
		s.Services.ClaudeCode = &info
	}
	s.Services.RobotConnected = o.robot != nil && o.robot.Connected()
	s.Services.TTSConfigured = o.speaker != nil && o.speaker.Configured()
	s.Services.ChatAvailable = o.chat != nil
	return s
}

// setState moves to state unconditionally.
func (o *Orchestrator) setState(to State) {
	o.transition(to)
}

// transition moves to state to if the current state is one of from (any
// state when from is empty) and publishes a status event on change.
func (o *Orchestrator) transition(to State, from ...State) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transitionLocked(to, from...)
}

// transitionFor is transition limited to session s. It fails once s has
// been stopped.
func (o *Orchestrator) transitionFor(s *session, to State, from ...State) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session != s {
		return false
	}
	return o.transitionLocked(to, from...)
}

// current reports whether s is the running session.
func (o *Orchestrator) current(s *session) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.session == s
}

func (o *Orchestrator) transitionLocked(to State, from ...State) bool {
	prev := o.state
	if len(from) > 0 && !containsState(from, prev) {
		return false
	}
	if prev == to {
		return true
	}
	o.state = to
	o.logger.Debug("state changed", "from", prev, "to", to)
	// Published under the lock so status events keep transition order.
	o.bus.Publish(events.TypeStatus, events.Data{"state": string(to), "previous": string(prev)})
	return true
}

func containsState(states []State, s State) bool {
	for _, v := range states {
		if v == s {
			return true
		}
	}
	return false
}

func (o *Orchestrator) fail(err error) {
	o.mu.Lock()
	o.session = nil
	o.transitionLocked(StateError)
	o.mu.Unlock()
	o.bus.Publish(events.TypeError, events.Data{"message": err.Error()})
	o.logger.Error("voice control start failed", "error", err)
}

// recordRetryInterval paces attempts to open the microphone.
const recordRetryInterval = 2 * time.Second

// audioLoop forwards microphone audio to the recognizer until ctx is done.
// Without a robot it still ticks so the listening timeout is enforced.
func (o *Orchestrator) audioLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	var (
		recording   bool
		lastAttempt time.Time
	)
	if o.robot == nil {
		o.logger.Warn("no robot attached, audio ingestion disabled")
	} else {
		defer func() {
			if !recording {
				return
			}
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := o.robot.StopRecording(stopCtx); err != nil {
				o.logger.Warn("stop recording failed", "error", err)
			}
		}()
	}

	ticker := time.NewTicker(o.cfg.ChunkInterval)
	defer ticker.Stop()

	for {
		if o.robot != nil && !recording && time.Since(lastAttempt) >= recordRetryInterval {
			lastAttempt = time.Now()
			if err := o.robot.StartRecording(ctx); err != nil {
				o.logger.Warn("start recording failed", "error", err, "retry_in", recordRetryInterval)
			} else {
				recording = true
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		o.checkListeningTimeout()
		if !recording || !o.State().forwarding() {
			continue
		}

		if err := o.pumpAudio(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			o.logger.Debug("audio loop error", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(o.cfg.ErrorBackoff):
			}
		}
	}
}

// pumpAudio moves one microphone sample to the recognizer.
func (o *Orchestrator) pumpAudio(ctx context.Context) error {
	sample, err := o.robot.AudioSample(ctx)
	if err != nil {
		return fmt.Errorf("audio sample: %w", err)
	}
	pcm, err := audioio.EncodePCM16(sample)
	if err != nil {
		return err
	}
	if len(pcm) == 0 {
		return nil
	}
	return o.stt.SendAudio(pcm)
}

// checkListeningTimeout finalizes a command the speaker never finished.
func (o *Orchestrator) checkListeningTimeout() {
	if o.cfg.ListeningTimeout <= 0 || o.parser.ListeningFor() < o.cfg.ListeningTimeout {
		return
	}
	if cmd, ok := o.parser.ForceComplete(); ok {
		o.logger.Info("listening timed out, completing command", "command", cmd.Command)
		o.handleAsync(*cmd)
		return
	}
	o.logger.Info("listening timed out with nothing heard")
	o.parser.Reset()
}

// onTranscript is the recognizer callback.
func (o *Orchestrator) onTranscript(text string, isFinal bool) {
	if strings.TrimSpace(text) == "" {
		return
	}
	o.bus.Publish(events.TypeTranscript, events.Data{"text": text, "is_final": isFinal})
	o.metrics.transcript(context.Background(), isFinal)

	if cmd, ok := o.parser.Process(text, isFinal); ok {
		o.handleAsync(*cmd)
	}
}

// onParsed observes every command the parser finalizes. Dispatch happens
// from the Process or ForceComplete return value, never here.
func (o *Orchestrator) onParsed(cmd command.Parsed) {
	o.metrics.command(context.Background(), cmd.IsClaudeCode)
	o.logger.Info("command detected",
		"command", cmd.Command,
		"claude_code", cmd.IsClaudeCode,
		"confidence", cmd.Confidence,
	)
}
