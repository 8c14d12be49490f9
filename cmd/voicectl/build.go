package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teslashibe/reachy-voice/internal/config"
	"github.com/teslashibe/reachy-voice/internal/observe"
	"github.com/teslashibe/reachy-voice/pkg/audio"
	"github.com/teslashibe/reachy-voice/pkg/command"
	"github.com/teslashibe/reachy-voice/pkg/executor"
	"github.com/teslashibe/reachy-voice/pkg/inference"
	"github.com/teslashibe/reachy-voice/pkg/mic"
	"github.com/teslashibe/reachy-voice/pkg/robot"
	"github.com/teslashibe/reachy-voice/pkg/stt"
	"github.com/teslashibe/reachy-voice/pkg/tts"
	"github.com/teslashibe/reachy-voice/pkg/voice"
)

// components is the assembled service.
type components struct {
	orch     *voice.Orchestrator
	executor *executor.Executor
	parser   *command.Parser
	reachy   *robot.Reachy
	metrics  *observe.Provider
	closers  []func() error
}

type buildOptions struct {
	// speech enables the recognizer, microphone and TTS.
	speech bool
}

func build(cfg *config.Config, logger *slog.Logger, opts buildOptions) (*components, error) {
	c := &components{}

	metrics, err := observe.NewProvider(observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	c.metrics = metrics
	vm, err := voice.NewMetrics(metrics.Meter(voice.MeterName))
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	c.executor = executor.New(cfg.Executor, logger)
	if !c.executor.Available() {
		logger.Warn("claude CLI not found, automation commands disabled", "hint", executor.InstallHint)
	}
	c.parser = command.NewParser(cfg.Vocabulary, logger)

	deps := voice.Deps{
		Parser:   c.parser,
		Executor: c.executor,
		Metrics:  vm,
		Logger:   logger,
	}

	if chat, err := buildChat(cfg, logger); err != nil {
		logger.Warn("chat fallback disabled", "error", err)
	} else {
		deps.Chat = chat
		c.closers = append(c.closers, chat.close)
	}

	if opts.speech {
		deps.STT = stt.NewDeepgram(cfg.STT, logger)

		ctrl := robot.NewHTTPController(cfg.Robot.APIURL())
		m := mic.New(mic.Config{
			SignallingURL: cfg.Robot.SignallingURL(),
			Producer:      cfg.Robot.Producer,
		}, logger)
		c.reachy = robot.NewReachy(ctrl, m, logger)
		deps.Robot = c.reachy

		speaker, err := buildSpeaker(cfg, logger)
		if err != nil {
			logger.Warn("speech output disabled", "error", err)
		} else {
			deps.Speaker = speaker
		}
	}

	c.orch = voice.New(deps, cfg.Voice)
	return c, nil
}

// chatter pairs a conversation with its client for shutdown.
type chatter struct {
	*inference.Conversation
	client *inference.Client
}

func (c chatter) close() error { return c.client.Close() }

func buildChat(cfg *config.Config, logger *slog.Logger) (chatter, error) {
	if cfg.Chat.APIKey == "" {
		return chatter{}, inference.ErrNoAPIKey
	}
	client, err := inference.NewClient(
		inference.WithBaseURL(cfg.Chat.BaseURL),
		inference.WithAPIKey(cfg.Chat.APIKey),
		inference.WithModel(cfg.Chat.Model),
		inference.WithLogger(logger),
	)
	if err != nil {
		return chatter{}, err
	}
	return chatter{
		Conversation: inference.NewConversation(client, cfg.Chat.SystemPrompt, cfg.Chat.HistoryTurns),
		client:       client,
	}, nil
}

func buildSpeaker(cfg *config.Config, logger *slog.Logger) (*tts.Speaker, error) {
	var providers []tts.Provider
	if key := cfg.TTS.DeepgramAPIKey; key != "" {
		p, err := tts.NewDeepgram(tts.WithAPIKey(key), tts.WithVoice(cfg.TTS.DeepgramVoice), tts.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if key := cfg.TTS.OpenAIAPIKey; key != "" {
		p, err := tts.NewOpenAI(tts.WithAPIKey(key), tts.WithVoice(cfg.TTS.OpenAIVoice), tts.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}

	chain, err := tts.NewChain(logger, providers...)
	if err != nil {
		return nil, err
	}
	player := audio.NewPlayer(cfg.Robot.Host, cfg.Robot.SSHUser, cfg.Robot.SSHPass, logger)
	return tts.NewSpeaker(chain, player, logger), nil
}

// shutdown stops the pipeline, cancels any running command and releases
// clients. Every step runs.
func (c *components) shutdown(ctx context.Context) error {
	var errs []error
	if err := c.orch.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := c.executor.Cancel(); err != nil && !errors.Is(err, executor.ErrNotExecuting) {
		errs = append(errs, err)
	}
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.metrics.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
