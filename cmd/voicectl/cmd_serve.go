package main

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/reachy-voice/internal/config"
	"github.com/teslashibe/reachy-voice/internal/log"
	"github.com/teslashibe/reachy-voice/pkg/web"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		port      int
		autoStart bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the voice pipeline and its HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("auto-start") {
				cfg.Server.AutoStart = autoStart
			}
			return serve(cmd.Context(), g, cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "HTTP server port (overrides VOICE_CONTROL_PORT)")
	cmd.Flags().BoolVar(&autoStart, "auto-start", false, "start listening immediately")
	return cmd
}

func serve(ctx context.Context, g *globalFlags, cfg *config.Config) error {
	logger := log.L()

	c, err := build(cfg, logger, buildOptions{speech: true})
	if err != nil {
		return err
	}

	srv := web.NewServer(c.orch, web.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		Metrics:      c.metrics.Handler(),
	}, logger)

	ln, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return srv.Serve(ln)
	})

	eg.Go(func() error {
		return c.reachy.Monitor(ctx, cfg.Robot.ProbeInterval)
	})

	if g.configPath != "" {
		eg.Go(func() error {
			return config.Watch(ctx, g.configPath, func(next *config.Config) {
				c.parser.SetVocabulary(next.Vocabulary)
				logger.Info("vocabulary reloaded", "wake_phrases", next.Vocabulary.WakePhrases)
			}, logger)
		})
	}

	if cfg.Server.AutoStart {
		eg.Go(func() error {
			// Give the robot monitor one probe before the first recording.
			c.reachy.Refresh(ctx)
			if err := c.orch.Start(ctx); err != nil {
				logger.Warn("auto-start failed", "error", err)
			}
			return nil
		})
	}

	eg.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return errors.Join(
			c.shutdown(shutdownCtx),
			srv.Shutdown(shutdownCtx),
		)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
