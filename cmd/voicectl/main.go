// Command voicectl runs the Reachy Mini voice control service.
//
//	voicectl serve                 # listen for "hey claude ..." and serve the API
//	voicectl exec "run the tests"  # dispatch one command without speech
//	voicectl status                # query a running server
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/reachy-voice/internal/config"
	"github.com/teslashibe/reachy-voice/internal/log"
)

var version = "dev"

type globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:           "voicectl",
		Short:         "Voice control for Reachy Mini",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	root.AddCommand(
		newServeCmd(&g),
		newExecCmd(&g),
		newStatusCmd(),
	)
	return root
}

// loadConfig loads the config and initializes logging from it.
func loadConfig(g *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		if _, err := log.ParseLevel(g.logLevel); err != nil {
			return nil, err
		}
		cfg.Server.LogLevel = g.logLevel
	}
	log.Init(cfg.Server.LogLevel)
	return cfg, nil
}
