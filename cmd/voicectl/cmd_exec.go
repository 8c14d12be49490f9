package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teslashibe/reachy-voice/internal/log"
)

func newExecCmd(g *globalFlags) *cobra.Command {
	var chat bool

	cmd := &cobra.Command{
		Use:   "exec <command...>",
		Short: "Dispatch one command as if it had been spoken",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			c, err := build(cfg, log.L(), buildOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = c.shutdown(context.WithoutCancel(cmd.Context())) }()

			return execCommand(cmd.Context(), cmd.OutOrStdout(), c, strings.Join(args, " "), !chat)
		},
	}

	cmd.Flags().BoolVar(&chat, "chat", false, "send to the chat fallback instead of the Claude Code CLI")
	return cmd
}

func execCommand(ctx context.Context, out io.Writer, c *components, text string, useClaudeCode bool) error {
	remove := c.executor.OnOutput(func(line string) {
		fmt.Fprintln(out, line)
	})
	defer remove()

	stop := context.AfterFunc(ctx, func() { _ = c.orch.CancelExecution() })
	defer stop()

	res := c.orch.ExecuteManualCommand(ctx, text, useClaudeCode)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Response:", res.Response)
	if !res.Success {
		return fmt.Errorf("command failed: %s", res.Error)
	}
	return nil
}
