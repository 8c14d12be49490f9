package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teslashibe/reachy-voice/internal/httpc"
	"github.com/teslashibe/reachy-voice/pkg/voice"
	"github.com/teslashibe/reachy-voice/pkg/web"
)

func newStatusCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet,
				strings.TrimSuffix(addr, "/")+web.Prefix+"/status", nil)
			if err != nil {
				return err
			}
			resp, err := httpc.Client.Do(req)
			if err != nil {
				return fmt.Errorf("query server: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
				return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}

			var st voice.Status
			if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
				return fmt.Errorf("decode status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "server base URL")
	return cmd
}

func printStatus(w io.Writer, st voice.Status) {
	fmt.Fprintf(w, "State:          %s\n", st.State)
	fmt.Fprintf(w, "Parser:         %s\n", st.Services.Parser.Mode)
	fmt.Fprintf(w, "Robot:          %s\n", yesNo(st.Services.RobotConnected, "connected", "disconnected"))
	if st.Services.STT != nil {
		fmt.Fprintf(w, "STT:            %s\n", yesNo(st.Services.STT.Listening, "listening", "idle"))
	} else {
		fmt.Fprintf(w, "STT:            not configured\n")
	}
	fmt.Fprintf(w, "TTS:            %s\n", yesNo(st.Services.TTSConfigured, "configured", "not configured"))
	if cc := st.Services.ClaudeCode; cc != nil {
		fmt.Fprintf(w, "Claude Code:    %s\n", yesNo(cc.Available, yesNo(cc.Executing, "executing", "ready"), "not installed"))
	}
	fmt.Fprintf(w, "Chat:           %s\n", yesNo(st.Services.ChatAvailable, "available", "unavailable"))
	if st.LastCommand != "" {
		fmt.Fprintf(w, "Last command:   %s\n", st.LastCommand)
		fmt.Fprintf(w, "Last response:  %s\n", st.LastResponse)
	}
}

func yesNo(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}
