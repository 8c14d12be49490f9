package web

import (
	"time"

	"github.com/teslashibe/reachy-voice/pkg/events"
)

// Inbound WebSocket commands.
const (
	cmdStart   = "start"
	cmdStop    = "stop"
	cmdExecute = "execute"
	cmdStatus  = "status"
	cmdCancel  = "cancel"
)

// typeCommandResult replies to a start, stop, execute or cancel command.
const typeCommandResult = "command_result"

// Request is a message sent by a WebSocket client.
type Request struct {
	Command       string `json:"command"`
	Text          string `json:"text,omitempty"`
	UseClaudeCode *bool  `json:"use_claude_code,omitempty"`
}

// Message is a message sent to a WebSocket client. Pipeline events carry
// their timestamp; direct replies carry none.
type Message struct {
	Type      string     `json:"type"`
	Command   string     `json:"command,omitempty"`
	Data      any        `json:"data"`
	Timestamp *time.Time `json:"timestamp"`
}

func eventMessage(e events.Event) Message {
	ts := e.Timestamp
	return Message{Type: string(e.Type), Data: e.Data, Timestamp: &ts}
}

func errorMessage(msg string) Message {
	return Message{Type: string(events.TypeError), Data: events.Data{"message": msg}}
}
