// Package events provides the typed publish/subscribe bus used to fan out
// pipeline activity (transcripts, commands, responses, state changes) to
// observers such as WebSocket clients and the CLI.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of event.
type Type string

// Event types emitted by the voice pipeline.
const (
	TypeTranscript Type = "transcript"
	TypeCommand    Type = "command"
	TypeResponse   Type = "response"
	TypeStatus     Type = "status"
	TypeSpoke      Type = "spoke"
	TypeError      Type = "error"
)

// Data is the payload attached to an event.
type Data map[string]any

// Event is a single notification.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Data      Data      `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates an event stamped with a fresh ID and the current UTC time.
func New(t Type, data Data) Event {
	if data == nil {
		data = Data{}
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
