package voice

// State is the orchestrator lifecycle state.
type State string

const (
	StateStopped    State = "stopped"
	StateStarting   State = "starting"
	StateRunning    State = "running"
	StateProcessing State = "processing"
	StateSpeaking   State = "speaking"
	StateError      State = "error"
)

// Active reports whether the orchestrator is started in this state.
func (s State) Active() bool {
	return s != StateStopped && s != StateError
}

// forwarding reports whether microphone audio is sent to the recognizer.
// Audio is paused while a command is handled so the robot does not
// transcribe its own voice.
func (s State) forwarding() bool {
	return s == StateStarting || s == StateRunning
}
