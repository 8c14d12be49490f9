package executor

import (
	"errors"
	"fmt"
)

// Sentinel errors for execution failures.
var (
	// ErrAlreadyExecuting is returned when a command is requested while
	// another is still running. Requests are rejected, never queued.
	ErrAlreadyExecuting = errors.New("executor: another command is already executing")

	// ErrBinaryNotFound indicates the automation CLI is not on PATH.
	ErrBinaryNotFound = errors.New("executor: claude code CLI not found")

	// ErrNotExecuting is returned by Cancel when nothing is running.
	ErrNotExecuting = errors.New("executor: no command executing")

	// ErrCancelled marks a run stopped by Cancel or by its context.
	ErrCancelled = errors.New("executor: command was cancelled")
)

// InstallHint is appended to ErrBinaryNotFound failures.
const InstallHint = "install with: npm install -g @anthropic-ai/claude-code"

// ExitError reports a non-zero exit status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command failed with exit code %d", e.Code)
}
