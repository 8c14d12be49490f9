// Package executor runs the Claude Code CLI as a supervised subprocess.
//
// At most one command runs at a time per Executor. Output is streamed line by
// line to registered callbacks while it is accumulated for the final Result.
// A running command can be cancelled: its process group receives SIGTERM,
// then SIGKILL if it is still alive after the grace period.
package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/teslashibe/reachy-voice/internal/callback"
)

// Status is the lifecycle state of one execution.
type Status string

// Execution states. Completed, Failed and Cancelled are terminal.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Result is the outcome of Execute.
type Result struct {
	Command string `json:"command"`
	Status  Status `json:"status"`
	Output  string `json:"output"`
	Error   string `json:"error,omitempty"`

	// Err is the underlying error for errors.Is checks.
	Err error `json:"-"`
}

// Info is a snapshot returned by Status.
type Info struct {
	Available     bool `json:"available"`
	Executing     bool `json:"executing"`
	CallbackCount int  `json:"callback_count"`
}

// Config controls how the CLI is invoked.
type Config struct {
	// Binary is the executable name or path. Default "claude".
	Binary string `yaml:"binary"`

	// Args are placed after "-p <command>".
	Args []string `yaml:"args"`

	// Dir is the working directory. Empty uses the current directory.
	Dir string `yaml:"dir"`

	// GracePeriod between SIGTERM and SIGKILL on Cancel. Default 500ms.
	GracePeriod time.Duration `yaml:"grace_period"`

	// Timeout bounds a single run. Zero means no limit.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the standard non-interactive invocation.
func DefaultConfig() Config {
	return Config{
		Binary:      "claude",
		Args:        []string{"--output-format", "text", "--dangerously-skip-permissions"},
		GracePeriod: 500 * time.Millisecond,
	}
}

// Executor supervises CLI invocations.
type Executor struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	running   bool
	cancelled bool
	cmd       *exec.Cmd
	output    *os.File
	done      chan struct{}

	outputFns callback.List[func(string)]
	statusFns callback.List[func(Status, string)]

	// Overridable for testing.
	commandContext func(ctx context.Context, name string, args ...string) *exec.Cmd
	lookPath       func(file string) (string, error)
}

// New creates an Executor. Zero fields in cfg take their defaults.
func New(cfg Config, logger *slog.Logger) *Executor {
	def := DefaultConfig()
	if cfg.Binary == "" {
		cfg.Binary = def.Binary
	}
	if cfg.Args == nil {
		cfg.Args = def.Args
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = def.GracePeriod
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg:            cfg,
		logger:         logger.With("component", "executor"),
		commandContext: exec.CommandContext,
		lookPath:       exec.LookPath,
	}
}

// OnOutput registers fn to receive every non-empty output line.
func (e *Executor) OnOutput(fn func(line string)) (remove func()) {
	return e.outputFns.Add(fn)
}

// OnStatus registers fn to receive status transitions with a short detail.
func (e *Executor) OnStatus(fn func(status Status, detail string)) (remove func()) {
	return e.statusFns.Add(fn)
}

// Available reports whether the CLI can be found.
func (e *Executor) Available() bool {
	_, err := e.lookPath(e.cfg.Binary)
	return err == nil
}

// Executing reports whether a command is in flight.
func (e *Executor) Executing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Status returns availability and activity.
func (e *Executor) Status() Info {
	return Info{
		Available:     e.Available(),
		Executing:     e.Executing(),
		CallbackCount: e.outputFns.Len(),
	}
}

// Execute runs command to completion. It never returns an error directly:
// every failure is reported through the Result.
func (e *Executor) Execute(ctx context.Context, command string) Result {
	path, err := e.acquire()
	if err != nil {
		e.logger.Warn("execution rejected", "error", err)
		return Result{Command: command, Status: StatusFailed, Error: err.Error(), Err: err}
	}
	defer e.release()

	e.notifyStatus(StatusRunning, "Executing: "+truncate(command, 50)+"...")
	e.logger.Info("executing command", "command", command)

	var lines []string
	runErr := e.run(ctx, path, command, func(line string) bool {
		lines = append(lines, line)
		e.notifyOutput(line)
		return true
	})
	output := strings.Join(lines, "\n")

	switch {
	case runErr == nil:
		e.notifyStatus(StatusCompleted, "Command completed successfully")
		e.logger.Info("command completed", "lines", len(lines))
		return Result{Command: command, Status: StatusCompleted, Output: output}

	case errors.Is(runErr, ErrCancelled):
		if !e.cancelRequested() {
			e.notifyStatus(StatusCancelled, "Command cancelled")
		}
		e.logger.Info("command cancelled")
		return Result{Command: command, Status: StatusCancelled, Output: output, Error: runErr.Error(), Err: runErr}

	default:
		var exitErr *ExitError
		if errors.As(runErr, &exitErr) {
			e.notifyStatus(StatusFailed, fmt.Sprintf("Exit code: %d", exitErr.Code))
		} else {
			e.notifyStatus(StatusFailed, runErr.Error())
		}
		e.logger.Warn("command failed", "error", runErr)
		return Result{Command: command, Status: StatusFailed, Output: output, Error: runErr.Error(), Err: runErr}
	}
}

// Stream runs command and yields raw output lines as they arrive. The
// sequence can be ranged over once; later iterations yield nothing.
// Failures are yielded as a final "Error: ..." line. Breaking out of the
// loop kills the process.
func (e *Executor) Stream(ctx context.Context, command string) iter.Seq[string] {
	var once sync.Once
	return func(yield func(string) bool) {
		first := false
		once.Do(func() { first = true })
		if !first {
			return
		}

		path, err := e.acquire()
		if err != nil {
			yield("Error: " + err.Error())
			return
		}
		defer e.release()

		stopped := false
		runErr := e.run(ctx, path, command, func(line string) bool {
			if !yield(line) {
				stopped = true
				return false
			}
			return true
		})
		if stopped || runErr == nil {
			return
		}
		var exitErr *ExitError
		if errors.As(runErr, &exitErr) {
			return
		}
		yield("Error: " + runErr.Error())
	}
}

// Cancel terminates the running command and every process it started. It
// returns ErrNotExecuting when nothing is running. When Cancel returns nil
// the executor accepts new commands, unless the run could not be reaped
// within a second grace period.
func (e *Executor) Cancel() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrNotExecuting
	}
	e.cancelled = true
	var proc *os.Process
	if e.cmd != nil {
		proc = e.cmd.Process
	}
	output := e.output
	done := e.done
	grace := e.cfg.GracePeriod
	e.mu.Unlock()

	if proc != nil {
		if err := signalGroup(proc, syscall.SIGTERM); err != nil {
			e.logger.Warn("terminate failed", "error", err)
		}
		select {
		case <-done:
		case <-time.After(grace):
			e.logger.Warn("process ignored SIGTERM, killing", "grace", grace)
			if err := signalGroup(proc, syscall.SIGKILL); err != nil {
				return fmt.Errorf("kill: %w", err)
			}
			// A process that left the group may still hold the pipe.
			if output != nil {
				_ = output.Close()
			}
			select {
			case <-done:
			case <-time.After(grace):
				e.logger.Warn("killed command has not exited yet")
			}
		}
	}

	e.notifyStatus(StatusCancelled, "Command cancelled by user")
	return nil
}

// signalGroup signals the process group led by proc.
func signalGroup(proc *os.Process, sig syscall.Signal) error {
	err := syscall.Kill(-proc.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

func (e *Executor) acquire() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return "", ErrAlreadyExecuting
	}
	path, err := e.lookPath(e.cfg.Binary)
	if err != nil {
		return "", fmt.Errorf("%w (%s)", ErrBinaryNotFound, InstallHint)
	}
	e.running = true
	e.cancelled = false
	e.done = make(chan struct{})
	return path, nil
}

func (e *Executor) release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	e.cmd = nil
	e.output = nil
	close(e.done)
}

func (e *Executor) cancelRequested() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}

// run spawns the process in its own process group with stderr merged into
// stdout and feeds each non-empty line to onLine until EOF or until onLine
// returns false.
func (e *Executor) run(ctx context.Context, path, command string, onLine func(string) bool) error {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	args := append([]string{"-p", command}, e.cfg.Args...)
	cmd := e.commandContext(ctx, path, args...)
	cmd.Dir = e.cfg.Dir
	cmd.Stdin = nil // null device
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error { return signalGroup(cmd.Process, syscall.SIGKILL) }

	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("output pipe: %w", err)
	}
	defer pr.Close()
	cmd.Stdout = pw
	cmd.Stderr = pw

	e.mu.Lock()
	if e.cancelled {
		e.mu.Unlock()
		pw.Close()
		return ErrCancelled
	}
	err = cmd.Start()
	if err == nil {
		e.cmd = cmd
		e.output = pr
	}
	e.mu.Unlock()
	pw.Close()
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	stopped, readErr := readLines(pr, onLine)
	if stopped || readErr != nil {
		// Nobody drains the pipe any more; a child still writing would
		// block forever and Wait would never return.
		if err := signalGroup(cmd.Process, syscall.SIGKILL); err != nil {
			e.logger.Warn("kill after read failure", "error", err)
		}
	}
	waitErr := cmd.Wait()

	switch {
	case e.cancelRequested():
		return ErrCancelled
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("command timed out: %w", ctx.Err())
	case ctx.Err() != nil:
		return ErrCancelled
	case stopped:
		return nil
	case readErr != nil:
		return fmt.Errorf("read output: %w", readErr)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return &ExitError{Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("wait: %w", waitErr)
	}
	return nil
}

// readLines reads r line by line with no length limit. It reports whether
// onLine asked to stop and any read error other than EOF.
func readLines(r io.Reader, onLine func(string) bool) (stopped bool, err error) {
	br := bufio.NewReader(r)
	for {
		raw, err := br.ReadString('\n')
		if line := strings.TrimRight(raw, " \t\r\n"); line != "" {
			if !onLine(line) {
				return true, nil
			}
		}
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
}

func (e *Executor) notifyOutput(line string) {
	for _, fn := range e.outputFns.Snapshot() {
		e.safely(func() { fn(line) })
	}
}

func (e *Executor) notifyStatus(status Status, detail string) {
	for _, fn := range e.statusFns.Snapshot() {
		e.safely(func() { fn(status, detail) })
	}
}

func (e *Executor) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("callback panicked", "panic", r)
		}
	}()
	fn()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
