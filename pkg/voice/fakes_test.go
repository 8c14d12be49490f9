package voice

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/reachy-voice/pkg/executor"
)

type fakeRobot struct {
	connected atomic.Bool
	recording atomic.Bool

	mu      sync.Mutex
	samples []any
	nods    int
	wiggles int
	starts  int
	stops   int
}

func newFakeRobot() *fakeRobot {
	r := &fakeRobot{}
	r.connected.Store(true)
	return r
}

func (r *fakeRobot) Connected() bool { return r.connected.Load() }

func (r *fakeRobot) StartRecording(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	r.recording.Store(true)
	return nil
}

func (r *fakeRobot) StopRecording(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	r.recording.Store(false)
	return nil
}

func (r *fakeRobot) push(sample any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, sample)
}

func (r *fakeRobot) AudioSample(context.Context) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.samples) == 0 {
		return nil, nil
	}
	s := r.samples[0]
	r.samples = r.samples[1:]
	return s, nil
}

func (r *fakeRobot) Nod(context.Context, int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nods++
	return nil
}

func (r *fakeRobot) WiggleAntennas(context.Context, int, float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wiggles++
	return nil
}

func (r *fakeRobot) counts() (starts, stops, nods, wiggles int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts, r.stops, r.nods, r.wiggles
}

type fakeSpeaker struct {
	err error

	mu    sync.Mutex
	texts []string
}

func (s *fakeSpeaker) Configured() bool { return true }

func (s *fakeSpeaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return s.err
}

func (s *fakeSpeaker) spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

type fakeChat struct {
	reply string
	err   error

	mu     sync.Mutex
	inputs []string
}

func (c *fakeChat) Chat(_ context.Context, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputs = append(c.inputs, text)
	return c.reply, c.err
}

type fakeExecutor struct {
	result executor.Result

	// block, when set, holds Execute until closed.
	block chan struct{}

	mu       sync.Mutex
	commands []string
	cancels  int
}

func (e *fakeExecutor) Execute(_ context.Context, cmd string) executor.Result {
	e.mu.Lock()
	e.commands = append(e.commands, cmd)
	block := e.block
	e.mu.Unlock()

	if block != nil {
		<-block
	}
	res := e.result
	res.Command = cmd
	if res.Status == "" {
		res.Status = executor.StatusCompleted
	}
	return res
}

func (e *fakeExecutor) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.block == nil {
		return executor.ErrNotExecuting
	}
	e.cancels++
	return nil
}

func (e *fakeExecutor) Status() executor.Info {
	return executor.Info{Available: true}
}

func (e *fakeExecutor) received() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.commands...)
}

var errBoom = errors.New("boom")
