package inference

import (
	"context"
	"sync"
)

// Mock is a scripted Provider. With Respond nil it echoes "Mock response".
type Mock struct {
	Respond func(req Request) (Reply, error)

	mu       sync.Mutex
	requests []Request
	closed   bool
}

// NewMock returns a Mock that always fails with err.
func NewMock(err error) *Mock {
	return &Mock{Respond: func(Request) (Reply, error) { return Reply{}, err }}
}

func (m *Mock) Complete(_ context.Context, req Request) (Reply, error) {
	m.mu.Lock()
	req.Messages = append([]Message(nil), req.Messages...)
	m.requests = append(m.requests, req)
	respond := m.Respond
	m.mu.Unlock()

	if respond == nil {
		return Reply{Text: "Mock response", FinishReason: "stop"}, nil
	}
	return respond(req)
}

func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Requests returns every request seen so far.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

var _ Provider = (*Mock)(nil)
