package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the queue capacity used when Subscribe is given a
// non-positive size.
const DefaultBuffer = 64

// Subscription is one observer's bounded view of the bus.
//
// Events are delivered on C in emission order. When the queue is full the
// oldest queued event is discarded to make room for the newest.
type Subscription struct {
	C <-chan Event

	ch      chan Event
	bus     *Bus
	mu      sync.Mutex
	closed  bool
	dropped atomic.Uint64
}

// Dropped returns how many events this subscriber lost to overflow.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close removes the subscription from its bus. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.Unsubscribe(s)
}

func (s *Subscription) deliver(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- e:
			return
		default:
		}
		// Full: drop the oldest and retry.
		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Bus is an in-process fan-out of events to subscribers.
// The zero value is not usable; call NewBus.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	logger *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[*Subscription]struct{}),
		logger: logger.With("component", "events"),
	}
}

// Subscribe registers a new observer with a queue of the given size.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Event, buffer)
	sub := &Subscription{C: ch, ch: ch, bus: b}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// SubscribeFunc runs fn for every event on a dedicated goroutine. A panic in
// fn is logged and the handler keeps receiving subsequent events. The
// returned function unsubscribes.
func (b *Bus) SubscribeFunc(buffer int, fn func(Event)) func() {
	sub := b.Subscribe(buffer)
	go func() {
		for e := range sub.C {
			b.invoke(fn, e)
		}
	}()
	return sub.Close
}

func (b *Bus) invoke(fn func(Event), e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "type", e.Type, "panic", r)
		}
	}()
	fn(e)
}

// Unsubscribe removes sub and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
	sub.close()
}

// Publish builds an event and delivers it to every subscriber. It never blocks
// on a slow subscriber.
func (b *Bus) Publish(t Type, data Data) Event {
	e := New(t, data)
	b.Emit(e)
	return e
}

// Emit delivers an already constructed event.
func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		sub.deliver(e)
	}
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
