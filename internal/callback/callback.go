// Package callback keeps listener registrations in the order they were added.
package callback

import (
	"slices"
	"sync"
)

type entry[F any] struct {
	id uint64
	fn F
}

// List is a concurrency-safe set of listeners. The zero value is ready to use.
type List[F any] struct {
	mu      sync.Mutex
	nextID  uint64
	entries []entry[F]
}

// Add appends fn and returns a function that removes it. Calling remove more
// than once is harmless.
func (l *List[F]) Add(fn F) (remove func()) {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.entries = append(l.entries, entry[F]{id: id, fn: fn})
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.entries = slices.DeleteFunc(l.entries, func(e entry[F]) bool { return e.id == id })
	}
}

// Snapshot returns the listeners in registration order. Callers invoke them
// without holding any lock.
func (l *List[F]) Snapshot() []F {
	l.mu.Lock()
	defer l.mu.Unlock()
	fns := make([]F, len(l.entries))
	for i, e := range l.entries {
		fns[i] = e.fn
	}
	return fns
}

// Len reports how many listeners are registered.
func (l *List[F]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
