package mic

import "sync"

// ring is a bounded FIFO of PCM samples. When full the oldest samples are
// discarded so the consumer always sees the most recent audio.
type ring struct {
	mu      sync.Mutex
	buf     []int16
	limit   int
	dropped int64
}

func newRing(limit int) *ring {
	return &ring{limit: limit}
}

func (r *ring) write(samples []int16) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(samples) >= r.limit {
		r.dropped += int64(len(r.buf) + len(samples) - r.limit)
		r.buf = append(r.buf[:0], samples[len(samples)-r.limit:]...)
		return
	}
	if over := len(r.buf) + len(samples) - r.limit; over > 0 {
		r.dropped += int64(over)
		r.buf = append(r.buf[:0], r.buf[over:]...)
	}
	r.buf = append(r.buf, samples...)
}

func (r *ring) drain() []int16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buf) == 0 {
		return nil
	}
	out := make([]int16, len(r.buf))
	copy(out, r.buf)
	r.buf = r.buf[:0]
	return out
}

func (r *ring) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

func (r *ring) droppedCount() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *ring) reset() {
	r.mu.Lock()
	r.buf = r.buf[:0]
	r.dropped = 0
	r.mu.Unlock()
}
